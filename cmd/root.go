package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-overlay-renderer/internal/config"
	"github.com/kartoza/kartoza-overlay-renderer/internal/encoder"
	"github.com/kartoza/kartoza-overlay-renderer/internal/logging"
	"github.com/kartoza/kartoza-overlay-renderer/internal/notify"
)

var (
	version    = "dev"
	debugMode  bool
	configDir  string
	notifyMode bool
	plainMode  bool

	cfg *config.Config
)

// SetVersion sets the application version (called from main)
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "kartoza-overlay-renderer",
	Short: "Burn call-to-action overlays into videos",
	Long: `Kartoza Overlay Renderer composites call-to-action overlays onto videos.

It supports:
  - Animated GIF, PNG, JPEG and WebP overlays with position, scale and opacity
  - Timed appearance with fade in and fade out
  - Chroma-free background removal for flat-colored overlay assets
  - Hardware (NVENC) encoding with automatic software fallback
  - Batch rendering of one overlay set onto many videos

Overlay sets are described in YAML or JSON preset files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(debugMode)

		if configDir != "" {
			config.SetConfigDir(configDir)
		}
		if err := config.LoadEnvFile(".env"); err != nil {
			log.Warn().Err(err).Msg("failed to read .env")
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		notify.SetEnabled(notifyMode)
		encoder.SetDefault(encoder.NewFFmpegSelector(cfg.FFmpegBinary, time.Duration(cfg.ProbeTimeoutSeconds)*time.Second))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory (default: ~/.config/kartoza-overlay-renderer)")
	rootCmd.PersistentFlags().BoolVar(&notifyMode, "notify", false, "Send a desktop notification when a job finishes")
	rootCmd.PersistentFlags().BoolVar(&plainMode, "plain", false, "Plain progress output even on a terminal")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kartoza-overlay-renderer %s\n", version)
	},
}
