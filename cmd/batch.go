package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-overlay-renderer/internal/batch"
	"github.com/kartoza/kartoza-overlay-renderer/internal/logging"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
	"github.com/kartoza/kartoza-overlay-renderer/internal/notify"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
	"github.com/kartoza/kartoza-overlay-renderer/internal/tui"
	"github.com/kartoza/kartoza-overlay-renderer/internal/worker"
)

var (
	batchOverlays  overlayFlags
	batchOutputDir string
	batchPrefix    string
	batchExt       string
	batchHW        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <video>...",
	Short: "Render one overlay set onto many videos",
	Long: `Apply the same overlay set to every video given, one after another.

Each output is named {prefix}{name}.{extension} inside the output directory.
A failing file is reported and the batch moves on; cancelling stops after
the file being rendered.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := batchOverlays.load()
		if err != nil {
			return err
		}

		sources := make([]string, 0, len(args))
		for _, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				return err
			}
			sources = append(sources, abs)
		}

		job := models.BatchJob{
			Overlays:           project.Elements,
			SourcePaths:        sources,
			OutputDir:          cfg.OutputDir,
			FilenamePrefix:     cfg.FilenamePrefix,
			OutputExtension:    cfg.OutputExtension,
			UseHardwareEncoder: cfg.UseHardwareEncoder,
		}
		if batchOutputDir != "" {
			job.OutputDir = batchOutputDir
		}
		if cmd.Flags().Changed("prefix") {
			job.FilenamePrefix = batchPrefix
		}
		if batchExt != "" {
			job.OutputExtension = batchExt
		}
		if cmd.Flags().Changed("hw") {
			job.UseHardwareEncoder = batchHW
		}

		tuiMode := interactive()
		if tuiMode {
			logging.Silence()
		}
		pipeline, _ := newPipeline()

		ctx, cancel := jobContext(cmd.Context(), tuiMode)
		defer cancel()

		handle := worker.StartBatch(ctx, batch.New(pipeline), job)
		final, err := follow(handle, tuiMode, "Batch", fmt.Sprintf("%d files", len(sources)))
		if err != nil {
			return err
		}
		if final == nil || final.Summary == nil {
			return fmt.Errorf("batch ended without a summary")
		}
		return reportSummary(*final.Summary)
	},
}

func reportSummary(s batch.Summary) error {
	green := lipgloss.NewStyle().Foreground(tui.ColorGreen)
	red := lipgloss.NewStyle().Foreground(tui.ColorRed)
	gray := lipgloss.NewStyle().Foreground(tui.ColorGray)

	fmt.Println()
	for _, item := range s.Items {
		switch item.Outcome.Status {
		case render.Success:
			fmt.Printf("  %s %s\n", green.Render("✓"), item.OutputPath)
		case render.Cancelled:
			fmt.Printf("  %s %s\n", gray.Render("○"), filepath.Base(item.SourcePath))
		default:
			msg := "failed"
			if item.Outcome.Err != nil {
				msg = item.Outcome.Err.Error()
			}
			fmt.Printf("  %s %s: %s\n", red.Render("✗"), filepath.Base(item.SourcePath), msg)
		}
	}
	fmt.Println()
	fmt.Println(s.String())

	_ = notify.BatchComplete(s.Succeeded, s.Total, s.Failed)

	if s.Cancelled {
		return fmt.Errorf("cancelled")
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", s.Failed)
	}
	return nil
}

func init() {
	batchCmd.Flags().StringVarP(&batchOverlays.preset, "preset", "p", "", "Overlay preset file (YAML or JSON)")
	batchCmd.Flags().StringArrayVar(&batchOverlays.overlays, "overlay", nil, "Overlay asset with default placement (repeatable)")
	batchCmd.Flags().BoolVar(&batchOverlays.untilEnd, "until-end", false, "Show --overlay assets until the end of each video")
	batchCmd.Flags().BoolVar(&batchOverlays.removeBG, "remove-bg", false, "Remove the flat background of --overlay assets")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "", "Output directory (default: config output_dir)")
	batchCmd.Flags().StringVar(&batchPrefix, "prefix", "", "Output filename prefix (default: config filename_prefix)")
	batchCmd.Flags().StringVar(&batchExt, "ext", "", "Output extension (default: config output_extension)")
	batchCmd.Flags().BoolVar(&batchHW, "hw", true, "Prefer the NVENC hardware encoder")

	rootCmd.AddCommand(batchCmd)
}
