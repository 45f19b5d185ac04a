package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-overlay-renderer/internal/encoder"
	"github.com/kartoza/kartoza-overlay-renderer/internal/tui"
)

var encodersAll bool

var encodersCmd = &cobra.Command{
	Use:   "encoders",
	Short: "Show which H.264 encoder a render would use",
	Long: `Probe ffmpeg for the NVENC hardware encoder and print the parameter
set the renderer would choose, with and without hardware preference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := lipgloss.NewStyle().Foreground(tui.ColorGreen)
		red := lipgloss.NewStyle().Foreground(tui.ColorRed)
		gray := lipgloss.NewStyle().Foreground(tui.ColorGray)
		bold := lipgloss.NewStyle().Bold(true)

		timeout := time.Duration(cfg.ProbeTimeoutSeconds) * time.Second
		names, err := encoder.ListEncoders(cmd.Context(), cfg.FFmpegBinary, timeout)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Printf("%s %s\n\n", bold.Render("ffmpeg:"), cfg.FFmpegBinary)

		for _, codec := range []string{encoder.HardwareCodec, encoder.SoftwareCodec} {
			status := red.Render("✗")
			for _, n := range names {
				if n == codec {
					status = green.Render("✓")
					break
				}
			}
			fmt.Printf("  %s %s\n", status, codec)
		}
		fmt.Println()

		sel := encoder.Default()
		for _, prefer := range []bool{true, false} {
			d := sel.Select(cmd.Context(), prefer)
			label := "software preferred:"
			if prefer {
				label = "hardware preferred:"
			}
			line := fmt.Sprintf("  %s %s", gray.Render(label), d.Params)
			if d.Fallback {
				line += gray.Render(" (fallback)")
			}
			fmt.Println(line)
			fmt.Printf("    %s\n", formatArgs(d.Params))
		}
		fmt.Println()

		if encodersAll {
			fmt.Println(bold.Render("All encoders:"))
			fmt.Println("  " + strings.Join(names, " "))
			fmt.Println()
		}
		return nil
	},
}

func formatArgs(p encoder.Params) string {
	kw := p.OutputArgs(nil)
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("-%s %v", k, kw[k]))
	}
	return strings.Join(parts, " ")
}

func init() {
	encodersCmd.Flags().BoolVar(&encodersAll, "all", false, "List every encoder ffmpeg reports")
	rootCmd.AddCommand(encodersCmd)
}
