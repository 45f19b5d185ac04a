package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/preview"
	"github.com/kartoza/kartoza-overlay-renderer/internal/tui"
)

var (
	previewOverlays overlayFlags
	previewAt       float64
	previewOutput   string
	previewWidth    int
	previewHeight   int
)

var previewCmd = &cobra.Command{
	Use:   "preview <video>",
	Short: "Composite a single frame",
	Long: `Composite the overlay set onto the frame at --at seconds.

With --output the frame is written as a PNG; otherwise it is drawn inline
in terminals that support Kitty, iTerm2 or Sixel graphics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		project, err := previewOverlays.load()
		if err != nil {
			return err
		}
		project.VideoPath = source

		_, toolkit := newPipeline()
		r := preview.New(toolkit, frames.NewCache(), cfg.SynthesisWorkers)

		res, err := r.Frame(cmd.Context(), project.Job("", false), previewAt)
		if err != nil {
			return err
		}

		warn := lipgloss.NewStyle().Foreground(tui.ColorOrange)
		for _, s := range res.Skipped {
			reason := s.Skipped
			if s.Err != nil {
				reason = s.Err.Error()
			}
			fmt.Println(warn.Render(fmt.Sprintf("skipped %s: %s", s.Overlay.Name, reason)))
		}

		if previewOutput != "" {
			if err := preview.SavePNG(previewOutput, res.Image); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (t=%.2fs, %d overlay(s) visible)\n", previewOutput, res.Time, len(res.Visible))
			return nil
		}

		out, err := preview.Terminal(res.Image, previewWidth, previewHeight)
		if err != nil {
			return fmt.Errorf("%w (use --output to write a PNG instead)", err)
		}
		fmt.Println(out)
		fmt.Printf("t=%.2fs visible: %v\n", res.Time, res.Visible)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewOverlays.preset, "preset", "p", "", "Overlay preset file (YAML or JSON)")
	previewCmd.Flags().StringArrayVar(&previewOverlays.overlays, "overlay", nil, "Overlay asset with default placement (repeatable)")
	previewCmd.Flags().BoolVar(&previewOverlays.untilEnd, "until-end", false, "Show --overlay assets until the end of the video")
	previewCmd.Flags().BoolVar(&previewOverlays.removeBG, "remove-bg", false, "Remove the flat background of --overlay assets")
	previewCmd.Flags().Float64Var(&previewAt, "at", 0, "Time of the frame in seconds")
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "Write the frame to a PNG file")
	previewCmd.Flags().IntVar(&previewWidth, "width", 80, "Inline preview width in terminal cells")
	previewCmd.Flags().IntVar(&previewHeight, "height", 24, "Inline preview height in terminal cells")

	rootCmd.AddCommand(previewCmd)
}
