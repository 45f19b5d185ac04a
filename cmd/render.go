package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-overlay-renderer/internal/batch"
	"github.com/kartoza/kartoza-overlay-renderer/internal/logging"
	"github.com/kartoza/kartoza-overlay-renderer/internal/notify"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
	"github.com/kartoza/kartoza-overlay-renderer/internal/worker"
)

var (
	renderOverlays overlayFlags
	renderOutput   string
	renderHW       bool
)

var renderCmd = &cobra.Command{
	Use:   "render <video>",
	Short: "Render overlays onto one video",
	Long: `Composite an overlay set onto a single video and encode the result.

The overlay set comes from a preset file (--preset), from overlay assets
given directly (--overlay, repeatable, default timing and placement), or both.
When --output is omitted the file is written to the configured output
directory as {prefix}{name}.{extension}.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		project, err := renderOverlays.load()
		if err != nil {
			return err
		}

		output := renderOutput
		if output == "" {
			output = batch.OutputPath(cfg.OutputDir, cfg.FilenamePrefix, source, cfg.OutputExtension)
		}
		useHW := cfg.UseHardwareEncoder
		if cmd.Flags().Changed("hw") {
			useHW = renderHW
		}

		project.VideoPath = source
		job := project.Job(output, useHW)

		tuiMode := interactive()
		if tuiMode {
			logging.Silence()
		}
		pipeline, _ := newPipeline()

		ctx, cancel := jobContext(cmd.Context(), tuiMode)
		defer cancel()

		log.Debug().Str("source", source).Str("output", output).Int("overlays", len(job.Overlays)).Msg("starting render")
		handle := worker.StartRender(ctx, pipeline, job)
		final, err := follow(handle, tuiMode, "Render", source)
		if err != nil {
			return err
		}
		if final == nil || final.Outcome == nil {
			return fmt.Errorf("render ended without a result")
		}
		return reportOutcome(*final.Outcome)
	},
}

func reportOutcome(o render.Outcome) error {
	switch o.Status {
	case render.Success:
		fmt.Printf("Rendered %s (%d frames, %s)\n", o.OutputPath, o.Frames, o.Encoder)
		if o.Skipped > 0 {
			fmt.Printf("%d overlay(s) skipped\n", o.Skipped)
		}
		_ = notify.RenderComplete(o.OutputPath)
		return nil
	case render.Cancelled:
		fmt.Println("Render cancelled")
		return fmt.Errorf("cancelled")
	default:
		if o.Err == nil {
			return fmt.Errorf("render failed")
		}
		_ = notify.RenderFailed(o.Err.Error())
		return o.Err
	}
}

func init() {
	renderCmd.Flags().StringVarP(&renderOverlays.preset, "preset", "p", "", "Overlay preset file (YAML or JSON)")
	renderCmd.Flags().StringArrayVar(&renderOverlays.overlays, "overlay", nil, "Overlay asset with default placement (repeatable)")
	renderCmd.Flags().BoolVar(&renderOverlays.untilEnd, "until-end", false, "Show --overlay assets until the end of the video")
	renderCmd.Flags().BoolVar(&renderOverlays.removeBG, "remove-bg", false, "Remove the flat background of --overlay assets")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output file (default: {output_dir}/{prefix}{name}.{ext})")
	renderCmd.Flags().BoolVar(&renderHW, "hw", true, "Prefer the NVENC hardware encoder")

	rootCmd.AddCommand(renderCmd)
}
