// Package batch applies one overlay set to many source videos in sequence.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-overlay-renderer/internal/logging"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
)

// DefaultExtension is used when a batch job does not name one
const DefaultExtension = "mp4"

// Runner renders a single job
type Runner interface {
	Run(ctx context.Context, job models.RenderJob, obs render.Observer) render.Outcome
}

// Item is the result for one source file
type Item struct {
	Index      int
	SourcePath string
	OutputPath string
	Outcome    render.Outcome
}

// Summary counts the results of a batch
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Cancelled bool
	Items     []Item
}

// String formats the summary for the user
func (s Summary) String() string {
	msg := fmt.Sprintf("Processed %d of %d files, %d with errors", s.Succeeded, s.Total, s.Failed)
	if s.Cancelled {
		msg += " (cancelled)"
	}
	return msg
}

// OutputPath names the output for a source: {prefix}{stem}.{ext} inside dir
func OutputPath(dir, prefix, sourcePath, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, prefix+stem+"."+ext)
}

// CopyOverlays returns independent copies of overlays with fresh identities
func CopyOverlays(overlays []models.OverlayDescriptor) []models.OverlayDescriptor {
	out := make([]models.OverlayDescriptor, len(overlays))
	for i, o := range overlays {
		o.ID = uuid.NewString()
		out[i] = o
	}
	return out
}

// OverallProgress maps per-file progress onto the whole batch
func OverallProgress(fileIndex, totalFiles, percent int) int {
	if totalFiles <= 0 {
		return 0
	}
	return (fileIndex*100 + percent) / totalFiles
}

// Coordinator runs batch jobs
type Coordinator struct {
	runner Runner
	logger zerolog.Logger
}

// New creates a coordinator around a single-file runner
func New(runner Runner) *Coordinator {
	return &Coordinator{runner: runner, logger: logging.WithComponent("batch")}
}

// fileObserver remaps one file's events into batch events
type fileObserver struct {
	parent render.Observer
	index  int
	total  int
	name   string
	last   *int
}

func (f *fileObserver) Progress(percent int) {
	overall := OverallProgress(f.index, f.total, percent)
	if overall > *f.last {
		*f.last = overall
		f.parent.Progress(overall)
	}
}

func (f *fileObserver) Log(level render.Level, message string) {
	f.parent.Log(level, fmt.Sprintf("[%d/%d] %s: %s", f.index+1, f.total, f.name, message))
}

// State forwards stage changes when the parent tracks them
func (f *fileObserver) State(s render.State) {
	if so, ok := f.parent.(render.StateObserver); ok {
		so.State(s)
	}
}

// Run renders every source file in order. A failing file is logged and
// counted; it never stops the batch. Cancellation stops after the current file.
func (c *Coordinator) Run(ctx context.Context, job models.BatchJob, obs render.Observer) Summary {
	if obs == nil {
		obs = render.Funcs{}
	}
	total := len(job.SourcePaths)
	summary := Summary{Total: total}
	last := -1

	c.logger.Info().Int("files", total).Str("output_dir", job.OutputDir).Msg("starting batch")

	for i, src := range job.SourcePaths {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		out := OutputPath(job.OutputDir, job.FilenamePrefix, src, job.OutputExtension)
		fo := &fileObserver{parent: obs, index: i, total: total, name: filepath.Base(src), last: &last}

		outcome := c.runOne(ctx, models.RenderJob{
			SourcePath:         src,
			Overlays:           CopyOverlays(job.Overlays),
			OutputPath:         out,
			UseHardwareEncoder: job.UseHardwareEncoder,
		}, fo)

		summary.Items = append(summary.Items, Item{Index: i, SourcePath: src, OutputPath: out, Outcome: outcome})
		switch outcome.Status {
		case render.Success:
			summary.Succeeded++
		case render.Cancelled:
			summary.Cancelled = true
		default:
			summary.Failed++
			c.logger.Error().Str("source", src).Err(outcome.Err).Msg("file failed")
		}
		if summary.Cancelled {
			break
		}
		fo.Progress(100)
	}

	obs.Log(render.LevelInfo, summary.String())
	c.logger.Info().Int("succeeded", summary.Succeeded).Int("failed", summary.Failed).Msg("batch finished")
	return summary
}

// runOne shields the batch from a panicking runner
func (c *Coordinator) runOne(ctx context.Context, job models.RenderJob, obs render.Observer) (outcome render.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := &render.Error{Kind: render.EncodeWriteFailure, Message: fmt.Sprintf("render panicked: %v", r)}
			obs.Log(render.LevelError, err.Error())
			outcome = render.Outcome{Status: render.Failure, OutputPath: job.OutputPath, Err: err}
		}
	}()
	return c.runner.Run(ctx, job, obs)
}
