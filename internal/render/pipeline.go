// Package render composites overlays onto a base video and encodes the result.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-overlay-renderer/internal/clip"
	"github.com/kartoza/kartoza-overlay-renderer/internal/compositor"
	"github.com/kartoza/kartoza-overlay-renderer/internal/encoder"
	"github.com/kartoza/kartoza-overlay-renderer/internal/ffmpeg"
	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/logging"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

// Progress milestones
const (
	progressOpened   = 5
	progressResolved = 10
	progressBuilt    = 50
	progressEncoding = 55
	progressDone     = 100

	defaultFPS = 25.0
)

// Media opens the base video and the output encoder
type Media interface {
	Probe(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	OpenDecoder(ctx context.Context, path string, info *ffmpeg.VideoInfo) (ffmpeg.FrameReader, error)
	OpenEncoder(ctx context.Context, req ffmpeg.EncodeRequest) (ffmpeg.FrameWriter, error)
}

// Options configures a Pipeline. Zero values get defaults.
type Options struct {
	Media    Media
	Cache    *frames.Cache
	Selector *encoder.Selector
	Workers  int
	Logger   *zerolog.Logger
}

// Pipeline renders jobs one at a time. The frame cache is shared between runs.
type Pipeline struct {
	media    Media
	cache    *frames.Cache
	selector *encoder.Selector
	workers  int
	logger   zerolog.Logger
}

// New creates a pipeline
func New(opts Options) *Pipeline {
	p := &Pipeline{
		media:    opts.Media,
		cache:    opts.Cache,
		selector: opts.Selector,
		workers:  opts.Workers,
	}
	if opts.Logger != nil {
		p.logger = *opts.Logger
	} else {
		p.logger = logging.WithComponent("render")
	}
	if p.media == nil {
		p.media = ffmpeg.New("ffmpeg", p.logger)
	}
	if p.cache == nil {
		p.cache = frames.NewCache()
	}
	if p.selector == nil {
		p.selector = encoder.Default()
	}
	return p
}

// InvalidateFrameCache drops cached frames for an asset that changed on disk.
// It must not be called while a render is running.
func (p *Pipeline) InvalidateFrameCache(assetPath string) int {
	return p.cache.Invalidate(assetPath)
}

// PartialPath returns the hidden sibling the encoder writes to before the
// final rename
func PartialPath(outputPath string) string {
	dir, base := filepath.Split(outputPath)
	return filepath.Join(dir, "."+base+".partial")
}

type run struct {
	p       *Pipeline
	job     models.RenderJob
	rep     *reporter
	outcome Outcome
}

func (r *run) fail(err *Error) Outcome {
	r.rep.log(LevelError, err.Error())
	r.rep.state(StateFailed)
	r.outcome.Status = Failure
	r.outcome.Err = err
	return r.outcome
}

func (r *run) cancel() Outcome {
	r.rep.log(LevelWarning, "Render cancelled")
	r.rep.state(StateCancelled)
	r.outcome.Status = Cancelled
	return r.outcome
}

// Run renders job, reporting to obs. It always returns a terminal outcome and
// never leaves a partial output behind.
func (p *Pipeline) Run(ctx context.Context, job models.RenderJob, obs Observer) Outcome {
	logger := p.logger.With().Str("source", job.SourcePath).Str("output", job.OutputPath).Logger()
	r := &run{p: p, job: job, rep: newReporter(obs, logger)}
	r.outcome.OutputPath = job.OutputPath

	// Opening
	r.rep.state(StateOpening)
	if _, err := os.Stat(job.SourcePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r.fail(newError(SourceNotFound, err, "source video not found: %s", job.SourcePath))
		}
		return r.fail(newError(SourceUnreadable, err, "cannot access source video %s", job.SourcePath))
	}
	if ctx.Err() != nil {
		return r.cancel()
	}
	info, err := p.media.Probe(ctx, job.SourcePath)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancel()
		}
		return r.fail(newError(SourceUnreadable, err, "cannot read source video %s", job.SourcePath))
	}
	r.outcome.Info = info
	r.rep.log(LevelInfo, fmt.Sprintf("Loaded %s (%dx%d, %.2fs)", filepath.Base(job.SourcePath), info.Width, info.Height, info.Duration))
	r.rep.progress(progressOpened)

	// ResolvingTimelines
	r.rep.state(StateResolvingTimelines)
	resolved := make([]models.OverlayDescriptor, len(job.Overlays))
	for i, o := range job.Overlays {
		resolved[i] = o.Normalized().Resolve(info.Duration)
	}
	r.rep.progress(progressResolved)

	// BuildingOverlays
	r.rep.state(StateBuildingOverlays)
	clips, cancelled := r.buildClips(ctx, resolved, info)
	if cancelled {
		return r.cancel()
	}
	r.rep.progress(progressBuilt)

	return r.encode(ctx, info, clips)
}

func (r *run) buildClips(ctx context.Context, overlays []models.OverlayDescriptor, info *ffmpeg.VideoInfo) ([]*clip.Clip, bool) {
	if len(overlays) == 0 {
		return nil, ctx.Err() != nil
	}

	builder := clip.NewBuilder(r.p.cache, r.p.workers)
	results, err := builder.BuildAll(ctx, overlays, info.Width, info.Height, func(done, total int, res clip.Result) {
		r.rep.progress(progressResolved + (progressBuilt-progressResolved)*done/total)
	})
	if err != nil {
		return nil, true
	}

	for _, res := range results {
		if res.OK() {
			continue
		}
		r.outcome.Skipped++
		msg := fmt.Sprintf("Skipping overlay %q: %s", res.Overlay.Name, res.Skipped)
		if res.Err != nil {
			werr := newError(AssetDecodeFailure, res.Err, "%s", msg)
			msg = werr.Error()
		}
		r.rep.log(LevelWarning, msg)
	}

	clips := clip.Clips(results)
	r.rep.log(LevelInfo, fmt.Sprintf("Prepared %d of %d overlays", len(clips), len(overlays)))
	return clips, false
}

func (r *run) encode(ctx context.Context, info *ffmpeg.VideoInfo, clips []*clip.Clip) Outcome {
	job := r.job

	// Compositing
	r.rep.state(StateCompositing)
	decision := r.p.selector.Select(ctx, job.UseHardwareEncoder)
	if decision.Fallback {
		werr := newError(EncoderUnavailable, decision.ProbeErr, "Hardware encoder unavailable, falling back to %s", decision.Params.Codec)
		r.rep.log(LevelWarning, werr.Error())
	}

	if dir := filepath.Dir(job.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return r.fail(newError(EncodeWriteFailure, err, "cannot create output directory %s", dir))
		}
	}

	outcome, hwErr := r.encodeWith(ctx, info, clips, decision.Params)
	if hwErr == nil {
		return outcome
	}

	// the hardware encoder passed the probe but failed on real frames
	r.p.selector.Disable(hwErr)
	sw := encoder.Software()
	werr := newError(EncoderUnavailable, hwErr, "Hardware encoder failed, retrying with %s", sw.Codec)
	r.rep.log(LevelWarning, werr.Error())
	r.outcome.Frames = 0
	outcome, _ = r.encodeWith(ctx, info, clips, sw)
	return outcome
}

// encodeWith decodes, composites and encodes the whole source with params.
// A failure of a hardware encoder is returned as hwErr, without a terminal
// outcome, so the caller can retry in software.
func (r *run) encodeWith(ctx context.Context, info *ffmpeg.VideoInfo, clips []*clip.Clip, params encoder.Params) (_ Outcome, hwErr error) {
	job := r.job
	r.outcome.Encoder = params.Codec
	r.rep.log(LevelInfo, fmt.Sprintf("Encoding with %s", params))

	// hardware failures are retryable unless the job was cancelled
	retryable := func(err error) bool {
		return params.Hardware && ctx.Err() == nil && err != nil
	}

	partial := PartialPath(job.OutputPath)
	_ = os.Remove(partial)
	finished := false
	defer func() {
		if !finished {
			_ = os.Remove(partial)
		}
	}()

	dec, err := r.p.media.OpenDecoder(ctx, job.SourcePath, info)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancel(), nil
		}
		return r.fail(newError(SourceUnreadable, err, "cannot decode source video %s", job.SourcePath)), nil
	}
	defer dec.Close()

	enc, err := r.p.media.OpenEncoder(ctx, ffmpeg.EncodeRequest{
		SourcePath: job.SourcePath,
		OutputPath: partial,
		Format:     ffmpeg.MuxerFor(job.OutputPath),
		Info:       info,
		Params:     params,
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.cancel(), nil
		}
		if retryable(err) {
			return Outcome{}, err
		}
		return r.fail(newError(EncodeWriteFailure, err, "cannot start encoder")), nil
	}
	encOpen := true
	defer func() {
		if encOpen {
			enc.Abort()
		}
	}()
	r.rep.progress(progressEncoding)

	// Encoding
	r.rep.state(StateEncoding)
	fps := info.FPS
	if fps <= 0 {
		fps = defaultFPS
	}
	total := info.TotalFrames()
	frame := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))

	n := 0
	for {
		if ctx.Err() != nil {
			return r.cancel(), nil
		}
		err := dec.Next(frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return r.cancel(), nil
			}
			return r.fail(newError(SourceUnreadable, err, "failed to decode frame %d", n)), nil
		}

		compositor.Frame(frame, clips, float64(n)/fps)
		if err := enc.WriteFrame(frame); err != nil {
			if ctx.Err() != nil {
				return r.cancel(), nil
			}
			if retryable(err) {
				return Outcome{}, err
			}
			return r.fail(newError(EncodeWriteFailure, err, "failed to write frame %d", n)), nil
		}
		n++
		r.outcome.Frames = n

		if total > 0 {
			r.rep.progress(min(progressDone-1, progressEncoding+(progressDone-progressEncoding)*n/total))
		}
	}

	// a decoder that died early also ends its stream; never finalize that
	if err := dec.Err(); err != nil {
		if ctx.Err() != nil {
			return r.cancel(), nil
		}
		return r.fail(newError(SourceUnreadable, err, "source video %s ended after %d frames", job.SourcePath, n)), nil
	}
	if n == 0 {
		return r.fail(newError(SourceUnreadable, nil, "no frames decoded from %s", job.SourcePath)), nil
	}

	encOpen = false
	if err := enc.Close(); err != nil {
		if ctx.Err() != nil {
			return r.cancel(), nil
		}
		if retryable(err) {
			return Outcome{}, err
		}
		return r.fail(newError(EncodeWriteFailure, err, "failed to finalize %s", job.OutputPath)), nil
	}
	if ctx.Err() != nil {
		return r.cancel(), nil
	}
	if err := os.Rename(partial, job.OutputPath); err != nil {
		return r.fail(newError(EncodeWriteFailure, err, "failed to move output into place")), nil
	}
	finished = true

	r.rep.progress(progressDone)
	r.rep.log(LevelInfo, fmt.Sprintf("Render complete: %s (%d frames)", job.OutputPath, n))
	r.rep.state(StateDone)
	r.outcome.Status = Success
	return r.outcome, nil
}
