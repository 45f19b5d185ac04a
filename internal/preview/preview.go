// Package preview composites a single frame of a job for inspection.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/blacktop/go-termimg"
	"github.com/nfnt/resize"

	"github.com/kartoza/kartoza-overlay-renderer/internal/clip"
	"github.com/kartoza/kartoza-overlay-renderer/internal/compositor"
	"github.com/kartoza/kartoza-overlay-renderer/internal/ffmpeg"
	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

// Source grabs single frames from a video
type Source interface {
	Probe(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	FrameAt(ctx context.Context, path string, info *ffmpeg.VideoInfo, at float64) (*image.RGBA, error)
}

// Result is a composited preview frame
type Result struct {
	Image   *image.RGBA
	Time    float64
	Visible []string // names of overlays drawn, bottom to top
	Skipped []clip.Result
}

// Renderer builds preview frames with the same clips a render would use
type Renderer struct {
	source  Source
	builder *clip.Builder
}

// New creates a preview renderer
func New(source Source, cache *frames.Cache, workers int) *Renderer {
	return &Renderer{source: source, builder: clip.NewBuilder(cache, workers)}
}

// Frame composites the overlays of job at time t
func (r *Renderer) Frame(ctx context.Context, job models.RenderJob, t float64) (*Result, error) {
	info, err := r.source.Probe(ctx, job.SourcePath)
	if err != nil {
		return nil, err
	}
	if t < 0 || (info.Duration > 0 && t >= info.Duration) {
		return nil, fmt.Errorf("time %.2fs is outside the video (0 - %.2fs)", t, info.Duration)
	}

	base, err := r.source.FrameAt(ctx, job.SourcePath, info, t)
	if err != nil {
		return nil, err
	}

	resolved := make([]models.OverlayDescriptor, len(job.Overlays))
	for i, o := range job.Overlays {
		resolved[i] = o.Normalized().Resolve(info.Duration)
	}
	results, err := r.builder.BuildAll(ctx, resolved, info.Width, info.Height, nil)
	if err != nil {
		return nil, err
	}

	res := &Result{Image: base, Time: t}
	for _, cr := range results {
		if !cr.OK() {
			res.Skipped = append(res.Skipped, cr)
			continue
		}
		if _, ok := cr.Clip.At(t); ok {
			res.Visible = append(res.Visible, cr.Overlay.Name)
		}
	}
	compositor.Frame(base, clip.Clips(results), t)
	return res, nil
}

// SavePNG writes img to path
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}

// Downscale fits img inside maxWidth x maxHeight pixels, keeping its aspect ratio
func Downscale(img image.Image, maxWidth, maxHeight uint) image.Image {
	b := img.Bounds()
	if uint(b.Dx()) <= maxWidth && uint(b.Dy()) <= maxHeight {
		return img
	}
	return resize.Thumbnail(maxWidth, maxHeight, img, resize.Lanczos3)
}

// Terminal renders img for display in the current terminal, widthCells wide
func Terminal(img image.Image, widthCells, heightCells int) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Downscale(img, 1280, 720)); err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}

	ti, err := termimg.From(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("failed to load preview: %w", err)
	}
	ti.Protocol(termimg.DetectProtocol()).
		Width(widthCells).
		Height(heightCells).
		Scale(termimg.ScaleFit)

	return ti.Render()
}
