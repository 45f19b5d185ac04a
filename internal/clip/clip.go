package clip

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"

	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/matte"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

// Clip is one overlay prepared for a specific output frame size
type Clip struct {
	Overlay models.OverlayDescriptor // resolved copy
	Frames  *frames.Sequence         // scaled to the target size
	Origin  image.Point              // top-left corner on the base frame
	Size    image.Point
}

// Contribution is what a clip adds to one composite frame
type Contribution struct {
	Patch   *image.NRGBA
	Dest    image.Rectangle
	Opacity float64
}

// Anchor returns the pixel position of the overlay center
func Anchor(o models.OverlayDescriptor, width, height int) image.Point {
	return image.Point{
		X: int(float64(width) * o.XPercent / 100.0),
		Y: int(float64(height) * o.YPercent / 100.0),
	}
}

// TargetHeight returns the overlay height in pixels for a frame size
func TargetHeight(scale float64, width, height int) int {
	base := float64(min(width, height)) * models.BaseSizeFraction
	return max(1, int(base*scale/100.0))
}

// ScaledSize keeps the asset aspect ratio at the target height
func ScaledSize(srcW, srcH, targetH int) image.Point {
	if srcH <= 0 {
		return image.Point{X: max(1, srcW), Y: max(1, targetH)}
	}
	ratio := float64(targetH) / float64(srcH)
	return image.Point{
		X: max(1, int(float64(srcW)*ratio)),
		Y: max(1, targetH),
	}
}

// Placement centers a w x h element on the anchor. The origin never goes
// negative; the element may still run past the right or bottom edge.
func Placement(anchor image.Point, w, h int) image.Point {
	return image.Point{
		X: max(0, anchor.X-w/2),
		Y: max(0, anchor.Y-h/2),
	}
}

// Synthesize scales a decoded sequence and positions it for a width x height frame.
// The overlay must already be resolved.
func Synthesize(o models.OverlayDescriptor, seq *frames.Sequence, width, height int) (*Clip, error) {
	if seq == nil || seq.Len() == 0 {
		return nil, fmt.Errorf("overlay %q has no frames", o.Name)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	src := seq.Frames[0].Bounds()
	size := ScaledSize(src.Dx(), src.Dy(), TargetHeight(o.Scale, width, height))

	scaled := &frames.Sequence{
		Frames:    make([]*image.NRGBA, seq.Len()),
		Durations: append([]int(nil), seq.Durations...),
	}
	for i, f := range seq.Frames {
		scaled.Frames[i] = scaleFrame(f, size)
	}

	return &Clip{
		Overlay: o,
		Frames:  scaled,
		Origin:  Placement(Anchor(o, width, height), size.X, size.Y),
		Size:    size,
	}, nil
}

func scaleFrame(f *image.NRGBA, size image.Point) *image.NRGBA {
	if f.Bounds().Dx() == size.X && f.Bounds().Dy() == size.Y {
		return f
	}
	return matte.ToNRGBA(resize.Resize(uint(size.X), uint(size.Y), f, resize.Lanczos3))
}

// Bounds returns the destination rectangle on the base frame
func (c *Clip) Bounds() image.Rectangle {
	return image.Rectangle{Min: c.Origin, Max: c.Origin.Add(c.Size)}
}

// At returns the clip's contribution at composite time t, if any
func (c *Clip) At(t float64) (Contribution, bool) {
	if !c.Overlay.IsVisibleAt(t) {
		return Contribution{}, false
	}
	opacity := c.Overlay.OpacityAt(t)
	if opacity <= 0 || math.IsNaN(opacity) {
		return Contribution{}, false
	}
	patch := c.Frames.FrameAt(t - c.Overlay.StartTime)
	if patch == nil {
		return Contribution{}, false
	}
	return Contribution{Patch: patch, Dest: c.Bounds(), Opacity: opacity}, true
}
