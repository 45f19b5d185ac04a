package frames

import (
	"image"
	"math"

	"github.com/kartoza/kartoza-overlay-renderer/internal/matte"
)

// DefaultFrameDurationMs is used when an animation frame carries no delay
const DefaultFrameDurationMs = 100

// Sequence is an ordered list of decoded frames with their display durations.
// A static image is a single frame with zero duration.
type Sequence struct {
	Frames    []*image.NRGBA
	Durations []int // milliseconds, one per frame
}

// Static wraps a single still image
func Static(img image.Image) *Sequence {
	return &Sequence{
		Frames:    []*image.NRGBA{matte.ToNRGBA(img)},
		Durations: []int{0},
	}
}

// Len returns the number of frames
func (s *Sequence) Len() int {
	return len(s.Frames)
}

// Animated reports whether the sequence has more than one frame
func (s *Sequence) Animated() bool {
	return len(s.Frames) > 1
}

// Cycle returns the total loop length in milliseconds
func (s *Sequence) Cycle() int {
	total := 0
	for _, d := range s.Durations {
		total += d
	}
	return total
}

// IndexAt returns the frame shown after elapsed seconds, looping forever.
// Elapsed time is measured from the overlay's own start.
func (s *Sequence) IndexAt(elapsed float64) int {
	if len(s.Frames) == 0 {
		return -1
	}
	cycle := s.Cycle()
	if cycle <= 0 {
		return 0
	}

	pos := math.Mod(elapsed*1000, float64(cycle))
	if pos < 0 {
		pos += float64(cycle)
	}

	accum := 0
	for i, d := range s.Durations {
		accum += d
		if pos < float64(accum) {
			return i
		}
	}
	return len(s.Frames) - 1
}

// FrameAt returns the frame shown after elapsed seconds
func (s *Sequence) FrameAt(elapsed float64) *image.NRGBA {
	i := s.IndexAt(elapsed)
	if i < 0 {
		return nil
	}
	return s.Frames[i]
}

// WithMatte returns a new sequence with the background removed from every frame
func (s *Sequence) WithMatte(tolerance int) *Sequence {
	out := &Sequence{
		Frames:    make([]*image.NRGBA, len(s.Frames)),
		Durations: append([]int(nil), s.Durations...),
	}
	for i, f := range s.Frames {
		out.Frames[i] = matte.Apply(f, tolerance)
	}
	return out
}
