// Package compositor blends clip contributions onto a base video frame.
package compositor

import (
	"image"
	"math"

	"github.com/kartoza/kartoza-overlay-renderer/internal/clip"
)

// Composite blends contributions onto dst in list order, so later entries end
// up on top. Patches are clipped to dst bounds.
func Composite(dst *image.RGBA, contributions []clip.Contribution) {
	for _, c := range contributions {
		blend(dst, c)
	}
}

// Frame composites every clip visible at time t onto base in place
func Frame(base *image.RGBA, clips []*clip.Clip, t float64) int {
	applied := 0
	for _, c := range clips {
		contrib, ok := c.At(t)
		if !ok {
			continue
		}
		blend(base, contrib)
		applied++
	}
	return applied
}

func blend(dst *image.RGBA, c clip.Contribution) {
	if c.Patch == nil || c.Opacity <= 0 {
		return
	}
	op := uint32(math.Round(math.Min(c.Opacity, 1) * 255))
	if op == 0 {
		return
	}

	area := c.Dest.Intersect(dst.Bounds())
	if area.Empty() {
		return
	}
	src := c.Patch.Bounds()

	for y := area.Min.Y; y < area.Max.Y; y++ {
		sy := src.Min.Y + (y - c.Dest.Min.Y)
		if sy >= src.Max.Y {
			break
		}
		for x := area.Min.X; x < area.Max.X; x++ {
			sx := src.Min.X + (x - c.Dest.Min.X)
			if sx >= src.Max.X {
				break
			}
			si := c.Patch.PixOffset(sx, sy)
			a := uint32(c.Patch.Pix[si+3]) * op / 255
			if a == 0 {
				continue
			}
			di := dst.PixOffset(x, y)
			if a == 255 {
				dst.Pix[di] = c.Patch.Pix[si]
				dst.Pix[di+1] = c.Patch.Pix[si+1]
				dst.Pix[di+2] = c.Patch.Pix[si+2]
				dst.Pix[di+3] = 255
				continue
			}
			for k := 0; k < 3; k++ {
				s := uint32(c.Patch.Pix[si+k])
				d := uint32(dst.Pix[di+k])
				dst.Pix[di+k] = uint8((s*a + d*(255-a) + 127) / 255)
			}
			da := uint32(dst.Pix[di+3])
			dst.Pix[di+3] = uint8(a + (da*(255-a)+127)/255)
		}
	}
}
