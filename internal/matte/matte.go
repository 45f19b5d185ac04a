// Package matte removes a flat background from overlay artwork.
//
// The background color is estimated from the four image corners, so no key
// color has to be configured. Pixels close to that color become transparent
// with a feathered edge controlled by the tolerance.
package matte

import (
	"image"
	"image/draw"
	"math"
	"sort"
)

// EdgeZoneFraction is the share of the tolerance used for the soft edge
const EdgeZoneFraction = 0.3

// Color is an RGB color with fractional channels (medians may fall between values)
type Color struct {
	R, G, B float64
}

// PatchSize returns the side of the square sampled at each corner
func PatchSize(width, height int) int {
	s := min(4, height/10, width/10)
	return max(1, s)
}

// EstimateBackground returns the per-channel median of the corner patches
func EstimateBackground(img *image.NRGBA) Color {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Color{}
	}
	s := min(PatchSize(w, h), w, h)

	origins := []image.Point{
		{b.Min.X, b.Min.Y},
		{b.Max.X - s, b.Min.Y},
		{b.Min.X, b.Max.Y - s},
		{b.Max.X - s, b.Max.Y - s},
	}

	n := len(origins) * s * s
	rs := make([]float64, 0, n)
	gs := make([]float64, 0, n)
	bs := make([]float64, 0, n)
	for _, o := range origins {
		for y := o.Y; y < o.Y+s; y++ {
			for x := o.X; x < o.X+s; x++ {
				i := img.PixOffset(x, y)
				rs = append(rs, float64(img.Pix[i]))
				gs = append(gs, float64(img.Pix[i+1]))
				bs = append(bs, float64(img.Pix[i+2]))
			}
		}
	}

	return Color{R: median(rs), G: median(gs), B: median(bs)}
}

// AlphaFactor maps a color distance to the multiplier applied to alpha
func AlphaFactor(distance float64, tolerance int) float64 {
	tol := float64(tolerance)
	edge := tol * EdgeZoneFraction
	f := (distance - tol + edge) / math.Max(edge, 1)
	return math.Max(0, math.Min(1, f))
}

// Distance is the Euclidean RGB distance between a pixel and the background
func Distance(r, g, b uint8, bg Color) float64 {
	dr := float64(r) - bg.R
	dg := float64(g) - bg.G
	db := float64(b) - bg.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Apply returns a copy of img with the estimated background keyed out.
// Images without an alpha channel are treated as fully opaque.
func Apply(img image.Image, tolerance int) *image.NRGBA {
	src := ToNRGBA(img)
	out := image.NewNRGBA(src.Bounds())
	copy(out.Pix, src.Pix)

	bg := EstimateBackground(src)
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := out.PixOffset(x, y)
			d := Distance(out.Pix[i], out.Pix[i+1], out.Pix[i+2], bg)
			f := AlphaFactor(d, tolerance)
			out.Pix[i+3] = uint8(math.Round(float64(out.Pix[i+3]) * f))
		}
	}
	return out
}

// ToNRGBA converts any image to a zero-origin *image.NRGBA.
// An *image.NRGBA with a zero origin is returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
