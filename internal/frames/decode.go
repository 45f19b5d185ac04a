package frames

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"
)

// ErrDecode marks an asset that could not be read or decoded
var ErrDecode = errors.New("asset decode failed")

var gifMagic = []byte("GIF8")

// Decode reads an image asset from disk into a frame sequence.
// GIF files keep all of their frames; other formats are decoded as stills.
func Decode(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an in-memory asset
func DecodeBytes(data []byte) (*Sequence, error) {
	if bytes.HasPrefix(data, gifMagic) {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return fromGIF(g)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Static(img), nil
}

// fromGIF flattens GIF frames onto a canvas honoring disposal methods,
// so every frame is a complete picture.
func fromGIF(g *gif.GIF) (*Sequence, error) {
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrDecode)
	}

	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))

	seq := &Sequence{
		Frames:    make([]*image.NRGBA, 0, len(g.Image)),
		Durations: make([]int, 0, len(g.Image)),
	}

	for i, frame := range g.Image {
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		seq.Frames = append(seq.Frames, cloneNRGBA(canvas))

		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i] * 10 // hundredths of a second
		}
		if delay <= 0 {
			delay = DefaultFrameDurationMs
		}
		seq.Durations = append(seq.Durations, delay)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return seq, nil
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
