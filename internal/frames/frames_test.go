package frames

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func twoFrameSequence() *Sequence {
	return &Sequence{
		Frames: []*image.NRGBA{
			solid(2, 2, color.NRGBA{255, 0, 0, 255}),
			solid(2, 2, color.NRGBA{0, 255, 0, 255}),
		},
		Durations: []int{100, 200},
	}
}

func TestIndexAt_Buckets(t *testing.T) {
	seq := twoFrameSequence()

	tests := []struct {
		elapsed  float64
		expected int
	}{
		{0, 0},
		{0.099, 0},
		{0.1, 1},
		{0.25, 1},
		{0.299, 1},
		{0.31, 0}, // wraps
		{0.55, 1}, // 550 mod 300 = 250
		{3.05, 0}, // 3050 mod 300 = 50
	}

	for _, tt := range tests {
		if got := seq.IndexAt(tt.elapsed); got != tt.expected {
			t.Errorf("IndexAt(%v): expected %d, got %d", tt.elapsed, tt.expected, got)
		}
	}
}

func TestIndexAt_StaticAlwaysFirstFrame(t *testing.T) {
	seq := Static(solid(3, 3, color.NRGBA{1, 2, 3, 255}))

	for _, e := range []float64{0, 0.5, 17, 1e6} {
		if got := seq.IndexAt(e); got != 0 {
			t.Errorf("expected frame 0 at %v, got %d", e, got)
		}
	}
	if seq.Animated() {
		t.Error("expected static sequence not to be animated")
	}
}

func TestIndexAt_Empty(t *testing.T) {
	seq := &Sequence{}
	if got := seq.IndexAt(1); got != -1 {
		t.Errorf("expected -1 for empty sequence, got %d", got)
	}
	if seq.FrameAt(1) != nil {
		t.Error("expected nil frame for empty sequence")
	}
}

func encodeGIF(t *testing.T, delays []int) []byte {
	t.Helper()
	g := &gif.GIF{}
	colors := color.Palette{color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}, color.RGBA{0, 255, 0, 255}}
	for i, d := range delays {
		frame := image.NewPaletted(image.Rect(0, 0, 4, 4), colors)
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				frame.Set(x, y, colors[i%len(colors)])
			}
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, d)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBytes_AnimatedGIF(t *testing.T) {
	seq, err := DecodeBytes(encodeGIF(t, []int{10, 20, 0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seq.Len() != 3 {
		t.Fatalf("expected 3 frames, got %d", seq.Len())
	}
	expected := []int{100, 200, DefaultFrameDurationMs}
	for i, d := range expected {
		if seq.Durations[i] != d {
			t.Errorf("frame %d: expected duration %d, got %d", i, d, seq.Durations[i])
		}
	}
	if c := seq.Frames[1].NRGBAAt(1, 1); c.B != 255 || c.A != 255 {
		t.Errorf("expected second frame to be blue, got %+v", c)
	}
}

func TestDecodeBytes_PNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(5, 3, color.NRGBA{9, 9, 9, 128})); err != nil {
		t.Fatal(err)
	}

	seq, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq.Len() != 1 || seq.Cycle() != 0 {
		t.Errorf("expected single zero-duration frame, got %d frames cycle %d", seq.Len(), seq.Cycle())
	}
	if b := seq.Frames[0].Bounds(); b.Dx() != 5 || b.Dy() != 3 {
		t.Errorf("unexpected bounds %v", b)
	}
}

func TestDecode_CorruptAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gif")
	if err := os.WriteFile(path, []byte("GIF89a not really"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(path)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}

	_, err = Decode(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode for missing file, got %v", err)
	}
}

func TestCache_SharesDecodes(t *testing.T) {
	var calls int32
	cache := NewCacheWithDecoder(func(path string) (*Sequence, error) {
		atomic.AddInt32(&calls, 1)
		return twoFrameSequence(), nil
	})

	key := Key{Path: "/assets/cta.gif"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(key); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected 1 decode, got %d", calls)
	}
}

func TestCache_CompositeKey(t *testing.T) {
	var calls int32
	cache := NewCacheWithDecoder(func(path string) (*Sequence, error) {
		atomic.AddInt32(&calls, 1)
		return Static(solid(20, 20, color.NRGBA{0, 0, 0, 255})), nil
	})

	o := models.NewOverlayDescriptor("a", "cta", "/assets/cta.png")
	plain, _ := cache.Load(KeyFor(o))

	o.RemoveBackground = true
	keyed, _ := cache.Load(KeyFor(o))

	o.BackgroundTolerance = 80
	_, _ = cache.Load(KeyFor(o))

	if calls != 3 {
		t.Errorf("expected 3 distinct entries, got %d decodes", calls)
	}
	if plain.Frames[0].NRGBAAt(5, 5).A != 255 {
		t.Error("expected unmatted frame to stay opaque")
	}
	if keyed.Frames[0].NRGBAAt(5, 5).A != 0 {
		t.Error("expected matted frame to be transparent")
	}

	if removed := cache.Invalidate("/assets/cta.png"); removed != 3 {
		t.Errorf("expected 3 entries invalidated, got %d", removed)
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d", cache.Len())
	}
}

func TestCache_FailuresNotCached(t *testing.T) {
	fail := true
	cache := NewCacheWithDecoder(func(path string) (*Sequence, error) {
		if fail {
			return nil, ErrDecode
		}
		return twoFrameSequence(), nil
	})

	key := Key{Path: "cta.gif"}
	if _, err := cache.Load(key); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	if _, err := cache.Load(key); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestKeyFor_IgnoresToleranceWithoutRemoval(t *testing.T) {
	a := models.OverlayDescriptor{FilePath: "x.png", BackgroundTolerance: 10}
	b := models.OverlayDescriptor{FilePath: "./x.png", BackgroundTolerance: 90}
	if KeyFor(a) != KeyFor(b) {
		t.Errorf("expected identical keys, got %+v and %+v", KeyFor(a), KeyFor(b))
	}
}
