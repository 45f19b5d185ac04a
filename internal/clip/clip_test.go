package clip

import (
	"context"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func testCache() *frames.Cache {
	return frames.NewCacheWithDecoder(func(path string) (*frames.Sequence, error) {
		switch {
		case strings.HasSuffix(path, "broken.gif"):
			return nil, frames.ErrDecode
		case strings.HasSuffix(path, ".gif"):
			return &frames.Sequence{
				Frames: []*image.NRGBA{
					solid(100, 50, color.NRGBA{255, 0, 0, 255}),
					solid(100, 50, color.NRGBA{0, 0, 255, 255}),
				},
				Durations: []int{100, 200},
			}, nil
		default:
			return frames.Static(solid(100, 50, color.NRGBA{0, 255, 0, 255})), nil
		}
	})
}

func TestTargetHeight(t *testing.T) {
	tests := []struct {
		scale         float64
		width, height int
		expected      int
	}{
		{100, 1920, 1080, 162},
		{200, 1920, 1080, 324},
		{50, 1080, 1920, 81},
		{10, 10, 10, 1},
	}

	for _, tt := range tests {
		if got := TargetHeight(tt.scale, tt.width, tt.height); got != tt.expected {
			t.Errorf("TargetHeight(%v, %d, %d): expected %d, got %d", tt.scale, tt.width, tt.height, tt.expected, got)
		}
	}
}

func TestPlacement_ClampsOnlyTopLeft(t *testing.T) {
	if got := Placement(image.Pt(5, 5), 40, 40); got != image.Pt(0, 0) {
		t.Errorf("expected clamp to origin, got %v", got)
	}
	if got := Placement(image.Pt(195, 95), 40, 20); got != image.Pt(175, 85) {
		t.Errorf("expected overflow past right/bottom to be kept, got %v", got)
	}
}

func TestSynthesize_SizeAndPosition(t *testing.T) {
	o := models.NewOverlayDescriptor("a", "cta", "cta.png")
	seq := frames.Static(solid(100, 50, color.NRGBA{0, 255, 0, 255}))

	c, err := Synthesize(o, seq, 200, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Size != image.Pt(30, 15) {
		t.Errorf("expected size 30x15, got %v", c.Size)
	}
	if c.Origin != image.Pt(85, 43) {
		t.Errorf("expected origin (85,43), got %v", c.Origin)
	}
	if b := c.Frames.Frames[0].Bounds(); b.Dx() != 30 || b.Dy() != 15 {
		t.Errorf("expected scaled frame 30x15, got %v", b)
	}
}

func TestClipAt_TimingAndOpacity(t *testing.T) {
	o := models.NewOverlayDescriptor("a", "cta", "cta.gif")
	o.StartTime = 1
	o.Duration = 2
	o.FadeIn = 1
	seq, _ := testCache().Load(frames.KeyFor(o))

	c, err := Synthesize(o, seq, 200, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.At(0.5); ok {
		t.Error("expected no contribution before start")
	}
	if _, ok := c.At(3); ok {
		t.Error("expected no contribution at end time")
	}
	if _, ok := c.At(1); ok {
		t.Error("expected no contribution at zero opacity")
	}

	got, ok := c.At(1.5)
	if !ok {
		t.Fatal("expected contribution at t=1.5")
	}
	if math.Abs(got.Opacity-0.5) > 1e-9 {
		t.Errorf("expected opacity 0.5, got %v", got.Opacity)
	}
	// 500ms into the animation falls in the second (200ms) frame bucket after wrap: 500 mod 300 = 200
	if px := got.Patch.NRGBAAt(5, 5); px.B < 200 {
		t.Errorf("expected blue frame, got %+v", px)
	}
	if got.Dest != c.Bounds() {
		t.Errorf("expected destination %v, got %v", c.Bounds(), got.Dest)
	}
}

func TestBuild_SkipReasons(t *testing.T) {
	b := NewBuilder(testCache(), 1)

	text := models.NewOverlayDescriptor("t", "title", "")
	if r := b.Build(text, 200, 100); r.OK() || r.Skipped == "" {
		t.Errorf("expected text-only overlay to be skipped, got %+v", r)
	}

	broken := models.NewOverlayDescriptor("b", "broken", "broken.gif")
	r := b.Build(broken, 200, 100)
	if r.OK() || r.Err == nil {
		t.Errorf("expected decode failure to be reported, got %+v", r)
	}

	zero := models.NewOverlayDescriptor("z", "zero", "cta.png")
	zero.Duration = 0
	if r := b.Build(zero, 200, 100); r.OK() {
		t.Error("expected zero-duration overlay to be skipped")
	}
}

func TestBuildAll_DeterministicOrder(t *testing.T) {
	b := NewBuilder(testCache(), 4)

	var overlays []models.OverlayDescriptor
	for i, path := range []string{"a.gif", "", "b.png", "broken.gif", "c.png", "d.gif"} {
		o := models.NewOverlayDescriptor(string(rune('a'+i)), path, path)
		overlays = append(overlays, o)
	}

	lastDone := 0
	results, err := b.BuildAll(context.Background(), overlays, 320, 240, func(done, total int, r Result) {
		if done != lastDone+1 {
			t.Errorf("expected done to advance by one, got %d after %d", done, lastDone)
		}
		if total != len(overlays) {
			t.Errorf("expected total %d, got %d", len(overlays), total)
		}
		lastDone = done
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range results {
		if r.Index != i || r.Overlay.ID != overlays[i].ID {
			t.Errorf("result %d out of order: %+v", i, r.Overlay.ID)
		}
	}

	clips := Clips(results)
	if len(clips) != 4 {
		t.Fatalf("expected 4 clips, got %d", len(clips))
	}
	expectedIDs := []string{"a", "c", "e", "f"}
	for i, c := range clips {
		if c.Overlay.ID != expectedIDs[i] {
			t.Errorf("clip %d: expected %s, got %s", i, expectedIDs[i], c.Overlay.ID)
		}
	}
}

func TestBuildAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(testCache(), 2)
	overlays := []models.OverlayDescriptor{models.NewOverlayDescriptor("a", "a", "a.png")}
	if _, err := b.BuildAll(ctx, overlays, 100, 100, nil); err == nil {
		t.Error("expected cancellation error")
	}
}
