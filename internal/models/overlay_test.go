package models

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestOpacityAt_OutsideVisibility(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.gif")
	o.StartTime = 2
	o.Duration = 3
	o.FadeIn = 1
	o.FadeOut = 1

	for _, ts := range []float64{0, 1.999, 5, 5.5, 100} {
		if got := o.OpacityAt(ts); got != 0 {
			t.Errorf("expected opacity 0 at t=%v, got %v", ts, got)
		}
	}
}

func TestOpacityAt_NoFades(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 1
	o.Duration = 2
	o.Opacity = 60

	for _, ts := range []float64{1, 1.5, 2.9999} {
		if got := o.OpacityAt(ts); !almostEqual(got, 0.6) {
			t.Errorf("expected opacity 0.6 at t=%v, got %v", ts, got)
		}
	}
}

func TestOpacityAt_FadeIn(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 0
	o.Duration = 4
	o.FadeIn = 2
	o.Opacity = 100

	if got := o.OpacityAt(1.0); !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5 at t=1, got %v", got)
	}
	if got := o.OpacityAt(2.0); !almostEqual(got, 1.0) {
		t.Errorf("expected 1.0 at t=2, got %v", got)
	}
}

func TestOpacityAt_FadeOut(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 0
	o.Duration = 4
	o.FadeOut = 2

	if got := o.OpacityAt(3.0); !almostEqual(got, 0.5) {
		t.Errorf("expected 0.5 at t=3, got %v", got)
	}
}

func TestOpacityAt_OverlappingFadesDoubleTaper(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 0
	o.Duration = 2
	o.FadeIn = 2
	o.FadeOut = 2

	// elapsed/fadeIn * remaining/fadeOut = 0.5 * 0.5
	if got := o.OpacityAt(1.0); !almostEqual(got, 0.25) {
		t.Errorf("expected 0.25 at t=1, got %v", got)
	}
}

func TestIsVisibleAt_HalfOpenInterval(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 1
	o.Duration = 1

	if !o.IsVisibleAt(1) {
		t.Error("expected overlay visible at start time")
	}
	if o.IsVisibleAt(2) {
		t.Error("expected overlay hidden at end time")
	}
}

func TestResolve_UntilEnd(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 20
	o.UntilEnd = true

	r := o.Resolve(30)
	if !almostEqual(r.Duration, 10.0) {
		t.Errorf("expected resolved duration 10, got %v", r.Duration)
	}
	if o.Duration != DefaultDuration {
		t.Errorf("expected original descriptor untouched, got duration %v", o.Duration)
	}
}

func TestResolve_UntilEndPastSourceEnd(t *testing.T) {
	o := NewOverlayDescriptor("a", "cta", "cta.png")
	o.StartTime = 40
	o.UntilEnd = true

	if r := o.Resolve(30); !almostEqual(r.Duration, MinUntilEndLength) {
		t.Errorf("expected minimum duration %v, got %v", MinUntilEndLength, r.Duration)
	}
}

func TestNormalized_Clamps(t *testing.T) {
	o := OverlayDescriptor{XPercent: -5, YPercent: 140, Scale: 2, Opacity: 150, StartTime: -1}
	n := o.Normalized()

	if n.XPercent != 0 || n.YPercent != 100 {
		t.Errorf("expected position clamped to 0/100, got %v/%v", n.XPercent, n.YPercent)
	}
	if n.Scale != MinScale {
		t.Errorf("expected scale clamped to %v, got %v", MinScale, n.Scale)
	}
	if n.Opacity != 100 {
		t.Errorf("expected opacity clamped to 100, got %v", n.Opacity)
	}
	if n.StartTime != 0 {
		t.Errorf("expected start time clamped to 0, got %v", n.StartTime)
	}
}

func TestResolveAll_ReturnsCopies(t *testing.T) {
	overlays := []OverlayDescriptor{
		{ID: "a", UntilEnd: true, StartTime: 5, Scale: 100},
		{ID: "b", Duration: 2, Scale: 100},
	}

	resolved := ResolveAll(overlays, 12)
	if !almostEqual(resolved[0].Duration, 7) {
		t.Errorf("expected 7, got %v", resolved[0].Duration)
	}
	if overlays[0].Duration != 0 {
		t.Error("expected caller slice to remain unchanged")
	}
}

func TestProject_VisibleAtAndOrdering(t *testing.T) {
	p := Project{Elements: []OverlayDescriptor{
		{ID: "a", StartTime: 0, Duration: 2},
		{ID: "b", StartTime: 1, Duration: 2},
		{ID: "c", StartTime: 5, Duration: 1},
	}}

	visible := p.VisibleAt(1.5)
	if len(visible) != 2 || visible[0].ID != "a" || visible[1].ID != "b" {
		t.Errorf("unexpected visible set: %+v", visible)
	}

	if !p.MoveDown("a") || p.Elements[1].ID != "a" {
		t.Error("expected a to move one position up the stack")
	}
	if p.MoveUp("b") {
		t.Error("expected bottom element not to move further")
	}
}
