package models

import (
	"math"
	"strings"
)

// Defaults used when an overlay is created without explicit values
const (
	DefaultDuration   = 3.0
	DefaultPosition   = 50.0
	DefaultScale      = 100.0
	DefaultOpacity    = 100.0
	DefaultTolerance  = 40
	MinScale          = 10.0
	MinUntilEndLength = 0.1
	// BaseSizeFraction is the share of min(width, height) an overlay covers at 100% scale
	BaseSizeFraction = 0.15
)

// OverlayDescriptor describes one CTA overlay placed on the video timeline
type OverlayDescriptor struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	FilePath string `json:"file_path" yaml:"file_path"` // empty for text-only placeholders

	StartTime float64 `json:"start_time" yaml:"start_time"` // seconds
	Duration  float64 `json:"duration" yaml:"duration"`     // seconds
	UntilEnd  bool    `json:"until_end" yaml:"until_end"`   // duration runs to the end of the source

	XPercent float64 `json:"x_percent" yaml:"x_percent"` // anchor is the element center
	YPercent float64 `json:"y_percent" yaml:"y_percent"`
	Scale    float64 `json:"scale" yaml:"scale"`
	Opacity  float64 `json:"opacity" yaml:"opacity"`

	FadeIn  float64 `json:"fade_in" yaml:"fade_in"`
	FadeOut float64 `json:"fade_out" yaml:"fade_out"`

	RemoveBackground    bool `json:"remove_bg" yaml:"remove_bg"`
	BackgroundTolerance int  `json:"bg_tolerance" yaml:"bg_tolerance"`
}

// NewOverlayDescriptor returns a descriptor with the editor defaults
func NewOverlayDescriptor(id, name, filePath string) OverlayDescriptor {
	return OverlayDescriptor{
		ID:                  id,
		Name:                name,
		FilePath:            filePath,
		Duration:            DefaultDuration,
		XPercent:            DefaultPosition,
		YPercent:            DefaultPosition,
		Scale:               DefaultScale,
		Opacity:             DefaultOpacity,
		BackgroundTolerance: DefaultTolerance,
	}
}

// EndTime returns the time at which the overlay disappears
func (o OverlayDescriptor) EndTime() float64 {
	return o.StartTime + o.Duration
}

// IsTextOnly reports whether the overlay has no image asset
func (o OverlayDescriptor) IsTextOnly() bool {
	return strings.TrimSpace(o.FilePath) == ""
}

// IsVisibleAt reports whether the overlay is shown at time t (seconds)
func (o OverlayDescriptor) IsVisibleAt(t float64) bool {
	return o.StartTime <= t && t < o.EndTime()
}

// OpacityAt returns the effective opacity (0-1) at time t including fades.
// When the fade windows overlap both multipliers apply.
func (o OverlayDescriptor) OpacityAt(t float64) float64 {
	if !o.IsVisibleAt(t) {
		return 0
	}

	base := o.Opacity / 100.0
	elapsed := t - o.StartTime
	remaining := o.EndTime() - t

	if o.FadeIn > 0 && elapsed < o.FadeIn {
		base *= elapsed / o.FadeIn
	}
	if o.FadeOut > 0 && remaining < o.FadeOut {
		base *= remaining / o.FadeOut
	}

	return clamp(base, 0, 1)
}

// Normalized returns a copy with out-of-range values clamped
func (o OverlayDescriptor) Normalized() OverlayDescriptor {
	o.XPercent = clamp(o.XPercent, 0, 100)
	o.YPercent = clamp(o.YPercent, 0, 100)
	o.Opacity = clamp(o.Opacity, 0, 100)
	if o.Scale < MinScale {
		o.Scale = MinScale
	}
	if o.StartTime < 0 {
		o.StartTime = 0
	}
	if o.FadeIn < 0 {
		o.FadeIn = 0
	}
	if o.FadeOut < 0 {
		o.FadeOut = 0
	}
	if o.BackgroundTolerance < 0 {
		o.BackgroundTolerance = 0
	}
	return o
}

// Resolve returns a normalized copy whose until-end duration is fixed
// against the decoded source duration. The receiver is never modified.
func (o OverlayDescriptor) Resolve(sourceDuration float64) OverlayDescriptor {
	r := o.Normalized()
	if r.UntilEnd {
		r.Duration = math.Max(MinUntilEndLength, sourceDuration-r.StartTime)
	}
	return r
}

// ResolveAll resolves every overlay of a list into a new slice
func ResolveAll(overlays []OverlayDescriptor, sourceDuration float64) []OverlayDescriptor {
	resolved := make([]OverlayDescriptor, len(overlays))
	for i, o := range overlays {
		resolved[i] = o.Resolve(sourceDuration)
	}
	return resolved
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
