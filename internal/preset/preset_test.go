package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

const sampleYAML = `
name: Spring promo
video_path: videos/intro.mp4
elements:
  - id: sub
    name: Subscribe
    file_path: assets/subscribe.gif
    start_time: 2
    fade_in: 0.5
    remove_bg: true
  - file_path: /abs/banner.png
    until_end: true
    x_percent: 90
  - name: ""
    duration: 1
`

func TestParse_DefaultsAndPaths(t *testing.T) {
	p, err := Parse([]byte(sampleYAML), "/presets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Name != "Spring promo" || p.VideoPath != filepath.Join("/presets", "videos/intro.mp4") {
		t.Errorf("unexpected project header %+v", p)
	}
	if len(p.Elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(p.Elements))
	}

	sub := p.Elements[0]
	if sub.ID != "sub" || sub.FilePath != filepath.Join("/presets", "assets/subscribe.gif") {
		t.Errorf("unexpected first element %+v", sub)
	}
	if sub.Duration != models.DefaultDuration || sub.Scale != models.DefaultScale || sub.BackgroundTolerance != models.DefaultTolerance {
		t.Errorf("expected defaults to be filled, got %+v", sub)
	}
	if sub.XPercent != 50 || sub.Opacity != 100 || !sub.RemoveBackground {
		t.Errorf("unexpected values %+v", sub)
	}

	banner := p.Elements[1]
	if banner.ID == "" || banner.Name != "banner" || banner.FilePath != "/abs/banner.png" || banner.XPercent != 90 {
		t.Errorf("unexpected second element %+v", banner)
	}

	text := p.Elements[2]
	if !text.IsTextOnly() || text.Name != "Text 3" || text.Duration != 1 {
		t.Errorf("unexpected text element %+v", text)
	}
}

func TestParse_JSON(t *testing.T) {
	data := []byte(`{"name": "json", "overlays": [{"id": "a", "file_path": "a.png", "opacity": 40}]}`)
	p, err := Parse(data, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Elements) != 1 || p.Elements[0].Opacity != 40 || p.Elements[0].FilePath != "a.png" {
		t.Errorf("unexpected elements %+v", p.Elements)
	}
}

func TestParse_RejectsZeroDuration(t *testing.T) {
	if _, err := Parse([]byte("elements:\n  - file_path: a.png\n    duration: 0\n"), ""); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestParse_DuplicateIDsReplaced(t *testing.T) {
	p, err := Parse([]byte("elements:\n  - id: x\n  - id: x\n"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Elements[0].ID != "x" || p.Elements[1].ID == "x" {
		t.Errorf("expected duplicate id to be replaced, got %s and %s", p.Elements[0].ID, p.Elements[1].ID)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promo.yaml")

	o := models.NewOverlayDescriptor("a", "cta", filepath.Join(dir, "cta.gif"))
	o.StartTime = 4
	if err := Save(path, &models.Project{VideoPath: filepath.Join(dir, "v.mp4"), Elements: []models.OverlayDescriptor{o}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if p.Name != "promo" {
		t.Errorf("expected name from file, got %q", p.Name)
	}
	if len(p.Elements) != 1 || p.Elements[0] != o {
		t.Errorf("expected %+v, got %+v", o, p.Elements)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
