// Package preset reads and writes overlay sets handed over by the editor.
// Files are YAML; JSON presets parse the same way.
package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

// overlay decodes a descriptor on top of the editor defaults
type overlay models.OverlayDescriptor

func (o *overlay) UnmarshalYAML(value *yaml.Node) error {
	type plain models.OverlayDescriptor
	p := plain(models.NewOverlayDescriptor("", "", ""))
	if err := value.Decode(&p); err != nil {
		return err
	}
	*o = overlay(p)
	return nil
}

type file struct {
	Name      string    `yaml:"name"`
	VideoPath string    `yaml:"video_path,omitempty"`
	Elements  []overlay `yaml:"elements,omitempty"`
	// Overlays is accepted as an alias of elements
	Overlays []overlay `yaml:"overlays,omitempty"`
}

// Load reads a preset. Relative asset and video paths are resolved against
// the preset's directory; missing IDs and names are filled in.
func Load(path string) (*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	p, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", path, err)
	}
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return p, nil
}

// Parse decodes preset data, resolving relative paths against baseDir
func Parse(data []byte, baseDir string) (*models.Project, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	entries := append(f.Elements, f.Overlays...)
	project := &models.Project{
		Name:      f.Name,
		VideoPath: resolve(baseDir, f.VideoPath),
		Elements:  make([]models.OverlayDescriptor, 0, len(entries)),
	}

	seen := make(map[string]bool)
	for i, e := range entries {
		o := models.OverlayDescriptor(e)
		if o.ID == "" || seen[o.ID] {
			o.ID = uuid.NewString()
		}
		seen[o.ID] = true
		o.FilePath = resolve(baseDir, o.FilePath)
		if o.Name == "" {
			o.Name = defaultName(o, i)
		}
		if !o.UntilEnd && o.Duration <= 0 {
			return nil, fmt.Errorf("overlay %q: duration must be positive unless until_end is set", o.Name)
		}
		project.Elements = append(project.Elements, o)
	}
	return project, nil
}

// Save writes a project as a YAML preset
func Save(path string, p *models.Project) error {
	f := file{Name: p.Name, VideoPath: p.VideoPath}
	for _, e := range p.Elements {
		f.Elements = append(f.Elements, overlay(e))
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Join(baseDir, path)
}

func defaultName(o models.OverlayDescriptor, i int) string {
	if o.FilePath == "" {
		return fmt.Sprintf("Text %d", i+1)
	}
	base := filepath.Base(o.FilePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
