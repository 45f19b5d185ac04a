package models

// RenderJob is one rendering unit: a source video, its overlays and a destination
type RenderJob struct {
	SourcePath         string              `json:"source_path"`
	Overlays           []OverlayDescriptor `json:"overlays"` // later entries are drawn on top
	OutputPath         string              `json:"output_path"`
	UseHardwareEncoder bool                `json:"use_hardware_encoder"`
}

// BatchJob applies one overlay set to many source videos
type BatchJob struct {
	Overlays           []OverlayDescriptor `json:"overlays"`
	SourcePaths        []string            `json:"source_paths"`
	OutputDir          string              `json:"output_dir"`
	FilenamePrefix     string              `json:"filename_prefix"`
	OutputExtension    string              `json:"output_extension,omitempty"`
	UseHardwareEncoder bool                `json:"use_hardware_encoder"`
}

// Project groups a source video with its overlay elements
type Project struct {
	Name      string              `json:"name" yaml:"name"`
	VideoPath string              `json:"video_path" yaml:"video_path"`
	Elements  []OverlayDescriptor `json:"elements" yaml:"elements"`
}

// VisibleAt returns the elements shown at time t, in stacking order
func (p *Project) VisibleAt(t float64) []OverlayDescriptor {
	var visible []OverlayDescriptor
	for _, e := range p.Elements {
		if e.IsVisibleAt(t) {
			visible = append(visible, e)
		}
	}
	return visible
}

// Element returns the element with the given ID
func (p *Project) Element(id string) (OverlayDescriptor, bool) {
	for _, e := range p.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return OverlayDescriptor{}, false
}

// MoveUp moves an element one position towards the bottom of the stack
func (p *Project) MoveUp(id string) bool {
	for i, e := range p.Elements {
		if e.ID == id && i > 0 {
			p.Elements[i], p.Elements[i-1] = p.Elements[i-1], p.Elements[i]
			return true
		}
	}
	return false
}

// MoveDown moves an element one position towards the top of the stack
func (p *Project) MoveDown(id string) bool {
	for i, e := range p.Elements {
		if e.ID == id && i < len(p.Elements)-1 {
			p.Elements[i], p.Elements[i+1] = p.Elements[i+1], p.Elements[i]
			return true
		}
	}
	return false
}

// Job builds a render job for the project
func (p *Project) Job(outputPath string, useHardware bool) RenderJob {
	overlays := make([]OverlayDescriptor, len(p.Elements))
	copy(overlays, p.Elements)
	return RenderJob{
		SourcePath:         p.VideoPath,
		Overlays:           overlays,
		OutputPath:         outputPath,
		UseHardwareEncoder: useHardware,
	}
}
