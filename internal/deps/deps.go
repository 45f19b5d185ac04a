package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Dependency represents an external program the renderer calls
type Dependency struct {
	Name        string // Command name (e.g., "ffmpeg")
	Description string // Human-readable description
	Required    bool   // If true, rendering cannot run without it
}

// CheckResult contains the result of checking a dependency
type CheckResult struct {
	Dependency Dependency
	Available  bool
	Path       string // Path to the executable if found
	Error      error  // Error if check failed
}

// RequiredDeps lists the programs every render needs
var RequiredDeps = []Dependency{
	{
		Name:        "ffmpeg",
		Description: "Video decoding and encoding",
		Required:    true,
	},
	{
		Name:        "ffprobe",
		Description: "Video metadata extraction",
		Required:    true,
	},
}

// OptionalDeps lists programs that enhance functionality
var OptionalDeps = []Dependency{
	{
		Name:        "nvidia-smi",
		Description: "NVIDIA driver tools (hardware H.264 encoding)",
		Required:    false,
	},
	{
		Name:        "notify-send",
		Description: "Desktop notifications",
		Required:    false,
	},
}

// WithFFmpeg returns the required list with ffmpeg replaced by a configured binary
func WithFFmpeg(binary string) []Dependency {
	deps := make([]Dependency, len(RequiredDeps))
	copy(deps, RequiredDeps)
	if binary != "" {
		deps[0].Name = binary
	}
	return deps
}

// Check verifies if a single dependency is available
func Check(dep Dependency) CheckResult {
	result := CheckResult{Dependency: dep}

	path, err := exec.LookPath(dep.Name)
	if err != nil {
		result.Available = false
		result.Error = err
	} else {
		result.Available = true
		result.Path = path
	}

	return result
}

// CheckAll verifies the given required dependencies and all optional ones
func CheckAll(required []Dependency) (requiredResults []CheckResult, optional []CheckResult) {
	for _, dep := range required {
		requiredResults = append(requiredResults, Check(dep))
	}
	for _, dep := range OptionalDeps {
		optional = append(optional, Check(dep))
	}
	return requiredResults, optional
}

// MissingRequired returns the required dependencies that are not installed
func MissingRequired(required []Dependency) []CheckResult {
	var missing []CheckResult
	for _, dep := range required {
		result := Check(dep)
		if !result.Available {
			missing = append(missing, result)
		}
	}
	return missing
}

// FormatMissing returns a formatted string of missing dependencies
func FormatMissing(results []CheckResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Missing dependencies:\n\n")

	for _, r := range results {
		status := "MISSING"
		if r.Dependency.Required {
			status = "REQUIRED"
		}
		sb.WriteString(fmt.Sprintf("  • %s (%s)\n", r.Dependency.Name, status))
		sb.WriteString(fmt.Sprintf("    %s\n\n", r.Dependency.Description))
	}

	return sb.String()
}
