package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
)

// ProcessingStep represents a single pipeline stage
type ProcessingStep struct {
	Name      string
	State     render.State
	Status    StepStatus
	StartTime time.Time
	EndTime   time.Time
}

// StepStatus represents the status of a processing step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// ProcessingState holds the state of all processing steps
type ProcessingState struct {
	Steps        []ProcessingStep
	CurrentStep  int
	IsProcessing bool
	Cancelled    bool
	StartTime    time.Time
	Error        error
}

// NewProcessingState creates a processing state with one step per pipeline stage
func NewProcessingState() *ProcessingState {
	return &ProcessingState{
		Steps: []ProcessingStep{
			{Name: "Opening source video", State: render.StateOpening},
			{Name: "Resolving timelines", State: render.StateResolvingTimelines},
			{Name: "Building overlays", State: render.StateBuildingOverlays},
			{Name: "Preparing encoder", State: render.StateCompositing},
			{Name: "Compositing & encoding", State: render.StateEncoding},
		},
		CurrentStep: -1,
	}
}

// Start begins the processing
func (p *ProcessingState) Start() {
	p.IsProcessing = true
	p.StartTime = time.Now()
}

// SetState moves to the step for a pipeline state. Earlier running steps are
// completed; terminal states finish or fail the current step.
func (p *ProcessingState) SetState(s render.State) {
	switch s {
	case render.StateDone:
		p.Complete()
		return
	case render.StateFailed:
		p.FailStep(p.Error)
		return
	case render.StateCancelled:
		p.Cancelled = true
		p.FailStep(p.Error)
		return
	}

	for i := range p.Steps {
		if p.Steps[i].State != s {
			continue
		}
		if p.CurrentStep == i {
			return
		}
		if p.CurrentStep >= 0 && p.CurrentStep < len(p.Steps) && p.Steps[p.CurrentStep].Status == StepRunning {
			p.Steps[p.CurrentStep].Status = StepComplete
			p.Steps[p.CurrentStep].EndTime = time.Now()
		}
		for j := p.CurrentStep + 1; j < i; j++ {
			if j >= 0 && p.Steps[j].Status == StepPending {
				p.Steps[j].Status = StepSkipped
			}
		}
		p.CurrentStep = i
		p.Steps[i].Status = StepRunning
		p.Steps[i].StartTime = time.Now()
		return
	}
}

// FailStep marks current step as failed
func (p *ProcessingState) FailStep(err error) {
	if p.CurrentStep >= 0 && p.CurrentStep < len(p.Steps) {
		p.Steps[p.CurrentStep].Status = StepFailed
		p.Steps[p.CurrentStep].EndTime = time.Now()
	}
	p.Error = err
	p.IsProcessing = false
}

// Complete marks processing as complete
func (p *ProcessingState) Complete() {
	if p.CurrentStep >= 0 && p.CurrentStep < len(p.Steps) {
		p.Steps[p.CurrentStep].Status = StepComplete
		p.Steps[p.CurrentStep].EndTime = time.Now()
	}
	p.IsProcessing = false
}

// Reset returns every step to pending, used between files of a batch
func (p *ProcessingState) Reset() {
	for i := range p.Steps {
		p.Steps[i].Status = StepPending
		p.Steps[i].StartTime = time.Time{}
		p.Steps[i].EndTime = time.Time{}
	}
	p.CurrentStep = -1
	p.Error = nil
	p.Cancelled = false
}

// Donut animation frames (Unicode block characters for spinning effect)
var donutFrames = []string{
	"◐", "◓", "◑", "◒",
}

// RenderProcessingView renders the step list, the progress bar and recent log lines
func RenderProcessingView(state *ProcessingState, frame int, progressBar string, logs []string) string {
	if state == nil {
		return ""
	}

	timeStyle := lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)
	elapsed := time.Since(state.StartTime).Round(time.Second)
	elapsedStr := timeStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed))

	var steps []string
	for i, step := range state.Steps {
		steps = append(steps, renderStepLine(step, i == state.CurrentStep, frame))
	}

	statusStyle := lipgloss.NewStyle().
		MarginTop(1).
		Foreground(ColorGray)
	var statusMsg string
	switch {
	case state.Cancelled:
		statusMsg = statusStyle.Foreground(ColorOrange).Render("Render cancelled")
	case state.Error != nil:
		statusMsg = statusStyle.Foreground(ColorRed).Render(fmt.Sprintf("Error: %v", state.Error))
	case !state.IsProcessing && state.CurrentStep >= 0:
		statusMsg = statusStyle.Foreground(ColorGreen).Render("Render complete!")
	default:
		statusMsg = statusStyle.Render("Please wait...")
	}

	var logLines []string
	for _, l := range logs {
		logLines = append(logLines, "  "+l)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		elapsedStr,
		"",
		strings.Join(steps, "\n"),
		"",
		"  "+progressBar,
		statusMsg,
		"",
		strings.Join(logLines, "\n"),
	)
}

// renderStepLine renders a single processing step with appropriate indicator
func renderStepLine(step ProcessingStep, isCurrent bool, frame int) string {
	var indicator string
	var nameStyle lipgloss.Style

	switch step.Status {
	case StepPending:
		indicator = lipgloss.NewStyle().Foreground(ColorGray).Render("○")
		nameStyle = lipgloss.NewStyle().Foreground(ColorGray)

	case StepRunning:
		donutStyle := lipgloss.NewStyle().Foreground(ColorOrange).Bold(true)
		indicator = donutStyle.Render(donutFrames[frame%len(donutFrames)])
		nameStyle = lipgloss.NewStyle().Foreground(ColorWhite).Bold(isCurrent)

	case StepComplete:
		indicator = lipgloss.NewStyle().Foreground(ColorGreen).Render("●")
		nameStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	case StepFailed:
		indicator = lipgloss.NewStyle().Foreground(ColorRed).Render("✗")
		nameStyle = lipgloss.NewStyle().Foreground(ColorRed)

	case StepSkipped:
		indicator = lipgloss.NewStyle().Foreground(ColorGray).Render("○")
		nameStyle = lipgloss.NewStyle().Foreground(ColorGray).Strikethrough(true)
	}

	var duration string
	if step.Status == StepComplete || step.Status == StepFailed {
		d := step.EndTime.Sub(step.StartTime).Round(100 * time.Millisecond)
		durationStyle := lipgloss.NewStyle().Foreground(ColorGray).Italic(true)
		duration = durationStyle.Render(fmt.Sprintf(" (%s)", d))
	}

	return fmt.Sprintf("  %s %s%s", indicator, nameStyle.Render(step.Name), duration)
}
