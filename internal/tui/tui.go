package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
	"github.com/kartoza/kartoza-overlay-renderer/internal/worker"
)

// maxLogLines is how many recent log lines stay on screen
const maxLogLines = 8

// Key bindings
type keyMap struct {
	Quit   key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "cancel/quit"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// Messages
type eventMsg worker.Event
type channelClosedMsg struct{}
type processingTickMsg struct{}

// Model shows one running job: its stages, overall progress and recent logs
type Model struct {
	handle     *worker.Handle
	title      string
	header     HeaderState
	processing *ProcessingState
	progress   progress.Model
	spinner    spinner.Model
	percent    int
	logs       []string
	frame      int
	width      int
	height     int
	cancelling bool
	finished   bool
	final      *worker.Event
}

// NewModel creates a model that follows the events of handle
func NewModel(handle *worker.Handle, title, source string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorOrange)

	p := NewProcessingState()
	p.Start()

	return Model{
		handle:     handle,
		title:      title,
		header:     HeaderState{Source: filepath.Base(source)},
		processing: p,
		progress:   progress.New(progress.WithDefaultGradient()),
		spinner:    s,
		width:      80,
		height:     24,
	}
}

// Init starts listening for events
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.handle),
		m.spinner.Tick,
		processingTickCmd(),
	)
}

func waitForEvent(h *worker.Handle) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-h.Events()
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg(e)
	}
}

func processingTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return processingTickMsg{}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) || key.Matches(msg, keys.Cancel) {
			if m.finished {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.handle.Cancel()
				m.appendLog(WarningStyle.Render("Cancelling..."))
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), HeaderWidth)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case processingTickMsg:
		m.frame++
		m.header.Elapsed = time.Since(m.processing.StartTime).Round(time.Second).String()
		if m.finished {
			return m, nil
		}
		return m, processingTickCmd()

	case eventMsg:
		m.apply(worker.Event(msg))
		if m.finished {
			return m, tea.Quit
		}
		return m, waitForEvent(m.handle)

	case channelClosedMsg:
		m.finished = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one job event into the model
func (m *Model) apply(e worker.Event) {
	switch e.Kind {
	case worker.EventProgress:
		m.percent = e.Percent
	case worker.EventLog:
		m.appendLog(formatLog(e.Level, e.Message))
		if _, enc, ok := strings.Cut(e.Message, "Encoding with "); ok {
			m.header.Encoder = enc
		}
	case worker.EventState:
		if e.State == render.StateOpening && m.processing.CurrentStep >= 0 {
			// next file of a batch
			m.processing.Reset()
		}
		m.processing.SetState(e.State)
	case worker.EventFinished:
		final := e
		m.final = &final
		m.finished = true
		switch {
		case e.Outcome != nil:
			m.finishOutcome(*e.Outcome)
		case e.Summary != nil:
			m.percent = 100
			if e.Summary.Cancelled {
				m.processing.Cancelled = true
			}
			m.processing.Complete()
		}
	}
}

func (m *Model) finishOutcome(o render.Outcome) {
	if o.Encoder != "" {
		m.header.Encoder = o.Encoder
	}
	switch o.Status {
	case render.Success:
		m.percent = 100
		m.processing.Complete()
		m.appendLog(SuccessStyle.Render("Wrote " + o.OutputPath))
	case render.Cancelled:
		m.processing.Cancelled = true
		m.processing.FailStep(nil)
	default:
		var err error
		if o.Err != nil {
			err = o.Err
		}
		m.processing.FailStep(err)
	}
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func formatLog(level render.Level, msg string) string {
	switch level {
	case render.LevelWarning:
		return WarningStyle.Render("! " + msg)
	case render.LevelError:
		return ErrorStyle.Render("✗ " + msg)
	default:
		return LabelStyle.Render(msg)
	}
}

// View renders the model
func (m Model) View() string {
	header := RenderHeader(m.title, &m.header)

	bar := m.progress.ViewAs(float64(m.percent) / 100)
	if !m.finished {
		bar = m.spinner.View() + " " + bar
	}
	content := RenderProcessingView(m.processing, m.frame, bar, m.logs)

	help := "q/esc: cancel"
	if m.finished {
		help = "q: quit"
	}
	footer := RenderHelpFooter(help, m.width)

	return LayoutWithHeaderFooter(header, content, footer, m.width, m.height)
}

// Final returns the finishing event, or nil when the job never finished
func (m Model) Final() *worker.Event {
	return m.final
}

// Run shows the job in the terminal until it finishes and returns its
// finishing event.
func Run(handle *worker.Handle, title, source string) (*worker.Event, error) {
	p := tea.NewProgram(NewModel(handle, title, source), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		handle.Cancel()
		handle.Wait()
		return nil, fmt.Errorf("failed to run TUI: %w", err)
	}

	final := result.(Model).Final()
	if final == nil {
		// interrupted before the job reported; drain until it finishes
		handle.Cancel()
		for e := range handle.Events() {
			if e.Kind == worker.EventFinished {
				ev := e
				final = &ev
			}
		}
	}
	return final, nil
}
