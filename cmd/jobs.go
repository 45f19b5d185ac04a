package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/kartoza/kartoza-overlay-renderer/internal/ffmpeg"
	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/logging"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
	"github.com/kartoza/kartoza-overlay-renderer/internal/preset"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
	"github.com/kartoza/kartoza-overlay-renderer/internal/tui"
	"github.com/kartoza/kartoza-overlay-renderer/internal/worker"
)

// overlayFlags are shared by every command that takes an overlay set
type overlayFlags struct {
	preset   string
	overlays []string
	untilEnd bool
	removeBG bool
}

// load returns the preset's project with any --overlay assets appended on top
func (f *overlayFlags) load() (*models.Project, error) {
	project := &models.Project{}
	if f.preset != "" {
		p, err := preset.Load(f.preset)
		if err != nil {
			return nil, err
		}
		project = p
	}

	for _, path := range f.overlays {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid overlay path %s: %w", path, err)
		}
		o := models.NewOverlayDescriptor(uuid.NewString(), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), abs)
		o.UntilEnd = f.untilEnd
		o.RemoveBackground = f.removeBG
		o.BackgroundTolerance = cfg.DefaultTolerance
		project.Elements = append(project.Elements, o)
	}

	if len(project.Elements) == 0 {
		return nil, fmt.Errorf("no overlays given: use --preset or --overlay")
	}
	return project, nil
}

// interactive reports whether the bubbletea progress view should be used
func interactive() bool {
	if plainMode {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// newPipeline wires the ffmpeg toolkit, a fresh frame cache and the default
// encoder selector into a render pipeline
func newPipeline() (*render.Pipeline, *ffmpeg.Toolkit) {
	toolkit := ffmpeg.New(cfg.FFmpegBinary, logging.WithComponent("ffmpeg"))
	// job events are already shown to the user; mirror them only when debugging
	logger := zerolog.Nop()
	if debugMode {
		logger = logging.WithComponent("render")
	}
	p := render.New(render.Options{
		Media:   toolkit,
		Cache:   frames.NewCache(),
		Workers: cfg.SynthesisWorkers,
		Logger:  &logger,
	})
	return p, toolkit
}

// jobContext is cancelled on SIGINT in plain mode. The TUI handles Ctrl+C itself.
func jobContext(parent context.Context, tuiMode bool) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if tuiMode {
		return context.WithCancel(parent)
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// follow shows a running job until it finishes and returns its final event
func follow(handle *worker.Handle, tuiMode bool, title, source string) (*worker.Event, error) {
	if tuiMode {
		return tui.Run(handle, title, source)
	}
	return followPlain(handle, title), nil
}

func followPlain(handle *worker.Handle, title string) *worker.Event {
	warn := lipgloss.NewStyle().Foreground(tui.ColorOrange)
	bad := lipgloss.NewStyle().Foreground(tui.ColorRed)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)

	var final *worker.Event
	for e := range handle.Events() {
		switch e.Kind {
		case worker.EventProgress:
			_ = bar.Set(e.Percent)
		case worker.EventLog:
			_ = bar.Clear()
			switch e.Level {
			case render.LevelWarning:
				fmt.Fprintln(os.Stderr, warn.Render("warning: "+e.Message))
			case render.LevelError:
				fmt.Fprintln(os.Stderr, bad.Render("error: "+e.Message))
			default:
				fmt.Fprintln(os.Stderr, e.Message)
			}
			_ = bar.RenderBlank()
		case worker.EventFinished:
			ev := e
			final = &ev
		}
	}
	_ = bar.Finish()
	return final
}
