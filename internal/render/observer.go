package render

import "github.com/rs/zerolog"

// Level is the severity of a user-facing log event
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Observer receives progress and log events for one job.
// Calls are never concurrent and arrive in emission order.
type Observer interface {
	Progress(percent int)
	Log(level Level, message string)
}

// StateObserver is optionally implemented by observers that want state changes
type StateObserver interface {
	State(s State)
}

// Funcs adapts plain functions to an Observer. Nil fields are ignored.
type Funcs struct {
	OnProgress func(percent int)
	OnLog      func(level Level, message string)
	OnState    func(s State)
}

func (f Funcs) Progress(percent int) {
	if f.OnProgress != nil {
		f.OnProgress(percent)
	}
}

func (f Funcs) Log(level Level, message string) {
	if f.OnLog != nil {
		f.OnLog(level, message)
	}
}

func (f Funcs) State(s State) {
	if f.OnState != nil {
		f.OnState(s)
	}
}

// reporter keeps progress monotonic and mirrors log events to zerolog
type reporter struct {
	obs    Observer
	logger zerolog.Logger
	last   int
}

func newReporter(obs Observer, logger zerolog.Logger) *reporter {
	if obs == nil {
		obs = Funcs{}
	}
	return &reporter{obs: obs, logger: logger, last: -1}
}

func (r *reporter) progress(percent int) {
	percent = max(0, min(100, percent))
	if percent <= r.last {
		return
	}
	r.last = percent
	r.obs.Progress(percent)
}

func (r *reporter) log(level Level, message string) {
	switch level {
	case LevelWarning:
		r.logger.Warn().Msg(message)
	case LevelError:
		r.logger.Error().Msg(message)
	default:
		r.logger.Info().Msg(message)
	}
	r.obs.Log(level, message)
}

func (r *reporter) state(s State) {
	r.logger.Debug().Str("state", s.String()).Msg("state change")
	if so, ok := r.obs.(StateObserver); ok {
		so.State(s)
	}
}
