package render

import "github.com/kartoza/kartoza-overlay-renderer/internal/ffmpeg"

// State is a render pipeline stage
type State int

const (
	StateIdle State = iota
	StateOpening
	StateResolvingTimelines
	StateBuildingOverlays
	StateCompositing
	StateEncoding
	StateDone
	StateFailed
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:               "Idle",
	StateOpening:            "Opening",
	StateResolvingTimelines: "ResolvingTimelines",
	StateBuildingOverlays:   "BuildingOverlays",
	StateCompositing:        "Compositing",
	StateEncoding:           "Encoding",
	StateDone:               "Done",
	StateFailed:             "Failed",
	StateCancelled:          "Cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal reports whether the state ends a job
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Status is the terminal result of a job
type Status int

const (
	Success Status = iota
	Failure
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "cancelled"
	}
}

// Outcome is the terminal event of a render job
type Outcome struct {
	Status     Status
	OutputPath string
	Err        *Error
	Frames     int
	Skipped    int
	Encoder    string
	Info       *ffmpeg.VideoInfo
}

// OK reports whether the job succeeded
func (o Outcome) OK() bool {
	return o.Status == Success
}
