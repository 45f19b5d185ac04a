// Package worker runs a render or batch job on its own goroutine and delivers
// its events, in order, over a single channel.
package worker

import (
	"context"
	"sync"

	"github.com/kartoza/kartoza-overlay-renderer/internal/batch"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
)

// EventKind identifies an event
type EventKind int

const (
	EventProgress EventKind = iota
	EventLog
	EventState
	EventFinished
)

// Event is one message from a running job. Exactly one EventFinished is sent,
// last, carrying either Outcome (single render) or Summary (batch).
type Event struct {
	Kind    EventKind
	Percent int
	Level   render.Level
	Message string
	State   render.State
	Outcome *render.Outcome
	Summary *batch.Summary
}

// Handle controls a running job
type Handle struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	closed bool
}

// Events returns the event channel. It is closed after EventFinished.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Cancel asks the job to stop at its next checkpoint
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the job has finished
func (h *Handle) Wait() {
	<-h.done
}

// Progress implements render.Observer
func (h *Handle) Progress(percent int) {
	h.push(Event{Kind: EventProgress, Percent: percent})
}

// Log implements render.Observer
func (h *Handle) Log(level render.Level, message string) {
	h.push(Event{Kind: EventLog, Level: level, Message: message})
}

// State implements render.StateObserver
func (h *Handle) State(s render.State) {
	h.push(Event{Kind: EventState, State: s})
}

// push never blocks the job; a slow reader only grows the queue
func (h *Handle) push(e Event) {
	h.mu.Lock()
	h.queue = append(h.queue, e)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Handle) finish(e Event) {
	h.mu.Lock()
	h.queue = append(h.queue, e)
	h.closed = true
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Handle) pump() {
	defer close(h.events)
	for {
		h.mu.Lock()
		pending := h.queue
		h.queue = nil
		closed := h.closed
		h.mu.Unlock()

		for _, e := range pending {
			h.events <- e
		}
		if closed && len(pending) == 0 {
			return
		}
		if closed {
			continue
		}
		<-h.notify
	}
}

// Start runs fn on a new goroutine. fn reports through the observer it is
// given and returns the finishing event.
func Start(ctx context.Context, fn func(ctx context.Context, obs render.Observer) Event) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		events: make(chan Event, 64),
		cancel: cancel,
		done:   make(chan struct{}),
		notify: make(chan struct{}, 1),
	}

	go h.pump()
	go func() {
		defer close(h.done)
		defer cancel()
		final := fn(ctx, h)
		final.Kind = EventFinished
		h.finish(final)
	}()
	return h
}

// StartRender runs a single render job
func StartRender(ctx context.Context, runner batch.Runner, job models.RenderJob) *Handle {
	return Start(ctx, func(ctx context.Context, obs render.Observer) Event {
		outcome := runner.Run(ctx, job, obs)
		return Event{Outcome: &outcome}
	})
}

// StartBatch runs a batch job
func StartBatch(ctx context.Context, c *batch.Coordinator, job models.BatchJob) *Handle {
	return Start(ctx, func(ctx context.Context, obs render.Observer) Event {
		summary := c.Run(ctx, job, obs)
		return Event{Summary: &summary}
	})
}
