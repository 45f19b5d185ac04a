package worker

import (
	"context"
	"testing"
	"time"

	"github.com/kartoza/kartoza-overlay-renderer/internal/batch"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
)

type stepRunner struct {
	steps int
}

func (s stepRunner) Run(ctx context.Context, job models.RenderJob, obs render.Observer) render.Outcome {
	for i := 1; i <= s.steps; i++ {
		if ctx.Err() != nil {
			return render.Outcome{Status: render.Cancelled}
		}
		obs.Progress(i * 100 / s.steps)
		obs.Log(render.LevelInfo, "step")
	}
	return render.Outcome{Status: render.Success, OutputPath: job.OutputPath}
}

type blockingRunner struct {
	started chan struct{}
}

func (b blockingRunner) Run(ctx context.Context, job models.RenderJob, obs render.Observer) render.Outcome {
	close(b.started)
	<-ctx.Done()
	return render.Outcome{Status: render.Cancelled}
}

func TestStartRender_OrderedEvents(t *testing.T) {
	h := StartRender(context.Background(), stepRunner{steps: 500}, models.RenderJob{OutputPath: "out.mp4"})

	last := 0
	var final *Event
	count := 0
	for e := range h.Events() {
		count++
		switch e.Kind {
		case EventProgress:
			if e.Percent < last {
				t.Fatalf("progress went backwards: %d after %d", e.Percent, last)
			}
			last = e.Percent
		case EventFinished:
			if final != nil {
				t.Fatal("expected a single finished event")
			}
			ev := e
			final = &ev
		default:
			if final != nil {
				t.Fatal("expected finished to be the last event")
			}
		}
	}

	if final == nil || final.Outcome == nil || final.Outcome.Status != render.Success {
		t.Fatalf("expected successful outcome, got %+v", final)
	}
	if count != 1001 {
		t.Errorf("expected 1001 events, got %d", count)
	}
	if last != 100 {
		t.Errorf("expected progress to reach 100, got %d", last)
	}
}

func TestHandle_Cancel(t *testing.T) {
	started := make(chan struct{})
	h := StartRender(context.Background(), blockingRunner{started: started}, models.RenderJob{})

	<-started
	h.Cancel()

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop after cancel")
	}

	var final Event
	for e := range h.Events() {
		final = e
	}
	if final.Kind != EventFinished || final.Outcome.Status != render.Cancelled {
		t.Errorf("expected cancelled outcome, got %+v", final)
	}
}

func TestStartBatch_Summary(t *testing.T) {
	job := models.BatchJob{
		Overlays:    []models.OverlayDescriptor{models.NewOverlayDescriptor("a", "cta", "cta.png")},
		SourcePaths: []string{"a.mp4", "b.mp4"},
		OutputDir:   t.TempDir(),
	}
	h := StartBatch(context.Background(), batch.New(stepRunner{steps: 4}), job)

	var final Event
	for e := range h.Events() {
		final = e
	}
	if final.Summary == nil || final.Summary.Succeeded != 2 {
		t.Errorf("expected 2 successes, got %+v", final.Summary)
	}
}
