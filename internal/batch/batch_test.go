package batch

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
	"github.com/kartoza/kartoza-overlay-renderer/internal/render"
)

type fakeRunner struct {
	jobs    []models.RenderJob
	failOn  map[string]bool
	onStart func(i int)
}

func (f *fakeRunner) Run(ctx context.Context, job models.RenderJob, obs render.Observer) render.Outcome {
	f.jobs = append(f.jobs, job)
	if f.onStart != nil {
		f.onStart(len(f.jobs) - 1)
	}
	if f.failOn[job.SourcePath] {
		obs.Log(render.LevelError, "source unreadable")
		return render.Outcome{Status: render.Failure, Err: &render.Error{Kind: render.SourceUnreadable, Message: "source unreadable"}}
	}
	if ctx.Err() != nil {
		return render.Outcome{Status: render.Cancelled}
	}
	for _, p := range []int{5, 10, 50, 55, 100} {
		obs.Progress(p)
	}
	job.Overlays[0].Name = "mutated"
	return render.Outcome{Status: render.Success, OutputPath: job.OutputPath}
}

type recorder struct {
	progress []int
	logs     []string
}

func (r *recorder) Progress(p int)                   { r.progress = append(r.progress, p) }
func (r *recorder) Log(level render.Level, m string) { r.logs = append(r.logs, m) }

func testBatch() models.BatchJob {
	return models.BatchJob{
		Overlays:        []models.OverlayDescriptor{models.NewOverlayDescriptor("id-1", "cta", "cta.gif")},
		SourcePaths:     []string{"/in/a.mp4", "/in/b.mov", "/in/c.mp4"},
		OutputDir:       "/out",
		FilenamePrefix:  "cta_",
		OutputExtension: "mp4",
	}
}

func TestOverallProgress(t *testing.T) {
	tests := []struct {
		index, total, p, expected int
	}{
		{1, 3, 50, 50},
		{0, 3, 0, 0},
		{2, 3, 100, 100},
		{0, 1, 42, 42},
		{0, 0, 10, 0},
	}
	for _, tt := range tests {
		if got := OverallProgress(tt.index, tt.total, tt.p); got != tt.expected {
			t.Errorf("OverallProgress(%d, %d, %d): expected %d, got %d", tt.index, tt.total, tt.p, tt.expected, got)
		}
	}
}

func TestOutputPath(t *testing.T) {
	if got := OutputPath("/out", "cta_", "/videos/intro.final.mov", ".mp4"); got != filepath.Join("/out", "cta_intro.final.mp4") {
		t.Errorf("unexpected output path %s", got)
	}
	if got := OutputPath("/out", "", "clip", ""); got != filepath.Join("/out", "clip.mp4") {
		t.Errorf("unexpected output path %s", got)
	}
}

func TestRun_FaultIsolation(t *testing.T) {
	runner := &fakeRunner{failOn: map[string]bool{"/in/b.mov": true}}
	rec := &recorder{}

	summary := New(runner).Run(context.Background(), testBatch(), rec)

	if summary.Succeeded != 2 || summary.Failed != 1 || summary.Total != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.String() != "Processed 2 of 3 files, 1 with errors" {
		t.Errorf("unexpected summary string %q", summary.String())
	}
	if len(runner.jobs) != 3 {
		t.Errorf("expected all 3 files attempted, got %d", len(runner.jobs))
	}
	if rec.logs[len(rec.logs)-1] != summary.String() {
		t.Errorf("expected summary as final log, got %v", rec.logs)
	}
	if !strings.HasPrefix(rec.logs[0], "[2/3] b.mov:") {
		t.Errorf("expected file-tagged log, got %q", rec.logs[0])
	}
	if summary.Items[2].OutputPath != filepath.Join("/out", "cta_c.mp4") {
		t.Errorf("unexpected output path %s", summary.Items[2].OutputPath)
	}
}

func TestRun_ProgressRemapped(t *testing.T) {
	rec := &recorder{}
	New(&fakeRunner{}).Run(context.Background(), testBatch(), rec)

	// file 1 at 50% maps to floor((100+50)/3) = 50
	found := false
	for _, p := range rec.progress {
		if p == 50 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 50 in %v", rec.progress)
	}
	for i := 1; i < len(rec.progress); i++ {
		if rec.progress[i] <= rec.progress[i-1] {
			t.Fatalf("expected monotonic progress, got %v", rec.progress)
		}
	}
	if rec.progress[len(rec.progress)-1] != 100 {
		t.Errorf("expected to finish at 100, got %v", rec.progress)
	}
}

func TestRun_IndependentOverlayCopies(t *testing.T) {
	runner := &fakeRunner{}
	job := testBatch()
	New(runner).Run(context.Background(), job, nil)

	if job.Overlays[0].Name != "cta" || job.Overlays[0].ID != "id-1" {
		t.Errorf("expected batch overlays untouched, got %+v", job.Overlays[0])
	}
	seen := map[string]bool{}
	for _, j := range runner.jobs {
		id := j.Overlays[0].ID
		if id == "id-1" || seen[id] {
			t.Errorf("expected fresh unique id, got %s", id)
		}
		seen[id] = true
	}
}

func TestRun_CancelStopsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{onStart: func(i int) {
		if i == 1 {
			cancel()
		}
	}}
	summary := New(runner).Run(ctx, testBatch(), nil)

	if !summary.Cancelled {
		t.Error("expected cancelled summary")
	}
	if len(runner.jobs) != 2 || summary.Succeeded != 1 {
		t.Errorf("expected to stop after the second file, got %d jobs, %+v", len(runner.jobs), summary)
	}
}

type panicRunner struct{}

func (panicRunner) Run(ctx context.Context, job models.RenderJob, obs render.Observer) render.Outcome {
	panic("boom")
}

func TestRun_PanicIsolated(t *testing.T) {
	summary := New(panicRunner{}).Run(context.Background(), testBatch(), nil)
	if summary.Failed != 3 {
		t.Errorf("expected 3 failures, got %+v", summary)
	}
}

type stateRunner struct{}

func (stateRunner) Run(ctx context.Context, job models.RenderJob, obs render.Observer) render.Outcome {
	if so, ok := obs.(render.StateObserver); ok {
		so.State(render.StateOpening)
		so.State(render.StateDone)
	}
	return render.Outcome{Status: render.Success, OutputPath: job.OutputPath}
}

func TestCoordinator_ForwardsStates(t *testing.T) {
	var states []render.State
	obs := render.Funcs{OnState: func(s render.State) { states = append(states, s) }}

	summary := New(stateRunner{}).Run(context.Background(), testBatch(), obs)
	if summary.Succeeded != 3 {
		t.Fatalf("expected 3 successes, got %d", summary.Succeeded)
	}
	if len(states) != 6 {
		t.Fatalf("expected 6 state changes, got %d", len(states))
	}
	if states[2] != render.StateOpening {
		t.Errorf("expected second file to start with Opening, got %v", states[2])
	}
}
