// Package clip turns overlay descriptors into positioned, scaled, timed
// clips that the compositor can sample frame by frame.
package clip

import (
	"context"
	"runtime"
	"sync"

	"github.com/kartoza/kartoza-overlay-renderer/internal/frames"
	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

// Result is the outcome of building one overlay: either a clip or a skip reason
type Result struct {
	Index   int
	Overlay models.OverlayDescriptor
	Clip    *Clip
	Skipped string
	Err     error
}

// OK reports whether a clip was produced
func (r Result) OK() bool {
	return r.Clip != nil
}

// DoneFunc is called once per overlay as builds finish. Calls are serialized
// and done increases by one each call.
type DoneFunc func(done, total int, r Result)

// Builder creates clips using a shared frame cache
type Builder struct {
	Cache   *frames.Cache
	Workers int
}

// NewBuilder creates a builder; workers <= 0 uses one worker per CPU
func NewBuilder(cache *frames.Cache, workers int) *Builder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Builder{Cache: cache, Workers: workers}
}

// Build synthesizes a single resolved overlay
func (b *Builder) Build(o models.OverlayDescriptor, width, height int) Result {
	r := Result{Overlay: o}

	if o.IsTextOnly() {
		r.Skipped = "no asset file (text-only placeholder)"
		return r
	}
	if o.Duration <= 0 {
		r.Skipped = "duration is not positive"
		return r
	}

	seq, err := b.Cache.Load(frames.KeyFor(o))
	if err != nil {
		r.Skipped = "asset could not be decoded"
		r.Err = err
		return r
	}

	c, err := Synthesize(o, seq, width, height)
	if err != nil {
		r.Skipped = "clip synthesis failed"
		r.Err = err
		return r
	}
	r.Clip = c
	return r
}

// BuildAll builds every overlay, possibly in parallel, and returns results in
// input order. It stops handing out work once ctx is cancelled.
func (b *Builder) BuildAll(ctx context.Context, overlays []models.OverlayDescriptor, width, height int, onDone DoneFunc) ([]Result, error) {
	results := make([]Result, len(overlays))
	total := len(overlays)

	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r := b.Build(overlays[i], width, height)
				r.Index = i
				results[i] = r

				mu.Lock()
				done++
				if onDone != nil {
					onDone(done, total, r)
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for i := range overlays {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Clips returns the successful clips of a result set in stacking order
func Clips(results []Result) []*Clip {
	var clips []*Clip
	for _, r := range results {
		if r.OK() {
			clips = append(clips, r.Clip)
		}
	}
	return clips
}
