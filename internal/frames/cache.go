package frames

import (
	"path/filepath"
	"sync"

	"github.com/kartoza/kartoza-overlay-renderer/internal/models"
)

// Key identifies a cached sequence. The matte depends on the removal flag
// and tolerance, so both are part of the key.
type Key struct {
	Path             string
	RemoveBackground bool
	Tolerance        int
}

// KeyFor builds the cache key for an overlay
func KeyFor(o models.OverlayDescriptor) Key {
	k := Key{Path: filepath.Clean(o.FilePath), RemoveBackground: o.RemoveBackground}
	if o.RemoveBackground {
		k.Tolerance = o.BackgroundTolerance
	}
	return k
}

// DecodeFunc loads the raw frames of an asset
type DecodeFunc func(path string) (*Sequence, error)

type entry struct {
	once sync.Once
	seq  *Sequence
	err  error
}

// Cache shares decoded (and matted) frame sequences between overlays.
// Entries are read-only once built; Invalidate must only be called between renders.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	decode  DecodeFunc
}

// NewCache creates a cache that decodes assets from disk
func NewCache() *Cache {
	return NewCacheWithDecoder(Decode)
}

// NewCacheWithDecoder creates a cache with a custom decoder (used for tests)
func NewCacheWithDecoder(decode DecodeFunc) *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		decode:  decode,
	}
}

// Load returns the sequence for key, decoding it on first use.
// Concurrent callers for the same key share one decode. Failures are not cached.
func (c *Cache) Load(key Key) (*Sequence, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		seq, err := c.decode(key.Path)
		if err != nil {
			e.err = err
			return
		}
		if key.RemoveBackground {
			seq = seq.WithMatte(key.Tolerance)
		}
		e.seq = seq
	})

	if e.err != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, e.err
	}
	return e.seq, nil
}

// Invalidate drops every entry for an asset path and returns how many were removed
func (c *Cache) Invalidate(path string) int {
	path = filepath.Clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if k.Path == path {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear drops all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
