package rate

import (
	"context"
	"sync"
	"time"
)

// Window is a process-local sliding-window limiter. Per-key request
// timestamps are kept in memory and pruned lazily on each check; a denied
// request is not recorded, so hammering a saturated key does not extend its
// cooldown. State does not survive a restart and is not shared across
// instances.
type Window struct {
	config Config

	mu      sync.Mutex
	buckets map[string][]time.Time

	now func() time.Time
}

// NewWindow creates a [Window] with the given config, applying the 60s/10
// defaults for unset fields.
func NewWindow(cfg Config) *Window {
	return &Window{
		config:  cfg.withDefaults(),
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records the request and returns nil when the key is within budget,
// or [ErrLimited] without recording it when the window is saturated.
func (w *Window) Allow(_ context.Context, key string) error {
	now := w.now()
	cutoff := now.Add(-w.config.Window)

	w.mu.Lock()
	defer w.mu.Unlock()

	stamps := w.buckets[key]

	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= w.config.Limit {
		w.buckets[key] = kept
		return ErrLimited
	}

	w.buckets[key] = append(kept, now)
	return nil
}

// Len returns the number of tracked keys. Intended for tests and
// introspection only.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buckets)
}
