package rate

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLimited is returned by Allow when the key has exhausted its budget.
	ErrLimited = errors.New("rate limited")
	// ErrUnavailable is returned when the limiter backend cannot be reached.
	// Callers are expected to fail closed.
	ErrUnavailable = errors.New("rate limiter backend unavailable")
)

// Limiter admits or rejects an operation for a key. Implementations must be
// safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Config holds the shared tuning parameters for limiter implementations.
type Config struct {
	// Window is the span over which requests are counted.
	Window time.Duration
	// Limit is the maximum number of admitted requests per key per window.
	Limit int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = 60 * time.Second
	}
	if c.Limit <= 0 {
		c.Limit = 10
	}
	return c
}
