package ratelimit

import (
	"context"
	"time"
)

// Record is one fixed window for a key.
type Record struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window has elapsed at now. An expired record
// is treated as absent, never reused.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ResetAt)
}

// Store is the key-value backing of the limiter. The in-process map is one
// implementation; a shared store serves multi-instance deployments.
//
// Increment must be atomic per key: it either starts a fresh window with
// Count=1 (absent or expired record) or increments the live one.
type Store interface {
	Get(ctx context.Context, key string, now time.Time) (Record, bool, error)
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Record, error)
	Delete(ctx context.Context, key string) error
	// Sweep evicts expired windows and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
