package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, rounded up to a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// Limiter is a keyed fixed-window counter. Check, Reset and Sweep never fail:
// store errors are logged and the limiter fails open.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	clock  func() time.Time
	log    *slog.Logger
}

type Option func(*Limiter)

func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) { l.clock = clock }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

func New(store Store, maxAttempts int, window time.Duration, opts ...Option) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		store:  store,
		max:    maxAttempts,
		window: window,
		clock:  time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int { return l.max }

// Now is the limiter's clock; windows and retry delays are measured on it.
func (l *Limiter) Now() time.Time { return l.clock() }

// Check counts one attempt for key. Denied attempts still count.
func (l *Limiter) Check(ctx context.Context, key string) Decision {
	now := l.clock()

	rec, err := l.store.Increment(ctx, key, l.window, now)
	if err != nil {
		l.log.Error("rate limit store failed; allowing", "op", "ratelimit.Check", "err", err)
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max - 1, ResetAt: now.Add(l.window)}
	}

	remaining := l.max - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   rec.Count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   rec.ResetAt,
	}
}

// Peek reports the current window for key without counting an attempt.
func (l *Limiter) Peek(ctx context.Context, key string) Decision {
	now := l.clock()
	rec, ok, err := l.store.Get(ctx, key, now)
	if err != nil || !ok {
		if err != nil {
			l.log.Error("rate limit store failed", "op", "ratelimit.Peek", "err", err)
		}
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max, ResetAt: now.Add(l.window)}
	}
	remaining := l.max - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: rec.Count < l.max, Limit: l.max, Remaining: remaining, ResetAt: rec.ResetAt}
}

// Reset forgives prior attempts, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) {
	if err := l.store.Delete(ctx, key); err != nil {
		l.log.Error("rate limit reset failed", "op", "ratelimit.Reset", "err", err)
	}
}

func (l *Limiter) Sweep(ctx context.Context) int {
	n, err := l.store.Sweep(ctx, l.clock())
	if err != nil {
		l.log.Error("rate limit sweep failed", "op", "ratelimit.Sweep", "err", err)
		return 0
	}
	return n
}

// RunSweeper sweeps every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(ctx); n > 0 {
				l.log.Debug("rate limit sweep", "removed", n)
			}
		}
	}
}
