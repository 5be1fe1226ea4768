package authclient

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultRenewalTimeout = 10 * time.Second

var (
	// ErrRenewalRejected means the server refused the refresh token.
	ErrRenewalRejected = errors.New("authclient: renewal rejected")
	ErrRenewalTimeout  = errors.New("authclient: renewal timed out")
)

// Renewer exchanges a refresh token for a new pair.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (Credentials, error)
}

type RenewerFunc func(ctx context.Context, refreshToken string) (Credentials, error)

func (f RenewerFunc) Renew(ctx context.Context, refreshToken string) (Credentials, error) {
	return f(ctx, refreshToken)
}

// Coordinator keeps at most one renewal in flight. Concurrent callers share
// its outcome; the slot is released when the renewal returns or times out.
type Coordinator struct {
	store   *Store
	renewer Renewer
	timeout time.Duration
	group   singleflight.Group
}

func NewCoordinator(store *Store, renewer Renewer, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRenewalTimeout
	}
	return &Coordinator{store: store, renewer: renewer, timeout: timeout}
}

const flightKey = "renew"

// Refresh renews the stored pair. A caller whose ctx ends stops waiting but
// does not cancel the shared renewal.
func (c *Coordinator) Refresh(ctx context.Context) bool {
	ch := c.group.DoChan(flightKey, c.renew)
	select {
	case res := <-ch:
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

// EnsureValid renews only when the stored credential is expired.
func (c *Coordinator) EnsureValid(ctx context.Context) bool {
	if !c.store.IsExpired() {
		return true
	}
	return c.Refresh(ctx)
}

type renewResult struct {
	creds Credentials
	err   error
}

func (c *Coordinator) renew() (any, error) {
	creds, err := c.store.Load()
	if err != nil || creds.RefreshToken == "" {
		return nil, ErrNoCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	done := make(chan renewResult, 1)
	go func() {
		next, err := c.renewer.Renew(ctx, creds.RefreshToken)
		done <- renewResult{creds: next, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, ErrRenewalRejected) {
				_ = c.store.Clear()
			}
			return nil, res.err
		}
		if res.creds.RefreshToken == "" {
			res.creds.RefreshToken = creds.RefreshToken
		}
		if err := c.store.Save(res.creds); err != nil {
			return nil, err
		}
		return res.creds, nil
	case <-ctx.Done():
		return nil, ErrRenewalTimeout
	}
}
