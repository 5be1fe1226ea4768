package authclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expiredStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Save(Credentials{AccessToken: "old", RefreshToken: "r1", ExpiresAtUnixMs: 1}))
	return s
}

func TestCoordinator_SingleFlight(t *testing.T) {
	store := expiredStore(t)
	var calls atomic.Int32
	release := make(chan struct{})
	renewer := RenewerFunc(func(ctx context.Context, rt string) (Credentials, error) {
		calls.Add(1)
		<-release
		return Credentials{AccessToken: "new", RefreshToken: "r2", ExpiresAtUnixMs: time.Now().Add(time.Hour).UnixMilli()}, nil
	})
	coord := NewCoordinator(store, renewer, time.Second)

	const n = 50
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([]bool, n)
	started.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i] = coord.EnsureValid(context.Background())
		}(i)
	}
	started.Wait()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
	c, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", c.AccessToken)
	assert.False(t, store.IsExpired())
}

func TestCoordinator_TimeoutReleasesSlot(t *testing.T) {
	store := expiredStore(t)
	hang := make(chan struct{})
	defer close(hang)

	var hung atomic.Bool
	renewer := RenewerFunc(func(ctx context.Context, rt string) (Credentials, error) {
		if hung.CompareAndSwap(false, true) {
			<-hang
			return Credentials{}, errors.New("too late")
		}
		return Credentials{AccessToken: "new", RefreshToken: "r2", ExpiresAtUnixMs: time.Now().Add(time.Hour).UnixMilli()}, nil
	})
	coord := NewCoordinator(store, renewer, 30*time.Millisecond)

	start := time.Now()
	assert.False(t, coord.Refresh(context.Background()))
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, coord.Refresh(context.Background()), "a later call gets a fresh slot")
}

func TestCoordinator_RejectedClearsStore(t *testing.T) {
	store := expiredStore(t)
	coord := NewCoordinator(store, RenewerFunc(func(context.Context, string) (Credentials, error) {
		return Credentials{}, ErrRenewalRejected
	}), time.Second)

	assert.False(t, coord.EnsureValid(context.Background()))
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestCoordinator_NoRefreshToken(t *testing.T) {
	var calls atomic.Int32
	coord := NewCoordinator(NewStore(), RenewerFunc(func(context.Context, string) (Credentials, error) {
		calls.Add(1)
		return Credentials{}, nil
	}), time.Second)

	assert.False(t, coord.Refresh(context.Background()))
	assert.Zero(t, calls.Load())
}

func TestCoordinator_ValidCredentialSkipsRenewal(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Save(Credentials{AccessToken: "a", RefreshToken: "r", ExpiresAtUnixMs: time.Now().Add(time.Hour).UnixMilli()}))
	var calls atomic.Int32
	coord := NewCoordinator(store, RenewerFunc(func(context.Context, string) (Credentials, error) {
		calls.Add(1)
		return Credentials{}, nil
	}), time.Second)

	assert.True(t, coord.EnsureValid(context.Background()))
	assert.Zero(t, calls.Load())
}
