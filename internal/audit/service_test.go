package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresKnownType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	require.ErrorIs(t, svc.Append(context.Background(), Event{}), ErrInvalidEvent)
	require.ErrorIs(t, svc.Append(context.Background(), Event{Type: "password_reset"}), ErrInvalidEvent)
}

func TestService_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	svc.LoginSucceeded(context.Background(), 7, "1.2.3.4")

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.NotEmpty(t, evs[0].ID)
	assert.Equal(t, fixed, evs[0].CreatedAt)
	assert.Equal(t, EventLoginSucceeded, evs[0].Type)
	assert.Equal(t, int64(7), evs[0].ActorUserID)
	assert.Equal(t, "1.2.3.4", evs[0].IPAddress)
}

func TestService_LoginFailedMasksEmail(t *testing.T) {
	repo := NewMemoryRepo()
	NewService(repo).LoginFailed(context.Background(), "mallory@example.com", "5.6.7.8")

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.NotContains(t, evs[0].Metadata, "mallory")

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(evs[0].Metadata), &meta))
	assert.Equal(t, "m***@example.com", meta["email"])
}

func TestService_RoleChangedMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	NewService(repo).RoleChanged(context.Background(), 1, 2, "user", "admin", "")

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, int64(2), evs[0].TargetUserID)
	assert.JSONEq(t, `{"from":"user","to":"admin"}`, evs[0].Metadata)
}

func TestMemoryRepo_RecentNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	svc.LoginSucceeded(ctx, 1, "")
	svc.TokenRefreshed(ctx, 1, "")
	svc.AccountDeleted(ctx, 1, 1, "")

	got, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EventAccountDeleted, got[0].Type)
	assert.Equal(t, EventTokenRefreshed, got[1].Type)
}

type failingRepo struct{}

func (failingRepo) Append(context.Context, Event) error { return errors.New("disk full") }
func (failingRepo) Recent(context.Context, int) ([]Event, error) { return nil, nil }

func TestService_RecordingIsBestEffort(t *testing.T) {
	svc := NewService(failingRepo{})
	assert.NotPanics(t, func() {
		svc.RateLimited(context.Background(), "login", "1.1.1.1")
	})
}
