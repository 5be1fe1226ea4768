package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"authguard/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records authentication events. Audit records are internal-only.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if !e.Type.Valid() {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.Recent(ctx, limit)
}

// record appends e and logs instead of returning failures.
func (s *Service) record(ctx context.Context, e Event, meta map[string]any) {
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			e.Metadata = string(b)
		}
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Error("audit append failed", slog.String("type", string(e.Type)), slog.Any("err", err))
	}
}

func (s *Service) LoginSucceeded(ctx context.Context, userID int64, ip string) {
	s.record(ctx, Event{Type: EventLoginSucceeded, ActorUserID: userID, IPAddress: ip, Message: "login succeeded"}, nil)
}

// LoginFailed stores the masked e-mail that was attempted.
func (s *Service) LoginFailed(ctx context.Context, email, ip string) {
	s.record(ctx, Event{Type: EventLoginFailed, IPAddress: ip, Message: "login failed"},
		map[string]any{"email": logger.MaskEmail(email)})
}

func (s *Service) RateLimited(ctx context.Context, scope, ip string) {
	s.record(ctx, Event{Type: EventRateLimited, IPAddress: ip, Message: "rate limit exceeded"},
		map[string]any{"scope": scope})
}

func (s *Service) TokenRefreshed(ctx context.Context, userID int64, ip string) {
	s.record(ctx, Event{Type: EventTokenRefreshed, ActorUserID: userID, IPAddress: ip, Message: "token pair renewed"}, nil)
}

func (s *Service) RoleChanged(ctx context.Context, actorID, targetID int64, from, to, ip string) {
	s.record(ctx, Event{Type: EventRoleChanged, ActorUserID: actorID, TargetUserID: targetID, IPAddress: ip, Message: "role changed"},
		map[string]any{"from": from, "to": to})
}

func (s *Service) AccountDeleted(ctx context.Context, actorID, targetID int64, ip string) {
	s.record(ctx, Event{Type: EventAccountDeleted, ActorUserID: actorID, TargetUserID: targetID, IPAddress: ip, Message: "account deleted"}, nil)
}
