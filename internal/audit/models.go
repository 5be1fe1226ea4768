package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; callers never block a request on audit failures.
//
// Storage (Postgres): table audit_events, INSERT-only.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event; 0 for anonymous callers.
	ActorUserID int64 `json:"actor_user_id,omitempty" db:"actor_user_id"`
	// TargetUserID is the account acted upon, when different from the actor.
	TargetUserID int64  `json:"target_user_id,omitempty" db:"target_user_id"`
	IPAddress    string `json:"ip_address,omitempty" db:"ip_address"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventRateLimited    EventType = "rate_limited"
	EventTokenRefreshed EventType = "token_refreshed"
	EventRoleChanged    EventType = "role_changed"
	EventAccountDeleted EventType = "account_deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventLoginSucceeded, EventLoginFailed, EventRateLimited,
		EventTokenRefreshed, EventRoleChanged, EventAccountDeleted:
		return true
	}
	return false
}
