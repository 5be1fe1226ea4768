package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the INSERT-only audit_events table.
var Schema = []string{`
CREATE TABLE IF NOT EXISTS audit_events (
  id uuid PRIMARY KEY,
  type text NOT NULL,
  actor_user_id bigint,
  target_user_id bigint,
  ip_address text,
  message text,
  metadata jsonb,
  created_at timestamptz NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_events_created_at ON audit_events (created_at DESC)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const op = "audit.PostgresRepo.Append"
	const q = `
INSERT INTO audit_events (
  id, type, actor_user_id, target_user_id, ip_address, message, metadata, created_at
) VALUES (
  $1,$2,NULLIF($3::bigint,0),NULLIF($4::bigint,0),$5,$6,NULLIF($7,'')::jsonb,$8
)
`
	if _, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorUserID,
		e.TargetUserID,
		e.IPAddress,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	const op = "audit.PostgresRepo.Recent"
	const q = `
SELECT id, type, COALESCE(actor_user_id,0), COALESCE(target_user_id,0),
       COALESCE(ip_address,''), COALESCE(message,''), COALESCE(metadata::text,''), created_at
FROM audit_events
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.Type,
			&e.ActorUserID,
			&e.TargetUserID,
			&e.IPAddress,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
