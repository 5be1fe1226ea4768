package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"authguard/internal/rbac"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the users table. It is idempotent.
var Schema = []string{`
CREATE TABLE IF NOT EXISTS users (
  id bigserial PRIMARY KEY,
  email text NOT NULL,
  handle text NOT NULL UNIQUE,
  password_hash text NOT NULL,
  role text NOT NULL DEFAULT 'user',
  verified boolean NOT NULL DEFAULT false,
  created_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower ON users (lower(email))`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const userColumns = `id, email, handle, password_hash, role, verified, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Handle,
		&u.PasswordHash,
		&u.Role,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresRepo) Create(ctx context.Context, u *User) error {
	const op = "users.PostgresRepo.Create"
	const q = `
INSERT INTO users (email, handle, password_hash, role, verified, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,now(),now())
RETURNING id, created_at, updated_at
`
	if err := r.db.QueryRowContext(ctx, q,
		u.Email,
		u.Handle,
		u.PasswordHash,
		string(u.Role),
		u.Verified,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (r *PostgresRepo) ByID(ctx context.Context, id int64) (User, error) {
	const op = "users.PostgresRepo.ByID"
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return User{}, wrap(op, err)
	}
	return u, nil
}

func (r *PostgresRepo) ByEmail(ctx context.Context, email string) (User, error) {
	const op = "users.PostgresRepo.ByEmail"
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	u, err := scanUser(r.db.QueryRowContext(ctx, q, email))
	if err != nil {
		return User{}, wrap(op, err)
	}
	return u, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]User, error) {
	const op = "users.PostgresRepo.List"
	q := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func (r *PostgresRepo) updateReturning(ctx context.Context, op, set string, id int64, arg any) (User, error) {
	q := `UPDATE users SET ` + set + ` = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, q, id, arg))
	if err != nil {
		return User{}, wrap(op, err)
	}
	return u, nil
}

func (r *PostgresRepo) UpdateHandle(ctx context.Context, id int64, handle string) (User, error) {
	return r.updateReturning(ctx, "users.PostgresRepo.UpdateHandle", "handle", id, handle)
}

func (r *PostgresRepo) SetVerified(ctx context.Context, id int64, verified bool) (User, error) {
	return r.updateReturning(ctx, "users.PostgresRepo.SetVerified", "verified", id, verified)
}

func (r *PostgresRepo) SetRole(ctx context.Context, id int64, role rbac.Role) (User, error) {
	return r.updateReturning(ctx, "users.PostgresRepo.SetRole", "role", id, string(role))
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	const op = "users.PostgresRepo.Delete"
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
