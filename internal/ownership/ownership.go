// Package ownership defines how guards learn who owns a resource.
// The content layer supplies the lookups; a missing resource must surface as
// ErrNotFound, never as a sentinel owner id.
package ownership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("resource not found")

// Lookup resolves the owning user id of a resource.
type Lookup interface {
	OwnerOf(ctx context.Context, resourceID int64) (int64, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, resourceID int64) (int64, error)

func (f LookupFunc) OwnerOf(ctx context.Context, resourceID int64) (int64, error) {
	return f(ctx, resourceID)
}

// SQLLookup reads an owner column from a table keyed by an integer id.
type SQLLookup struct {
	db    *sql.DB
	query string
}

// NewSQLLookup builds "SELECT <ownerColumn> FROM <table> WHERE id = $1".
// Identifiers are quoted, so table and column names cannot inject SQL.
func NewSQLLookup(db *sql.DB, table, ownerColumn string) *SQLLookup {
	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = $1",
		pgx.Identifier{ownerColumn}.Sanitize(),
		pgx.Identifier{table}.Sanitize(),
	)
	return &SQLLookup{db: db, query: q}
}

func (l *SQLLookup) OwnerOf(ctx context.Context, resourceID int64) (int64, error) {
	const op = "ownership.SQLLookup.OwnerOf"

	var owner int64
	if err := l.db.QueryRowContext(ctx, l.query, resourceID).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return owner, nil
}
