package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Unique constraint names from the users migration. Violation mapping keys
// off these.
const (
	constraintUsersEmail    = "idx_users_email"
	constraintUsersGoogleID = "idx_users_google_id"
)

// DB is the subset of pgxpool.Pool the repositories need. pgxmock satisfies
// it too, so repository tests run against a scripted connection.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// uniqueConstraintIs reports whether a unique violation fired on the named
// constraint. pgx carries the name in PgError; scripted test errors carry it
// in the message.
func uniqueConstraintIs(err error, name string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName == name
	}
	return err != nil && strings.Contains(err.Error(), name)
}
