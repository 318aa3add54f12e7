// Package repository defines the persistence interfaces consumed by the
// service layer. Implementations live in the postgres subpackage.
package repository

import (
	"context"
	"time"

	"github.com/weathermate/server/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByVerifyTokenHash retrieves a user holding an unexpired email
	// verification token with the given hash.
	GetByVerifyTokenHash(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)

	// GetByResetTokenHash retrieves a user holding an unexpired password
	// reset token with the given hash.
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error
}

// SessionRepository defines the interface for server-side session persistence.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, session *domain.Session) error

	// FindActive returns the unrevoked session identified by (userID,
	// sessionID), or ErrNotFound when no such row exists or it has been
	// revoked. Callers also treat rows past expires_at as inactive.
	FindActive(ctx context.Context, userID, sessionID string) (*domain.Session, error)

	// Rotate atomically swaps the stored refresh token hash in a single
	// conditional update keyed on (sessionID, oldHash, revoked_at IS NULL).
	// It reports false when no row matched, which means the presented
	// token lost a race or has already been rotated.
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, newExpiry time.Time) (bool, error)

	// Revoke marks a session revoked with the given reason. Revoking an
	// already-revoked session succeeds and preserves the original reason.
	// It reports whether the session exists.
	Revoke(ctx context.Context, sessionID, reason string) (bool, error)

	// RevokeAllForUser revokes every active session of the user and
	// returns the number of sessions revoked.
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)

	// TouchLastUsed records that the session authenticated a request.
	TouchLastUsed(ctx context.Context, sessionID string, at time.Time) error

	// ListByUser returns a page of the user's sessions, newest first,
	// together with the total count.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Session, int, error)

	// DeleteExpired removes sessions whose expiry is before the given
	// time and returns the number of rows deleted.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotRepository defines the interface for daily weather snapshot persistence.
type SnapshotRepository interface {
	// Upsert inserts a snapshot, keeping the existing row when one
	// already exists for the same (user, location, date).
	Upsert(ctx context.Context, snapshot *domain.WeatherSnapshot) error

	// ListRange returns the user's snapshots for the given location with
	// dates in [from, to], ordered by date.
	ListRange(ctx context.Context, userID string, lat, lon float64, from, to time.Time) ([]domain.WeatherSnapshot, error)
}
