package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/weathermate/server/internal/domain"
	apperrors "github.com/weathermate/server/pkg/errors"
)

const sessionColumns = `id, user_id, session_id, refresh_token_hash, created_ip, created_user_agent,
	last_used_at, revoked_at, revoked_reason, expires_at, created_at`

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, session_id, refresh_token_hash, created_ip, created_user_agent,
			last_used_at, revoked_at, revoked_reason, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.SessionID,
		s.RefreshTokenHash,
		s.CreatedIP,
		s.CreatedUserAgent,
		s.LastUsedAt,
		s.RevokedAt,
		s.RevokedReason,
		s.ExpiresAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// FindActive returns the unrevoked session identified by (userID, sessionID).
func (r *SessionRepository) FindActive(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE user_id = $1 AND session_id = $2 AND revoked_at IS NULL`

	return r.scanSession(r.db.QueryRow(ctx, query, userID, sessionID))
}

// Rotate swaps the stored refresh token hash in one conditional update. The
// WHERE clause pins the previous hash, so of two concurrent rotations with
// the same token exactly one can win; the loser sees zero rows affected.
func (r *SessionRepository) Rotate(ctx context.Context, sessionID, oldHash, newHash string, newExpiry time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET refresh_token_hash = $1, expires_at = $2, last_used_at = $3
		WHERE session_id = $4 AND refresh_token_hash = $5 AND revoked_at IS NULL`

	now := time.Now().UTC()
	ct, err := r.db.Exec(ctx, query, newHash, newExpiry, now, sessionID, oldHash)
	if err != nil {
		return false, fmt.Errorf("rotate session: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// Revoke marks a session revoked. COALESCE keeps the first revocation's
// timestamp and reason, making repeated revocations harmless.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	query := `
		UPDATE sessions
		SET revoked_at = COALESCE(revoked_at, $1), revoked_reason = COALESCE(NULLIF(revoked_reason, ''), $2)
		WHERE session_id = $3`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), reason, sessionID)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// RevokeAllForUser revokes every active session of the user.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	query := `
		UPDATE sessions
		SET revoked_at = $1, revoked_reason = $2
		WHERE user_id = $3 AND revoked_at IS NULL`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), reason, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for user: %w", err)
	}

	return ct.RowsAffected(), nil
}

// TouchLastUsed records that the session authenticated a request.
func (r *SessionRepository) TouchLastUsed(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET last_used_at = $1 WHERE session_id = $2`

	if _, err := r.db.Exec(ctx, query, at, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return nil
}

// ListByUser returns a page of the user's sessions, newest first, with the
// total count.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Session, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.SessionID,
			&s.RefreshTokenHash,
			&s.CreatedIP,
			&s.CreatedUserAgent,
			&s.LastUsedAt,
			&s.RevokedAt,
			&s.RevokedReason,
			&s.ExpiresAt,
			&s.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate session rows: %w", err)
	}

	if sessions == nil {
		sessions = []domain.Session{}
	}

	return sessions, total, nil
}

// DeleteExpired removes sessions whose expiry is before the given time.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return ct.RowsAffected(), nil
}

func (r *SessionRepository) scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.SessionID,
		&s.RefreshTokenHash,
		&s.CreatedIP,
		&s.CreatedUserAgent,
		&s.LastUsedAt,
		&s.RevokedAt,
		&s.RevokedReason,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &s, nil
}
