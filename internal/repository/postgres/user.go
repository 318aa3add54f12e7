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

const userColumns = `id, username, email, password_hash, phone, role, email_verified, google_id,
	default_city, default_lat, default_lon, default_polling_minutes,
	verify_token_hash, verify_token_expires_at, reset_token_hash, reset_token_expires_at,
	created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, phone, role, email_verified, google_id,
			default_city, default_lat, default_lon, default_polling_minutes,
			verify_token_hash, verify_token_expires_at, reset_token_hash, reset_token_expires_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.Role,
		u.EmailVerified,
		u.GoogleID,
		u.Preferences.DefaultCity,
		u.Preferences.DefaultLat,
		u.Preferences.DefaultLon,
		u.Preferences.DefaultPollingMinutes,
		u.VerifyTokenHash,
		u.VerifyTokenExpiresAt,
		u.ResetTokenHash,
		u.ResetTokenExpiresAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// The google_id index can fire too when an OAuth sign-in
			// races a second create for the same subject.
			if uniqueConstraintIs(err, constraintUsersGoogleID) {
				return apperrors.OAuthAccountConflict()
			}
			return apperrors.EmailExists()
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by their normalized email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

// GetByVerifyTokenHash retrieves the user holding an unexpired email
// verification token with the given hash.
func (r *UserRepository) GetByVerifyTokenHash(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE verify_token_hash = $1 AND verify_token_expires_at > $2`
	return r.scanUser(ctx, query, tokenHash, now)
}

// GetByResetTokenHash retrieves the user holding an unexpired password reset
// token with the given hash.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2`
	return r.scanUser(ctx, query, tokenHash, now)
}

// Update modifies an existing user in the database.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET username = $1, email = $2, password_hash = $3, phone = $4, role = $5,
		    email_verified = $6, google_id = $7,
		    default_city = $8, default_lat = $9, default_lon = $10, default_polling_minutes = $11,
		    verify_token_hash = $12, verify_token_expires_at = $13,
		    reset_token_hash = $14, reset_token_expires_at = $15,
		    updated_at = $16
		WHERE id = $17`

	ct, err := r.db.Exec(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.Role,
		u.EmailVerified,
		u.GoogleID,
		u.Preferences.DefaultCity,
		u.Preferences.DefaultLat,
		u.Preferences.DefaultLon,
		u.Preferences.DefaultPollingMinutes,
		u.VerifyTokenHash,
		u.VerifyTokenExpiresAt,
		u.ResetTokenHash,
		u.ResetTokenExpiresAt,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if uniqueConstraintIs(err, constraintUsersGoogleID) {
				return apperrors.OAuthAccountConflict()
			}
			return apperrors.EmailExists()
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.UserNotFound()
	}

	return nil
}

// scanUser is a helper that executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.Role,
		&u.EmailVerified,
		&u.GoogleID,
		&u.Preferences.DefaultCity,
		&u.Preferences.DefaultLat,
		&u.Preferences.DefaultLon,
		&u.Preferences.DefaultPollingMinutes,
		&u.VerifyTokenHash,
		&u.VerifyTokenExpiresAt,
		&u.ResetTokenHash,
		&u.ResetTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}
