package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weathermate/server/internal/auth"
	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/event"
	"github.com/weathermate/server/internal/mailer"
	"github.com/weathermate/server/internal/oauth"
	"github.com/weathermate/server/internal/repository"
	apperrors "github.com/weathermate/server/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// Single-use token parameters.
const (
	verifyTokenTTL  = 30 * time.Minute
	resetTokenTTL   = 30 * time.Minute
	emailTokenBytes = 32
	sessionIDBytes  = 16
	oauthStateBytes = 16
)

// GoogleIdentityProvider is the OAuth surface the orchestrator needs.
// *oauth.GoogleProvider implements it; tests substitute a fake.
type GoogleIdentityProvider interface {
	Configured() bool
	AuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth.Identity, error)
}

// ClientInfo carries request metadata recorded on new sessions for auditing.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// LoginInput holds the parameters for password login.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is the outcome of any flow that issues a session: the user, a
// short-lived access token, and the raw refresh token the handler turns into
// a cookie.
type AuthResult struct {
	User          *domain.User
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
}

// AuthService implements the auth flow state machine: registration, login,
// refresh rotation with reuse detection, logout, email verification,
// password reset, and Google sign-in.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *auth.TokenManager
	google   GoogleIdentityProvider
	mail     mailer.Mailer
	producer *event.Producer
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenManager,
	google GoogleIdentityProvider,
	mail mailer.Mailer,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		google:   google,
		mail:     mail,
		producer: producer,
		logger:   logger,
	}
}

// NormalizeEmail lowercases and trims an email address. All storage and
// lookups go through this, making the unique index case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Registration and login ---

// Register creates an account, dispatches a verification email best-effort,
// and issues a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, client ClientInfo) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verifyToken, err := auth.RandomToken(emailTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	verifyExpiry := time.Now().UTC().Add(verifyTokenTTL)

	now := time.Now().UTC()
	user := &domain.User{
		ID:                   uuid.New().String(),
		Username:             strings.TrimSpace(input.Username),
		Email:                email,
		Phone:                strings.TrimSpace(input.Phone),
		PasswordHash:         hash,
		Role:                 domain.RoleUser,
		EmailVerified:        false,
		Preferences:          domain.DefaultPreferences(),
		VerifyTokenHash:      auth.HashToken(verifyToken),
		VerifyTokenExpiresAt: &verifyExpiry,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// Email delivery is best-effort at registration; the account is
	// created either way and the user can request a resend.
	if err := s.mail.SendVerifyEmail(ctx, user.Email, verifyToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)

	return s.issueSession(ctx, user, client)
}

// Login authenticates with email and password and issues a session.
// The error is identical for an unknown email, a password-less Google-only
// account, and a wrong password.
func (s *AuthService) Login(ctx context.Context, input LoginInput, client ClientInfo) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidCredentials()
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	if !user.HasPassword() || !auth.VerifyPassword(user.PasswordHash, input.Password) {
		return nil, apperrors.InvalidCredentials()
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return s.issueSession(ctx, user, client)
}

// issueSession creates a session row and signs the token pair.
func (s *AuthService) issueSession(ctx context.Context, user *domain.User, client ClientInfo) (*AuthResult, error) {
	sessionID, err := auth.RandomToken(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	refreshToken, err := s.tokens.SignRefresh(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiry := now.Add(s.tokens.RefreshTTL())

	session := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		SessionID:        sessionID,
		RefreshTokenHash: auth.HashToken(refreshToken),
		CreatedIP:        client.IP,
		CreatedUserAgent: client.UserAgent,
		ExpiresAt:        expiry,
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	accessToken, err := s.tokens.SignAccess(user.ID, string(user.Role), sessionID, user.EmailVerified)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		RefreshExpiry: expiry,
	}, nil
}

// --- Refresh rotation ---

// Refresh exchanges a valid refresh token for a new token pair, rotating the
// stored hash in place. Presenting a token that was already rotated past is
// treated as theft: the whole session is revoked.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*AuthResult, error) {
	if rawRefresh == "" {
		return nil, apperrors.NotAuthenticated("missing refresh token")
	}

	claims, err := s.tokens.VerifyRefresh(rawRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.TokenExpired("refresh token expired")
		}
		return nil, apperrors.TokenInvalid("refresh token invalid")
	}

	session, err := s.sessions.FindActive(ctx, claims.Subject, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.SessionRevoked()
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	now := time.Now().UTC()
	if !session.Active(now) {
		return nil, apperrors.SessionRevoked()
	}

	newRefresh, err := s.tokens.SignRefresh(claims.Subject, claims.SessionID)
	if err != nil {
		return nil, err
	}
	newExpiry := now.Add(s.tokens.RefreshTTL())

	// The conditional update is the serialization point: it only succeeds
	// when the presented token's hash is still the stored one. A miss
	// means this token was already rotated past, i.e. reuse.
	rotated, err := s.sessions.Rotate(ctx, claims.SessionID, auth.HashToken(rawRefresh), auth.HashToken(newRefresh), newExpiry)
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	if !rotated {
		s.revokeSession(ctx, claims.Subject, claims.SessionID, domain.RevokeReasonRefreshReuse)
		s.logger.WarnContext(ctx, "refresh token reuse detected, session revoked",
			slog.String("user_id", claims.Subject),
			slog.String("session_id", claims.SessionID),
		)
		return nil, apperrors.SessionRevoked()
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotAuthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("get user for refresh: %w", err)
	}

	accessToken, err := s.tokens.SignAccess(user.ID, string(user.Role), claims.SessionID, user.EmailVerified)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  newRefresh,
		RefreshExpiry: newExpiry,
	}, nil
}

// --- Logout ---

// Logout revokes the caller's own session. It always succeeds: an unknown
// or already-revoked session still results in the handler clearing the
// refresh cookie.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) {
	if userID == "" || sessionID == "" {
		return
	}

	s.revokeSession(ctx, userID, sessionID, domain.RevokeReasonLogout)
}

// LogoutAll revokes every session of the user and returns how many were
// still active.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.RevokeAllForUser(ctx, userID, domain.RevokeReasonLogoutAll)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	s.publishSessionRevoked(ctx, userID, "", domain.RevokeReasonLogoutAll)
	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("count", n),
	)

	return n, nil
}

// --- Email verification ---

// RequestVerifyEmail issues a fresh single-use verification token,
// overwriting any prior one, and sends it. Unlike registration, a transport
// failure here is surfaced to the caller.
func (s *AuthService) RequestVerifyEmail(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UserNotFound()
		}
		return fmt.Errorf("get user: %w", err)
	}

	if user.EmailVerified {
		return apperrors.Validation("email is already verified")
	}

	token, err := auth.RandomToken(emailTokenBytes)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	expiry := time.Now().UTC().Add(verifyTokenTTL)

	user.VerifyTokenHash = auth.HashToken(token)
	user.VerifyTokenExpiresAt = &expiry
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	if err := s.mail.SendVerifyEmail(ctx, user.Email, token); err != nil {
		return err
	}

	return nil
}

// ConfirmVerifyEmail consumes a verification token and marks the account
// verified. The token fields are cleared so the token cannot be replayed.
func (s *AuthService) ConfirmVerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	now := time.Now().UTC()
	user, err := s.users.GetByVerifyTokenHash(ctx, auth.HashToken(token), now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenInvalid("verification token invalid or expired")
		}
		return nil, fmt.Errorf("look up verification token: %w", err)
	}

	user.EmailVerified = true
	user.VerifyTokenHash = ""
	user.VerifyTokenExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}

	if err := s.producer.PublishUserVerified(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// --- Password reset ---

// ForgotPassword issues a reset token when the account exists. The caller
// always gets the same success response either way; only a real transport
// failure for an existing account is surfaced.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Do not reveal whether the email exists.
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	token, err := auth.RandomToken(emailTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expiry := time.Now().UTC().Add(resetTokenTTL)

	user.ResetTokenHash = auth.HashToken(token)
	user.ResetTokenExpiresAt = &expiry
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.mail.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset email sent",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword consumes a reset token, replaces the password hash, and
// revokes every standing session for the account.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	now := time.Now().UTC()
	user, err := s.users.GetByResetTokenHash(ctx, auth.HashToken(token), now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.TokenInvalid("reset token invalid or expired")
		}
		return fmt.Errorf("look up reset token: %w", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// A password reset invalidates all standing logins.
	if _, err := s.sessions.RevokeAllForUser(ctx, user.ID, domain.RevokeReasonPasswordReset); err != nil {
		return fmt.Errorf("revoke sessions after password reset: %w", err)
	}

	if err := s.producer.PublishPasswordChanged(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// --- Google sign-in ---

// GoogleStart returns the provider consent URL and the anti-forgery state
// the handler stores in a short-lived cookie.
func (s *AuthService) GoogleStart() (authURL, state string, err error) {
	if !s.google.Configured() {
		return "", "", apperrors.OAuthNotConfigured()
	}

	state, err = auth.RandomToken(oauthStateBytes)
	if err != nil {
		return "", "", fmt.Errorf("generate oauth state: %w", err)
	}

	authURL, err = s.google.AuthURL(state)
	if err != nil {
		return "", "", err
	}

	return authURL, state, nil
}

// GoogleCallback exchanges the authorization code, links or creates the
// account, and issues a session. State validation happens in the handler
// against the state cookie before this is called.
func (s *AuthService) GoogleCallback(ctx context.Context, code string, client ClientInfo) (*AuthResult, error) {
	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrNotConfigured) {
			return nil, apperrors.OAuthNotConfigured()
		}
		return nil, apperrors.OAuthFailed(err)
	}

	email := NormalizeEmail(identity.Email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GoogleID != "" && user.GoogleID != identity.Subject {
			return nil, apperrors.OAuthAccountConflict()
		}
		user.GoogleID = identity.Subject
		user.EmailVerified = true
		if user.Username == "" {
			user.Username = identity.Name
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("link google identity: %w", err)
		}

	case errors.Is(err, apperrors.ErrNotFound):
		now := time.Now().UTC()
		user = &domain.User{
			ID:            uuid.New().String(),
			Username:      identity.Name,
			Email:         email,
			Role:          domain.RoleUser,
			EmailVerified: true,
			GoogleID:      identity.Subject,
			Preferences:   domain.DefaultPreferences(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}

		if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish user.registered event",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}

	default:
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	s.logger.InfoContext(ctx, "google sign-in",
		slog.String("user_id", user.ID),
	)

	return s.issueSession(ctx, user, client)
}

// --- Access gate support ---

// ActiveSession re-reads the session row for an authenticated request. Every
// request pays this lookup so server-side revocation takes effect before the
// access token's own expiry.
func (s *AuthService) ActiveSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.FindActive(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.SessionRevoked()
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	now := time.Now().UTC()
	if !session.Active(now) {
		return nil, apperrors.SessionRevoked()
	}

	if err := s.sessions.TouchLastUsed(ctx, sessionID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to touch session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	return session, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UserNotFound()
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// --- Admin operations ---

// AdminRevokeSession revokes a single session on behalf of an operator.
func (s *AuthService) AdminRevokeSession(ctx context.Context, userID, sessionID, reason string) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	if reason == "" {
		reason = domain.RevokeReasonAdminSession
	}

	found, err := s.sessions.Revoke(ctx, sessionID, reason)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if !found {
		return apperrors.SessionNotFound()
	}

	s.publishSessionRevoked(ctx, userID, sessionID, reason)
	s.logger.InfoContext(ctx, "session revoked by admin",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)

	return nil
}

// AdminRevokeUserSessions revokes every session of a user on behalf of an
// operator and returns how many were still active.
func (s *AuthService) AdminRevokeUserSessions(ctx context.Context, userID, reason string) (int64, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return 0, err
	}

	if reason == "" {
		reason = domain.RevokeReasonAdminUser
	}

	n, err := s.sessions.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	s.publishSessionRevoked(ctx, userID, "", reason)
	s.logger.InfoContext(ctx, "user sessions revoked by admin",
		slog.String("user_id", userID),
		slog.Int64("count", n),
		slog.String("reason", reason),
	)

	return n, nil
}

// ListUserSessions returns a page of a user's sessions with the total count.
func (s *AuthService) ListUserSessions(ctx context.Context, userID string, limit, offset int) ([]domain.Session, int, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, 0, err
	}

	return s.sessions.ListByUser(ctx, userID, limit, offset)
}

// --- Internal helpers ---

func (s *AuthService) revokeSession(ctx context.Context, userID, sessionID, reason string) {
	if _, err := s.sessions.Revoke(ctx, sessionID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.publishSessionRevoked(ctx, userID, sessionID, reason)
}

func (s *AuthService) publishSessionRevoked(ctx context.Context, userID, sessionID, reason string) {
	if err := s.producer.PublishSessionRevoked(ctx, userID, sessionID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish session.revoked event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
