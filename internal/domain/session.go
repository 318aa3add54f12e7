package domain

import (
	"time"
)

// Revocation reasons recorded on sessions.
const (
	RevokeReasonLogout        = "logout"
	RevokeReasonLogoutAll     = "logout_all"
	RevokeReasonPasswordReset = "password_reset"
	RevokeReasonRefreshReuse  = "refresh_reuse_detected"
	RevokeReasonAdminSession  = "admin_revoke_session"
	RevokeReasonAdminUser     = "admin_revoke_all_sessions"
)

// Session is the server-side record of one refresh-token lineage. The store
// keeps only the SHA-256 hash of the most recently issued refresh token;
// presenting a token whose hash does not match means the token was already
// rotated past and the session must be revoked.
type Session struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	SessionID        string     `json:"session_id"`
	RefreshTokenHash string     `json:"-"`
	CreatedIP        string     `json:"created_ip,omitempty"`
	CreatedUserAgent string     `json:"created_user_agent,omitempty"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedReason    string     `json:"revoked_reason,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Active reports whether the session can still authenticate at the given
// instant: not revoked and not past its expiry. Rows past expires_at are
// treated as revoked even before the periodic sweep removes them.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Principal is the authenticated identity attached to a request context by
// the access-gate middleware.
type Principal struct {
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}
