package http

import (
	"log/slog"
	"net/http"

	"github.com/weathermate/server/internal/auth"
	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/service"
	apperrors "github.com/weathermate/server/pkg/errors"
	"github.com/weathermate/server/pkg/validator"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service      *service.AuthService
	tokens       *auth.TokenManager
	cookies      Cookies
	postLoginURL string
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler. postLoginURL is where the
// Google callback redirects after issuing a session.
func NewAuthHandler(svc *service.AuthService, tokens *auth.TokenManager, cookies Cookies, postLoginURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      svc,
		tokens:       tokens,
		cookies:      cookies,
		postLoginURL: postLoginURL,
		logger:       logger,
	}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the JSON request body for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ConfirmVerifyEmailRequest carries the emailed verification token.
type ConfirmVerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ForgotPasswordRequest is the JSON request body for forgot password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the JSON request body for password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// --- Response types ---

// AuthResponse is returned by every session-issuing endpoint. The refresh
// token travels only in the cookie, never in the body.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// --- Handlers ---

// CSRF handles GET /api/auth/csrf: issues the double-submit token as both a
// readable cookie and a body field.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	token, err := auth.NewCSRFToken()
	if err != nil {
		writeError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	h.cookies.SetCSRF(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	}, clientInfo(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookies.SetRefresh(w, result.RefreshToken)
	writeJSON(w, http.StatusCreated, AuthResponse{
		User:        result.User,
		AccessToken: result.AccessToken,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, clientInfo(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookies.SetRefresh(w, result.RefreshToken)
	writeJSON(w, http.StatusOK, AuthResponse{
		User:        result.User,
		AccessToken: result.AccessToken,
	})
}

// Refresh handles POST /api/auth/refresh: reads the refresh cookie, rotates
// it, and sets the replacement. A revoked, reused, or expired token clears
// the cookie; a store failure leaves it so the client can retry.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := cookieValue(r, cookieRefresh)

	result, err := h.service.Refresh(r.Context(), raw)
	if err != nil {
		if apperrors.HTTPStatus(err) == http.StatusUnauthorized {
			h.cookies.ClearRefresh(w)
		}
		writeError(w, r, err, h.logger)
		return
	}

	h.cookies.SetRefresh(w, result.RefreshToken)
	writeJSON(w, http.StatusOK, AuthResponse{
		User:        result.User,
		AccessToken: result.AccessToken,
	})
}

// Logout handles POST /api/auth/logout. The bearer token is read leniently:
// an invalid or stale token still gets a success response and a cleared
// cookie, so logout never fails.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := bearerToken(r); raw != "" {
		if claims, err := h.tokens.VerifyAccess(raw); err == nil {
			h.service.Logout(r.Context(), claims.Subject, claims.SessionID)
		}
	}

	h.cookies.ClearRefresh(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// LogoutAll handles POST /api/auth/logout-all (bearer, via access gate).
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	n, err := h.service.LogoutAll(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookies.ClearRefresh(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "all sessions revoked",
		"revoked_sessions": n,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	user, err := h.service.GetUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// RequestVerifyEmail handles POST /api/auth/verify-email/request
func (h *AuthHandler) RequestVerifyEmail(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	if err := h.service.RequestVerifyEmail(r.Context(), p.UserID); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "verification email sent"})
}

// ConfirmVerifyEmail handles POST /api/auth/verify-email/confirm
func (h *AuthHandler) ConfirmVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req ConfirmVerifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.service.ConfirmVerifyEmail(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// ForgotPassword handles POST /api/auth/password/forgot. The response is the
// same whether or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "if the email exists, a password reset link has been sent"})
}

// ResetPassword handles POST /api/auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "password has been reset successfully"})
}

// GoogleStart handles GET /api/auth/google: stores the anti-forgery state in
// a short-lived cookie and redirects to the consent screen.
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.service.GoogleStart()
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookies.SetOAuthState(w, state)
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /api/auth/google/callback. The returned state
// must byte-equal the state cookie; any mismatch or absence aborts before
// the code exchange. Tokens are never embedded in the redirect URL.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	cookieState := cookieValue(r, cookieOAuthState)
	h.cookies.ClearOAuthState(w)

	if state == "" || cookieState == "" || state != cookieState {
		writeError(w, r, apperrors.OAuthStateInvalid(), h.logger)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, apperrors.OAuthStateInvalid(), h.logger)
		return
	}

	result, err := h.service.GoogleCallback(r.Context(), code, clientInfo(r))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	h.cookies.SetRefresh(w, result.RefreshToken)
	http.Redirect(w, r, h.postLoginURL, http.StatusSeeOther)
}
