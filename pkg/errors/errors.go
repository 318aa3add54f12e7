package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidation       = errors.New("validation error")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrInternal         = errors.New("internal error")
)

// AppError is a typed application error carrying a stable machine-readable
// code and an HTTP status mapping. The boundary layer renders it as the
// uniform {code, message, details?} envelope.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with field-level details attached.
func (e *AppError) WithDetails(details any) *AppError {
	cpy := *e
	cpy.Details = details
	return &cpy
}

// Validation creates a 400 VALIDATION_ERROR.
func Validation(message string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: message, Status: http.StatusBadRequest, Err: ErrValidation}
}

// EmailExists creates a 409 EMAIL_EXISTS.
func EmailExists() *AppError {
	return &AppError{Code: "EMAIL_EXISTS", Message: "email already registered", Status: http.StatusConflict, Err: ErrConflict}
}

// InvalidCredentials creates a 401 INVALID_CREDENTIALS. The message is
// deliberately identical for unknown emails and wrong passwords.
func InvalidCredentials() *AppError {
	return &AppError{Code: "INVALID_CREDENTIALS", Message: "invalid credentials", Status: http.StatusUnauthorized, Err: ErrNotAuthenticated}
}

// NotAuthenticated creates a 401 NOT_AUTHENTICATED.
func NotAuthenticated(message string) *AppError {
	return &AppError{Code: "NOT_AUTHENTICATED", Message: message, Status: http.StatusUnauthorized, Err: ErrNotAuthenticated}
}

// TokenInvalid creates a 401 TOKEN_INVALID.
func TokenInvalid(message string) *AppError {
	return &AppError{Code: "TOKEN_INVALID", Message: message, Status: http.StatusUnauthorized, Err: ErrNotAuthenticated}
}

// TokenExpired creates a 401 TOKEN_EXPIRED.
func TokenExpired(message string) *AppError {
	return &AppError{Code: "TOKEN_EXPIRED", Message: message, Status: http.StatusUnauthorized, Err: ErrNotAuthenticated}
}

// SessionRevoked creates a 401 SESSION_REVOKED. Covers the reuse-detection case.
func SessionRevoked() *AppError {
	return &AppError{Code: "SESSION_REVOKED", Message: "session has been revoked", Status: http.StatusUnauthorized, Err: ErrNotAuthenticated}
}

// Forbidden creates a 403 FORBIDDEN.
func Forbidden() *AppError {
	return &AppError{Code: "FORBIDDEN", Message: "forbidden", Status: http.StatusForbidden, Err: ErrForbidden}
}

// EmailNotVerified creates a 403 EMAIL_NOT_VERIFIED.
func EmailNotVerified() *AppError {
	return &AppError{Code: "EMAIL_NOT_VERIFIED", Message: "email not verified", Status: http.StatusForbidden, Err: ErrForbidden}
}

// CSRFFailed creates a 403 CSRF_FAILED.
func CSRFFailed() *AppError {
	return &AppError{Code: "CSRF_FAILED", Message: "CSRF validation failed", Status: http.StatusForbidden, Err: ErrForbidden}
}

// OAuthStateInvalid creates a 400 OAUTH_STATE_INVALID.
func OAuthStateInvalid() *AppError {
	return &AppError{Code: "OAUTH_STATE_INVALID", Message: "OAuth state mismatch", Status: http.StatusBadRequest, Err: ErrValidation}
}

// OAuthFailed creates a 400 OAUTH_FAILED.
func OAuthFailed(err error) *AppError {
	return &AppError{Code: "OAUTH_FAILED", Message: "OAuth sign-in failed", Status: http.StatusBadRequest, Err: err}
}

// OAuthAccountConflict creates a 409 OAUTH_ACCOUNT_CONFLICT.
func OAuthAccountConflict() *AppError {
	return &AppError{Code: "OAUTH_ACCOUNT_CONFLICT", Message: "account already linked to a different Google identity", Status: http.StatusConflict, Err: ErrConflict}
}

// UserNotFound creates a 404 USER_NOT_FOUND.
func UserNotFound() *AppError {
	return &AppError{Code: "USER_NOT_FOUND", Message: "user not found", Status: http.StatusNotFound, Err: ErrNotFound}
}

// SessionNotFound creates a 404 SESSION_NOT_FOUND.
func SessionNotFound() *AppError {
	return &AppError{Code: "SESSION_NOT_FOUND", Message: "session not found", Status: http.StatusNotFound, Err: ErrNotFound}
}

// CityNotFound creates a 404 CITY_NOT_FOUND.
func CityNotFound(query string) *AppError {
	return &AppError{Code: "CITY_NOT_FOUND", Message: fmt.Sprintf("no results for city %q", query), Status: http.StatusNotFound, Err: ErrNotFound}
}

// EmailNotConfigured creates a 500 EMAIL_NOT_CONFIGURED deployment error.
func EmailNotConfigured() *AppError {
	return &AppError{Code: "EMAIL_NOT_CONFIGURED", Message: "email delivery is not configured", Status: http.StatusInternalServerError, Err: ErrInternal}
}

// OAuthNotConfigured creates a 500 OAUTH_NOT_CONFIGURED deployment error.
func OAuthNotConfigured() *AppError {
	return &AppError{Code: "OAUTH_NOT_CONFIGURED", Message: "Google OAuth is not configured", Status: http.StatusInternalServerError, Err: ErrInternal}
}

// Internal creates a 500 SERVER_ERROR wrapping an unexpected error. The
// wrapped error is logged at the boundary, never returned to the client.
func Internal(err error) *AppError {
	return &AppError{Code: "SERVER_ERROR", Message: "an internal error occurred", Status: http.StatusInternalServerError, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
