package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/weathermate/server/internal/auth"
	"github.com/weathermate/server/internal/domain"
	"github.com/weathermate/server/internal/service"
	apperrors "github.com/weathermate/server/pkg/errors"
	"github.com/weathermate/server/pkg/httputil"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated identity set by
// Authenticate, or nil on unauthenticated requests.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}

func withPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

// Authenticate is the access gate: it verifies the bearer access token and
// re-checks the backing session on every request, so a server-side
// revocation cuts access before the token's own expiry.
func Authenticate(authService *service.AuthService, tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, r, apperrors.NotAuthenticated("missing bearer token"), nil)
				return
			}

			claims, err := tokens.VerifyAccess(raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					writeError(w, r, apperrors.TokenExpired("access token expired"), nil)
					return
				}
				writeError(w, r, apperrors.TokenInvalid("access token invalid"), nil)
				return
			}

			if _, err := authService.ActiveSession(r.Context(), claims.Subject, claims.SessionID); err != nil {
				writeError(w, r, err, nil)
				return
			}

			user, err := authService.GetUser(r.Context(), claims.Subject)
			if err != nil {
				writeError(w, r, apperrors.NotAuthenticated("account no longer exists"), nil)
				return
			}

			principal := &domain.Principal{
				UserID:        user.ID,
				SessionID:     claims.SessionID,
				Email:         user.Email,
				Role:          user.Role,
				EmailVerified: user.EmailVerified,
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects authenticated requests whose principal lacks the role.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil || p.Role != role {
				writeError(w, r, apperrors.Forbidden(), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerified rejects principals with an unverified email. Admins pass
// regardless so a deployment can always be administered.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			writeError(w, r, apperrors.NotAuthenticated("authentication required"), nil)
			return
		}
		if !p.EmailVerified && p.Role != domain.RoleAdmin {
			writeError(w, r, apperrors.EmailNotVerified(), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF enforces the double-submit check: the X-CSRF-Token header must
// byte-equal the CSRF cookie. Applied to endpoints that act on ambient
// cookies; pure-bearer endpoints do not need it.
func RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie := cookieValue(r, cookieCSRF)
		header := r.Header.Get("X-CSRF-Token")
		if !auth.ValidCSRFToken(cookie, header) {
			writeError(w, r, apperrors.CSRFFailed(), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientInfo extracts the caller's address and user agent for session audit
// fields. The first X-Forwarded-For hop wins when present.
func clientInfo(r *http.Request) service.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}

	return service.ClientInfo{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}

// ContentTypeJSON enforces that requests with a body carry
// Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				writeJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorBody{
					Code:    "UNSUPPORTED_MEDIA_TYPE",
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
	Environment    string
}

// CORS returns a middleware that sets Cross-Origin Resource Sharing headers.
// In development mode (or when AllowedOrigins contains "*"), a wildcard
// origin is used; otherwise the request Origin is validated against the
// list. Credentialed cookie flows require an exact origin echo, never "*".
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowWildcard := cfg.Environment == "development"
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowWildcard = true
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := originSet[origin]; origin != "" && (ok || allowWildcard) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Correlation-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
