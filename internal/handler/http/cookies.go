package http

import (
	"net/http"
	"time"
)

// Cookie names. The refresh and state cookies are path-scoped so they only
// travel to the single endpoint that consumes them.
const (
	cookieRefresh    = "wm_refresh"
	cookieCSRF       = "wm_csrf"
	cookieOAuthState = "wm_oauth_state"

	refreshCookiePath  = "/api/auth/refresh"
	callbackCookiePath = "/api/auth/google/callback"
)

// Cookies centralizes cookie attributes. Secure is on outside development;
// SameSite is always Lax.
type Cookies struct {
	Secure     bool
	RefreshTTL time.Duration
	CSRFTTL    time.Duration
	StateTTL   time.Duration
}

func (c Cookies) SetRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieRefresh,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(c.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) ClearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieRefresh,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetCSRF sets the double-submit cookie. It is deliberately readable by
// JavaScript so the frontend can echo it in the X-CSRF-Token header.
func (c Cookies) SetCSRF(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieCSRF,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.CSRFTTL.Seconds()),
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) SetOAuthState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieOAuthState,
		Value:    state,
		Path:     callbackCookiePath,
		MaxAge:   int(c.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) ClearOAuthState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieOAuthState,
		Value:    "",
		Path:     callbackCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
