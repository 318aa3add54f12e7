package auth

import "crypto/subtle"

// csrfTokenBytes is the entropy of a CSRF token before hex encoding.
const csrfTokenBytes = 24

// NewCSRFToken generates a random double-submit CSRF token.
func NewCSRFToken() (string, error) {
	return RandomToken(csrfTokenBytes)
}

// ValidCSRFToken compares the cookie and header copies of the double-submit
// token in constant time.
func ValidCSRFToken(cookieValue, headerValue string) bool {
	if cookieValue == "" || headerValue == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) == 1
}
