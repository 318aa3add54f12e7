package domain

import (
	"time"
)

// Preferences holds per-user dashboard defaults.
type Preferences struct {
	DefaultCity           string  `json:"default_city"`
	DefaultLat            float64 `json:"default_lat"`
	DefaultLon            float64 `json:"default_lon"`
	DefaultPollingMinutes int     `json:"default_polling_minutes"`
}

// DefaultPreferences returns the preferences assigned to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultCity:           "New York",
		DefaultLat:            40.7128,
		DefaultLon:            -74.006,
		DefaultPollingMinutes: 10,
	}
}

// User represents a registered account. Email is stored lowercase and is
// unique. PasswordHash is empty for accounts created through Google sign-in.
type User struct {
	ID            string      `json:"id"`
	Username      string      `json:"username"`
	Email         string      `json:"email"`
	PasswordHash  string      `json:"-"`
	Phone         string      `json:"phone,omitempty"`
	Role          Role        `json:"role"`
	EmailVerified bool        `json:"email_verified"`
	GoogleID      string      `json:"-"`
	Preferences   Preferences `json:"preferences"`

	// Single-use token hashes with expiries; cleared on consumption.
	VerifyTokenHash      string     `json:"-"`
	VerifyTokenExpiresAt *time.Time `json:"-"`
	ResetTokenHash       string     `json:"-"`
	ResetTokenExpiresAt  *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
