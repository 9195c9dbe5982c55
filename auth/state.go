package auth

import "time"

// TokenType identifies how the current credential was obtained.
type TokenType string

const (
	// TokenTypeDeveloper is a statically configured credential that bypasses
	// interactive login. Developer tokens never expire and are never persisted.
	TokenTypeDeveloper TokenType = "developer"
	// TokenTypePlayer is the credential used against protected backend endpoints.
	TokenTypePlayer TokenType = "player"
)

// AuthState is the orchestrator's view of the current credential. Token is
// non-empty iff IsAuthenticated is true. A zero ExpiresAt means the token does
// not expire (developer tokens).
type AuthState struct {
	IsAuthenticated bool
	Token           string
	TokenType       TokenType
	ExpiresAt       time.Time
}

// Expired reports whether the state carries an expiry that has passed.
func (s AuthState) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
