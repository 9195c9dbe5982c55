// Package tokenstore persists player auth records keyed by game id, plus one
// cross-game shared token. Absence is never an error: lookups return a nil
// record or an empty token instead.
package tokenstore

import (
	"context"
	"time"
)

// Record is one persisted auth record. A zero ExpiresAt means the token does
// not expire.
type Record struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Store is the persistence contract required by the auth manager.
type Store interface {
	// Load returns the record for gameID, or (nil, nil) when absent.
	Load(ctx context.Context, gameID string) (*Record, error)
	// Save creates or overwrites the record for gameID.
	Save(ctx context.Context, gameID string, rec Record) error
	// Clear removes the record for gameID. Clearing an absent record is not
	// an error.
	Clear(ctx context.Context, gameID string) error
	// LoadShared returns the cross-game token, or "" when absent.
	LoadShared(ctx context.Context) (string, error)
	// SaveShared sets the cross-game token.
	SaveShared(ctx context.Context, token string) error
	// ClearAll removes every record and the shared token.
	ClearAll(ctx context.Context) error
}
