// Package auth provides authentication for the service: magic-link sign-in,
// JWT session tokens, and optional OIDC federation.
package auth

import (
	"context"
	"time"
)

// Principal is an authenticated user
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// SessionChange is emitted when the authenticated principal changes.
// A nil Principal means the session ended.
type SessionChange struct {
	Principal *Principal
}

// SessionSource exposes the current session and a stream of session changes
type SessionSource interface {
	// Current returns the current principal, or nil when unauthenticated
	Current(ctx context.Context) (*Principal, error)
	// Subscribe returns a channel of session changes and a cancel function
	Subscribe(ctx context.Context) (<-chan SessionChange, func())
}

// User is a registered account
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MagicLink is a single-use sign-in token. Only the SHA-256 hash of the
// token is stored.
type MagicLink struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the link has passed its expiry
func (m *MagicLink) IsExpired() bool {
	return time.Now().After(m.ExpiresAt)
}

// IsUsed reports whether the link has already been consumed
func (m *MagicLink) IsUsed() bool {
	return m.UsedAt != nil
}
