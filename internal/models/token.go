package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the stored half of a session. It can be exchanged once.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time

	// Set on first exchange
	UsedAt *time.Time
}

// Expired reports whether token can't be exchanged at the moment
func (t RefreshToken) Expired(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// IssuedToken is a token value handed to the cardholder or operator
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair is what login, registration and refresh return
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
