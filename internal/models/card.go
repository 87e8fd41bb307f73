package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CardStatusActive  = "ACTIVE"
	CardStatusBlocked = "BLOCKED"
	CardStatusExpired = "EXPIRED"
)

type Card struct {
	ID uuid.UUID

	// Encoded card number, never the clear one
	Number string

	UserID         uuid.UUID
	Status         string
	Balance        decimal.Decimal
	ExpiryDate     time.Time
	BlockRequested bool
	CreatedAt      time.Time
}

func (c Card) IsActive() bool {
	return c.Status == CardStatusActive
}
