package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is an immutable ledger entry
type Transfer struct {
	ID            uuid.UUID
	FromCardID    uuid.UUID
	ToCardID      uuid.UUID
	Amount        decimal.Decimal
	TransferredAt time.Time
}
