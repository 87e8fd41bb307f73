// Package events notifies other systems about committed card changes.
// Events are published after the transaction commits; losing one never
// affects the stored state.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/models"
)

const (
	Exchange = "bankcards.events"

	RoutingTransferCompleted = "transfer.completed"
	RoutingCardStatusChanged = "card.status_changed"
)

type TransferCompleted struct {
	TransferID    uuid.UUID       `json:"transfer_id"`
	UserID        uuid.UUID       `json:"user_id"`
	FromCardID    uuid.UUID       `json:"from_card_id"`
	ToCardID      uuid.UUID       `json:"to_card_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransferredAt time.Time       `json:"transferred_at"`
}

func NewTransferCompleted(userID uuid.UUID, t models.Transfer) TransferCompleted {
	return TransferCompleted{
		TransferID:    t.ID,
		UserID:        userID,
		FromCardID:    t.FromCardID,
		ToCardID:      t.ToCardID,
		Amount:        t.Amount,
		TransferredAt: t.TransferredAt,
	}
}

type CardStatusChanged struct {
	CardID         uuid.UUID `json:"card_id"`
	UserID         uuid.UUID `json:"user_id"`
	Status         string    `json:"status"`
	BlockRequested bool      `json:"block_requested"`
	ChangedAt      time.Time `json:"changed_at"`
}

func NewCardStatusChanged(c models.Card) CardStatusChanged {
	return CardStatusChanged{
		CardID:         c.ID,
		UserID:         c.UserID,
		Status:         c.Status,
		BlockRequested: c.BlockRequested,
		ChangedAt:      time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Noop publisher is used when no broker is configured
type Noop struct {
	Logger logger.Logger
}

func (p Noop) Publish(_ context.Context, routingKey string, _ any) error {
	if p.Logger != nil {
		p.Logger.Debug("event publish skipped, no broker configured", "routing_key", routingKey)
	}
	return nil
}

func (p Noop) Close() error { return nil }
