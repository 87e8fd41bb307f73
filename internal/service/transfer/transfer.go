package transfer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/events"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/metrics"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/repository"
)

type TransferService struct {
	storage   repository.Storage
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger

	now func() time.Time
}

func NewService(storage repository.Storage, publisher events.Publisher, metrics *metrics.Metrics, logger logger.Logger) *TransferService {
	return &TransferService{
		storage:   storage,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Transfer moves amount between two ACTIVE cards of the same owner.
// Either both balances change and one transfer row is appended, or nothing changes.
func (s *TransferService) Transfer(
	ctx context.Context,
	ownerID uuid.UUID,
	fromCardID uuid.UUID,
	toCardID uuid.UUID,
	amount decimal.Decimal,
) (transfer models.Transfer, err error) {
	defer func() { s.metrics.ObserveTransfer(amount, err) }()

	if !models.IsValidAmount(amount) {
		return models.Transfer{}, fmt.Errorf("transfer amount %s must be positive whole cents: %w", amount, apperrors.ErrInvalidArgument)
	}
	if fromCardID == toCardID {
		return models.Transfer{}, fmt.Errorf("source and destination card are the same: %w", apperrors.ErrInvalidArgument)
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		from, to, err := lockPair(ctx, st.Card(), fromCardID, toCardID)
		if err != nil {
			return err
		}

		if from.UserID != ownerID || to.UserID != ownerID {
			return fmt.Errorf("cards do not belong to user %s: %w", ownerID, apperrors.ErrForbidden)
		}
		for _, c := range []models.Card{from, to} {
			if !c.IsActive() {
				return fmt.Errorf("card %s is %s: %w", c.ID, c.Status, apperrors.ErrInvalidState)
			}
		}
		if from.Balance.LessThan(amount) {
			return fmt.Errorf("card %s balance is below %s: %w", from.ID, amount, apperrors.ErrInsufficientFunds)
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		if _, err := st.Card().UpdateCard(ctx, from); err != nil {
			return err
		}
		if _, err := st.Card().UpdateCard(ctx, to); err != nil {
			return err
		}

		transfer, err = st.Transfer().CreateTransfer(ctx, models.Transfer{
			FromCardID:    from.ID,
			ToCardID:      to.ID,
			Amount:        amount,
			TransferredAt: s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return models.Transfer{}, err
	}

	s.logger.Info("Transfer completed", "transfer_id", transfer.ID, "user_id", ownerID)
	if err := s.publisher.Publish(ctx, events.RoutingTransferCompleted, events.NewTransferCompleted(ownerID, transfer)); err != nil {
		s.logger.Error("Failed to publish transfer event", "transfer_id", transfer.ID, "error", err)
	}

	return transfer, nil
}

// lockPair locks both cards in ascending id order whatever the transfer direction is,
// so two opposite transfers never wait for each other in a cycle
func lockPair(ctx context.Context, cards repository.CardRepo, fromID uuid.UUID, toID uuid.UUID) (models.Card, models.Card, error) {
	firstID, secondID := fromID, toID
	if bytes.Compare(fromID[:], toID[:]) > 0 {
		firstID, secondID = toID, fromID
	}

	first, err := cards.GetCard(ctx, firstID, true)
	if err != nil {
		return models.Card{}, models.Card{}, err
	}
	second, err := cards.GetCard(ctx, secondID, true)
	if err != nil {
		return models.Card{}, models.Card{}, err
	}

	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

// ListByOwner returns transfers touching any card of the owner, most recent first
func (s *TransferService) ListByOwner(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error) {
	return s.storage.Transfer().ListByUser(ctx, ownerID, page)
}

// ListByCard returns transfers where the card is source or destination, most recent first
func (s *TransferService) ListByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error) {
	return s.storage.Transfer().ListByCard(ctx, cardID, page)
}
