package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/cardcodec"
	"github.com/nkiryanov/bankcards/internal/events"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/metrics"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/repository"
)

const (
	// How many numbers are tried before card creation gives up
	createAttempts = 5

	validYears = 3
)

type codec interface {
	Generate() (string, error)
	Encode(plain string) (string, error)
	Decode(encoded string) (string, error)
}

type CardService struct {
	storage   repository.Storage
	codec     codec
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger

	now func() time.Time
}

func NewService(
	storage repository.Storage,
	codec codec,
	publisher events.Publisher,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *CardService {
	return &CardService{
		storage:   storage,
		codec:     codec,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ExpiryDate is the last day of the month three years after created
func ExpiryDate(created time.Time) time.Time {
	y, m, _ := created.Date()
	return time.Date(y+validYears, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// Create issues ACTIVE card with zero balance for the owner
func (s *CardService) Create(ctx context.Context, ownerID uuid.UUID) (models.Card, error) {
	if _, err := s.storage.User().GetUserByID(ctx, ownerID); err != nil {
		return models.Card{}, err
	}

	for range createAttempts {
		number, err := s.freeNumber(ctx)
		if err != nil {
			return models.Card{}, err
		}

		var card models.Card

		// Savepoint keeps outer transaction usable after unique violation
		err = s.storage.InTx(ctx, func(st repository.Storage) error {
			var err error
			card, err = st.Card().CreateCard(ctx, models.Card{
				Number:     number,
				UserID:     ownerID,
				Status:     models.CardStatusActive,
				Balance:    decimal.Zero,
				ExpiryDate: ExpiryDate(s.now().UTC()),
			})
			return err
		})

		switch {
		case errors.Is(err, apperrors.ErrCardNumberTaken):
			s.logger.Warn("Card number collision, retrying", "user_id", ownerID)
			continue
		case err != nil:
			return models.Card{}, err
		}

		s.metrics.CardCreated()
		s.logger.Info("Card created", "card_id", card.ID, "user_id", ownerID)
		return card, nil
	}

	return models.Card{}, fmt.Errorf("no free card number after %d attempts: %w", createAttempts, apperrors.ErrCardNumberTaken)
}

// freeNumber returns encoded number no stored card uses yet
func (s *CardService) freeNumber(ctx context.Context) (string, error) {
	for range createAttempts {
		plain, err := s.codec.Generate()
		if err != nil {
			return "", err
		}
		encoded, err := s.codec.Encode(plain)
		if err != nil {
			return "", err
		}

		exists, err := s.storage.Card().ExistsByNumber(ctx, encoded)
		if err != nil {
			return "", err
		}
		if !exists {
			return encoded, nil
		}
	}

	return "", fmt.Errorf("no free card number after %d attempts: %w", createAttempts, apperrors.ErrCardNumberTaken)
}

// RequestBlock marks owner's ACTIVE card as waiting for block approval
func (s *CardService) RequestBlock(ctx context.Context, ownerID uuid.UUID, cardID uuid.UUID) (models.Card, error) {
	var card models.Card

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		card, err = st.Card().GetUserCard(ctx, cardID, ownerID, true)
		if err != nil {
			return err
		}

		if !card.IsActive() {
			return fmt.Errorf("card %s is %s: %w", card.ID, card.Status, apperrors.ErrInvalidState)
		}

		card.BlockRequested = true
		card, err = st.Card().UpdateCard(ctx, card)
		return err
	})
	if err != nil {
		return models.Card{}, err
	}

	s.logger.Info("Card block requested", "card_id", card.ID, "user_id", ownerID)
	s.publish(ctx, events.RoutingCardStatusChanged, events.NewCardStatusChanged(card))

	return card, nil
}

// ApproveBlock blocks card with pending block request
func (s *CardService) ApproveBlock(ctx context.Context, cardID uuid.UUID) (models.Card, error) {
	var card models.Card

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		card, err = st.Card().GetCard(ctx, cardID, true)
		if err != nil {
			return err
		}

		if !card.BlockRequested {
			return fmt.Errorf("card %s has no block request: %w", card.ID, apperrors.ErrInvalidState)
		}

		card.Status = models.CardStatusBlocked
		card.BlockRequested = false
		card, err = st.Card().UpdateCard(ctx, card)
		return err
	})
	if err != nil {
		return models.Card{}, err
	}

	s.logger.Info("Card blocked", "card_id", card.ID)
	s.publish(ctx, events.RoutingCardStatusChanged, events.NewCardStatusChanged(card))

	return card, nil
}

// Deposit adds positive amount of whole cents to owner's ACTIVE card
func (s *CardService) Deposit(ctx context.Context, ownerID uuid.UUID, cardID uuid.UUID, amount decimal.Decimal) (card models.Card, err error) {
	defer func() { s.metrics.ObserveDeposit(err) }()

	if !models.IsValidAmount(amount) {
		return models.Card{}, fmt.Errorf("deposit amount %s must be positive whole cents: %w", amount, apperrors.ErrInvalidArgument)
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		card, err = st.Card().GetUserCard(ctx, cardID, ownerID, true)
		if err != nil {
			return err
		}

		if !card.IsActive() {
			return fmt.Errorf("card %s is %s: %w", card.ID, card.Status, apperrors.ErrInvalidState)
		}

		card.Balance = card.Balance.Add(amount)
		card, err = st.Card().UpdateCard(ctx, card)
		return err
	})
	if err != nil {
		return models.Card{}, err
	}

	return card, nil
}

// SweepExpired switches every ACTIVE card with expiry date before today to EXPIRED.
// Running it again for the same day changes nothing.
func (s *CardService) SweepExpired(ctx context.Context, today time.Time) (int, error) {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	expired, err := s.storage.Card().ExpireCards(ctx, day)
	if err != nil {
		return 0, err
	}

	s.metrics.CardsExpired(len(expired))
	for _, card := range expired {
		s.publish(ctx, events.RoutingCardStatusChanged, events.NewCardStatusChanged(card))
	}

	return len(expired), nil
}

// MaskedNumber decodes stored number and hides all but last four digits
func (s *CardService) MaskedNumber(card models.Card) (string, error) {
	plain, err := s.codec.Decode(card.Number)
	if err != nil {
		return "", err
	}

	return cardcodec.Mask(plain), nil
}

func (s *CardService) GetUserCard(ctx context.Context, ownerID uuid.UUID, cardID uuid.UUID) (models.Card, error) {
	return s.storage.Card().GetUserCard(ctx, cardID, ownerID, false)
}

func (s *CardService) ListUserCards(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	return s.storage.Card().ListCards(ctx, repository.ListCardsOpts{UserID: &ownerID, Page: page})
}

// GetCard returns any user's card
func (s *CardService) GetCard(ctx context.Context, cardID uuid.UUID) (models.Card, error) {
	return s.storage.Card().GetCard(ctx, cardID, false)
}

// ListCards lists cards of all users, optionally filtered by owner and status
func (s *CardService) ListCards(ctx context.Context, ownerID *uuid.UUID, status string, page models.PageRequest) (models.Page[models.Card], error) {
	return s.storage.Card().ListCards(ctx, repository.ListCardsOpts{UserID: ownerID, Status: status, Page: page})
}

// DeleteCard removes card never used in transfers
func (s *CardService) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		return st.Card().DeleteCard(ctx, cardID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Card deleted", "card_id", cardID)
	return nil
}

func (s *CardService) publish(ctx context.Context, routingKey string, event any) {
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.logger.Error("Failed to publish event", "routing_key", routingKey, "error", err)
	}
}
