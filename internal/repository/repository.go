package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bankcards/internal/models"
)

// Storage gives access to all repositories bound to the same connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Card() CardRepo
	Transfer() TransferRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	// Nested calls use savepoints
	InTx(ctx context.Context, fn func(Storage) error) error
}

type UserRepo interface {
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user not found
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Oldest first
	ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error)

	// Has to return apperrors.ErrUserHasCards if the user owns any card
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return token even if it is expired or used already
	Get(ctx context.Context, token string) (models.RefreshToken, error)

	// Return token and mark it used
	// If the token is used already has to return apperrors.ErrRefreshTokenIsUsed and keep original 'usedAt'
	GetAndMarkUsed(ctx context.Context, token string) (models.RefreshToken, error)
}

// ListCardsOpts filters cards list
type ListCardsOpts struct {
	// Only cards of the user if set
	UserID *uuid.UUID

	// Only cards with the status if set
	Status string

	Page models.PageRequest
}

type CardRepo interface {
	// Has to return apperrors.ErrCardNumberTaken if number is used by another card
	CreateCard(ctx context.Context, card models.Card) (models.Card, error)

	// Get card by id, SELECT ... FOR UPDATE if lock is set
	// Has to return apperrors.ErrCardNotFound if card not found
	GetCard(ctx context.Context, cardID uuid.UUID, lock bool) (models.Card, error)

	// Same as GetCard but card has to belong to user, apperrors.ErrCardNotFound otherwise
	GetUserCard(ctx context.Context, cardID uuid.UUID, userID uuid.UUID, lock bool) (models.Card, error)

	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// Save status, balance and block request flag
	UpdateCard(ctx context.Context, card models.Card) (models.Card, error)

	ListCards(ctx context.Context, opts ListCardsOpts) (models.Page[models.Card], error)

	// Switch every ACTIVE card with expiry date before the date to EXPIRED
	// Return switched cards
	ExpireCards(ctx context.Context, before time.Time) ([]models.Card, error)

	// Has to return apperrors.ErrCardHasTransfers if transfers reference the card
	DeleteCard(ctx context.Context, cardID uuid.UUID) error
}

type TransferRepo interface {
	CreateTransfer(ctx context.Context, transfer models.Transfer) (models.Transfer, error)

	// Transfers where source or destination card belongs to user, most recent first
	ListByUser(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error)

	// Transfers where the card is source or destination, most recent first
	ListByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error)
}
