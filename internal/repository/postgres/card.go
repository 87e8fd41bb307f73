package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/repository"
)

type CardRepo struct {
	DB DBTX
}

const cardColumns = `id, number, user_id, status, balance, expiry_date, block_requested, created_at`

const createCard = `-- name: CreateCard
INSERT INTO cards (id, number, user_id, status, balance, expiry_date, block_requested)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + cardColumns

func (r *CardRepo) CreateCard(ctx context.Context, card models.Card) (models.Card, error) {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createCard,
		card.ID, card.Number, card.UserID, card.Status, card.Balance, card.ExpiryDate, card.BlockRequested,
	)
	created, err := pgx.CollectOneRow(rows, rowToCard)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return created, apperrors.ErrCardNumberTaken
			case pgerrcode.ForeignKeyViolation:
				return created, apperrors.ErrUserNotFound
			}
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getCard = `-- name: GetCard
SELECT ` + cardColumns + ` FROM cards
WHERE id = $1
`

func (r *CardRepo) GetCard(ctx context.Context, cardID uuid.UUID, lock bool) (models.Card, error) {
	query := getCard
	if lock {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, cardID)
	return collectCard(rows)
}

const getUserCard = `-- name: GetUserCard
SELECT ` + cardColumns + ` FROM cards
WHERE id = $1 AND user_id = $2
`

func (r *CardRepo) GetUserCard(ctx context.Context, cardID uuid.UUID, userID uuid.UUID, lock bool) (models.Card, error) {
	query := getUserCard
	if lock {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, cardID, userID)
	return collectCard(rows)
}

const existsByNumber = `-- name: ExistsByNumber
SELECT EXISTS (SELECT 1 FROM cards WHERE number = $1)
`

func (r *CardRepo) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, existsByNumber, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const updateCard = `-- name: UpdateCard
UPDATE cards
SET status = $2, balance = $3, block_requested = $4
WHERE id = $1
RETURNING ` + cardColumns

func (r *CardRepo) UpdateCard(ctx context.Context, card models.Card) (models.Card, error) {
	rows, _ := r.DB.Query(ctx, updateCard, card.ID, card.Status, card.Balance, card.BlockRequested)
	updated, err := collectCard(rows)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return updated, fmt.Errorf("card %s violates %s: %w", card.ID, pgErr.ConstraintName, apperrors.ErrInvalidState)
	}

	return updated, err
}

const listCards = `-- name: ListCards
SELECT ` + cardColumns + `, COUNT(*) OVER() FROM cards
WHERE ($1::uuid IS NULL OR user_id = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4
`

const countCards = `-- name: CountCards
SELECT COUNT(*) FROM cards
WHERE ($1::uuid IS NULL OR user_id = $1)
  AND ($2 = '' OR status = $2)
`

func (r *CardRepo) ListCards(ctx context.Context, opts repository.ListCardsOpts) (models.Page[models.Card], error) {
	page := opts.Page.Normalize()

	var total int64
	rows, _ := r.DB.Query(ctx, listCards, opts.UserID, opts.Status, page.Size, page.Offset())
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Card, error) {
		var c models.Card
		err := row.Scan(&c.ID, &c.Number, &c.UserID, &c.Status, &c.Balance, &c.ExpiryDate, &c.BlockRequested, &c.CreatedAt, &total)
		return c, err
	})
	if err != nil {
		return models.Page[models.Card]{}, fmt.Errorf("db error: %w", err)
	}

	// Window count is not available when the page is past the end
	if len(cards) == 0 && page.Page > 0 {
		err = r.DB.QueryRow(ctx, countCards, opts.UserID, opts.Status).Scan(&total)
		if err != nil {
			return models.Page[models.Card]{}, fmt.Errorf("db error: %w", err)
		}
	}

	return models.NewPage(cards, total, page), nil
}

const expireCards = `-- name: ExpireCards
UPDATE cards
SET status = 'EXPIRED', block_requested = FALSE
WHERE status = 'ACTIVE' AND expiry_date < $1
RETURNING ` + cardColumns

func (r *CardRepo) ExpireCards(ctx context.Context, before time.Time) ([]models.Card, error) {
	rows, _ := r.DB.Query(ctx, expireCards, before)
	cards, err := pgx.CollectRows(rows, rowToCard)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cards, nil
}

const deleteCard = `-- name: DeleteCard
DELETE FROM cards
WHERE id = $1
`

func (r *CardRepo) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteCard, cardID)

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
		return apperrors.ErrCardHasTransfers
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrCardNotFound
	default:
		return nil
	}
}

func collectCard(rows pgx.Rows) (models.Card, error) {
	card, err := pgx.CollectOneRow(rows, rowToCard)

	switch {
	case err == nil:
		return card, nil
	case errors.Is(err, pgx.ErrNoRows):
		return card, apperrors.ErrCardNotFound
	default:
		return card, fmt.Errorf("db error: %w", err)
	}
}

func rowToCard(row pgx.CollectableRow) (models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.Number, &c.UserID, &c.Status, &c.Balance, &c.ExpiryDate, &c.BlockRequested, &c.CreatedAt)
	return c, err
}
