package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/models"
)

// TransferRepo is append only: there are no update or delete queries
type TransferRepo struct {
	DB DBTX
}

const transferColumns = `id, from_card_id, to_card_id, amount, transferred_at`

const createTransfer = `-- name: CreateTransfer
INSERT INTO transfers (id, from_card_id, to_card_id, amount, transferred_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + transferColumns

func (r *TransferRepo) CreateTransfer(ctx context.Context, t models.Transfer) (models.Transfer, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createTransfer, t.ID, t.FromCardID, t.ToCardID, t.Amount, t.TransferredAt)
	created, err := pgx.CollectOneRow(rows, rowToTransfer)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				return created, apperrors.ErrCardNotFound
			case pgerrcode.CheckViolation:
				return created, fmt.Errorf("transfer violates %s: %w", pgErr.ConstraintName, apperrors.ErrInvalidArgument)
			}
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listTransfersByUser = `-- name: ListTransfersByUser
WITH user_cards AS (
    SELECT id FROM cards WHERE user_id = $1
)
SELECT ` + transferColumns + `, COUNT(*) OVER() FROM transfers
WHERE from_card_id IN (SELECT id FROM user_cards)
   OR to_card_id IN (SELECT id FROM user_cards)
ORDER BY transferred_at DESC, id DESC
LIMIT $2 OFFSET $3
`

const countTransfersByUser = `-- name: CountTransfersByUser
WITH user_cards AS (
    SELECT id FROM cards WHERE user_id = $1
)
SELECT COUNT(*) FROM transfers
WHERE from_card_id IN (SELECT id FROM user_cards)
   OR to_card_id IN (SELECT id FROM user_cards)
`

func (r *TransferRepo) ListByUser(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error) {
	return r.listPage(ctx, listTransfersByUser, countTransfersByUser, userID, page)
}

// Both legs are merged in SQL so pagination stays server side.
// UNION ALL is safe: a transfer never has the same card on both sides.
const listTransfersByCard = `-- name: ListTransfersByCard
SELECT ` + transferColumns + `, COUNT(*) OVER() FROM (
    SELECT ` + transferColumns + ` FROM transfers WHERE from_card_id = $1
    UNION ALL
    SELECT ` + transferColumns + ` FROM transfers WHERE to_card_id = $1
) AS card_transfers
ORDER BY transferred_at DESC, id DESC
LIMIT $2 OFFSET $3
`

const countTransfersByCard = `-- name: CountTransfersByCard
SELECT COUNT(*) FROM transfers
WHERE from_card_id = $1 OR to_card_id = $1
`

func (r *TransferRepo) ListByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error) {
	return r.listPage(ctx, listTransfersByCard, countTransfersByCard, cardID, page)
}

func (r *TransferRepo) listPage(ctx context.Context, listQuery string, countQuery string, id uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error) {
	page = page.Normalize()

	var total int64
	rows, _ := r.DB.Query(ctx, listQuery, id, page.Size, page.Offset())
	transfers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Transfer, error) {
		var t models.Transfer
		err := row.Scan(&t.ID, &t.FromCardID, &t.ToCardID, &t.Amount, &t.TransferredAt, &total)
		return t, err
	})
	if err != nil {
		return models.Page[models.Transfer]{}, fmt.Errorf("db error: %w", err)
	}

	if len(transfers) == 0 && page.Page > 0 {
		err = r.DB.QueryRow(ctx, countQuery, id).Scan(&total)
		if err != nil {
			return models.Page[models.Transfer]{}, fmt.Errorf("db error: %w", err)
		}
	}

	return models.NewPage(transfers, total, page), nil
}

func rowToTransfer(row pgx.CollectableRow) (models.Transfer, error) {
	var t models.Transfer
	err := row.Scan(&t.ID, &t.FromCardID, &t.ToCardID, &t.Amount, &t.TransferredAt)
	return t, err
}
