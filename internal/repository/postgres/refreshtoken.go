package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const tokenColumns = `id, user_id, token, created_at, expires_at, used_at`

const saveToken = `-- name: SaveToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + tokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.UsedAt)
	saved, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getToken = `-- name: GetToken
SELECT ` + tokenColumns + ` FROM refresh_tokens
WHERE token = $1
`

func (r *RefreshTokenRepo) Get(ctx context.Context, token string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, token)
	got, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return got, nil
	case errors.Is(err, pgx.ErrNoRows):
		return got, apperrors.ErrRefreshTokenNotFound
	default:
		return got, fmt.Errorf("db error: %w", err)
	}
}

// Previous used_at is returned alongside so the caller knows whether the token was used before
const markTokenUsed = `-- name: MarkTokenUsed
UPDATE refresh_tokens AS t
SET used_at = COALESCE(t.used_at, $2)
FROM (SELECT id, used_at FROM refresh_tokens WHERE token = $1 FOR UPDATE) AS prev
WHERE t.id = prev.id
RETURNING t.id, t.user_id, t.token, t.created_at, t.expires_at, t.used_at, prev.used_at
`

func (r *RefreshTokenRepo) GetAndMarkUsed(ctx context.Context, token string) (models.RefreshToken, error) {
	var prevUsedAt *time.Time

	rows, _ := r.DB.Query(ctx, markTokenUsed, token, time.Now())
	got, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.RefreshToken, error) {
		var t models.RefreshToken
		err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt, &prevUsedAt)
		return t, err
	})

	switch {
	case err == nil && prevUsedAt == nil:
		return got, nil
	case err == nil:
		return got, apperrors.ErrRefreshTokenIsUsed
	case errors.Is(err, pgx.ErrNoRows):
		return got, apperrors.ErrRefreshTokenNotFound
	default:
		return got, fmt.Errorf("db error: %w", err)
	}
}

func rowToToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	return t, err
}
