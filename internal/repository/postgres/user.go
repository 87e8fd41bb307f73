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

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, username, email, password_hash, role`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, password_hash, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	rows, _ := r.DB.Query(ctx, createUser, user.ID, user.Username, user.Email, user.HashedPassword, user.Role)
	created, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrUserAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const listUsers = `-- name: ListUsers
SELECT ` + userColumns + `, COUNT(*) OVER() FROM users
ORDER BY created_at, id
LIMIT $1 OFFSET $2
`

const countUsers = `-- name: CountUsers
SELECT COUNT(*) FROM users
`

func (r *UserRepo) ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error) {
	page = page.Normalize()

	var total int64
	rows, _ := r.DB.Query(ctx, listUsers, page.Size, page.Offset())
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		var u models.User
		err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.HashedPassword, &u.Role, &total)
		return u, err
	})
	if err != nil {
		return models.Page[models.User]{}, fmt.Errorf("db error: %w", err)
	}

	// Window count is not available when the page is past the end
	if len(users) == 0 && page.Page > 0 {
		if err := r.DB.QueryRow(ctx, countUsers).Scan(&total); err != nil {
			return models.Page[models.User]{}, fmt.Errorf("db error: %w", err)
		}
	}

	return models.NewPage(users, total, page), nil
}

const deleteUser = `-- name: DeleteUser
DELETE FROM users
WHERE id = $1
`

// Refresh tokens go with the user, cards keep the user in place
func (r *UserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteUser, userID)

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
		return apperrors.ErrUserHasCards
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.HashedPassword, &u.Role)
	return u, err
}
