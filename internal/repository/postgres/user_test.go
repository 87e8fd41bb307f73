package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newUser := func(username string) models.User {
		return models.User{
			Username:       username,
			Email:          username + "@example.com",
			HashedPassword: "hashedpassword123",
		}
	}

	t.Run("create user ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), newUser("testuser"))

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID, "id should be assigned")
			assert.Equal(t, "testuser", user.Username)
			assert.Equal(t, "testuser@example.com", user.Email)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.Equal(t, models.RoleUser, user.Role, "role should be USER by default")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create admin", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			admin := newUser("admin")
			admin.Role = models.RoleAdmin

			user, err := r.CreateUser(t.Context(), admin)

			require.NoError(t, err)
			assert.True(t, user.IsAdmin())
		})
	})

	t.Run("create duplicates", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(u *models.User)
		}{
			{"same username", func(u *models.User) { u.Email = "other@example.com" }},
			{"same email", func(u *models.User) { u.Username = "other" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
					r := UserRepo{DB: tx}
					_, err := r.CreateUser(t.Context(), newUser("taken"))
					require.NoError(t, err)

					duplicate := newUser("taken")
					tt.modify(&duplicate)
					_, err = r.CreateUser(t.Context(), duplicate)

					require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
				})
			})
		}
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("findbyid"))
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
			assert.ErrorIs(t, err, apperrors.ErrNotFound, "user not found is a not found kind")
		})
	})

	t.Run("get user by username ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("findbyusername"))
			require.NoError(t, err)

			got, err := r.GetUserByUsername(t.Context(), created.Username)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by username not found", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByUsername(t.Context(), "nonexistentuser")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("get user by email", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("findbyemail"))
			require.NoError(t, err)

			got, err := r.GetUserByEmail(t.Context(), "findbyemail@example.com")
			require.NoError(t, err)
			assert.Equal(t, created, got)

			_, err = r.GetUserByEmail(t.Context(), "nobody@example.com")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("list users", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			var created []models.User
			for _, name := range []string{"first", "second", "third"} {
				u, err := r.CreateUser(t.Context(), newUser(name))
				require.NoError(t, err)
				created = append(created, u)
			}

			page, err := r.ListUsers(t.Context(), models.PageRequest{Page: 0, Size: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(3), page.Total)
			require.Len(t, page.Items, 2)

			last, err := r.ListUsers(t.Context(), models.PageRequest{Page: 1, Size: 2})
			require.NoError(t, err)
			require.Len(t, last.Items, 1)

			got := append(page.Items, last.Items...)
			assert.ElementsMatch(t, created, got, "pages cover every user once")

			past, err := r.ListUsers(t.Context(), models.PageRequest{Page: 5, Size: 2})
			require.NoError(t, err)
			assert.Empty(t, past.Items)
			assert.Equal(t, int64(3), past.Total, "total is known past the last page")
		})
	})

	t.Run("delete user", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), newUser("todelete"))
			require.NoError(t, err)

			err = r.DeleteUser(t.Context(), created.ID)
			require.NoError(t, err)

			_, err = r.GetUserByID(t.Context(), created.ID)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("delete user not found", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			err := r.DeleteUser(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("delete user with cards", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			user := testutil.MustCreateUser(t, tx, models.RoleUser)
			testutil.MustCreateCard(t, tx, user.ID)

			err := r.DeleteUser(t.Context(), user.ID)

			assert.ErrorIs(t, err, apperrors.ErrUserHasCards)
			assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		})
	})
}
