package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/repository/postgres"
	"github.com/nkiryanov/bankcards/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bankcards/internal/service/user"
	"github.com/nkiryanov/bankcards/internal/testutil"
)

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin new db transaction and create AuthService on top of it
	// Transaction is rolled back when test stops
	withTx := func(t *testing.T, accessTTL time.Duration, refreshTTL time.Duration, fn func(s *AuthService)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tokens, err := tokenmanager.New(
				tokenmanager.Config{
					SecretKey:  "test-secret-key",
					AccessTTL:  accessTTL,
					RefreshTTL: refreshTTL,
				},
				storage.Refresh(),
			)
			require.NoError(t, err, "token manager should be created without errors")

			users := user.NewService(user.BcryptHasher{Cost: bcrypt.MinCost}, storage)

			s, err := NewService(Config{}, tokens, users)
			require.NoError(t, err, "auth service could't be started")

			fn(s)
		})
	}

	t.Run("new auth service defaults", func(t *testing.T) {
		s, err := NewService(Config{}, nil, nil)
		require.NoError(t, err, "auth service should be created without errors")

		require.Equal(t, defaultAccessHeaderName, s.accessHeaderName)
		require.Equal(t, defaultAccessAuthScheme, s.accessAuthScheme)
		require.Equal(t, defaultRefreshCookieName, s.refreshCookieName)
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")

				require.NoError(t, err, "registering new user should be ok")
				require.NotEmpty(t, pair.Access.Value)
				require.NotEmpty(t, pair.Refresh.Value)
			})
		})

		t.Run("fail if user exists", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				_, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
				require.NoError(t, err)

				_, err = s.Register(t.Context(), "nkiryanov", "nk2@example.com", "other-pwd")

				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("existing user ok", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				_, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
				require.NoError(t, err)

				pair, err := s.Login(t.Context(), "nkiryanov", "pwd")

				require.NoError(t, err)
				require.NotEmpty(t, pair.Access.Value)
				require.NotEmpty(t, pair.Refresh.Value)
			})
		})

		tests := []struct {
			name     string
			login    string
			password string
		}{
			{"wrong password", "nkiryanov", "wrong"},
			{"user not exists", "not-existed-user", "pwd"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
					_, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
					require.NoError(t, err)

					_, err = s.Login(t.Context(), tt.login, tt.password)

					require.ErrorIs(t, err, apperrors.ErrUserNotFound)
				})
			})
		}
	})

	t.Run("RefreshPair", func(t *testing.T) {
		t.Run("refresh once ok", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				initialPair, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
				require.NoError(t, err)

				newPair, err := s.RefreshPair(t.Context(), initialPair.Refresh.Value)

				require.NoError(t, err)
				require.NotEqual(t, initialPair.Refresh.Value, newPair.Refresh.Value, "new refresh token should be different")
			})
		})

		t.Run("fail if used once", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				initialPair, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
				require.NoError(t, err)
				_, err = s.RefreshPair(t.Context(), initialPair.Refresh.Value)
				require.NoError(t, err)

				_, err = s.RefreshPair(t.Context(), initialPair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrRefreshTokenIsUsed)
			})
		})

		t.Run("fail if expired", func(t *testing.T) {
			withTx(t, time.Second, time.Second, func(s *AuthService) {
				initialPair, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
				require.NoError(t, err)

				time.Sleep(1100 * time.Millisecond)

				_, err = s.RefreshPair(t.Context(), initialPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)
			})
		})

		t.Run("fail if unknown", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				_, err := s.RefreshPair(t.Context(), "not-a-token")
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})
	})

	t.Run("Auth", func(t *testing.T) {
		t.Run("tokens written by SetTokens authenticate", func(t *testing.T) {
			withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
				pair, err := s.Register(t.Context(), "nkiryanov", "nk@example.com", "pwd")
				require.NoError(t, err)

				w := httptest.NewRecorder()
				s.SetTokens(t.Context(), w, pair)
				res := w.Result()
				defer res.Body.Close() // nolint:errcheck

				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", res.Header.Get("Authorization"))
				for _, c := range res.Cookies() {
					r.AddCookie(c)
				}

				got, err := s.Auth(t.Context(), r)
				require.NoError(t, err)
				require.Equal(t, "nkiryanov", got.Username)
				require.Equal(t, models.RoleUser, got.Role)

				refresh, err := s.GetRefresh(r)
				require.NoError(t, err)
				require.Equal(t, pair.Refresh.Value, refresh)

				require.Len(t, res.Cookies(), 1)
				cookie := res.Cookies()[0]
				require.Equal(t, "refresh_token", cookie.Name)
				require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
				require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
				require.InDelta(t, (24 * time.Hour).Seconds(), cookie.MaxAge, 2)
			})
		})

		tests := []struct {
			name   string
			header string
		}{
			{"no header", ""},
			{"wrong scheme", "Basic abc"},
			{"no token", "Bearer"},
			{"garbage token", "Bearer not.a.jwt"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(t, 15*time.Minute, 24*time.Hour, func(s *AuthService) {
					r := httptest.NewRequest(http.MethodGet, "/", nil)
					if tt.header != "" {
						r.Header.Set("Authorization", tt.header)
					}

					_, err := s.Auth(t.Context(), r)
					require.Error(t, err)
				})
			})
		}

		t.Run("deleted user", func(t *testing.T) {
			s, err := NewService(Config{}, parseOnly(uuid.New()), missingUsers{})
			require.NoError(t, err)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer token")

			_, err = s.Auth(t.Context(), r)
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("GetRefresh without cookie", func(t *testing.T) {
		s, err := NewService(Config{}, nil, nil)
		require.NoError(t, err)

		_, err = s.GetRefresh(httptest.NewRequest(http.MethodPost, "/", nil))
		require.ErrorIs(t, err, http.ErrNoCookie)
	})
}

// Token manager that accepts any access token as the given user
type parseOnly uuid.UUID

func (p parseOnly) GeneratePair(context.Context, models.User) (models.TokenPair, error) {
	return models.TokenPair{}, nil
}

func (p parseOnly) UseRefresh(context.Context, string) (models.RefreshToken, error) {
	return models.RefreshToken{}, nil
}

func (p parseOnly) ParseAccess(context.Context, string) (uuid.UUID, error) {
	return uuid.UUID(p), nil
}

type missingUsers struct{}

func (missingUsers) CreateUser(context.Context, string, string, string, string) (models.User, error) {
	return models.User{}, apperrors.ErrUserAlreadyExists
}

func (missingUsers) Authenticate(context.Context, string, string) (models.User, error) {
	return models.User{}, apperrors.ErrUserNotFound
}

func (missingUsers) GetUser(context.Context, uuid.UUID) (models.User, error) {
	return models.User{}, apperrors.ErrUserNotFound
}
