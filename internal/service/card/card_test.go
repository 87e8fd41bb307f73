package card

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/cardcodec"
	"github.com/nkiryanov/bankcards/internal/events"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/metrics"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/repository/postgres"
	"github.com/nkiryanov/bankcards/internal/service/validate"
	"github.com/nkiryanov/bankcards/internal/testutil"
)

// Publisher that remembers what was published
type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) Publish(_ context.Context, _ string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Close() error { return nil }

// Codec which always generates the same number
type fixedCodec struct {
	*cardcodec.Codec
	number string
}

func (c fixedCodec) Generate() (string, error) { return c.number, nil }

func newCodec(t *testing.T) *cardcodec.Codec {
	c, err := cardcodec.New(cardcodec.Config{Key: "test-card-key"})
	require.NoError(t, err)
	return c
}

func TestExpiryDate(t *testing.T) {
	tests := []struct {
		created string
		want    string
	}{
		{"2025-01-15", "2028-01-31"},
		{"2025-02-01", "2028-02-29"},
		{"2024-02-29", "2027-02-28"},
		{"2025-12-31", "2028-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.created, func(t *testing.T) {
			got := ExpiryDate(testutil.MustParseDate(tt.created))
			require.Equal(t, testutil.MustParseDate(tt.want), got)
		})
	}
}

func TestCard(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withTx := func(t *testing.T, fn func(s *CardService, tx pgx.Tx, published *recorder)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			published := &recorder{}
			s := NewService(postgres.NewStorage(tx), newCodec(t), published, metrics.New(), logger.NewNoOpLogger())
			fn(s, tx, published)
		})
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				s.now = func() time.Time { return time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC) }

				card, err := s.Create(t.Context(), user.ID)

				require.NoError(t, err)
				require.NotEqual(t, uuid.Nil, card.ID)
				require.Equal(t, user.ID, card.UserID)
				require.Equal(t, models.CardStatusActive, card.Status)
				require.True(t, card.Balance.IsZero(), "new card has zero balance")
				require.False(t, card.BlockRequested)
				require.Equal(t, testutil.MustParseDate("2028-05-31"), card.ExpiryDate.UTC())

				plain, err := s.codec.Decode(card.Number)
				require.NoError(t, err, "stored number has to be encoded")
				require.Len(t, plain, cardcodec.NumberLen)
				require.NoError(t, validate.Luhn(plain))
			})
		})

		t.Run("expiry month follows UTC date", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				// June 1st in UTC+3 is still May 31st in UTC
				local := time.FixedZone("UTC+3", 3*60*60)
				s.now = func() time.Time { return time.Date(2025, 6, 1, 1, 0, 0, 0, local) }

				card, err := s.Create(t.Context(), user.ID)

				require.NoError(t, err)
				require.Equal(t, testutil.MustParseDate("2028-05-31"), card.ExpiryDate.UTC())
			})
		})

		t.Run("owner not found", func(t *testing.T) {
			withTx(t, func(s *CardService, _ pgx.Tx, _ *recorder) {
				_, err := s.Create(t.Context(), uuid.New())
				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})

		t.Run("different numbers", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)

				first, err := s.Create(t.Context(), user.ID)
				require.NoError(t, err)
				second, err := s.Create(t.Context(), user.ID)
				require.NoError(t, err)

				require.NotEqual(t, first.Number, second.Number)
			})
		})

		t.Run("gives up when numbers are taken", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				s.codec = fixedCodec{Codec: newCodec(t), number: "4561261212345467"}

				_, err := s.Create(t.Context(), user.ID)
				require.NoError(t, err)

				_, err = s.Create(t.Context(), user.ID)
				require.ErrorIs(t, err, apperrors.ErrCardNumberTaken)
			})
		})
	})

	t.Run("RequestBlock", func(t *testing.T) {
		t.Run("active card ok", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, published *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, user.ID)

				got, err := s.RequestBlock(t.Context(), user.ID, card.ID)

				require.NoError(t, err)
				require.True(t, got.BlockRequested)
				require.Equal(t, models.CardStatusActive, got.Status, "card stays active until approved")
				require.Len(t, published.events, 1)
				event, ok := published.events[0].(events.CardStatusChanged)
				require.True(t, ok)
				require.Equal(t, card.ID, event.CardID)
				require.True(t, event.BlockRequested)
			})
		})

		t.Run("not owner", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				owner := testutil.MustCreateUser(t, tx, models.RoleUser)
				other := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, owner.ID)

				_, err := s.RequestBlock(t.Context(), other.ID, card.ID)

				require.ErrorIs(t, err, apperrors.ErrCardNotFound)
			})
		})

		for _, status := range []string{models.CardStatusBlocked, models.CardStatusExpired} {
			t.Run(status+" card", func(t *testing.T) {
				withTx(t, func(s *CardService, tx pgx.Tx, published *recorder) {
					user := testutil.MustCreateUser(t, tx, models.RoleUser)
					card := testutil.MustCreateCard(t, tx, user.ID, testutil.WithStatus(status))

					_, err := s.RequestBlock(t.Context(), user.ID, card.ID)

					require.ErrorIs(t, err, apperrors.ErrInvalidState)
					require.Empty(t, published.events, "nothing is published on failure")
				})
			})
		}
	})

	t.Run("ApproveBlock", func(t *testing.T) {
		t.Run("requested ok", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, user.ID)
				_, err := s.RequestBlock(t.Context(), user.ID, card.ID)
				require.NoError(t, err)

				got, err := s.ApproveBlock(t.Context(), card.ID)

				require.NoError(t, err)
				require.Equal(t, models.CardStatusBlocked, got.Status)
				require.False(t, got.BlockRequested)

				_, err = s.RequestBlock(t.Context(), user.ID, card.ID)
				require.ErrorIs(t, err, apperrors.ErrInvalidState, "blocked card is terminal")
			})
		})

		t.Run("without request", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, user.ID)

				_, err := s.ApproveBlock(t.Context(), card.ID)

				require.ErrorIs(t, err, apperrors.ErrInvalidState)
			})
		})

		t.Run("unknown card", func(t *testing.T) {
			withTx(t, func(s *CardService, _ pgx.Tx, _ *recorder) {
				_, err := s.ApproveBlock(t.Context(), uuid.New())
				require.ErrorIs(t, err, apperrors.ErrCardNotFound)
			})
		})
	})

	t.Run("Deposit", func(t *testing.T) {
		t.Run("adds amount", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, user.ID, testutil.WithBalance("10.50"))

				got, err := s.Deposit(t.Context(), user.ID, card.ID, decimal.RequireFromString("100.25"))

				require.NoError(t, err)
				require.True(t, decimal.RequireFromString("110.75").Equal(got.Balance), "got %s", got.Balance)
			})
		})

		for _, amount := range []string{"0", "-1.00", "0.004", "0.005", "0.001"} {
			t.Run("amount "+amount, func(t *testing.T) {
				withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
					user := testutil.MustCreateUser(t, tx, models.RoleUser)
					card := testutil.MustCreateCard(t, tx, user.ID, testutil.WithBalance("10.00"))

					_, err := s.Deposit(t.Context(), user.ID, card.ID, decimal.RequireFromString(amount))
					require.ErrorIs(t, err, apperrors.ErrInvalidArgument)

					got, err := s.GetUserCard(t.Context(), user.ID, card.ID)
					require.NoError(t, err)
					require.True(t, decimal.RequireFromString("10.00").Equal(got.Balance), "balance must not change")
				})
			})
		}

		t.Run("blocked card", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, user.ID, testutil.WithStatus(models.CardStatusBlocked))

				_, err := s.Deposit(t.Context(), user.ID, card.ID, decimal.RequireFromString("1"))

				require.ErrorIs(t, err, apperrors.ErrInvalidState)
			})
		})

		t.Run("other owner", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				owner := testutil.MustCreateUser(t, tx, models.RoleUser)
				other := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, owner.ID)

				_, err := s.Deposit(t.Context(), other.ID, card.ID, decimal.RequireFromString("1"))

				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})
	})

	t.Run("SweepExpired", func(t *testing.T) {
		withTx(t, func(s *CardService, tx pgx.Tx, published *recorder) {
			user := testutil.MustCreateUser(t, tx, models.RoleUser)
			today := testutil.MustParseDate("2031-03-10")
			stale := testutil.MustCreateCard(t, tx, user.ID, testutil.WithExpiry(testutil.MustParseDate("2031-02-28")))
			fresh := testutil.MustCreateCard(t, tx, user.ID, testutil.WithExpiry(testutil.MustParseDate("2034-03-31")))

			n, err := s.SweepExpired(t.Context(), today.Add(15*time.Hour))
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, 1)
			require.Len(t, published.events, n, "one event per expired card")

			got, err := s.GetUserCard(t.Context(), user.ID, stale.ID)
			require.NoError(t, err)
			require.Equal(t, models.CardStatusExpired, got.Status)

			got, err = s.GetUserCard(t.Context(), user.ID, fresh.ID)
			require.NoError(t, err)
			require.Equal(t, models.CardStatusActive, got.Status)

			n, err = s.SweepExpired(t.Context(), today)
			require.NoError(t, err)
			require.Zero(t, n, "second sweep for the same day changes nothing")

			_, err = s.RequestBlock(t.Context(), user.ID, stale.ID)
			require.ErrorIs(t, err, apperrors.ErrInvalidState, "expired card is terminal")
		})
	})

	t.Run("MaskedNumber", func(t *testing.T) {
		withTx(t, func(s *CardService, _ pgx.Tx, _ *recorder) {
			encoded, err := s.codec.Encode("1234567812345678")
			require.NoError(t, err)

			masked, err := s.MaskedNumber(models.Card{Number: encoded})
			require.NoError(t, err)
			require.Equal(t, "**** **** **** 5678", masked)

			_, err = s.MaskedNumber(models.Card{Number: "not-encoded"})
			require.ErrorIs(t, err, apperrors.ErrDecode)
		})
	})

	t.Run("List", func(t *testing.T) {
		withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
			user := testutil.MustCreateUser(t, tx, models.RoleUser)
			other := testutil.MustCreateUser(t, tx, models.RoleUser)
			for range 3 {
				testutil.MustCreateCard(t, tx, user.ID)
			}
			testutil.MustCreateCard(t, tx, other.ID, testutil.WithStatus(models.CardStatusBlocked))

			page, err := s.ListUserCards(t.Context(), user.ID, models.PageRequest{Page: 0, Size: 2})
			require.NoError(t, err)
			require.Equal(t, int64(3), page.Total)
			require.Len(t, page.Items, 2)
			for _, c := range page.Items {
				require.Equal(t, user.ID, c.UserID)
			}

			blocked, err := s.ListCards(t.Context(), nil, models.CardStatusBlocked, models.PageRequest{})
			require.NoError(t, err)
			require.NotEmpty(t, blocked.Items)
			for _, c := range blocked.Items {
				require.Equal(t, models.CardStatusBlocked, c.Status)
			}

			owned, err := s.ListCards(t.Context(), &other.ID, "", models.PageRequest{})
			require.NoError(t, err)
			require.Equal(t, int64(1), owned.Total)
			require.Equal(t, other.ID, owned.Items[0].UserID)

			none, err := s.ListCards(t.Context(), &user.ID, models.CardStatusBlocked, models.PageRequest{})
			require.NoError(t, err)
			require.Zero(t, none.Total)
			require.Empty(t, none.Items)
		})
	})

	t.Run("GetCard", func(t *testing.T) {
		withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
			user := testutil.MustCreateUser(t, tx, models.RoleUser)
			card := testutil.MustCreateCard(t, tx, user.ID)

			got, err := s.GetCard(t.Context(), card.ID)
			require.NoError(t, err)
			require.Equal(t, card.ID, got.ID)
			require.Equal(t, user.ID, got.UserID)

			_, err = s.GetCard(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrCardNotFound)
		})
	})

	t.Run("DeleteCard", func(t *testing.T) {
		t.Run("unused card", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				card := testutil.MustCreateCard(t, tx, user.ID)

				require.NoError(t, s.DeleteCard(t.Context(), card.ID))

				_, err := s.GetUserCard(t.Context(), user.ID, card.ID)
				require.ErrorIs(t, err, apperrors.ErrCardNotFound)
			})
		})

		t.Run("card with transfers", func(t *testing.T) {
			withTx(t, func(s *CardService, tx pgx.Tx, _ *recorder) {
				user := testutil.MustCreateUser(t, tx, models.RoleUser)
				from := testutil.MustCreateCard(t, tx, user.ID, testutil.WithBalance("10"))
				to := testutil.MustCreateCard(t, tx, user.ID)
				_, err := postgres.NewStorage(tx).Transfer().CreateTransfer(t.Context(), models.Transfer{
					FromCardID:    from.ID,
					ToCardID:      to.ID,
					Amount:        decimal.RequireFromString("1"),
					TransferredAt: time.Now(),
				})
				require.NoError(t, err)

				err = s.DeleteCard(t.Context(), from.ID)
				require.ErrorIs(t, err, apperrors.ErrInvalidState)

				_, err = s.GetUserCard(t.Context(), user.ID, from.ID)
				require.NoError(t, err, "card and transaction survive refused delete")
			})
		})
	})
}
