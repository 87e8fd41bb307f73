package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/bankcards/internal/db"
	"github.com/nkiryanov/bankcards/internal/models"
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

type PostgresContainer struct {
	Pool      *pgxpool.Pool
	DSN       string
	Terminate func()
}

// Start migrated postgres in docker
// Fails the test if anything goes wrong, so the container is ready once returned
func StartPostgresContainer(t *testing.T) PostgresContainer {
	t.Helper()

	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("test failed: docker not available or not running. Err:%s", out)
	}

	port, err := RandomPort()
	require.NoError(t, err, "Error happened when acquiring random port to start postgres")

	container, err := postgres.Run(t.Context(),
		"postgres:17-alpine",
		postgres.WithDatabase("bankcards-test"),
		postgres.WithUsername("bankcards"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
		testcontainers.CustomizeRequestOption(func(req *testcontainers.GenericContainerRequest) error {
			req.ExposedPorts = []string{fmt.Sprintf("%d:5432", port)}
			return nil
		}),
	)
	require.NoError(t, err, "Error happened when starting container with postgres")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "Error happened when getting connection string from container with postgres")
	t.Logf("Container with pg started, DSN=%v", dsn)

	dbpool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "Error happened when connecting to postgres and migrating schema")

	return PostgresContainer{
		Pool: dbpool,
		DSN:  dsn,
		Terminate: func() {
			dbpool.Close()
			testcontainers.CleanupContainer(t, container)
		},
	}
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Run testFunc inside transaction that is rolled back at the end
// So db remains unchanged when test stops
func InTx(dbtx dbtx, t *testing.T, testFunc func(tx pgx.Tx)) {
	t.Helper()

	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		// Use fresh context: t.Context() may be cancelled already on test failure
		err := tx.Rollback(context.Background())
		require.NoError(t, err)
	}()

	testFunc(tx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// MustCreateUser inserts user with random unique username and email
func MustCreateUser(t *testing.T, db execer, role string) models.User {
	t.Helper()

	id := uuid.New()
	user := models.User{
		ID:             id,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		Username:       "user-" + id.String()[:8],
		Email:          id.String() + "@example.com",
		HashedPassword: "hashed-password",
		Role:           role,
	}

	_, err := db.Exec(t.Context(),
		`INSERT INTO users (id, created_at, username, email, password_hash, role) VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.CreatedAt, user.Username, user.Email, user.HashedPassword, user.Role,
	)
	require.NoError(t, err, "test user should be inserted")

	return user
}

// CardOption tweaks card inserted by MustCreateCard
type CardOption func(c *models.Card)

func WithBalance(balance string) CardOption {
	return func(c *models.Card) { c.Balance = decimal.RequireFromString(balance) }
}

func WithStatus(status string) CardOption {
	return func(c *models.Card) { c.Status = status }
}

func WithExpiry(date time.Time) CardOption {
	return func(c *models.Card) { c.ExpiryDate = date }
}

func WithBlockRequested() CardOption {
	return func(c *models.Card) { c.BlockRequested = true }
}

// MustCreateCard inserts ACTIVE card with zero balance expiring in a year unless options say otherwise.
// The stored number is random and is not a valid encoded number.
func MustCreateCard(t *testing.T, db execer, userID uuid.UUID, opts ...CardOption) models.Card {
	t.Helper()

	card := models.Card{
		ID:         uuid.New(),
		Number:     "test-" + uuid.NewString(),
		UserID:     userID,
		Status:     models.CardStatusActive,
		Balance:    decimal.Zero,
		ExpiryDate: time.Now().UTC().AddDate(1, 0, 0).Truncate(24 * time.Hour),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, opt := range opts {
		opt(&card)
	}

	_, err := db.Exec(t.Context(),
		`INSERT INTO cards (id, number, user_id, status, balance, expiry_date, block_requested, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		card.ID, card.Number, card.UserID, card.Status, card.Balance, card.ExpiryDate, card.BlockRequested, card.CreatedAt,
	)
	require.NoError(t, err, "test card should be inserted")

	return card
}

// MustParseDate parses date in '2006-01-02' layout
func MustParseDate(value string) time.Time {
	dt, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(err)
	}
	return dt
}
