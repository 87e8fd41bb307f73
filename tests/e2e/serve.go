package e2e

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/bankcards/internal/cardcodec"
	"github.com/nkiryanov/bankcards/internal/events"
	"github.com/nkiryanov/bankcards/internal/handlers"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/metrics"
	"github.com/nkiryanov/bankcards/internal/repository/postgres"
	"github.com/nkiryanov/bankcards/internal/service/auth"
	"github.com/nkiryanov/bankcards/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bankcards/internal/service/card"
	"github.com/nkiryanov/bankcards/internal/service/transfer"
	"github.com/nkiryanov/bankcards/internal/service/user"
	"github.com/nkiryanov/bankcards/internal/testutil"
)

type Services struct {
	Storage         *postgres.Storage
	AuthService     *auth.AuthService
	UserService     *user.UserService
	CardService     *card.CardService
	TransferService *transfer.TransferService
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.InTx with it
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.InTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		l := logger.NewNoOpLogger()
		m := metrics.New()
		publisher := events.Noop{}

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage.Refresh())
		require.NoError(t, err, "token manager should be created without errors")

		codec, err := cardcodec.New(cardcodec.Config{Key: "test-card-key"})
		require.NoError(t, err, "card codec should be created without errors")

		us := user.NewService(user.BcryptHasher{Cost: bcrypt.MinCost}, storage)
		as, err := auth.NewService(auth.Config{}, tokenManager, us)
		require.NoError(t, err, "auth service starting error")
		cs := card.NewService(storage, codec, publisher, m, l)
		ts := transfer.NewService(storage, publisher, m, l)

		router := handlers.NewRouter(as, cs, ts, us, m.Handler(), l)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			Storage:         storage,
			AuthService:     as,
			UserService:     us,
			CardService:     cs,
			TransferService: ts,
		})
	})
}

type Response struct {
	Code   int
	Body   string
	Header http.Header
}

// Do sends request with optional bearer token and json body
func Do(t *testing.T, method string, url string, token string, body string) Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err, "failed to create request")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send request")
	defer resp.Body.Close() // nolint:errcheck

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	return Response{Code: resp.StatusCode, Body: string(b), Header: resp.Header}
}
