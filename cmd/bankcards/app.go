package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/bankcards/internal/cardcodec"
	"github.com/nkiryanov/bankcards/internal/db"
	"github.com/nkiryanov/bankcards/internal/events"
	"github.com/nkiryanov/bankcards/internal/handlers"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/metrics"
	"github.com/nkiryanov/bankcards/internal/repository/postgres"
	"github.com/nkiryanov/bankcards/internal/service/auth"
	"github.com/nkiryanov/bankcards/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bankcards/internal/service/card"
	"github.com/nkiryanov/bankcards/internal/service/expiry"
	"github.com/nkiryanov/bankcards/internal/service/transfer"
	"github.com/nkiryanov/bankcards/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	scheduler *expiry.Scheduler
	pool      *pgxpool.Pool
	publisher events.Publisher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config. Err: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	codec, err := cardcodec.New(cardcodec.Config{Key: c.CardKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating card codec. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	publisher, err := newPublisher(c.AMQPURL, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		logger:     logger,
		pool:       pool,
		publisher:  publisher,
	}
	if err := app.init(ctx, c, codec); err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

func (s *ServerApp) init(ctx context.Context, c *Config, codec *cardcodec.Codec) error {
	// Initialize repositories
	storage := postgres.NewStorage(s.pool)
	m := metrics.New()

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		return fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService := user.NewService(user.DefaultHasher, storage)
	authService, err := auth.NewService(auth.Config{}, tokenManager, userService)
	if err != nil {
		return fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	cardService := card.NewService(storage, codec, s.publisher, m, s.logger)
	transferService := transfer.NewService(storage, s.publisher, m, s.logger)

	s.scheduler, err = expiry.New(c.ExpirySchedule, cardService, s.logger)
	if err != nil {
		return fmt.Errorf("error while creating expiry scheduler. Err: %w", err)
	}

	if c.AdminUsername != "" {
		admin, err := userService.EnsureAdmin(ctx, c.AdminUsername, c.AdminEmail, c.AdminPassword)
		if err != nil {
			return fmt.Errorf("error while creating admin. Err: %w", err)
		}
		s.logger.Info("Admin account ready", "user_id", admin.ID)
	}

	s.Handler = handlers.NewRouter(
		authService,
		cardService,
		transferService,
		userService,
		m.Handler(),
		s.logger,
	)

	return nil
}

// Events are dropped when no broker configured
func newPublisher(amqpURL string, l logger.Logger) (events.Publisher, error) {
	if amqpURL == "" {
		l.Warn("AMQP url not set, events will not be published")
		return events.Noop{Logger: l}, nil
	}

	p, err := events.NewRabbitMQ(amqpURL, events.Exchange)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to event broker. Err: %w", err)
	}
	return p, nil
}

func (s *ServerApp) close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", "error", err)
	}
	s.pool.Close()
}

// Run starts http server and expiry scheduler and closes them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	schedulerIdle := s.scheduler.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-schedulerIdle

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
