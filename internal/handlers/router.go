package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/bankcards/internal/handlers/middleware"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	cardService cardService,
	transferService transferService,
	userService userService,
	metricsHandler http.Handler,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return chain(h, authMiddleware, middleware.RequireRole(models.RoleAdmin))
	}

	apiuser := http.NewServeMux()
	apiuser.Handle("POST /register", handleRegister(authService, logger))
	apiuser.Handle("POST /login", handleLogin(authService, logger))
	apiuser.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiuser.Handle("GET /me", withAuth(handleUserMe()))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))

	// Cardholder
	root.Handle("GET /api/cards", withAuth(handleListUserCards(cardService, logger)))
	root.Handle("GET /api/cards/{id}", withAuth(handleGetUserCard(cardService, logger)))
	root.Handle("POST /api/cards/{id}/block", withAuth(handleRequestBlock(cardService, logger)))
	root.Handle("POST /api/cards/{id}/deposit", withAuth(handleDeposit(cardService, logger)))
	root.Handle("GET /api/cards/{id}/transfers", withAuth(handleListCardTransfers(cardService, transferService, logger)))
	root.Handle("POST /api/transfers", withAuth(handleCreateTransfer(transferService, logger)))
	root.Handle("GET /api/transfers", withAuth(handleListUserTransfers(transferService, logger)))

	// Operator
	root.Handle("POST /api/cards", withAdmin(handleCreateCard(cardService, logger)))
	root.Handle("GET /api/admin/cards", withAdmin(handleListCards(cardService, logger)))
	root.Handle("GET /api/admin/cards/{id}", withAdmin(handleGetCard(cardService, logger)))
	root.Handle("DELETE /api/admin/cards/{id}", withAdmin(handleDeleteCard(cardService, logger)))
	root.Handle("POST /api/admin/cards/{id}/block", withAdmin(handleApproveBlock(cardService, logger)))
	root.Handle("GET /api/admin/users", withAdmin(handleListUsers(userService, logger)))
	root.Handle("GET /api/admin/users/by-username", withAdmin(handleGetUserByUsername(userService, logger)))
	root.Handle("GET /api/admin/users/by-email", withAdmin(handleGetUserByEmail(userService, logger)))
	root.Handle("GET /api/admin/users/{id}", withAdmin(handleGetUser(userService, logger)))
	root.Handle("DELETE /api/admin/users/{id}", withAdmin(handleDeleteUser(userService, logger)))

	if metricsHandler != nil {
		root.Handle("GET /metrics", metricsHandler)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register cardholder with username, email and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, email string, password string) (models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound if user not found
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokens(ctx context.Context, w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefresh(r *http.Request) (string, error)

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type cardService interface {
	Create(ctx context.Context, ownerID uuid.UUID) (models.Card, error)
	RequestBlock(ctx context.Context, ownerID uuid.UUID, cardID uuid.UUID) (models.Card, error)
	ApproveBlock(ctx context.Context, cardID uuid.UUID) (models.Card, error)
	Deposit(ctx context.Context, ownerID uuid.UUID, cardID uuid.UUID, amount decimal.Decimal) (models.Card, error)
	MaskedNumber(card models.Card) (string, error)

	GetUserCard(ctx context.Context, ownerID uuid.UUID, cardID uuid.UUID) (models.Card, error)
	ListUserCards(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error)
	GetCard(ctx context.Context, cardID uuid.UUID) (models.Card, error)
	ListCards(ctx context.Context, ownerID *uuid.UUID, status string, page models.PageRequest) (models.Page[models.Card], error)
	DeleteCard(ctx context.Context, cardID uuid.UUID) error
}

type transferService interface {
	Transfer(ctx context.Context, ownerID uuid.UUID, fromCardID uuid.UUID, toCardID uuid.UUID, amount decimal.Decimal) (models.Transfer, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error)
	ListByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) (models.Page[models.Transfer], error)
}

type userService interface {
	// Has to return apperrors.ErrUserNotFound if user not found
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error)

	// Has to return apperrors.ErrUserHasCards if user still owns cards
	DeleteUser(ctx context.Context, actorID uuid.UUID, userID uuid.UUID) error
}
