package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bankcards/internal/models"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refresh_token"
)

type tokenManager interface {
	GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error)
	UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error)
	ParseAccess(ctx context.Context, access string) (uuid.UUID, error)
}

type userService interface {
	CreateUser(ctx context.Context, username string, email string, password string, role string) (models.User, error)
	Authenticate(ctx context.Context, username string, password string) (models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// Where tokens live in http requests and responses. Defaults are used for empty values
type Config struct {
	AccessHeaderName  string
	AccessAuthScheme  string
	RefreshCookieName string
}

type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string

	tokens tokenManager
	users  userService
}

func NewService(cfg Config, tokens tokenManager, users userService) (*AuthService, error) {
	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		tokens:            tokens,
		users:             users,
	}, nil
}

// Register creates cardholder account and issues first token pair
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (models.TokenPair, error) {
	user, err := s.users.CreateUser(ctx, username, email, password, models.RoleUser)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, nil
}

// RefreshPair rotates refresh token: the used one is burned, new pair is issued
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.tokens.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.users.GetUser(ctx, token.UserID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.tokens.GeneratePair(ctx, user)
}

// Auth reads access token from request and returns its user loaded from storage.
// Role comes from the user row, so revoked admin rights apply immediately.
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get(s.accessHeaderName)
	if header == "" {
		return models.User{}, errors.New("access token not found")
	}

	scheme, access, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || access == "" {
		return models.User{}, errors.New("access token has unexpected format")
	}

	userID, err := s.tokens.ParseAccess(ctx, access)
	if err != nil {
		return models.User{}, err
	}

	return s.users.GetUser(ctx, userID)
}

// SetTokens writes access token to header and refresh token to HttpOnly cookie
func (s *AuthService) SetTokens(_ context.Context, w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(pair.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *AuthService) GetRefresh(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", err
	}

	return cookie.Value, nil
}
