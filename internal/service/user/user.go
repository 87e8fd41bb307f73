package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/models"
	"github.com/nkiryanov/bankcards/internal/repository"
)

// Compared against when user is unknown so login timing does not reveal usernames
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOa0Ny6Vq5r0cQfWn1z1r2n3Oe6Xk5k6y"

type UserService struct {
	hasher  PasswordHasher
	storage repository.Storage
}

func NewService(hasher PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

func (s *UserService) CreateUser(ctx context.Context, username string, email string, password string, role string) (models.User, error) {
	if password == "" {
		return models.User{}, fmt.Errorf("empty password: %w", apperrors.ErrInvalidArgument)
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.User{}, fmt.Errorf("unknown role %q: %w", role, apperrors.ErrInvalidArgument)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, models.User{
		Username:       username,
		Email:          email,
		HashedPassword: hash,
		Role:           role,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Authenticate returns apperrors.ErrUserNotFound both for unknown user and wrong password
func (s *UserService) Authenticate(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(dummyHash, password)
		return models.User{}, apperrors.ErrUserNotFound
	case err != nil:
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// EnsureAdmin creates operator account unless it exists already.
// Existing non admin user with the same username is an error.
func (s *UserService) EnsureAdmin(ctx context.Context, username string, email string, password string) (models.User, error) {
	existing, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case err == nil && existing.IsAdmin():
		return existing, nil
	case err == nil:
		return existing, fmt.Errorf("user %q exists and is not admin: %w", username, apperrors.ErrUserAlreadyExists)
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return existing, err
	}

	return s.CreateUser(ctx, username, email, password, models.RoleAdmin)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.storage.User().GetUserByUsername(ctx, username)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetUserByEmail(ctx, email)
}

func (s *UserService) ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error) {
	return s.storage.User().ListUsers(ctx, page)
}

// DeleteUser removes user owning no cards. Operator can't delete own account.
func (s *UserService) DeleteUser(ctx context.Context, actorID uuid.UUID, userID uuid.UUID) error {
	if actorID == userID {
		return fmt.Errorf("user %s can't delete itself: %w", userID, apperrors.ErrInvalidArgument)
	}

	// Savepoint keeps outer transaction usable after foreign key violation
	return s.storage.InTx(ctx, func(st repository.Storage) error {
		return st.User().DeleteUser(ctx, userID)
	})
}
