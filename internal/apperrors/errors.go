package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds of the card core
// Services wrap them with context, callers match with errors.Is
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrDecode          = errors.New("card number decode failed")

	// Insufficient funds is a special case of invalid state
	ErrInsufficientFunds = fmt.Errorf("insufficient funds: %w", ErrInvalidState)
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrUserHasCards      = fmt.Errorf("user has cards: %w", ErrInvalidState)

	ErrCardNotFound     = fmt.Errorf("card %w", ErrNotFound)
	ErrCardNumberTaken  = errors.New("card number already taken")
	ErrCardHasTransfers = fmt.Errorf("card has transfers: %w", ErrInvalidState)

	ErrTransferNotFound = fmt.Errorf("transfer %w", ErrNotFound)

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
)
