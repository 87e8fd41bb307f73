package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/handlers/render"
	"github.com/nkiryanov/bankcards/internal/logger"
)

// renderError maps core error kinds to http statuses.
// Unknown errors are logged and hidden behind 500.
func renderError(w http.ResponseWriter, err error, l logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		render.ServiceError(w, "Invalid argument", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrCardNotFound):
		render.ServiceError(w, "Card not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrNotFound):
		render.ServiceError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrForbidden):
		render.ServiceError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		render.ServiceError(w, "Insufficient funds", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrCardHasTransfers):
		render.ServiceError(w, "Card has transfers", http.StatusConflict)
	case errors.Is(err, apperrors.ErrUserHasCards):
		render.ServiceError(w, "User has cards", http.StatusConflict)
	case errors.Is(err, apperrors.ErrInvalidState):
		render.ServiceError(w, "Card state does not allow the operation", http.StatusConflict)
	default:
		l.Error("Request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
