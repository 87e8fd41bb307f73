package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/bankcards/internal/handlers/render"
	"github.com/nkiryanov/bankcards/internal/handlers/userctx"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/models"
)

type cardResponse struct {
	ID             uuid.UUID `json:"id"`
	Number         string    `json:"number"`
	UserID         uuid.UUID `json:"user_id"`
	Status         string    `json:"status"`
	Balance        string    `json:"balance"`
	ExpiryDate     string    `json:"expiry_date"`
	BlockRequested bool      `json:"block_requested"`
	CreatedAt      time.Time `json:"created_at"`
}

// Card number leaves the service masked only
func toCardResponse(cardService cardService) func(models.Card) (cardResponse, error) {
	return func(c models.Card) (cardResponse, error) {
		masked, err := cardService.MaskedNumber(c)
		if err != nil {
			return cardResponse{}, err
		}

		return cardResponse{
			ID:             c.ID,
			Number:         masked,
			UserID:         c.UserID,
			Status:         c.Status,
			Balance:        c.Balance.StringFixed(2),
			ExpiryDate:     c.ExpiryDate.Format(time.DateOnly),
			BlockRequested: c.BlockRequested,
			CreatedAt:      c.CreatedAt,
		}, nil
	}
}

func renderCard(w http.ResponseWriter, cardService cardService, card models.Card, code int, l logger.Logger) {
	res, err := toCardResponse(cardService)(card)
	if err != nil {
		renderError(w, err, l)
		return
	}
	render.JSONWithStatus(w, res, code)
}

func renderCards(w http.ResponseWriter, cardService cardService, page models.Page[models.Card], l logger.Logger) {
	res, err := newPageResponse(page, toCardResponse(cardService))
	if err != nil {
		renderError(w, err, l)
		return
	}
	render.JSON(w, res)
}

// Admin issues card for user given in 'user_id' query param
func handleCreateCard(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			render.ServiceError(w, "Query param 'user_id' has to be UUID", http.StatusBadRequest)
			return
		}

		card, err := cardService.Create(r.Context(), ownerID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCard(w, cardService, card, http.StatusCreated, l)
	})
}

func handleListUserCards(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		page, err := pageRequest(r)
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		cards, err := cardService.ListUserCards(r.Context(), user.ID, page)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCards(w, cardService, cards, l)
	})
}

func handleGetUserCard(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		card, err := cardService.GetUserCard(r.Context(), user.ID, cardID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCard(w, cardService, card, http.StatusOK, l)
	})
}

// Admin lists cards of all users, 'user_id' and 'status' query params filter the list
func handleListCards(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ownerID *uuid.UUID
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				render.ServiceError(w, "Invalid user_id", http.StatusBadRequest)
				return
			}
			ownerID = &id
		}

		status := r.URL.Query().Get("status")
		switch status {
		case "", models.CardStatusActive, models.CardStatusBlocked, models.CardStatusExpired:
		default:
			render.ServiceError(w, "Unknown card status", http.StatusBadRequest)
			return
		}

		page, err := pageRequest(r)
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		cards, err := cardService.ListCards(r.Context(), ownerID, status, page)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCards(w, cardService, cards, l)
	})
}

func handleGetCard(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		card, err := cardService.GetCard(r.Context(), cardID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCard(w, cardService, card, http.StatusOK, l)
	})
}

func handleDeleteCard(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := cardService.DeleteCard(r.Context(), cardID); err != nil {
			renderError(w, err, l)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleRequestBlock(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		card, err := cardService.RequestBlock(r.Context(), user.ID, cardID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCard(w, cardService, card, http.StatusAccepted, l)
	})
}

func handleApproveBlock(cardService cardService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		card, err := cardService.ApproveBlock(r.Context(), cardID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCard(w, cardService, card, http.StatusOK, l)
	})
}

func handleDeposit(cardService cardService, l logger.Logger) http.Handler {
	type request struct {
		Amount string `json:"amount" validate:"required,money"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}
		amount, err := decimal.NewFromString(data.Amount)
		if err != nil {
			render.ServiceError(w, "Invalid amount", http.StatusBadRequest)
			return
		}

		card, err := cardService.Deposit(r.Context(), user.ID, cardID, amount)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderCard(w, cardService, card, http.StatusOK, l)
	})
}
