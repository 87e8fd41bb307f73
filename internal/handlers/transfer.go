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

type transferResponse struct {
	ID            uuid.UUID `json:"id"`
	FromCardID    uuid.UUID `json:"from_card_id"`
	ToCardID      uuid.UUID `json:"to_card_id"`
	Amount        string    `json:"amount"`
	TransferredAt time.Time `json:"transferred_at"`
}

func toTransferResponse(t models.Transfer) (transferResponse, error) {
	return transferResponse{
		ID:            t.ID,
		FromCardID:    t.FromCardID,
		ToCardID:      t.ToCardID,
		Amount:        t.Amount.StringFixed(2),
		TransferredAt: t.TransferredAt,
	}, nil
}

func handleCreateTransfer(transferService transferService, l logger.Logger) http.Handler {
	type request struct {
		FromCardID string `json:"from_card_id" validate:"required,uuid"`
		ToCardID   string `json:"to_card_id" validate:"required,uuid"`
		Amount     string `json:"amount" validate:"required,money"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// Validated above
		fromID := uuid.MustParse(data.FromCardID)
		toID := uuid.MustParse(data.ToCardID)
		amount, err := decimal.NewFromString(data.Amount)
		if err != nil {
			render.ServiceError(w, "Invalid amount", http.StatusBadRequest)
			return
		}

		transfer, err := transferService.Transfer(r.Context(), user.ID, fromID, toID, amount)
		if err != nil {
			renderError(w, err, l)
			return
		}

		res, _ := toTransferResponse(transfer)
		render.JSONWithStatus(w, res, http.StatusCreated)
	})
}

func handleListUserTransfers(transferService transferService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		page, err := pageRequest(r)
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		transfers, err := transferService.ListByOwner(r.Context(), user.ID, page)
		if err != nil {
			renderError(w, err, l)
			return
		}

		res, _ := newPageResponse(transfers, toTransferResponse)
		render.JSON(w, res)
	})
}

// Card history is visible to the card owner only
func handleListCardTransfers(cardService cardService, transferService transferService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())

		cardID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}
		page, err := pageRequest(r)
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if _, err := cardService.GetUserCard(r.Context(), user.ID, cardID); err != nil {
			renderError(w, err, l)
			return
		}

		transfers, err := transferService.ListByCard(r.Context(), cardID, page)
		if err != nil {
			renderError(w, err, l)
			return
		}

		res, _ := newPageResponse(transfers, toTransferResponse)
		render.JSON(w, res)
	})
}
