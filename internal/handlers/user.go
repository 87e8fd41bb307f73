package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bankcards/internal/handlers/render"
	"github.com/nkiryanov/bankcards/internal/handlers/userctx"
	"github.com/nkiryanov/bankcards/internal/logger"
	"github.com/nkiryanov/bankcards/internal/models"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u models.User) (userResponse, error) {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}, nil
}

func renderUser(w http.ResponseWriter, u models.User) {
	res, _ := toUserResponse(u)
	render.JSON(w, res)
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		renderUser(w, user)
	})
}

func handleListUsers(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := pageRequest(r)
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		users, err := userService.ListUsers(r.Context(), page)
		if err != nil {
			renderError(w, err, l)
			return
		}

		res, _ := newPageResponse(users, toUserResponse)
		render.JSON(w, res)
	})
}

func handleGetUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		user, err := userService.GetUser(r.Context(), userID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderUser(w, user)
	})
}

// Lookup by 'username' query param
func handleGetUserByUsername(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			render.ServiceError(w, "username is required", http.StatusBadRequest)
			return
		}

		user, err := userService.GetUserByUsername(r.Context(), username)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderUser(w, user)
	})
}

// Lookup by 'email' query param
func handleGetUserByEmail(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			render.ServiceError(w, "email is required", http.StatusBadRequest)
			return
		}

		user, err := userService.GetUserByEmail(r.Context(), email)
		if err != nil {
			renderError(w, err, l)
			return
		}

		renderUser(w, user)
	})
}

func handleDeleteUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := userctx.FromContext(r.Context())

		userID, err := pathID(r, "id")
		if err != nil {
			render.ServiceError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := userService.DeleteUser(r.Context(), actor.ID, userID); err != nil {
			renderError(w, err, l)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
