//go:generate mockgen -source=cart.go -destination=mocks/cart_mock.go -package=mocks

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/models"
)

type CartService interface {
	Save(userID string, items []models.CartItem) error
	Load(ctx context.Context, userID string) ([]models.CartItem, error)
}

// CartHandler represents HTTP handler for cart requests
type CartHandler struct {
	svc CartService
}

// NewCartHandler creates new CartHandler instance
func NewCartHandler(svc CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

type cartBody struct {
	Items []models.CartItem `json:"items"`
}

// GetCart returns user cart
// 200 — успешная обработка запроса.
// 401 — пользователь не авторизован.
// 500 — внутренняя ошибка сервера.
func (ch *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		items, err := ch.svc.Load(r.Context(), payload.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, cartBody{Items: items})
	}
}

// SaveCart replaces user cart, write to database is deferred
// 202 — корзина принята;
// 400 — неверный формат запроса;
// 401 — пользователь не авторизован.
func (ch *CartHandler) SaveCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req cartBody
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		if err := ch.svc.Save(payload.UserID, req.Items); err != nil {
			writeError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
