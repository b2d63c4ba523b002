//go:generate mockgen -source=subscription.go -destination=mocks/subscription_mock.go -package=mocks

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rookgm/storefront/internal/models"
)

type SubscriptionService interface {
	Subscribe(ctx context.Context, email string) error
	Contact(ctx context.Context, msg models.ContactMessage) error
}

// SubscriptionHandler represents HTTP handler for newsletter and contact form
type SubscriptionHandler struct {
	svc SubscriptionService
}

// NewSubscriptionHandler creates new SubscriptionHandler instance
func NewSubscriptionHandler(svc SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Subscribe subscribes email to newsletter
// 200 — подписка оформлена;
// 400 — неверный email;
// 409 — email уже подписан;
// 500 — внутренняя ошибка сервера.
func (sh *SubscriptionHandler) Subscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req subscribeRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		if err := sh.svc.Subscribe(r.Context(), req.Email); err != nil {
			writeError(w, r, err)
			return
		}

		writeMessage(w, r, http.StatusOK, "Subscription successful")
	}
}

// Contact sends contact form message
// 200 — сообщение отправлено;
// 400 — не заполнены обязательные поля;
// 500 — сообщение не отправлено.
func (sh *SubscriptionHandler) Contact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contactRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		err := sh.svc.Contact(r.Context(), models.ContactMessage{
			Name:    req.Name,
			Email:   req.Email,
			Message: req.Message,
		})
		if err != nil {
			if errorStatus(err) == http.StatusBadRequest {
				writeError(w, r, err)
				return
			}
			writeMessage(w, r, http.StatusInternalServerError, "Failed to send message")
			return
		}

		writeMessage(w, r, http.StatusOK, "Message sent successfully")
	}
}
