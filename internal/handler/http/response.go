package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rookgm/storefront/internal/models"
)

// maxBodySize limits request bodies read by handlers
const maxBodySize = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, messageResponse{Message: msg})
}

// writeError answers with status derived from err, internal errors are not exposed
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeMessage(w, r, status, msg)
}

// errorStatus maps service error to response status
// 400 — неверный формат запроса;
// 401 — подпись или токен не прошли проверку;
// 404 — заказ или токен оплаты не найден;
// 409 — состояние не допускает операцию;
// 502 — внешний сервис недоступен;
// 500 — внутренняя ошибка сервера.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrAmountMismatch),
		errors.Is(err, models.ErrPaymentMethodMismatch):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidSignature),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrTokenNotFound),
		errors.Is(err, models.ErrDataNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflictData),
		errors.Is(err, models.ErrOrderNotPending),
		errors.Is(err, models.ErrAlreadySubscribed),
		errors.Is(err, models.ErrReminderRunInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrProviderUnavailable),
		errors.Is(err, models.ErrEmailUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
