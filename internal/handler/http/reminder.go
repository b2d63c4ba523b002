//go:generate mockgen -source=reminder.go -destination=mocks/reminder_mock.go -package=mocks

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/models"
)

type ReminderService interface {
	// ProcessDue sends reminders due today
	ProcessDue(ctx context.Context) (models.ReminderReport, error)
	// Setup creates first reminder of user cycle
	Setup(ctx context.Context, userID string, reminder models.Reminder) (*models.Reminder, error)
	// ListUserReminders returns user reminders
	ListUserReminders(ctx context.Context, userID string) ([]models.Reminder, error)
}

// ReminderHandler represents HTTP handler for reminder-related requests
type ReminderHandler struct {
	svc ReminderService
}

// NewReminderHandler creates new ReminderHandler instance
func NewReminderHandler(svc ReminderService) *ReminderHandler {
	return &ReminderHandler{svc: svc}
}

type processResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Due     int    `json:"due"`
	Failed  int    `json:"failed"`
}

type setupReminderRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	CycleStart       string `json:"cycle_start"`
	CycleLength      int    `json:"cycle_length"`
	ReminderDays     int    `json:"reminder_days"`
	NotificationType string `json:"notification_type"`
}

// ReminderResp is reminder in API responses
type ReminderResp struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	CycleStart       string `json:"cycle_start"`
	CycleLength      int    `json:"cycle_length"`
	ReminderDays     int    `json:"reminder_days"`
	NotificationType string `json:"notification_type"`
	Notified         bool   `json:"notified"`
	Status           string `json:"status"`
}

func newReminderResp(r models.Reminder) ReminderResp {
	return ReminderResp{
		ID:               r.ID,
		Name:             r.Name,
		Email:            r.Email,
		CycleStart:       r.CycleStart.Format(time.DateOnly),
		CycleLength:      r.CycleLength,
		ReminderDays:     r.ReminderDays,
		NotificationType: r.NotificationType,
		Notified:         r.Notified,
		Status:           r.Status,
	}
}

// ProcessReminders runs reminder scan on demand
// 200 — сканирование выполнено;
// 409 — сканирование уже выполняется;
// 500 — внутренняя ошибка сервера.
func (rh *ReminderHandler) ProcessReminders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := rh.svc.ProcessDue(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			msg := "Failed to process reminders"
			if errors.Is(err, models.ErrReminderRunInProgress) {
				status = http.StatusConflict
				msg = err.Error()
			}
			writeJSON(w, r, status, processResponse{Success: false, Error: msg})
			return
		}

		writeJSON(w, r, http.StatusOK, processResponse{
			Success: true,
			Message: fmt.Sprintf("Processed %d due reminders", report.Notified),
			Due:     report.Due,
			Failed:  report.Failed,
		})
	}
}

// SetupReminder creates reminder for user
// 201 — напоминание создано;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 409 — напоминание для цикла уже существует;
// 500 — внутренняя ошибка сервера.
func (rh *ReminderHandler) SetupReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req setupReminderRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		cycleStart, err := time.Parse(time.DateOnly, req.CycleStart)
		if err != nil {
			writeMessage(w, r, http.StatusBadRequest, "cycle_start: must be YYYY-MM-DD date")
			return
		}

		reminder, err := rh.svc.Setup(r.Context(), payload.UserID, models.Reminder{
			Name:             req.Name,
			Email:            req.Email,
			CycleStart:       cycleStart,
			CycleLength:      req.CycleLength,
			ReminderDays:     req.ReminderDays,
			NotificationType: req.NotificationType,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, newReminderResp(*reminder))
	}
}

// ListUserReminders returns reminder history
// 200 — успешная обработка запроса.
// 401 — пользователь не авторизован.
// 500 — внутренняя ошибка сервера.
func (rh *ReminderHandler) ListUserReminders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		reminders, err := rh.svc.ListUserReminders(r.Context(), payload.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := make([]ReminderResp, 0, len(reminders))
		for _, reminder := range reminders {
			resp = append(resp, newReminderResp(reminder))
		}

		writeJSON(w, r, http.StatusOK, resp)
	}
}
