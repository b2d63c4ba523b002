//go:generate mockgen -source=payment.go -destination=mocks/payment_mock.go -package=mocks

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/payment/flutterwave"
	"github.com/rookgm/storefront/internal/telemetry"
	"github.com/rookgm/storefront/internal/webhook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentService interface {
	// Initiate creates provider payment intent for stored order
	Initiate(ctx context.Context, provider models.Provider, req models.InitiateRequest) (*models.Intent, error)
}

type Reconciler interface {
	// Reconcile applies payment event to mapped order
	Reconcile(ctx context.Context, event models.PaymentEvent) (models.Outcome, error)
	// Cancel cancels pending order mapped by provider token
	Cancel(ctx context.Context, provider models.Provider, token string) (models.Outcome, error)
}

type SignatureVerifier interface {
	Verify(body []byte, signature string) error
}

// PaymentHandler represents HTTP handler for payment-related requests
type PaymentHandler struct {
	payments   PaymentService
	reconciler Reconciler
	verifier   SignatureVerifier
	metrics    *telemetry.Metrics
	logger     *zap.Logger
}

// NewPaymentHandler creates new PaymentHandler instance, metrics may be nil
func NewPaymentHandler(payments PaymentService, reconciler Reconciler, verifier SignatureVerifier, metrics *telemetry.Metrics, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		reconciler: reconciler,
		verifier:   verifier,
		metrics:    metrics,
		logger:     logger,
	}
}

type flutterwaveInitRequest struct {
	Amount  *decimal.Decimal `json:"amount"`
	Total   *decimal.Decimal `json:"total"`
	Email   string           `json:"email"`
	Name    string           `json:"name"`
	OrderID string           `json:"orderId"`
}

type paypalInitRequest struct {
	Total   json.RawMessage `json:"total"`
	OrderID string          `json:"orderId"`
}

type linkResponse struct {
	Link string `json:"link"`
}

type outcomeResponse struct {
	Status  models.Outcome `json:"status"`
	Message string         `json:"message"`
}

// InitiateFlutterwave starts Flutterwave payment for order
// 200 — ссылка на оплату создана;
// 400 — неверный формат запроса или сумма не совпадает с заказом;
// 404 — заказ не найден;
// 409 — заказ уже не ожидает оплаты;
// 500 — платёж не создан.
func (ph *PaymentHandler) InitiateFlutterwave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req flutterwaveInitRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		amount := req.Amount
		if amount == nil {
			amount = req.Total
		}

		intent, err := ph.payments.Initiate(r.Context(), models.ProviderFlutterwave, models.InitiateRequest{
			OrderID: req.OrderID,
			Amount:  amount,
			Email:   req.Email,
			Name:    req.Name,
		})
		if err != nil {
			ph.initiateError(w, r, "Flutterwave payment initiation failed", err)
			return
		}

		writeJSON(w, r, http.StatusOK, linkResponse{Link: intent.RedirectURL})
	}
}

// InitiatePayPal starts PayPal payment for order
// 200 — ссылка на оплату создана;
// 400 — не указана сумма или заказ;
// 404 — заказ не найден;
// 409 — заказ уже не ожидает оплаты;
// 500 — платёж не создан.
func (ph *PaymentHandler) InitiatePayPal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paypalInitRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		total, ok := jsonNumber(req.Total)
		if !ok || req.OrderID == "" {
			writeMessage(w, r, http.StatusBadRequest, "Missing or invalid total or orderId")
			return
		}

		intent, err := ph.payments.Initiate(r.Context(), models.ProviderPayPal, models.InitiateRequest{
			OrderID: req.OrderID,
			Amount:  total,
		})
		if err != nil {
			ph.initiateError(w, r, "PayPal payment initialization failed", err)
			return
		}

		writeJSON(w, r, http.StatusOK, linkResponse{Link: intent.RedirectURL})
	}
}

// jsonNumber converts bare JSON number, quoted numbers and null are rejected
func jsonNumber(raw json.RawMessage) (*decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return nil, false
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, false
	}
	return &d, true
}

// initiateError answers initiation failure, provider failures are 500 with details
func (ph *PaymentHandler) initiateError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var pErr *models.ProviderError
	switch {
	case errors.As(err, &pErr):
		writeJSON(w, r, http.StatusInternalServerError, messageResponse{Message: msg, Details: pErr.Error()})
	case errorStatus(err) == http.StatusInternalServerError:
		ph.logger.Error("payment initiation", zap.Error(err))
		writeMessage(w, r, http.StatusInternalServerError, msg)
	default:
		writeError(w, r, err)
	}
}

// FlutterwaveWebhook reconciles order from signed charge notification
// 200 — событие обработано или проигнорировано;
// 400 — платёж не подтверждён провайдером;
// 401 — подпись не прошла проверку;
// 404 — заказ для tx_ref не найден;
// 502 — провайдер недоступен, заказ остаётся в ожидании.
func (ph *PaymentHandler) FlutterwaveWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// signature is computed over raw bytes, body must not be decoded before verification
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			ph.rejected("body")
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		if err := ph.verifier.Verify(body, r.Header.Get(webhook.SignatureHeader)); err != nil {
			ph.rejected("signature")
			ph.logger.Warn("invalid webhook signature", zap.String("remote_addr", r.RemoteAddr))
			writeMessage(w, r, http.StatusUnauthorized, "invalid signature")
			return
		}

		event, err := flutterwave.ParseEvent(body)
		if err != nil {
			ph.rejected("payload")
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}

		if !event.Completed() {
			ph.logger.Debug("webhook event is ignored", zap.String("event", event.Type))
			writeMessage(w, r, http.StatusOK, "Event ignored")
			return
		}

		if event.TxRef == "" {
			ph.rejected("payload")
			writeMessage(w, r, http.StatusBadRequest, "missing tx_ref")
			return
		}

		outcome, err := ph.reconciler.Reconcile(r.Context(), models.PaymentEvent{
			Provider:      models.ProviderFlutterwave,
			Trigger:       models.TriggerWebhook,
			Token:         event.TxRef,
			TransactionID: event.TransactionID,
		})
		if err != nil {
			if errors.Is(err, models.ErrTokenNotFound) {
				writeMessage(w, r, http.StatusNotFound, "No order mapped to tx_ref")
				return
			}
			writeError(w, r, err)
			return
		}

		ph.writeOutcome(w, r, outcome)
	}
}

// VerifyFlutterwave reconciles order after redirect back from Flutterwave
// 200 — заказ оплачен или уже завершён;
// 400 — не указан tx_ref или платёж не подтверждён;
// 404 — заказ для tx_ref не найден;
// 502 — провайдер недоступен.
func (ph *PaymentHandler) VerifyFlutterwave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txRef := r.URL.Query().Get("tx_ref")
		if txRef == "" {
			writeMessage(w, r, http.StatusBadRequest, "missing tx_ref")
			return
		}

		outcome, err := ph.reconciler.Reconcile(r.Context(), models.PaymentEvent{
			Provider: models.ProviderFlutterwave,
			Trigger:  models.TriggerCapture,
			Token:    txRef,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		ph.writeOutcome(w, r, outcome)
	}
}

// CapturePayPal captures approved PayPal order and reconciles mapped order
// 200 — платёж списан или заказ уже завершён;
// 400 — платёж не завершён;
// 404 — заказ для токена не найден;
// 502 — провайдер недоступен.
func (ph *PaymentHandler) CapturePayPal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "providerOrderID")

		outcome, err := ph.reconciler.Reconcile(r.Context(), models.PaymentEvent{
			Provider:      models.ProviderPayPal,
			Trigger:       models.TriggerCapture,
			Token:         token,
			TransactionID: token,
		})
		if err != nil {
			if errors.Is(err, models.ErrTokenNotFound) {
				writeMessage(w, r, http.StatusNotFound, "Order mapping not found")
				return
			}
			writeError(w, r, err)
			return
		}

		ph.writeOutcome(w, r, outcome)
	}
}

// CancelPayPal cancels order when user aborts PayPal payment
// 200 — заказ отменён или уже завершён;
// 404 — заказ для токена не найден.
func (ph *PaymentHandler) CancelPayPal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := ph.reconciler.Cancel(r.Context(), models.ProviderPayPal, chi.URLParam(r, "providerOrderID"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		ph.writeOutcome(w, r, outcome)
	}
}

func (ph *PaymentHandler) writeOutcome(w http.ResponseWriter, r *http.Request, outcome models.Outcome) {
	status := http.StatusOK
	if !outcome.Success() {
		status = http.StatusBadRequest
	}

	msg := ""

	switch outcome {
	case models.OutcomeCompleted:
		msg = "Order status updated"
	case models.OutcomeAlreadyCompleted:
		msg = "Order already completed"
	case models.OutcomeCancelled:
		msg = "Order cancelled"
	case models.OutcomeNoop:
		msg = "Order is already finalized"
	case models.OutcomeFailed:
		msg = "Transaction verification failed"
	}

	writeJSON(w, r, status, outcomeResponse{Status: outcome, Message: msg})
}

func (ph *PaymentHandler) rejected(reason string) {
	if ph.metrics != nil {
		ph.metrics.WebhookRejected.WithLabelValues(reason).Inc()
	}
}
