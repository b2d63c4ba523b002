package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rookgm/storefront/internal/handler/http/mocks"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/telemetry"
	"github.com/rookgm/storefront/internal/webhook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const webhookSecret = "webhook-secret"

type paymentMocks struct {
	payments   *mocks.MockPaymentService
	reconciler *mocks.MockReconciler
}

func newPaymentMocks(t *testing.T) paymentMocks {
	ctrl := gomock.NewController(t)
	return paymentMocks{
		payments:   mocks.NewMockPaymentService(ctrl),
		reconciler: mocks.NewMockReconciler(ctrl),
	}
}

func newTestPaymentHandler(m paymentMocks, metrics *telemetry.Metrics) *PaymentHandler {
	return NewPaymentHandler(m.payments, m.reconciler, webhook.NewVerifier(webhookSecret), metrics, zap.NewNop())
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestPaymentHandler_InitiateFlutterwave(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) paymentMocks
		wantStatusCode int
		wantBody       any
	}{
		{
			// 200 — ссылка на оплату создана;
			name: "valid_request_return_link",
			body: fmt.Sprintf(`{"amount": 12500, "email": "ada@example.com", "name": "Ada", "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), models.ProviderFlutterwave, gomock.Any()).
					DoAndReturn(func(_ any, _ models.Provider, req models.InitiateRequest) (*models.Intent, error) {
						assert.Equal(t, testOrderID, req.OrderID)
						require.NotNil(t, req.Amount)
						assert.True(t, req.Amount.Equal(decimal.NewFromInt(12500)))
						assert.Equal(t, "ada@example.com", req.Email)
						return &models.Intent{RedirectURL: "https://checkout.flutterwave.com/pay/abc", ProviderToken: "tx-1"}, nil
					})
				return m
			},
			wantStatusCode: http.StatusOK,
			wantBody:       linkResponse{Link: "https://checkout.flutterwave.com/pay/abc"},
		},
		{
			// 200 — ссылка на оплату создана;
			name: "total_is_accepted_instead_of_amount",
			body: fmt.Sprintf(`{"total": "12500.00", "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), models.ProviderFlutterwave, gomock.Any()).
					DoAndReturn(func(_ any, _ models.Provider, req models.InitiateRequest) (*models.Intent, error) {
						require.NotNil(t, req.Amount)
						assert.Equal(t, "12500", req.Amount.String())
						return &models.Intent{RedirectURL: "https://pay"}, nil
					})
				return m
			},
			wantStatusCode: http.StatusOK,
			wantBody:       linkResponse{Link: "https://pay"},
		},
		{
			// 400 — неверный формат запроса или сумма не совпадает с заказом;
			name: "amount_mismatch_return_400",
			body: fmt.Sprintf(`{"amount": 1, "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrAmountMismatch)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       messageResponse{Message: models.ErrAmountMismatch.Error()},
		},
		{
			// 400 — неверный формат запроса или сумма не совпадает с заказом;
			name: "malformed_body_return_400",
			body: "not json",
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       messageResponse{Message: "bad request"},
		},
		{
			// 404 — заказ не найден;
			name: "unknown_order_return_404",
			body: fmt.Sprintf(`{"orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrOrderNotFound)
				return m
			},
			wantStatusCode: http.StatusNotFound,
			wantBody:       messageResponse{Message: models.ErrOrderNotFound.Error()},
		},
		{
			// 409 — заказ уже не ожидает оплаты;
			name: "completed_order_return_409",
			body: fmt.Sprintf(`{"orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrOrderNotPending)
				return m
			},
			wantStatusCode: http.StatusConflict,
			wantBody:       messageResponse{Message: models.ErrOrderNotPending.Error()},
		},
		{
			// 500 — платёж не создан.
			name: "provider_error_return_500_with_details",
			body: fmt.Sprintf(`{"orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, &models.ProviderError{Provider: models.ProviderFlutterwave, Op: "initiate", StatusCode: 400, Detail: "invalid key"})
				return m
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody: messageResponse{
				Message: "Flutterwave payment initiation failed",
				Details: "flutterwave initiate: status 400: invalid key",
			},
		},
		{
			// 500 — платёж не создан.
			name: "token_not_persisted_return_500",
			body: fmt.Sprintf(`{"orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrPaymentTokenNotPersisted)
				return m
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       messageResponse{Message: "Flutterwave payment initiation failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/flutterwave/initiate", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler := newTestPaymentHandler(tt.setup(t), nil)
			handler.InitiateFlutterwave()(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			var got any
			switch tt.wantBody.(type) {
			case linkResponse:
				got = decodeBody[linkResponse](t, res)
			case messageResponse:
				got = decodeBody[messageResponse](t, res)
			}
			if diff := cmp.Diff(tt.wantBody, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPaymentHandler_InitiatePayPal(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) paymentMocks
		wantStatusCode int
		wantMessage    string
	}{
		{
			// 200 — ссылка на оплату создана;
			name: "valid_request_return_200",
			body: fmt.Sprintf(`{"total": 8.33, "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), models.ProviderPayPal, gomock.Any()).
					Return(&models.Intent{RedirectURL: "https://www.paypal.com/checkoutnow?token=5O1", ProviderToken: "5O1"}, nil)
				return m
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 400 — не указана сумма или заказ;
			name: "missing_total_return_400",
			body: fmt.Sprintf(`{"orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Missing or invalid total or orderId",
		},
		{
			// 400 — не указана сумма или заказ;
			name: "string_total_return_400",
			body: fmt.Sprintf(`{"total": "8.33", "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Missing or invalid total or orderId",
		},
		{
			// 400 — не указана сумма или заказ;
			name: "null_total_return_400",
			body: fmt.Sprintf(`{"total": null, "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Missing or invalid total or orderId",
		},
		{
			// 400 — не указана сумма или заказ;
			name: "missing_order_return_400",
			body: `{"total": 8.33}`,
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Missing or invalid total or orderId",
		},
		{
			// 500 — платёж не создан.
			name: "provider_unavailable_return_500",
			body: fmt.Sprintf(`{"total": 8.33, "orderId": %q}`, testOrderID),
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.payments.EXPECT().Initiate(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, &models.ProviderError{Provider: models.ProviderPayPal, Op: "initiate", Detail: "timeout"})
				return m
			},
			wantStatusCode: http.StatusInternalServerError,
			wantMessage:    "PayPal payment initialization failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/paypal/initiate", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler := newTestPaymentHandler(tt.setup(t), nil)
			handler.InitiatePayPal()(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantStatusCode == http.StatusOK {
				got := decodeBody[linkResponse](t, res)
				assert.Equal(t, "https://www.paypal.com/checkoutnow?token=5O1", got.Link)
				return
			}
			got := decodeBody[messageResponse](t, res)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestPaymentHandler_FlutterwaveWebhook(t *testing.T) {
	completed := `{"event":"charge.completed","data":{"id":4975363,"tx_ref":"tx-1","status":"successful"}}`
	verifier := webhook.NewVerifier(webhookSecret)

	tests := []struct {
		name           string
		body           string
		signature      func(body string) string
		setup          func(t *testing.T) paymentMocks
		wantStatusCode int
		wantBody       outcomeResponse
		wantRejected   string
	}{
		{
			// 200 — событие обработано или проигнорировано;
			name:      "signed_event_completes_order",
			body:      completed,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), models.PaymentEvent{
					Provider:      models.ProviderFlutterwave,
					Trigger:       models.TriggerWebhook,
					Token:         "tx-1",
					TransactionID: "4975363",
				}).Return(models.OutcomeCompleted, nil)
				return m
			},
			wantStatusCode: http.StatusOK,
			wantBody:       outcomeResponse{Status: models.OutcomeCompleted, Message: "Order status updated"},
		},
		{
			// 200 — событие обработано или проигнорировано;
			name:      "redelivery_is_success",
			body:      completed,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(models.OutcomeAlreadyCompleted, nil)
				return m
			},
			wantStatusCode: http.StatusOK,
			wantBody:       outcomeResponse{Status: models.OutcomeAlreadyCompleted, Message: "Order already completed"},
		},
		{
			// 400 — платёж не подтверждён провайдером;
			name:      "failed_verification_return_400",
			body:      completed,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(models.OutcomeFailed, nil)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       outcomeResponse{Status: models.OutcomeFailed, Message: "Transaction verification failed"},
		},
		{
			// 401 — подпись не прошла проверку;
			name:      "tampered_body_return_401",
			body:      strings.Replace(completed, "tx-1", "tx-2", 1),
			signature: func(string) string { return verifier.Sign([]byte(completed)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusUnauthorized,
			wantRejected:   "signature",
		},
		{
			// 401 — подпись не прошла проверку;
			name:      "missing_signature_return_401",
			body:      completed,
			signature: func(string) string { return "" },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusUnauthorized,
			wantRejected:   "signature",
		},
		{
			// 200 — событие обработано или проигнорировано;
			name:      "other_event_is_ignored",
			body:      `{"event":"transfer.completed","data":{"id":1,"tx_ref":"tx-1"}}`,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 400 — платёж не подтверждён провайдером;
			name:      "signed_garbage_return_400",
			body:      `{"event":`,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Times(0)
				return m
			},
			wantStatusCode: http.StatusBadRequest,
			wantRejected:   "payload",
		},
		{
			// 404 — заказ для tx_ref не найден;
			name:      "unknown_tx_ref_return_404",
			body:      completed,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(models.Outcome(""), models.ErrTokenNotFound)
				return m
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			// 502 — провайдер недоступен, заказ остаётся в ожидании.
			name:      "provider_unavailable_return_502",
			body:      completed,
			signature: func(body string) string { return verifier.Sign([]byte(body)) },
			setup: func(t *testing.T) paymentMocks {
				m := newPaymentMocks(t)
				m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
					Return(models.Outcome(""), &models.ProviderError{Provider: models.ProviderFlutterwave, Op: "verify"})
				return m
			},
			wantStatusCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/flutterwave", strings.NewReader(tt.body))
			req.Header.Set(webhook.SignatureHeader, tt.signature(tt.body))
			w := httptest.NewRecorder()

			metrics := telemetry.NewMetrics(prometheus.NewRegistry())
			handler := newTestPaymentHandler(tt.setup(t), metrics)
			handler.FlutterwaveWebhook()(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantBody.Status != "" {
				got := decodeBody[outcomeResponse](t, res)
				if diff := cmp.Diff(tt.wantBody, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			}
			if tt.wantRejected != "" {
				assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WebhookRejected.WithLabelValues(tt.wantRejected)))
			}
		})
	}
}

func TestPaymentHandler_VerifyFlutterwave(t *testing.T) {
	t.Run("missing_tx_ref_return_400", func(t *testing.T) {
		m := newPaymentMocks(t)
		m.reconciler.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Times(0)

		w := httptest.NewRecorder()
		newTestPaymentHandler(m, nil).VerifyFlutterwave()(w, httptest.NewRequest(http.MethodGet, "/api/flutterwave/verify", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("completed_return_200", func(t *testing.T) {
		m := newPaymentMocks(t)
		m.reconciler.EXPECT().Reconcile(gomock.Any(), models.PaymentEvent{
			Provider: models.ProviderFlutterwave,
			Trigger:  models.TriggerCapture,
			Token:    "tx-1",
		}).Return(models.OutcomeCompleted, nil)

		w := httptest.NewRecorder()
		newTestPaymentHandler(m, nil).VerifyFlutterwave()(w, httptest.NewRequest(http.MethodGet, "/api/flutterwave/verify?tx_ref=tx-1", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestPaymentHandler_CapturePayPal(t *testing.T) {
	tests := []struct {
		name           string
		outcome        models.Outcome
		err            error
		wantStatusCode int
		wantMessage    string
	}{
		{
			// 200 — платёж списан или заказ уже завершён;
			name:           "captured_return_200",
			outcome:        models.OutcomeCompleted,
			wantStatusCode: http.StatusOK,
			wantMessage:    "Order status updated",
		},
		{
			// 200 — платёж списан или заказ уже завершён;
			name:           "second_capture_return_200",
			outcome:        models.OutcomeAlreadyCompleted,
			wantStatusCode: http.StatusOK,
			wantMessage:    "Order already completed",
		},
		{
			// 400 — платёж не завершён;
			name:           "not_completed_return_400",
			outcome:        models.OutcomeFailed,
			wantStatusCode: http.StatusBadRequest,
			wantMessage:    "Transaction verification failed",
		},
		{
			// 404 — заказ для токена не найден;
			name:           "unknown_token_return_404",
			err:            models.ErrTokenNotFound,
			wantStatusCode: http.StatusNotFound,
			wantMessage:    "Order mapping not found",
		},
		{
			// 502 — провайдер недоступен.
			name:           "provider_unavailable_return_502",
			err:            models.ErrProviderUnavailable,
			wantStatusCode: http.StatusBadGateway,
			wantMessage:    models.ErrProviderUnavailable.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPaymentMocks(t)
			m.reconciler.EXPECT().Reconcile(gomock.Any(), models.PaymentEvent{
				Provider:      models.ProviderPayPal,
				Trigger:       models.TriggerCapture,
				Token:         "5O190127TN364715T",
				TransactionID: "5O190127TN364715T",
			}).Return(tt.outcome, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/api/paypal/capture/5O190127TN364715T", nil)
			req = withURLParam(req, "providerOrderID", "5O190127TN364715T")
			w := httptest.NewRecorder()

			newTestPaymentHandler(m, nil).CapturePayPal()(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			got := decodeBody[outcomeResponse](t, res)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestPaymentHandler_CancelPayPal(t *testing.T) {
	m := newPaymentMocks(t)
	m.reconciler.EXPECT().Cancel(gomock.Any(), models.ProviderPayPal, "5O1").Return(models.OutcomeCancelled, nil)
	m.reconciler.EXPECT().Cancel(gomock.Any(), models.ProviderPayPal, "unknown").Return(models.Outcome(""), models.ErrTokenNotFound)

	handler := newTestPaymentHandler(m, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/paypal/cancel/5O1", nil), "providerOrderID", "5O1")
	w := httptest.NewRecorder()
	handler.CancelPayPal()(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Order cancelled")

	req = withURLParam(httptest.NewRequest(http.MethodPost, "/api/paypal/cancel/unknown", nil), "providerOrderID", "unknown")
	w = httptest.NewRecorder()
	handler.CancelPayPal()(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
