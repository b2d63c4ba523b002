package service

import (
	"context"
	"testing"

	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPaymentEnv(order models.Order) (*PaymentService, *memStore, *fakeGateway) {
	store := newMemStore()
	store.addOrder(order)
	gateway := &fakeGateway{intent: &models.Intent{
		RedirectURL:   "https://checkout.example.com/pay/abc",
		ProviderToken: testToken,
	}}
	ps := NewPaymentService(store, store,
		map[models.Provider]PaymentGateway{order.PaymentMethod: gateway}, nil, zap.NewNop())
	return ps, store, gateway
}

func TestPaymentService_Initiate(t *testing.T) {
	ps, store, gateway := newPaymentEnv(pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000"))

	amount := decimal.RequireFromString("25000.00")
	intent, err := ps.Initiate(context.Background(), models.ProviderFlutterwave, models.InitiateRequest{
		OrderID: testOrderID,
		Amount:  &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/pay/abc", intent.RedirectURL)

	req := gateway.lastIntent.Load().(models.IntentRequest)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("25000")))
	assert.Equal(t, models.CurrencyNGN, req.Currency)
	assert.Equal(t, testOrderID, req.OrderID)
	// customer falls back to shipping details
	assert.Equal(t, "ada@example.com", req.Customer.Email)
	assert.Equal(t, "Ada", req.Customer.Name)

	pt, err := store.GetToken(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, testOrderID, pt.OrderID)
	assert.Equal(t, models.ProviderFlutterwave, pt.Provider)
}

func TestPaymentService_Initiate_Errors(t *testing.T) {
	tooLow := decimal.RequireFromString("100")
	zero := decimal.Zero

	tests := []struct {
		name     string
		order    func() models.Order
		provider models.Provider
		req      models.InitiateRequest
		wantErr  error
	}{
		{
			name:     "invalid_order_id",
			order:    func() models.Order { return pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000") },
			provider: models.ProviderFlutterwave,
			req:      models.InitiateRequest{OrderID: "42"},
			wantErr:  models.ErrInvalidInput,
		},
		{
			name:     "unknown_order",
			order:    func() models.Order { return pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000") },
			provider: models.ProviderFlutterwave,
			req:      models.InitiateRequest{OrderID: "0b0c0d0e-1111-4222-8333-444455556666"},
			wantErr:  models.ErrOrderNotFound,
		},
		{
			name: "order_not_pending",
			order: func() models.Order {
				o := pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000")
				o.Status = models.OrderStatusCompleted
				return o
			},
			provider: models.ProviderFlutterwave,
			req:      models.InitiateRequest{OrderID: testOrderID},
			wantErr:  models.ErrOrderNotPending,
		},
		{
			name:     "amount_mismatch",
			order:    func() models.Order { return pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000") },
			provider: models.ProviderFlutterwave,
			req:      models.InitiateRequest{OrderID: testOrderID, Amount: &tooLow},
			wantErr:  models.ErrAmountMismatch,
		},
		{
			name:     "zero_amount",
			order:    func() models.Order { return pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000") },
			provider: models.ProviderFlutterwave,
			req:      models.InitiateRequest{OrderID: testOrderID, Amount: &zero},
			wantErr:  models.ErrInvalidAmount,
		},
		{
			name:     "unsupported_provider",
			order:    func() models.Order { return pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000") },
			provider: models.Provider("stripe"),
			req:      models.InitiateRequest{OrderID: testOrderID},
			wantErr:  models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, _, gateway := newPaymentEnv(tt.order())

			_, err := ps.Initiate(context.Background(), tt.provider, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, gateway.lastIntent.Load())
		})
	}
}

func TestPaymentService_Initiate_MethodMismatch(t *testing.T) {
	store := newMemStore()
	store.addOrder(pendingOrder(models.ProviderPayPal, models.CurrencyUSD, "32.50"))
	ps := NewPaymentService(store, store, map[models.Provider]PaymentGateway{
		models.ProviderFlutterwave: &fakeGateway{},
		models.ProviderPayPal:      &fakeGateway{},
	}, nil, zap.NewNop())

	_, err := ps.Initiate(context.Background(), models.ProviderFlutterwave, models.InitiateRequest{OrderID: testOrderID})
	require.ErrorIs(t, err, models.ErrPaymentMethodMismatch)
}

func TestPaymentService_Initiate_TokenNotPersisted(t *testing.T) {
	ps, store, _ := newPaymentEnv(pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000"))
	store.tokenErr = assert.AnError

	intent, err := ps.Initiate(context.Background(), models.ProviderFlutterwave, models.InitiateRequest{OrderID: testOrderID})
	require.ErrorIs(t, err, models.ErrPaymentTokenNotPersisted)
	require.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, intent)
}

func TestPaymentService_Initiate_ProviderUnavailable(t *testing.T) {
	ps, store, gateway := newPaymentEnv(pendingOrder(models.ProviderFlutterwave, models.CurrencyNGN, "25000"))
	gateway.initiateErr = &models.ProviderError{Provider: models.ProviderFlutterwave, Op: "initiate", StatusCode: 500}

	_, err := ps.Initiate(context.Background(), models.ProviderFlutterwave, models.InitiateRequest{OrderID: testOrderID})
	require.ErrorIs(t, err, models.ErrProviderUnavailable)

	_, err = store.GetToken(context.Background(), testToken)
	assert.ErrorIs(t, err, models.ErrDataNotFound)
}
