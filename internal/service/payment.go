package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/telemetry"
	"go.uber.org/zap"
)

// OrderReader is interface for reading orders
type OrderReader interface {
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
}

// PaymentService starts provider payments for stored orders
type PaymentService struct {
	orders   OrderReader
	tokens   TokenRepository
	gateways map[models.Provider]PaymentGateway
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(
	orders OrderReader,
	tokens TokenRepository,
	gateways map[models.Provider]PaymentGateway,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		orders:   orders,
		tokens:   tokens,
		gateways: gateways,
		metrics:  metrics,
		logger:   logger,
	}
}

// Initiate creates provider payment intent for order.
// Charged amount is always the stored order total, client amount is only checked against it.
func (ps *PaymentService) Initiate(ctx context.Context, provider models.Provider, req models.InitiateRequest) (*models.Intent, error) {
	gateway, ok := ps.gateways[provider]
	if !provider.Valid() || !ok {
		return nil, models.NewValidationError("provider", "unsupported payment provider")
	}

	if _, err := uuid.Parse(req.OrderID); err != nil {
		return nil, models.NewValidationError("order_id", "must be valid uuid")
	}

	order, err := ps.orders.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.Status != models.OrderStatusPending {
		return nil, models.ErrOrderNotPending
	}
	if order.PaymentMethod != provider {
		return nil, models.ErrPaymentMethodMismatch
	}

	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, models.ErrInvalidAmount
		}
		if !req.Amount.Round(2).Equal(order.TotalAmount.Round(2)) {
			return nil, models.ErrAmountMismatch
		}
	}

	customer := models.Customer{
		Email: strings.TrimSpace(req.Email),
		Name:  strings.TrimSpace(req.Name),
	}
	if customer.Email == "" {
		customer.Email = order.ShippingInfo.Email
	}
	if customer.Name == "" {
		customer.Name = order.ShippingInfo.Name
	}

	log := ps.logger.With(zap.String("order_id", order.ID), zap.String("provider", string(provider)))

	start := time.Now()
	intent, err := gateway.Initiate(ctx, models.IntentRequest{
		Amount:   order.TotalAmount,
		Currency: order.Currency,
		Customer: customer,
		OrderID:  order.ID,
	})
	if ps.metrics != nil {
		ps.metrics.ObserveProvider(string(provider), "initiate", start)
	}
	if err != nil {
		log.Error("payment initiation error", zap.Error(err))
		return nil, err
	}

	err = ps.tokens.CreateToken(ctx, &models.PaymentToken{
		Token:    intent.ProviderToken,
		OrderID:  order.ID,
		Provider: provider,
	})
	if err != nil {
		// intent exists at provider but can not be reconciled, do not hand it out
		log.Error("store payment token", zap.String("token", intent.ProviderToken), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrPaymentTokenNotPersisted, err)
	}

	log.Info("payment is initiated", zap.String("token", intent.ProviderToken))

	return intent, nil
}
