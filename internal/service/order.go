package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder inserts new order to database
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// CreateOrderItems inserts order lines
	CreateOrderItems(ctx context.Context, orderID string, items []models.OrderItem) error
	// DeleteOrder removes order
	DeleteOrder(ctx context.Context, orderID string) error
	// GetOrderByID returns order with items
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	// GetOrdersByUserID gets user orders
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	// GetShippingFee returns delivery fee for city
	GetShippingFee(ctx context.Context, country, city string) (*models.ShippingFee, error)
}

// RateProvider returns currency exchange rate
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// OrderService implements checkout and order queries
type OrderService struct {
	repo         OrderRepository
	rates        RateProvider
	fallbackRate decimal.Decimal
	logger       *zap.Logger
	newID        func() string
}

// NewOrderService creates new OrderService instance.
// fallbackRate is NGN to USD rate used when rates are unavailable.
func NewOrderService(repo OrderRepository, rates RateProvider, fallbackRate decimal.Decimal, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:         repo,
		rates:        rates,
		fallbackRate: fallbackRate,
		logger:       logger,
		newID:        uuid.NewString,
	}
}

// PlaceOrder validates checkout and stores pending order with its items
func (os *OrderService) PlaceOrder(ctx context.Context, userID string, checkout models.Checkout) (*models.Order, error) {
	if err := validateCheckout(checkout); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range checkout.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	fee, err := os.shippingFee(ctx, checkout.Shipping)
	if err != nil {
		return nil, err
	}

	total := subtotal.Add(fee)
	currency := models.CurrencyNGN

	if checkout.PaymentMethod == models.ProviderPayPal {
		total = total.Mul(os.usdRate(ctx))
		currency = models.CurrencyUSD
	}
	total = total.Round(2)

	if !total.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	order := &models.Order{
		ID:            os.newID(),
		UserID:        userID,
		Status:        models.OrderStatusPending,
		TotalAmount:   total,
		Currency:      currency,
		PaymentMethod: checkout.PaymentMethod,
		ShippingInfo:  checkout.Shipping,
	}

	order, err = os.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]models.OrderItem, 0, len(checkout.Items))
	for _, item := range checkout.Items {
		item.OrderID = order.ID
		items = append(items, item)
	}

	if err := os.repo.CreateOrderItems(ctx, order.ID, items); err != nil {
		// order without items must not stay behind
		if delErr := os.repo.DeleteOrder(ctx, order.ID); delErr != nil {
			os.logger.Error("delete order after items failure", zap.String("order_id", order.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create order items: %w", err)
	}
	order.Items = items

	os.logger.Info("order is placed",
		zap.String("order_id", order.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("currency", order.Currency),
		zap.String("payment_method", string(order.PaymentMethod)))

	return order, nil
}

// ListUserOrders returns list of user orders
func (os *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return os.repo.GetOrdersByUserID(ctx, userID)
}

// GetUserOrder returns order owned by user
func (os *OrderService) GetUserOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, models.NewValidationError("order_id", "must be valid uuid")
	}

	order, err := os.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	// foreign orders look like missing ones
	if order.UserID != userID {
		return nil, models.ErrOrderNotFound
	}

	return order, nil
}

func (os *OrderService) shippingFee(ctx context.Context, shipping models.ShippingInfo) (decimal.Decimal, error) {
	fee, err := os.repo.GetShippingFee(ctx, shipping.Country, shipping.City)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get shipping fee: %w", err)
	}
	return fee.Fee, nil
}

func (os *OrderService) usdRate(ctx context.Context) decimal.Decimal {
	if os.rates == nil {
		return os.fallbackRate
	}

	rate, err := os.rates.Rate(ctx, models.CurrencyNGN, models.CurrencyUSD)
	if err != nil {
		os.logger.Warn("exchange rate is unavailable, fallback rate is used",
			zap.String("rate", os.fallbackRate.String()), zap.Error(err))
		return os.fallbackRate
	}
	return rate
}

func validateCheckout(checkout models.Checkout) error {
	if len(checkout.Items) == 0 {
		return models.NewValidationError("items", "must not be empty")
	}

	for i, item := range checkout.Items {
		field := fmt.Sprintf("items[%d]", i)
		if _, err := uuid.Parse(item.ProductID); err != nil {
			return models.NewValidationError(field+".product_id", "must be valid uuid")
		}
		if item.Quantity < 1 {
			return models.NewValidationError(field+".quantity", "must be at least 1")
		}
		if !item.UnitPrice.IsPositive() {
			return models.NewValidationError(field+".unit_price", "must be positive")
		}
	}

	s := checkout.Shipping
	required := []struct {
		field string
		value string
	}{
		{"shipping.name", s.Name},
		{"shipping.email", s.Email},
		{"shipping.phone", s.Phone},
		{"shipping.address", s.Address},
		{"shipping.city", s.City},
		{"shipping.country", s.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return models.NewValidationError(r.field, "is required")
		}
	}

	if _, err := mail.ParseAddress(s.Email); err != nil {
		return models.NewValidationError("shipping.email", "must be valid email")
	}

	if !checkout.PaymentMethod.Valid() {
		return models.NewValidationError("payment_method", "unsupported payment method")
	}

	return nil
}
