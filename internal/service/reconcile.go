package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/telemetry"
	"go.uber.org/zap"
)

const cancelReason = "User canceled payment"

// PaymentGateway is interface for payment provider adapter
type PaymentGateway interface {
	// Initiate creates payment intent
	Initiate(ctx context.Context, req models.IntentRequest) (*models.Intent, error)
	// Verify asks provider for authoritative transaction status
	Verify(ctx context.Context, req models.VerifyRequest) (*models.Verification, error)
}

// OrderStateRepository is interface for reading orders and changing order status
type OrderStateRepository interface {
	// GetOrderByID returns order with items
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	// TransitionOrder moves pending order to status, returns false when order is not pending
	TransitionOrder(ctx context.Context, orderID string, status models.OrderStatus, reason *string) (bool, error)
}

// TokenRepository is interface for interacting with payment tokens
type TokenRepository interface {
	// CreateToken persists token to order mapping
	CreateToken(ctx context.Context, token *models.PaymentToken) error
	// GetToken returns mapping by provider token
	GetToken(ctx context.Context, token string) (*models.PaymentToken, error)
}

// EventPublisher publishes order events
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event models.OrderCompletedEvent) error
}

// Reconciler moves orders out of pending state according to verified payment results
type Reconciler struct {
	orders    OrderStateRepository
	tokens    TokenRepository
	gateways  map[models.Provider]PaymentGateway
	publisher EventPublisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler creates new Reconciler instance.
// publisher and metrics may be nil.
func NewReconciler(
	orders OrderStateRepository,
	tokens TokenRepository,
	gateways map[models.Provider]PaymentGateway,
	publisher EventPublisher,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		orders:    orders,
		tokens:    tokens,
		gateways:  gateways,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Reconcile applies payment event to order mapped by event token.
// Verification result is taken from provider, event fields other than token
// and transaction id are never trusted.
func (rc *Reconciler) Reconcile(ctx context.Context, event models.PaymentEvent) (models.Outcome, error) {
	outcome, err := rc.reconcile(ctx, event)

	if rc.metrics != nil {
		label := string(outcome)
		if err != nil {
			label = "error"
		}
		rc.metrics.Reconciliations.WithLabelValues(string(event.Provider), string(event.Trigger), label).Inc()
	}

	return outcome, err
}

// Cancel cancels pending order mapped by provider token
func (rc *Reconciler) Cancel(ctx context.Context, provider models.Provider, token string) (models.Outcome, error) {
	return rc.Reconcile(ctx, models.PaymentEvent{
		Provider: provider,
		Trigger:  models.TriggerCancel,
		Token:    token,
	})
}

func (rc *Reconciler) reconcile(ctx context.Context, event models.PaymentEvent) (models.Outcome, error) {
	if event.Token == "" {
		return "", models.NewValidationError("token", "must not be empty")
	}

	pt, err := rc.tokens.GetToken(ctx, event.Token)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return "", models.ErrTokenNotFound
		}
		return "", fmt.Errorf("get payment token: %w", err)
	}

	if pt.Provider != event.Provider {
		rc.logger.Warn("payment token belongs to another provider",
			zap.String("token", pt.Token),
			zap.String("token_provider", string(pt.Provider)),
			zap.String("event_provider", string(event.Provider)))
		return "", models.ErrTokenNotFound
	}

	order, err := rc.orders.GetOrderByID(ctx, pt.OrderID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return "", models.ErrOrderNotFound
		}
		return "", fmt.Errorf("get order: %w", err)
	}

	log := rc.logger.With(
		zap.String("order_id", order.ID),
		zap.String("provider", string(event.Provider)),
		zap.String("trigger", string(event.Trigger)))

	if event.Trigger == models.TriggerCancel {
		return rc.cancel(ctx, log, order)
	}

	switch {
	case order.Status == models.OrderStatusCompleted:
		log.Info("order is already completed")
		return models.OutcomeAlreadyCompleted, nil
	case order.Status.Terminal():
		log.Warn("payment event for terminal order is ignored", zap.String("status", string(order.Status)))
		return models.OutcomeNoop, nil
	}

	gateway, ok := rc.gateways[pt.Provider]
	if !ok {
		return "", fmt.Errorf("no gateway for provider %q", pt.Provider)
	}

	start := rc.now()
	verification, err := gateway.Verify(ctx, models.VerifyRequest{
		TransactionID: event.TransactionID,
		Reference:     pt.Token,
	})
	if rc.metrics != nil {
		rc.metrics.ObserveProvider(string(pt.Provider), "verify", start)
	}
	if err != nil {
		log.Error("payment verification error", zap.Error(err))
		return "", fmt.Errorf("verify payment: %w", err)
	}

	if reason := rejectReason(order, pt, verification); reason != "" {
		log.Warn("payment is not confirmed", zap.String("reason", reason))

		ok, err := rc.orders.TransitionOrder(ctx, order.ID, models.OrderStatusFailed, &reason)
		if err != nil {
			return "", fmt.Errorf("fail order: %w", err)
		}
		if !ok {
			return rc.settled(ctx, order.ID)
		}
		return models.OutcomeFailed, nil
	}

	ok, err = rc.orders.TransitionOrder(ctx, order.ID, models.OrderStatusCompleted, nil)
	if err != nil {
		return "", fmt.Errorf("complete order: %w", err)
	}
	if !ok {
		// another event has won the race
		return rc.settled(ctx, order.ID)
	}

	log.Info("order is completed", zap.String("transaction_id", verification.TransactionID))
	rc.publishCompleted(ctx, log, order)

	return models.OutcomeCompleted, nil
}

func (rc *Reconciler) cancel(ctx context.Context, log *zap.Logger, order *models.Order) (models.Outcome, error) {
	if order.Status.Terminal() {
		log.Info("cancel for terminal order is ignored", zap.String("status", string(order.Status)))
		return models.OutcomeNoop, nil
	}

	reason := cancelReason
	ok, err := rc.orders.TransitionOrder(ctx, order.ID, models.OrderStatusCancelled, &reason)
	if err != nil {
		return "", fmt.Errorf("cancel order: %w", err)
	}
	if !ok {
		return models.OutcomeNoop, nil
	}

	log.Info("order is cancelled")
	return models.OutcomeCancelled, nil
}

// settled resolves outcome for order which has left pending state concurrently
func (rc *Reconciler) settled(ctx context.Context, orderID string) (models.Outcome, error) {
	order, err := rc.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("get order: %w", err)
	}
	if order.Status == models.OrderStatusCompleted {
		return models.OutcomeAlreadyCompleted, nil
	}
	return models.OutcomeNoop, nil
}

func (rc *Reconciler) publishCompleted(ctx context.Context, log *zap.Logger, order *models.Order) {
	if rc.publisher == nil {
		return
	}

	event := models.OrderCompletedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Email:       order.ShippingInfo.Email,
		Name:        order.ShippingInfo.Name,
		Total:       order.TotalAmount,
		Currency:    order.Currency,
		Provider:    order.PaymentMethod,
		CompletedAt: rc.now().UTC(),
	}
	if err := rc.publisher.PublishOrderCompleted(ctx, event); err != nil {
		log.Error("publish order completed event", zap.Error(err))
	}
}

// rejectReason returns failure reason when verification does not confirm order payment.
// Empty string means payment is confirmed.
func rejectReason(order *models.Order, pt *models.PaymentToken, v *models.Verification) string {
	switch {
	case v.Status != models.VerificationSucceeded:
		return fmt.Sprintf("Verification failed or status not successful (%s)", v.ProviderStatus)
	case v.Reference != pt.Token:
		return fmt.Sprintf("Verification reference mismatch (%s)", v.ProviderStatus)
	case v.Currency != "" && !strings.EqualFold(v.Currency, order.Currency):
		return fmt.Sprintf("Verified currency %s does not match order currency %s (%s)",
			v.Currency, order.Currency, v.ProviderStatus)
	case v.Currency != "" && v.Amount.LessThan(order.TotalAmount.Round(2)):
		return fmt.Sprintf("Verified amount %s is less than order total %s (%s)",
			v.Amount.StringFixed(2), order.TotalAmount.StringFixed(2), v.ProviderStatus)
	}
	return ""
}
