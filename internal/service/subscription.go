package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/email"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
)

// SubscriptionRepository is interface for storing newsletter subscriptions
type SubscriptionRepository interface {
	// CreateSubscription inserts subscription, returns models.ErrConflictData for existing email
	CreateSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
}

// SubscriptionService handles newsletter subscriptions and contact form
type SubscriptionService struct {
	repo   SubscriptionRepository
	mailer Mailer
	inbox  string
	logger *zap.Logger
	newID  func() string
}

// NewSubscriptionService creates new SubscriptionService instance.
// inbox receives contact form messages.
func NewSubscriptionService(repo SubscriptionRepository, mailer Mailer, inbox string, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:   repo,
		mailer: mailer,
		inbox:  inbox,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Subscribe stores subscription and sends confirmation email
func (ss *SubscriptionService) Subscribe(ctx context.Context, address string) error {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return models.NewValidationError("email", "is required")
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return models.NewValidationError("email", "must be valid email")
	}

	_, err := ss.repo.CreateSubscription(ctx, &models.Subscription{ID: ss.newID(), Email: address})
	if err != nil {
		if errors.Is(err, models.ErrConflictData) {
			return models.ErrAlreadySubscribed
		}
		return fmt.Errorf("create subscription: %w", err)
	}

	msg, err := email.SubscriptionMessage(address)
	if err == nil {
		err = ss.mailer.Send(ctx, msg)
	}
	if err != nil {
		// subscription is kept
		ss.logger.Error("send subscription email", zap.String("email", address), zap.Error(err))
	}

	return nil
}

// Contact sends contact form message to store inbox
func (ss *SubscriptionService) Contact(ctx context.Context, msg models.ContactMessage) error {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)

	switch {
	case msg.Name == "":
		return models.NewValidationError("name", "is required")
	case msg.Email == "":
		return models.NewValidationError("email", "is required")
	case msg.Message == "":
		return models.NewValidationError("message", "is required")
	}
	if _, err := mail.ParseAddress(msg.Email); err != nil {
		return models.NewValidationError("email", "must be valid email")
	}

	m, err := email.ContactMessage(ss.inbox, msg)
	if err != nil {
		return fmt.Errorf("render contact email: %w", err)
	}

	if err := ss.mailer.Send(ctx, m); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}

	return nil
}
