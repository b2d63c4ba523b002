package repository

import (
	"context"

	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
)

const (
	insertSubscriptionQuery = `
						INSERT INTO subscriptions (id, email)
						VALUES ($1, $2)
						RETURNING created_at
`
)

// SubscriptionRepository stores newsletter subscriptions
type SubscriptionRepository struct {
	db *postgres.DB
}

// NewSubscriptionRepository creates new SubscriptionRepository instance
func NewSubscriptionRepository(db *postgres.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// CreateSubscription inserts newsletter subscription
func (sr *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	err := sr.db.QueryRow(ctx, insertSubscriptionQuery, sub.ID, sub.Email).Scan(&sub.CreatedAt)
	if err != nil {
		if errCode := sr.db.ErrorCode(err); errCode == postgres.ErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return sub, nil
}
