package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
)

const (
	upsertCartQuery = `
						INSERT INTO user_carts (user_id, cart_items, updated_at)
						VALUES ($1, $2, NOW())
						ON CONFLICT (user_id) DO UPDATE SET cart_items = EXCLUDED.cart_items, updated_at = NOW()
`
	selectCartQuery = `
						SELECT user_id, cart_items, updated_at FROM user_carts
						WHERE user_id = $1
`
)

// CartRepository stores user carts
type CartRepository struct {
	db *postgres.DB
}

// NewCartRepository creates new CartRepository instance
func NewCartRepository(db *postgres.DB) *CartRepository {
	return &CartRepository{db: db}
}

// SaveCart replaces user cart
func (cr *CartRepository) SaveCart(ctx context.Context, cart models.Cart) error {
	items := cart.Items
	if items == nil {
		items = []models.CartItem{}
	}
	_, err := cr.db.Exec(ctx, upsertCartQuery, cart.UserID, items)
	return err
}

// GetCart returns user cart
func (cr *CartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart := models.Cart{}
	err := cr.db.QueryRow(ctx, selectCartQuery, userID).Scan(&cart.UserID, &cart.Items, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &cart, nil
}
