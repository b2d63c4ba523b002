package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
)

const (
	insertOrderQuery = `
						INSERT INTO orders (id, user_id, status, total_amount, currency, payment_method, shipping_info)
						VALUES ($1, $2, $3, $4, $5, $6, $7)
						RETURNING created_at, updated_at
`
	insertOrderItemQuery = `
						INSERT INTO order_items (order_id, product_id, quantity, unit_price)
						VALUES ($1, $2, $3, $4)
`
	deleteOrderQuery = `
						DELETE FROM orders WHERE id = $1
`
	selectOrderByIDQuery = `
						SELECT id, user_id, status, total_amount, currency, payment_method, failure_reason, shipping_info, created_at, updated_at
						FROM orders
						WHERE id = $1
`
	selectOrderItemsQuery = `
						SELECT order_id, product_id, quantity, unit_price FROM order_items
						WHERE order_id = $1
						ORDER BY id
`
	selectOrdersByUserIDQuery = `
						SELECT id, user_id, status, total_amount, currency, payment_method, failure_reason, shipping_info, created_at, updated_at
						FROM orders
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	// status updates apply only to pending orders, terminal rows are never touched
	transitionOrderQuery = `
						UPDATE orders
						SET status = $2, failure_reason = $3, updated_at = NOW()
						WHERE id = $1 AND status = 'pending'
`
	selectShippingFeeQuery = `
						SELECT country, city, fee FROM shipping_fees
						WHERE country = $1 AND city = $2
`
)

// OrderRepository implements OrderRepository interface
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts new order without items
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	err := or.db.QueryRow(ctx, insertOrderQuery,
		order.ID, order.UserID, order.Status, order.TotalAmount, order.Currency, order.PaymentMethod, order.ShippingInfo,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == postgres.ErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return order, nil
}

// CreateOrderItems inserts all order items in one batch transaction
func (or *OrderRepository) CreateOrderItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	return or.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(insertOrderItemQuery, orderID, item.ProductID, item.Quantity, item.UnitPrice)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// DeleteOrder removes order, used to compensate failed item insert
func (or *OrderRepository) DeleteOrder(ctx context.Context, orderID string) error {
	_, err := or.db.Exec(ctx, deleteOrderQuery, orderID)
	return err
}

// GetOrderByID returns order with items
func (or *OrderRepository) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByIDQuery, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	rows, err := or.db.Query(ctx, selectOrderItemsQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item := models.OrderItem{}
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrdersByUserID gets user orders without items
func (or *OrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, selectOrdersByUserIDQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// TransitionOrder moves pending order to status.
// It returns false when order is not pending anymore.
func (or *OrderRepository) TransitionOrder(ctx context.Context, orderID string, status models.OrderStatus, reason *string) (bool, error) {
	cmd, err := or.db.Exec(ctx, transitionOrderQuery, orderID, status, reason)
	if err != nil {
		return false, err
	}

	return cmd.RowsAffected() == 1, nil
}

// GetShippingFee returns shipping fee for city
func (or *OrderRepository) GetShippingFee(ctx context.Context, country, city string) (*models.ShippingFee, error) {
	fee := models.ShippingFee{}
	err := or.db.QueryRow(ctx, selectShippingFeeQuery, country, city).Scan(&fee.Country, &fee.City, &fee.Fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &fee, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := models.Order{}
	err := row.Scan(&order.ID, &order.UserID, &order.Status, &order.TotalAmount, &order.Currency,
		&order.PaymentMethod, &order.FailureReason, &order.ShippingInfo, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &order, nil
}
