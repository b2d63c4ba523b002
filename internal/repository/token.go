package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
)

const (
	insertPaymentTokenQuery = `
						INSERT INTO payment_tokens (token, order_id, provider)
						VALUES ($1, $2, $3)
						RETURNING created_at
`
	selectPaymentTokenQuery = `
						SELECT token, order_id, provider, created_at FROM payment_tokens
						WHERE token = $1
`
)

// TokenRepository stores provider token to order mapping
type TokenRepository struct {
	db *postgres.DB
}

// NewTokenRepository creates new TokenRepository instance
func NewTokenRepository(db *postgres.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateToken saves token mapping
func (tr *TokenRepository) CreateToken(ctx context.Context, token *models.PaymentToken) error {
	err := tr.db.QueryRow(ctx, insertPaymentTokenQuery, token.Token, token.OrderID, token.Provider).Scan(&token.CreatedAt)
	if err != nil {
		if errCode := tr.db.ErrorCode(err); errCode == postgres.ErrUniqueViolationCode {
			return models.ErrConflictData
		}
		return err
	}

	return nil
}

// GetToken returns mapping by token
func (tr *TokenRepository) GetToken(ctx context.Context, token string) (*models.PaymentToken, error) {
	pt := models.PaymentToken{}
	err := tr.db.QueryRow(ctx, selectPaymentTokenQuery, token).Scan(&pt.Token, &pt.OrderID, &pt.Provider, &pt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &pt, nil
}
