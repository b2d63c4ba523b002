package service

import "github.com/rookgm/storefront/internal/models"

// TokenService verifies session tokens issued by storefront auth
type TokenService interface {
	VerifyToken(tokenString string) (*models.TokenPayload, error)
}
