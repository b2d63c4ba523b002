package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is item saved in user cart
type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// Cart is user cart
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// TokenPayload is payload of verified session token
type TokenPayload struct {
	UserID string
	Email  string
}
