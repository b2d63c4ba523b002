package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is order lifecycle state
type OrderStatus string

// Only pending orders may change status, every other status is final.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from status
func (s OrderStatus) Terminal() bool {
	return s != OrderStatusPending
}

// currencies
const (
	CurrencyNGN = "NGN"
	CurrencyUSD = "USD"
)

// ShippingInfo is delivery address attached to order
type ShippingInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Order is order entity
type Order struct {
	ID            string
	UserID        string
	Status        OrderStatus
	TotalAmount   decimal.Decimal
	Currency      string
	PaymentMethod Provider
	FailureReason *string
	ShippingInfo  ShippingInfo
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is single order line
type OrderItem struct {
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Checkout contains data submitted by user to place an order
type Checkout struct {
	Items         []OrderItem
	Shipping      ShippingInfo
	PaymentMethod Provider
}

// ShippingFee is delivery fee for city in NGN
type ShippingFee struct {
	Country string
	City    string
	Fee     decimal.Decimal
}
