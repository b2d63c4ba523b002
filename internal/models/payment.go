package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies payment provider
type Provider string

const (
	// ProviderFlutterwave is card/bank transfer/USSD provider, charges in NGN
	ProviderFlutterwave Provider = "flutterwave"
	// ProviderPayPal is redirect based wallet, charges in USD
	ProviderPayPal Provider = "paypal"
)

// Valid reports whether provider is supported
func (p Provider) Valid() bool {
	return p == ProviderFlutterwave || p == ProviderPayPal
}

// PaymentToken maps provider transaction reference to internal order
type PaymentToken struct {
	Token     string
	OrderID   string
	Provider  Provider
	CreatedAt time.Time
}

// Customer is payer details passed to provider
type Customer struct {
	Email string
	Name  string
}

// IntentRequest is request for payment intent creation
type IntentRequest struct {
	Amount   decimal.Decimal
	Currency string
	Customer Customer
	OrderID  string
}

// Intent is created payment intent
type Intent struct {
	RedirectURL   string
	ProviderToken string
}

// InitiateRequest is checkout request for payment initiation.
// Amount is optional: when set it must agree with stored order total.
type InitiateRequest struct {
	OrderID string
	Amount  *decimal.Decimal
	Email   string
	Name    string
}

// VerifyRequest identifies transaction for server-side verification.
// TransactionID is provider own identifier, Reference is token recorded at initiation.
type VerifyRequest struct {
	TransactionID string
	Reference     string
}

// VerificationStatus is normalized verification result
type VerificationStatus string

const (
	VerificationSucceeded VerificationStatus = "succeeded"
	VerificationFailed    VerificationStatus = "failed"
)

// Verification is result of provider verify/capture call
type Verification struct {
	Status         VerificationStatus
	ProviderStatus string
	Reference      string
	TransactionID  string
	Amount         decimal.Decimal
	Currency       string
}

// Trigger is source of reconciliation event
type Trigger string

const (
	TriggerWebhook Trigger = "webhook"
	TriggerCapture Trigger = "capture"
	TriggerCancel  Trigger = "cancel"
)

// PaymentEvent is payment notification to reconcile with order
type PaymentEvent struct {
	Provider      Provider
	Trigger       Trigger
	Token         string
	TransactionID string
}

// Outcome is result of reconciliation
type Outcome string

const (
	// OutcomeCompleted order has been transitioned to completed by this event
	OutcomeCompleted Outcome = "completed"
	// OutcomeAlreadyCompleted order had been completed before
	OutcomeAlreadyCompleted Outcome = "already_completed"
	// OutcomeFailed verification did not confirm payment, order is failed
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled order has been cancelled by this event
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeNoop order is in terminal state, nothing changed
	OutcomeNoop Outcome = "noop"
)

// Success reports whether outcome must be answered as success
func (o Outcome) Success() bool {
	return o != OutcomeFailed
}

// OrderCompletedEvent is published once when order is completed
type OrderCompletedEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Provider    Provider        `json:"provider"`
	CompletedAt time.Time       `json:"completed_at"`
}
