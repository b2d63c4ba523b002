package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflictData = errors.New("data conflicts with existing data")
	ErrDataNotFound = errors.New("data not found")

	// validation
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountMismatch = errors.New("amount does not match order total")

	// authenticity
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnauthorized     = errors.New("unauthorized")

	// not found
	ErrOrderNotFound = errors.New("order not found")
	ErrTokenNotFound = errors.New("no order mapped to payment token")

	// upstream
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrEmailUnavailable    = errors.New("email provider unavailable")

	// state
	ErrOrderNotPending          = errors.New("order is not pending")
	ErrPaymentMethodMismatch    = errors.New("order payment method does not match provider")
	ErrReminderRunInProgress    = errors.New("reminder processing is already running")
	ErrAlreadySubscribed        = errors.New("email is already subscribed")
	ErrPaymentTokenNotPersisted = errors.New("payment token is not persisted")
)

// ValidationError describes rejected client input
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates new ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ProviderError is error returned when provider API is unreachable or answers non-success
type ProviderError struct {
	Provider   Provider
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes ProviderError match ErrProviderUnavailable
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
