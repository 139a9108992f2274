package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrDonationNotFound  = errors.New("donation not found")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrCampaignNotActive = errors.New("campaign is not accepting donations")
	ErrInvalidAmount     = errors.New("donation amount must be positive")
)

type CallbackErrorKind string

const (
	CallbackNoHandler CallbackErrorKind = "no_handler"
	CallbackInvalid   CallbackErrorKind = "invalid_callback"
)

// CallbackError is returned when a callback is refused before its payload is
// interpreted.
type CallbackError struct {
	Kind      CallbackErrorKind
	PaymentID string
	Err       error
}

func (e *CallbackError) Error() string {
	switch e.Kind {
	case CallbackNoHandler:
		return fmt.Sprintf("payment %s: no callback handler: %v", e.PaymentID, e.Err)
	default:
		return fmt.Sprintf("payment %s: invalid callback", e.PaymentID)
	}
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func IsCallbackError(err error, kind CallbackErrorKind) bool {
	var cbErr *CallbackError
	return errors.As(err, &cbErr) && cbErr.Kind == kind
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
