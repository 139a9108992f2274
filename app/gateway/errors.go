package gateway

import (
	"errors"
	"fmt"
)

var ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

const (
	CodeGatewayError    = "GATEWAY_ERROR"
	CodeGatewayTimeout  = "GATEWAY_TIMEOUT"
	CodeGatewayCanceled = "GATEWAY_CANCELED"
	CodeGatewayPanic    = "GATEWAY_PANIC"
)

// ProcessingError reports that a payment could not be processed. The payment
// has already been marked failed when this error is returned.
type ProcessingError struct {
	PaymentID string
	Code      string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("payment %s processing failed (%s): %v", e.PaymentID, e.Code, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Declined builds the error a gateway returns when the processor rejects a payment.
func Declined(code, message string) *ProcessingError {
	return &ProcessingError{Code: code, Err: errors.New(message)}
}

type RefundErrorKind string

const (
	RefundNotRefundable RefundErrorKind = "not_refundable"
	RefundInvalidAmount RefundErrorKind = "invalid_amount"
)

type RefundError struct {
	PaymentID string
	Kind      RefundErrorKind
	Detail    string
}

func (e *RefundError) Error() string {
	return fmt.Sprintf("payment %s refund rejected (%s): %s", e.PaymentID, e.Kind, e.Detail)
}

type VerificationError struct {
	PaymentID string
	Reason    string
	Err       error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment %s verification failed: %s: %v", e.PaymentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment %s verification failed: %s", e.PaymentID, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
