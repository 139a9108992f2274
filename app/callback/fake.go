package callback

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

const (
	FakePaymentFailedCode      = "FAKE_PAYMENT_FAILED"
	FakeMissingTransactionCode = "FAKE_MISSING_TRANSACTION"
)

// FakeHandler reads the query the fake checkout page sends back:
// session_id, status, transaction_id and optional error_message/error_code.
type FakeHandler struct{}

func NewFakeHandler() *FakeHandler {
	return &FakeHandler{}
}

func (h *FakeHandler) PaymentMethod() entity.PaymentMethod {
	return entity.PaymentMethodFake
}

func (h *FakeHandler) ValidateCallback(_ context.Context, payment *entity.Payment, req *Request) bool {
	return sameToken(payment.PayloadString("session_id"), req.Param("session_id"))
}

func (h *FakeHandler) HandleCallback(_ context.Context, payment *entity.Payment, req *Request) (*Result, error) {
	response := map[string]any{
		"gateway":    string(entity.PaymentMethodFake),
		"session_id": req.Param("session_id"),
		"status":     req.Param("status"),
	}

	switch strings.ToLower(req.Param("status")) {
	case "success", "completed", "paid":
		transactionID := req.Param("transaction_id")
		if transactionID == "" {
			return FailureResult(payment, "gateway reported success without a transaction id", FakeMissingTransactionCode, response), nil
		}
		response["transaction_id"] = transactionID
		return SuccessResult(payment, transactionID, response), nil
	case "pending":
		return PendingResult(payment, response), nil
	default:
		message := req.Param("error_message")
		if message == "" {
			message = "payment failed"
		}
		code := req.Param("error_code")
		if code == "" {
			code = FakePaymentFailedCode
		}
		return FailureResult(payment, message, code, response), nil
	}
}

func sameToken(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
