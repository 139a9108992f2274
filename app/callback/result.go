package callback

import (
	"strconv"

	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

const (
	RouteSuccess = "donations.success"
	RouteFailed  = "donations.failed"
	RoutePending = "donations.pending"
)

const payerFailureMessage = "Your payment could not be completed."

// Result is the gateway independent outcome of one callback.
type Result struct {
	Status          entity.PaymentStatus
	TransactionID   string
	GatewayResponse map[string]any
	ErrorMessage    string
	ErrorCode       string
	RedirectRoute   string
	RedirectParams  map[string]string
}

func (r *Result) Successful() bool {
	return r != nil && r.Status == entity.PaymentStatusCompleted
}

func (r *Result) Failed() bool {
	return r != nil && r.Status == entity.PaymentStatusFailed
}

func SuccessResult(payment *entity.Payment, transactionID string, response map[string]any) *Result {
	return &Result{
		Status:          entity.PaymentStatusCompleted,
		TransactionID:   transactionID,
		GatewayResponse: response,
		RedirectRoute:   RouteSuccess,
		RedirectParams:  redirectParams(payment, entity.PaymentStatusCompleted),
	}
}

func FailureResult(payment *entity.Payment, message, code string, response map[string]any) *Result {
	params := redirectParams(payment, entity.PaymentStatusFailed)
	params["message"] = payerFailureMessage
	return &Result{
		Status:          entity.PaymentStatusFailed,
		GatewayResponse: response,
		ErrorMessage:    message,
		ErrorCode:       code,
		RedirectRoute:   RouteFailed,
		RedirectParams:  params,
	}
}

// PendingResult reports a callback that does not settle the payment yet.
func PendingResult(payment *entity.Payment, response map[string]any) *Result {
	return &Result{
		Status:          payment.Status,
		GatewayResponse: response,
		RedirectRoute:   RoutePending,
		RedirectParams:  redirectParams(payment, payment.Status),
	}
}

// RejectedResult is what the payer sees when a callback could not be
// processed at all. It carries no gateway detail.
func RejectedResult(paymentID string) *Result {
	return &Result{
		Status:        entity.PaymentStatusFailed,
		RedirectRoute: RouteFailed,
		RedirectParams: map[string]string{
			"payment_id": paymentID,
			"status":     string(entity.PaymentStatusFailed),
			"message":    payerFailureMessage,
		},
	}
}

// StoredResult describes a payment that was already settled by an earlier callback.
func StoredResult(payment *entity.Payment) *Result {
	switch payment.Status {
	case entity.PaymentStatusCompleted, entity.PaymentStatusRefunded:
		result := SuccessResult(payment, payment.TransactionIDValue(), payment.GatewayResponse)
		result.Status = payment.Status
		result.RedirectParams["status"] = string(payment.Status)
		return result
	case entity.PaymentStatusFailed:
		message, code := "", ""
		if payment.ErrorMessage != nil {
			message = *payment.ErrorMessage
		}
		if payment.ErrorCode != nil {
			code = *payment.ErrorCode
		}
		return FailureResult(payment, message, code, payment.GatewayResponse)
	default:
		return PendingResult(payment, payment.GatewayResponse)
	}
}

func redirectParams(payment *entity.Payment, status entity.PaymentStatus) map[string]string {
	return map[string]string{
		"payment_id":  payment.ID,
		"donation_id": strconv.FormatUint(payment.DonationID, 10),
		"status":      string(status),
	}
}
