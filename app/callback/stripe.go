package callback

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
)

const (
	StripeSignatureHeader = "Stripe-Signature"

	StripeCancelledCode     = "STRIPE_CANCELLED"
	StripePaymentFailedCode = "STRIPE_PAYMENT_FAILED"
)

var errStripeWebhookSecretMissing = errors.New("stripe webhook secret is not configured")

type SessionFetcher interface {
	FetchCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// StripeHandler accepts two kinds of callbacks: signed webhook deliveries and
// the payer's browser returning from checkout.
type StripeHandler struct {
	webhookSecret string
	sessions      SessionFetcher
}

func NewStripeHandler(webhookSecret string, sessions SessionFetcher) *StripeHandler {
	return &StripeHandler{
		webhookSecret: strings.TrimSpace(webhookSecret),
		sessions:      sessions,
	}
}

func (h *StripeHandler) PaymentMethod() entity.PaymentMethod {
	return entity.PaymentMethodStripe
}

func (h *StripeHandler) ValidateCallback(_ context.Context, payment *entity.Payment, req *Request) bool {
	if req.Header(StripeSignatureHeader) != "" {
		event, object, err := h.parseWebhook(req)
		if err != nil || event.Data == nil {
			return false
		}
		return object.Metadata["payment_id"] == payment.ID &&
			sameToken(payment.PayloadString("session_id"), object.ID) &&
			sameToken(payment.PayloadString("correlation_id"), object.Metadata["correlation_id"])
	}

	if !sameToken(payment.PayloadString("correlation_id"), req.Param("ref")) {
		return false
	}
	// A cancelled return carries no usable session id.
	if sessionID := req.Param("session_id"); sessionID != "" && sessionID != "{CHECKOUT_SESSION_ID}" {
		return sameToken(payment.PayloadString("session_id"), sessionID)
	}
	return true
}

func (h *StripeHandler) HandleCallback(ctx context.Context, payment *entity.Payment, req *Request) (*Result, error) {
	if req.Header(StripeSignatureHeader) != "" {
		return h.handleWebhook(payment, req)
	}
	return h.handleReturn(ctx, payment, req)
}

func (h *StripeHandler) handleWebhook(payment *entity.Payment, req *Request) (*Result, error) {
	event, object, err := h.parseWebhook(req)
	if err != nil {
		return nil, err
	}

	response := map[string]any{
		"gateway":        string(entity.PaymentMethodStripe),
		"event_id":       event.ID,
		"event_type":     string(event.Type),
		"session_id":     object.ID,
		"payment_status": object.PaymentStatus,
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		if object.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) &&
			object.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired) {
			return PendingResult(payment, response), nil
		}
		transactionID := parseStringish(object.PaymentIntent)
		if transactionID == "" {
			transactionID = object.ID
		}
		return SuccessResult(payment, transactionID, response), nil
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		return FailureResult(payment, "payment failed at the processor", StripePaymentFailedCode, response), nil
	case stripe.EventTypeCheckoutSessionExpired:
		return FailureResult(payment, "checkout session expired", gateway.StripeSessionExpiredCode, response), nil
	default:
		return PendingResult(payment, response), nil
	}
}

func (h *StripeHandler) handleReturn(ctx context.Context, payment *entity.Payment, req *Request) (*Result, error) {
	if strings.EqualFold(req.Param("status"), "cancelled") {
		return FailureResult(payment, "payment cancelled by payer", StripeCancelledCode, map[string]any{
			"gateway": string(entity.PaymentMethodStripe),
			"status":  "cancelled",
		}), nil
	}

	checkout, err := h.sessions.FetchCheckoutSession(ctx, payment.PayloadString("session_id"))
	if err != nil {
		return nil, err
	}

	response := gateway.StripeSessionResponse(checkout)
	switch {
	case gateway.StripeSessionPaid(checkout):
		return SuccessResult(payment, gateway.StripeTransactionID(checkout), response), nil
	case checkout.Status == stripe.CheckoutSessionStatusExpired:
		return FailureResult(payment, "checkout session expired", gateway.StripeSessionExpiredCode, response), nil
	default:
		return PendingResult(payment, response), nil
	}
}

type stripeSessionObject struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentIntent interface{}       `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

func (h *StripeHandler) parseWebhook(req *Request) (stripe.Event, *stripeSessionObject, error) {
	if h.webhookSecret == "" {
		return stripe.Event{}, nil, errStripeWebhookSecretMissing
	}

	event, err := webhook.ConstructEventWithOptions(req.Body, req.Header(StripeSignatureHeader), h.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, nil, err
	}

	object := &stripeSessionObject{}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		if err := json.Unmarshal(event.Data.Raw, object); err != nil {
			return stripe.Event{}, nil, err
		}
	}
	return event, object, nil
}

// WebhookPaymentID extracts the payment id a signed webhook refers to, so
// the webhook endpoint can load the payment before running the handler.
func (h *StripeHandler) WebhookPaymentID(req *Request) (string, error) {
	_, object, err := h.parseWebhook(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(object.Metadata["payment_id"]), nil
}

func parseStringish(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if raw, ok := t["id"]; ok {
			if s, ok := raw.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	case json.RawMessage:
		if len(t) == 0 {
			return ""
		}
		if t[0] == '"' {
			var s string
			if json.Unmarshal(t, &s) == nil {
				return strings.TrimSpace(s)
			}
		}
		var obj map[string]interface{}
		if json.Unmarshal(t, &obj) == nil {
			if raw, ok := obj["id"]; ok {
				if s, ok := raw.(string); ok {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}
