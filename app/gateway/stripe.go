package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

const (
	stripeVerificationLabel = "stripe_payment_intent"

	StripeSessionExpiredCode = "STRIPE_SESSION_EXPIRED"
	StripeSessionMissingCode = "STRIPE_SESSION_MISSING"
)

type stripeAPI interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewRefund(params *stripe.RefundParams) (*stripe.Refund, error)
	GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeSDK struct{}

func (stripeSDK) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (stripeSDK) GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.Get(id, params)
}

func (stripeSDK) NewRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	return refund.New(params)
}

func (stripeSDK) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

// StripeGateway prepares hosted checkout sessions. Payments are settled by
// the payer's return and by webhooks, or confirmed through ProcessPayment.
type StripeGateway struct {
	*Lifecycle
	api stripeAPI
}

func NewStripeGateway(payments PaymentRepository, events PaymentEventRepository, cfg LifecycleConfig, secretKey string) *StripeGateway {
	if key := strings.TrimSpace(secretKey); key != "" {
		stripe.Key = key
	}

	return &StripeGateway{
		Lifecycle: NewLifecycle(entity.PaymentMethodStripe, payments, events, cfg),
		api:       stripeSDK{},
	}
}

func (g *StripeGateway) Prepare(ctx context.Context, payment *entity.Payment) (*PrepareResult, error) {
	return g.prepare(ctx, payment, func(callCtx context.Context) (*PrepareResult, error) {
		correlationID := uuid.NewString()
		callbackURL := g.CallbackURL(payment.ID)

		params := &stripe.CheckoutSessionParams{
			Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems: []*stripe.CheckoutSessionLineItemParams{
				{
					PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
						Currency:   stripe.String(strings.ToLower(payment.Currency)),
						UnitAmount: stripe.Int64(toCents(payment.Amount)),
						ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
							Name: stripe.String(fmt.Sprintf("Donation #%d", payment.DonationID)),
						},
					},
					Quantity: stripe.Int64(1),
				},
			},
			SuccessURL:        stripe.String(stripeReturnURL(callbackURL, "success", correlationID)),
			CancelURL:         stripe.String(stripeReturnURL(callbackURL, "cancelled", correlationID)),
			ClientReferenceID: stripe.String(payment.ID),
			Metadata: map[string]string{
				"payment_id":     payment.ID,
				"donation_id":    strconv.FormatUint(payment.DonationID, 10),
				"correlation_id": correlationID,
			},
		}
		params.Context = callCtx

		checkout, err := g.api.NewCheckoutSession(params)
		if err != nil {
			return nil, err
		}

		return &PrepareResult{
			Payload: map[string]any{
				"session_id":     checkout.ID,
				"correlation_id": correlationID,
				"amount":         payment.Amount.StringFixed(2),
				"currency":       payment.Currency,
				"callback_url":   callbackURL,
				"gateway":        string(entity.PaymentMethodStripe),
			},
			RedirectURL: checkout.URL,
		}, nil
	})
}

// ProcessPayment confirms the checkout session. An unpaid open session leaves
// the payment processing until the webhook or the payer's return settles it.
func (g *StripeGateway) ProcessPayment(ctx context.Context, payment *entity.Payment, _ *ProcessInput) (*entity.Payment, error) {
	return g.process(ctx, payment, func(callCtx context.Context) (*outcome, error) {
		sessionID := payment.PayloadString("session_id")
		if sessionID == "" {
			return nil, Declined(StripeSessionMissingCode, "payment has no checkout session")
		}

		checkout, err := g.FetchCheckoutSession(callCtx, sessionID)
		if err != nil {
			return nil, err
		}

		switch {
		case StripeSessionPaid(checkout):
			return &outcome{TransactionID: StripeTransactionID(checkout), Response: StripeSessionResponse(checkout)}, nil
		case checkout.Status == stripe.CheckoutSessionStatusExpired:
			return nil, Declined(StripeSessionExpiredCode, "checkout session expired")
		default:
			return &outcome{Pending: true}, nil
		}
	})
}

func (g *StripeGateway) RefundPayment(ctx context.Context, payment *entity.Payment, input *RefundInput) (*entity.Payment, error) {
	return g.refund(ctx, payment, input, func(callCtx context.Context, amount decimal.Decimal) (*outcome, error) {
		params := &stripe.RefundParams{PaymentIntent: stripe.String(payment.TransactionIDValue())}
		if amount.LessThan(payment.Amount) {
			params.Amount = stripe.Int64(toCents(amount))
		}
		params.Context = callCtx

		result, err := g.api.NewRefund(params)
		if err != nil {
			return nil, err
		}

		return &outcome{
			TransactionID: result.ID,
			Response: map[string]any{
				"gateway":       string(entity.PaymentMethodStripe),
				"refund_id":     result.ID,
				"refund_status": string(result.Status),
				"refund_amount": amount.StringFixed(2),
			},
		}, nil
	})
}

func (g *StripeGateway) VerifyPaymentStatus(ctx context.Context, payment *entity.Payment) (*entity.Payment, error) {
	return g.verify(ctx, payment, stripeVerificationLabel, func(callCtx context.Context) (string, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = callCtx

		intent, err := g.api.GetPaymentIntent(payment.TransactionIDValue(), params)
		if err != nil {
			return "", err
		}
		return string(intent.Status), nil
	})
}

// FetchCheckoutSession loads a checkout session with its payment intent expanded.
func (g *StripeGateway) FetchCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = callCtx
	params.AddExpand("payment_intent")

	return g.api.GetCheckoutSession(sessionID, params)
}

func StripeSessionPaid(checkout *stripe.CheckoutSession) bool {
	return checkout.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		checkout.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

// StripeTransactionID prefers the payment intent so refunds and verification
// can address it; the session id is the fallback.
func StripeTransactionID(checkout *stripe.CheckoutSession) string {
	if checkout.PaymentIntent != nil && checkout.PaymentIntent.ID != "" {
		return checkout.PaymentIntent.ID
	}
	return checkout.ID
}

func StripeSessionResponse(checkout *stripe.CheckoutSession) map[string]any {
	return map[string]any{
		"gateway":        string(entity.PaymentMethodStripe),
		"session_id":     checkout.ID,
		"session_status": string(checkout.Status),
		"payment_status": string(checkout.PaymentStatus),
		"amount_total":   checkout.AmountTotal,
	}
}

func stripeReturnURL(callbackURL, status, correlationID string) string {
	// {CHECKOUT_SESSION_ID} is substituted by Stripe and must stay unescaped.
	return callbackURL + "?status=" + url.QueryEscape(status) +
		"&ref=" + url.QueryEscape(correlationID) +
		"&session_id={CHECKOUT_SESSION_ID}"
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
