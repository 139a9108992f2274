package gateway

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

const (
	FakeErrorCode         = "FAKE_ERROR"
	fakeVerificationLabel = "fake_lookup"
)

// FakeGateway settles payments locally. It backs development and test
// environments through the fake checkout page.
type FakeGateway struct {
	*Lifecycle
	checkoutURL string
}

func NewFakeGateway(payments PaymentRepository, events PaymentEventRepository, cfg LifecycleConfig, checkoutURL string) *FakeGateway {
	return &FakeGateway{
		Lifecycle:   NewLifecycle(entity.PaymentMethodFake, payments, events, cfg),
		checkoutURL: strings.TrimSpace(checkoutURL),
	}
}

func (g *FakeGateway) Prepare(ctx context.Context, payment *entity.Payment) (*PrepareResult, error) {
	return g.prepare(ctx, payment, func(context.Context) (*PrepareResult, error) {
		sessionID := "fake_" + uuid.NewString()
		callbackURL := g.CallbackURL(payment.ID)

		redirect, err := url.Parse(g.checkoutURL)
		if err != nil {
			return nil, err
		}
		query := redirect.Query()
		query.Set("session_id", sessionID)
		query.Set("payment_id", payment.ID)
		query.Set("callback_url", callbackURL)
		redirect.RawQuery = query.Encode()

		return &PrepareResult{
			Payload: map[string]any{
				"session_id":   sessionID,
				"amount":       payment.Amount.StringFixed(2),
				"currency":     payment.Currency,
				"callback_url": callbackURL,
				"gateway":      string(entity.PaymentMethodFake),
			},
			RedirectURL: redirect.String(),
		}, nil
	})
}

func (g *FakeGateway) ProcessPayment(ctx context.Context, payment *entity.Payment, input *ProcessInput) (*entity.Payment, error) {
	if input == nil {
		input = &ProcessInput{}
	}

	return g.process(ctx, payment, func(context.Context) (*outcome, error) {
		if input.SimulateFailure {
			code := strings.TrimSpace(input.ErrorCode)
			if code == "" {
				code = FakeErrorCode
			}
			message := strings.TrimSpace(input.ErrorMessage)
			if message == "" {
				message = "simulated payment failure"
			}
			return nil, Declined(code, message)
		}

		transactionID := strings.TrimSpace(input.TransactionID)
		if transactionID == "" {
			transactionID = "FAKE-" + uuid.NewString()
		}

		return &outcome{
			TransactionID: transactionID,
			Response: map[string]any{
				"gateway":      string(entity.PaymentMethodFake),
				"session_id":   payment.PayloadString("session_id"),
				"processed_at": g.now().UTC().Format(time.RFC3339),
			},
		}, nil
	})
}

func (g *FakeGateway) RefundPayment(ctx context.Context, payment *entity.Payment, input *RefundInput) (*entity.Payment, error) {
	return g.refund(ctx, payment, input, func(_ context.Context, amount decimal.Decimal) (*outcome, error) {
		return &outcome{
			TransactionID: "FAKE-REFUND-" + uuid.NewString(),
			Response: map[string]any{
				"gateway":       string(entity.PaymentMethodFake),
				"refund_amount": amount.StringFixed(2),
				"refunded_at":   g.now().UTC().Format(time.RFC3339),
			},
		}, nil
	})
}

func (g *FakeGateway) VerifyPaymentStatus(ctx context.Context, payment *entity.Payment) (*entity.Payment, error) {
	return g.verify(ctx, payment, fakeVerificationLabel, func(context.Context) (string, error) {
		return string(payment.Status), nil
	})
}
