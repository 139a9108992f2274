package gateway

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
)

type PrepareResult struct {
	Payload     map[string]any
	RedirectURL string
}

// ProcessInput carries gateway specific processing options. Gateways ignore
// the fields they do not understand.
type ProcessInput struct {
	TransactionID   string
	SimulateFailure bool
	ErrorMessage    string
	ErrorCode       string
}

// RefundInput requests a refund. A nil Amount refunds the full payment.
type RefundInput struct {
	Amount *decimal.Decimal
	Reason string
}

type Gateway interface {
	PaymentMethod() entity.PaymentMethod
	Supports(method string) bool

	Prepare(ctx context.Context, payment *entity.Payment) (*PrepareResult, error)
	ProcessPayment(ctx context.Context, payment *entity.Payment, input *ProcessInput) (*entity.Payment, error)
	RefundPayment(ctx context.Context, payment *entity.Payment, input *RefundInput) (*entity.Payment, error)
	VerifyPaymentStatus(ctx context.Context, payment *entity.Payment) (*entity.Payment, error)

	// CompletePayment and FailPayment apply a terminal outcome reported out of
	// band, e.g. by a callback. A pending payment passes through processing.
	CompletePayment(ctx context.Context, payment *entity.Payment, transactionID string, response map[string]any) error
	FailPayment(ctx context.Context, payment *entity.Payment, message, code string, response map[string]any) error
}

type PaymentRepository interface {
	Update(ctx context.Context, payment *entity.Payment) error
}

type PaymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}
