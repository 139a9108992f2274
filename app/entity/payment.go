package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Terminal reports whether no further processing is attempted for the status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// Settled reports whether the gateway outcome has already been applied.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusCompleted || s.Terminal()
}

type PaymentMethod string

const (
	PaymentMethodFake   PaymentMethod = "fake"
	PaymentMethodStripe PaymentMethod = "stripe"
)

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentMethodFake:
		return PaymentMethodFake, true
	case PaymentMethodStripe:
		return PaymentMethodStripe, true
	default:
		return "", false
	}
}

var ErrTransactionIDRequired = errors.New("transaction id is required to complete a payment")

// TransitionError is returned when a status change is not on an edge of the
// payment state machine. It is never retried.
type TransitionError struct {
	PaymentID string
	From      PaymentStatus
	To        PaymentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal payment transition %s -> %s (payment %s)", e.From, e.To, e.PaymentID)
}

type Payment struct {
	ID string

	DonationID    uint64
	PaymentMethod PaymentMethod
	Status        PaymentStatus

	Amount   decimal.Decimal
	Currency string

	TransactionID   *string
	GatewayResponse map[string]any
	ErrorMessage    *string
	ErrorCode       *string
	Metadata        map[string]any

	Payload     map[string]any
	RedirectURL *string

	InitiatedAt time.Time
	PreparedAt  *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
	RefundedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func NewPayment(id string, donationID uint64, method PaymentMethod, amount decimal.Decimal, currency string, now time.Time) *Payment {
	return &Payment{
		ID:              id,
		DonationID:      donationID,
		PaymentMethod:   method,
		Status:          PaymentStatusPending,
		Amount:          amount.Round(2),
		Currency:        strings.ToUpper(strings.TrimSpace(currency)),
		GatewayResponse: map[string]any{},
		Metadata:        map[string]any{},
		Payload:         map[string]any{},
		InitiatedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone copies the payment including its maps, so a mutation of the copy
// never shows through the original.
func (p *Payment) Clone() *Payment {
	c := *p
	c.GatewayResponse = cloneMap(p.GatewayResponse)
	c.Metadata = cloneMap(p.Metadata)
	c.Payload = cloneMap(p.Payload)
	return &c
}

func (p *Payment) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[p.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (p *Payment) transition(target PaymentStatus, now time.Time) error {
	if !p.CanTransitionTo(target) {
		return &TransitionError{PaymentID: p.ID, From: p.Status, To: target}
	}
	p.Status = target
	p.UpdatedAt = now
	return nil
}

// MarkPrepared stores the gateway preparation artifacts. The status is unchanged.
func (p *Payment) MarkPrepared(payload map[string]any, redirectURL string, now time.Time) {
	p.Payload = cloneMap(payload)
	if redirectURL != "" {
		p.RedirectURL = &redirectURL
	}
	p.PreparedAt = &now
	p.UpdatedAt = now
}

func (p *Payment) MarkProcessing(now time.Time) error {
	return p.transition(PaymentStatusProcessing, now)
}

func (p *Payment) MarkCompleted(transactionID string, response map[string]any, now time.Time) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return ErrTransactionIDRequired
	}
	if err := p.transition(PaymentStatusCompleted, now); err != nil {
		return err
	}
	p.TransactionID = &transactionID
	p.GatewayResponse = cloneMap(response)
	p.ErrorMessage = nil
	p.ErrorCode = nil
	p.CompletedAt = &now
	return nil
}

func (p *Payment) MarkFailed(message, code string, response map[string]any, now time.Time) error {
	if err := p.transition(PaymentStatusFailed, now); err != nil {
		return err
	}
	p.ErrorMessage = optionalString(message)
	p.ErrorCode = optionalString(code)
	if response != nil {
		p.GatewayResponse = cloneMap(response)
	}
	p.FailedAt = &now
	return nil
}

// MarkRefunded moves a completed payment to REFUNDED. The original transaction
// id and completion time move into metadata so only RefundedAt stays set.
func (p *Payment) MarkRefunded(refundTransactionID string, response map[string]any, now time.Time) error {
	refundTransactionID = strings.TrimSpace(refundTransactionID)
	if refundTransactionID == "" {
		return ErrTransactionIDRequired
	}
	completedAt := p.CompletedAt
	originalTransactionID := p.TransactionID
	if err := p.transition(PaymentStatusRefunded, now); err != nil {
		return err
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if originalTransactionID != nil {
		p.Metadata["original_transaction_id"] = *originalTransactionID
	}
	if completedAt != nil {
		p.Metadata["completed_at"] = completedAt.UTC().Format(time.RFC3339)
	}
	p.TransactionID = &refundTransactionID
	if response != nil {
		p.GatewayResponse = cloneMap(response)
	}
	p.CompletedAt = nil
	p.RefundedAt = &now
	return nil
}

func (p *Payment) SetMetadata(key string, value any) {
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata[key] = value
}

// PayloadString returns a string value stored at preparation time.
func (p *Payment) PayloadString(key string) string {
	if p.Payload == nil {
		return ""
	}
	if value, ok := p.Payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func (p *Payment) TransactionIDValue() string {
	if p.TransactionID == nil {
		return ""
	}
	return *p.TransactionID
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
