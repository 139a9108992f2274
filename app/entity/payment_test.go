package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestPayment(status PaymentStatus) *Payment {
	p := NewPayment("pay-1", 7, PaymentMethodFake, decimal.RequireFromString("50.00"), "usd", time.Now().UTC())
	p.Status = status
	return p
}

func TestCanTransitionToFollowsTransitionTable(t *testing.T) {
	all := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusProcessing,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
	allowed := map[PaymentStatus]map[PaymentStatus]bool{
		PaymentStatusPending:    {PaymentStatusProcessing: true, PaymentStatusFailed: true},
		PaymentStatusProcessing: {PaymentStatusCompleted: true, PaymentStatusFailed: true},
		PaymentStatusCompleted:  {PaymentStatusRefunded: true},
	}

	for _, from := range all {
		for _, to := range all {
			p := newTestPayment(from)
			if got, want := p.CanTransitionTo(to), allowed[from][to]; got != want {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIllegalTransitionIsRejectedAndStatusKept(t *testing.T) {
	p := newTestPayment(PaymentStatusFailed)

	err := p.MarkProcessing(time.Now())
	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if transitionErr.From != PaymentStatusFailed || transitionErr.To != PaymentStatusProcessing {
		t.Fatalf("unexpected transition error: %+v", transitionErr)
	}
	if p.Status != PaymentStatusFailed {
		t.Fatalf("status must not change on illegal transition, got %s", p.Status)
	}
}

func TestMarkCompletedRequiresTransactionID(t *testing.T) {
	p := newTestPayment(PaymentStatusProcessing)

	if err := p.MarkCompleted("  ", nil, time.Now()); !errors.Is(err, ErrTransactionIDRequired) {
		t.Fatalf("expected ErrTransactionIDRequired, got %v", err)
	}
	if p.Status != PaymentStatusProcessing || p.CompletedAt != nil {
		t.Fatalf("payment must stay processing, got %s", p.Status)
	}

	if err := p.MarkCompleted("TXN1", map[string]any{"ok": true}, time.Now()); err != nil {
		t.Fatalf("mark completed failed: %v", err)
	}
	if p.TransactionIDValue() != "TXN1" || p.CompletedAt == nil {
		t.Fatalf("unexpected completed payment: %+v", p)
	}
}

func TestPendingCannotCompleteDirectly(t *testing.T) {
	p := newTestPayment(PaymentStatusPending)
	var transitionErr *TransitionError
	if err := p.MarkCompleted("TXN1", nil, time.Now()); !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestMarkFailedFromPending(t *testing.T) {
	p := newTestPayment(PaymentStatusPending)
	if err := p.MarkFailed("card declined", "DECLINED", nil, time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if p.ErrorCode == nil || *p.ErrorCode != "DECLINED" || p.FailedAt == nil {
		t.Fatalf("unexpected failed payment: %+v", p)
	}
}

func TestMarkRefundedKeepsSingleTerminalTimestamp(t *testing.T) {
	p := newTestPayment(PaymentStatusProcessing)
	if err := p.MarkCompleted("TXN1", nil, time.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	if err := p.MarkRefunded("RFD1", map[string]any{"refund": true}, time.Now()); err != nil {
		t.Fatalf("mark refunded: %v", err)
	}
	if p.Status != PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", p.Status)
	}
	if p.CompletedAt != nil || p.FailedAt != nil || p.RefundedAt == nil {
		t.Fatal("exactly one terminal timestamp must be set after refund")
	}
	if p.TransactionIDValue() != "RFD1" {
		t.Fatalf("expected refund transaction id, got %s", p.TransactionIDValue())
	}
	if p.Metadata["original_transaction_id"] != "TXN1" {
		t.Fatalf("expected original transaction id in metadata, got %v", p.Metadata["original_transaction_id"])
	}
}

func TestParsePaymentMethod(t *testing.T) {
	if m, ok := ParsePaymentMethod(" Stripe "); !ok || m != PaymentMethodStripe {
		t.Fatalf("unexpected parse result: %s %v", m, ok)
	}
	if _, ok := ParsePaymentMethod("paypal"); ok {
		t.Fatal("expected unknown method to be rejected")
	}
}

func TestGoalNewlyAchievedIsEdgeTriggered(t *testing.T) {
	goal := decimal.RequireFromString("100.00")
	cases := []struct {
		name     string
		previous string
		current  string
		want     bool
	}{
		{name: "crosses goal", previous: "0", current: "120.00", want: true},
		{name: "reaches goal exactly", previous: "99.99", current: "100.00", want: true},
		{name: "already achieved", previous: "120.00", current: "160.00", want: false},
		{name: "still below", previous: "10.00", current: "40.00", want: false},
		{name: "drops below", previous: "120.00", current: "80.00", want: false},
	}
	for _, tc := range cases {
		r := &AmountRecalculation{
			GoalAmount:     goal,
			PreviousAmount: decimal.RequireFromString(tc.previous),
			CurrentAmount:  decimal.RequireFromString(tc.current),
		}
		if got := r.GoalNewlyAchieved(); got != tc.want {
			t.Fatalf("%s: GoalNewlyAchieved() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
