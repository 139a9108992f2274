package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/telemetry"
)

var (
	ErrPaymentNotPending = errors.New("payment is not pending")

	errGatewayTimeout  = errors.New("gateway call timed out")
	errGatewayCanceled = errors.New("gateway call canceled")
	errGatewayPanic    = errors.New("gateway call panicked")
)

const defaultGatewayTimeout = 30 * time.Second

type LifecycleConfig struct {
	CallbackBaseURL string
	Timeout         time.Duration
	Metrics         *telemetry.Metrics
}

// Lifecycle holds the state-machine plumbing shared by every gateway: bounded
// gateway calls, persistence of each transition, the payment event trail,
// and the started/succeeded/failed log lines.
type Lifecycle struct {
	method          entity.PaymentMethod
	payments        PaymentRepository
	events          PaymentEventRepository
	callbackBaseURL string
	timeout         time.Duration
	metrics         *telemetry.Metrics
	logger          logrus.FieldLogger
	now             func() time.Time
}

func NewLifecycle(method entity.PaymentMethod, payments PaymentRepository, events PaymentEventRepository, cfg LifecycleConfig) *Lifecycle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &Lifecycle{
		method:          method,
		payments:        payments,
		events:          events,
		callbackBaseURL: strings.TrimRight(strings.TrimSpace(cfg.CallbackBaseURL), "/"),
		timeout:         timeout,
		metrics:         cfg.Metrics,
		logger:          factory.NewModuleLogger("gateway-" + string(method)),
		now:             time.Now,
	}
}

func (l *Lifecycle) PaymentMethod() entity.PaymentMethod {
	return l.method
}

func (l *Lifecycle) Supports(method string) bool {
	parsed, ok := entity.ParsePaymentMethod(method)
	return ok && parsed == l.method
}

// CallbackURL is the per-payment address the gateway reports back to.
func (l *Lifecycle) CallbackURL(paymentID string) string {
	return l.callbackBaseURL + "/payment/callback/" + url.PathEscape(paymentID)
}

func (l *Lifecycle) CompletePayment(ctx context.Context, payment *entity.Payment, transactionID string, response map[string]any) error {
	return l.track(ctx, "complete_payment", payment, func() error {
		if payment.Status == entity.PaymentStatusPending {
			if err := l.apply(ctx, payment, "payment.processing", payment.MarkProcessing); err != nil {
				return err
			}
		}
		return l.apply(ctx, payment, "payment.completed", func(now time.Time) error {
			return payment.MarkCompleted(transactionID, response, now)
		})
	})
}

func (l *Lifecycle) FailPayment(ctx context.Context, payment *entity.Payment, message, code string, response map[string]any) error {
	return l.track(ctx, "fail_payment", payment, func() error {
		return l.apply(ctx, payment, "payment.failed", func(now time.Time) error {
			return payment.MarkFailed(message, code, response, now)
		})
	})
}

// outcome is what a gateway call reports back to the lifecycle.
type outcome struct {
	TransactionID string
	Response      map[string]any
	// Pending leaves the payment in processing for a later callback.
	Pending bool
}

func (l *Lifecycle) prepare(ctx context.Context, payment *entity.Payment, call func(context.Context) (*PrepareResult, error)) (*PrepareResult, error) {
	var result *PrepareResult
	err := l.track(ctx, "prepare", payment, func() error {
		if payment.Status != entity.PaymentStatusPending {
			return fmt.Errorf("%w: %s is %s", ErrPaymentNotPending, payment.ID, payment.Status)
		}

		res, err := invoke(ctx, l.timeout, call)
		if err != nil {
			return err
		}

		if err := l.apply(ctx, payment, "payment.prepared", func(now time.Time) error {
			payment.MarkPrepared(res.Payload, res.RedirectURL, now)
			return nil
		}); err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

// process moves the payment to processing, runs the gateway call and settles
// the payment. Any failure of the call, including a timeout, a cancellation
// or a panic, marks the payment failed before the ProcessingError is returned.
// Writes after the call outlive the caller's context so the payment is never
// left in processing because the caller went away.
func (l *Lifecycle) process(ctx context.Context, payment *entity.Payment, call func(context.Context) (*outcome, error)) (*entity.Payment, error) {
	err := l.track(ctx, "process_payment", payment, func() error {
		if err := l.apply(ctx, payment, "payment.processing", payment.MarkProcessing); err != nil {
			return err
		}

		out, err := invoke(ctx, l.timeout, call)
		persistCtx := context.WithoutCancel(ctx)
		if err != nil {
			procErr := asProcessingError(payment.ID, err)
			failErr := l.apply(persistCtx, payment, "payment.failed", func(now time.Time) error {
				return payment.MarkFailed(procErr.Err.Error(), procErr.Code, map[string]any{"error_code": procErr.Code}, now)
			})
			if failErr != nil {
				return errors.Join(procErr, failErr)
			}
			return procErr
		}

		if out.Pending {
			return nil
		}

		return l.apply(persistCtx, payment, "payment.completed", func(now time.Time) error {
			return payment.MarkCompleted(out.TransactionID, out.Response, now)
		})
	})
	return payment, err
}

func (l *Lifecycle) refund(ctx context.Context, payment *entity.Payment, input *RefundInput, call func(context.Context, decimal.Decimal) (*outcome, error)) (*entity.Payment, error) {
	err := l.track(ctx, "refund_payment", payment, func() error {
		amount, err := refundAmount(payment, input)
		if err != nil {
			return err
		}

		out, err := invoke(ctx, l.timeout, func(callCtx context.Context) (*outcome, error) {
			return call(callCtx, amount)
		})
		if err != nil {
			return err
		}

		return l.apply(ctx, payment, "payment.refunded", func(now time.Time) error {
			if err := payment.MarkRefunded(out.TransactionID, out.Response, now); err != nil {
				return err
			}
			payment.SetMetadata("refund_amount", amount.StringFixed(2))
			if input != nil && strings.TrimSpace(input.Reason) != "" {
				payment.SetMetadata("refund_reason", strings.TrimSpace(input.Reason))
			}
			return nil
		})
	})
	return payment, err
}

// verify asks the gateway for the payment's current state and records the
// answer in metadata. The status itself is never changed here.
func (l *Lifecycle) verify(ctx context.Context, payment *entity.Payment, verificationMethod string, call func(context.Context) (string, error)) (*entity.Payment, error) {
	err := l.track(ctx, "verify_payment", payment, func() error {
		if payment.TransactionIDValue() == "" {
			return &VerificationError{PaymentID: payment.ID, Reason: "payment has no transaction id"}
		}

		status, err := invoke(ctx, l.timeout, call)
		if err != nil {
			return &VerificationError{PaymentID: payment.ID, Reason: "gateway lookup failed", Err: err}
		}

		now := l.now().UTC()
		payment.SetMetadata("verified_at", now.Format(time.RFC3339))
		payment.SetMetadata("verification_method", verificationMethod)
		payment.SetMetadata("verified_status", status)
		payment.UpdatedAt = now
		return l.payments.Update(ctx, payment)
	})
	return payment, err
}

func refundAmount(payment *entity.Payment, input *RefundInput) (decimal.Decimal, error) {
	if payment.Status != entity.PaymentStatusCompleted {
		return decimal.Zero, &RefundError{
			PaymentID: payment.ID,
			Kind:      RefundNotRefundable,
			Detail:    "payment status is " + string(payment.Status),
		}
	}
	if input == nil || input.Amount == nil {
		return payment.Amount, nil
	}

	amount := *input.Amount
	if !amount.IsPositive() {
		return decimal.Zero, &RefundError{PaymentID: payment.ID, Kind: RefundInvalidAmount, Detail: "refund amount must be positive"}
	}
	if amount.GreaterThan(payment.Amount) {
		return decimal.Zero, &RefundError{
			PaymentID: payment.ID,
			Kind:      RefundInvalidAmount,
			Detail:    fmt.Sprintf("refund amount %s exceeds payment amount %s", amount.StringFixed(2), payment.Amount.StringFixed(2)),
		}
	}
	return amount, nil
}

// apply runs one state change, persists the payment and appends to the event
// trail. When the change cannot be applied or stored the payment is restored,
// so callers only ever see the state that was persisted.
func (l *Lifecycle) apply(ctx context.Context, payment *entity.Payment, eventType string, mutate func(now time.Time) error) error {
	snapshot := payment.Clone()
	oldStatus := payment.Status
	if err := mutate(l.now().UTC()); err != nil {
		*payment = *snapshot
		return err
	}
	if err := l.payments.Update(ctx, payment); err != nil {
		*payment = *snapshot
		return err
	}
	l.recordEvent(ctx, payment, eventType, oldStatus)
	return nil
}

func (l *Lifecycle) recordEvent(ctx context.Context, payment *entity.Payment, eventType string, oldStatus entity.PaymentStatus) {
	if l.events == nil {
		return
	}

	var payload *string
	if encoded, err := json.Marshal(map[string]any{
		"transaction_id": payment.TransactionIDValue(),
		"error_code":     payment.ErrorCode,
	}); err == nil {
		s := string(encoded)
		payload = &s
	}

	event := &entity.PaymentEvent{
		PaymentID:   payment.ID,
		EventType:   eventType,
		OldStatus:   &oldStatus,
		NewStatus:   payment.Status,
		PayloadJSON: payload,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.events.Create(ctx, event); err != nil {
		l.logger.WithError(err).WithField("payment_id", payment.ID).Warn("payment_event_write_failed")
	}
}

func (l *Lifecycle) track(ctx context.Context, operation string, payment *entity.Payment, fn func() error) error {
	logger := l.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"payment_method": string(l.method),
		"amount":         payment.Amount.StringFixed(2),
	})
	logger.Info(operation + "_started")

	if err := fn(); err != nil {
		logger.WithError(err).WithField("status", string(payment.Status)).Error(operation + "_failed")
		l.metrics.GatewayOperation(ctx, string(l.method), operation, telemetry.OutcomeFailure)
		return err
	}

	logger.WithField("status", string(payment.Status)).Info(operation + "_succeeded")
	l.metrics.GatewayOperation(ctx, string(l.method), operation, telemetry.OutcomeSuccess)
	return nil
}

// invoke bounds a gateway call by timeout and turns a panic into an error.
func invoke[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", errGatewayPanic, r)}
			}
		}()
		value, err := call(callCtx)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
			return res.value, fmt.Errorf("%w: %v", errGatewayCanceled, res.err)
		}
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return res.value, fmt.Errorf("%w: %v", errGatewayTimeout, res.err)
		}
		return res.value, res.err
	case <-callCtx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.Canceled) {
			return zero, fmt.Errorf("%w: %v", errGatewayCanceled, ctx.Err())
		}
		return zero, fmt.Errorf("%w after %s", errGatewayTimeout, timeout)
	}
}

func asProcessingError(paymentID string, err error) *ProcessingError {
	var procErr *ProcessingError
	if errors.As(err, &procErr) {
		procErr.PaymentID = paymentID
		if procErr.Code == "" {
			procErr.Code = CodeGatewayError
		}
		return procErr
	}

	code := CodeGatewayError
	switch {
	case errors.Is(err, errGatewayTimeout):
		code = CodeGatewayTimeout
	case errors.Is(err, errGatewayCanceled):
		code = CodeGatewayCanceled
	case errors.Is(err, errGatewayPanic):
		code = CodeGatewayPanic
	}
	return &ProcessingError{PaymentID: paymentID, Code: code, Err: err}
}
