package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/callback"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/telemetry"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
	ListStale(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

type PaymentCallbackService struct {
	payments  paymentRepository
	callbacks paymentCallbackRepository
	gateways  *gateway.Registry
	handlers  *callback.Registry
	settler   *donationSettler
	metrics   *telemetry.Metrics
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewPaymentCallbackService(
	payments paymentRepository,
	callbacks paymentCallbackRepository,
	donations donationRepository,
	gateways *gateway.Registry,
	handlers *callback.Registry,
	jobs queue.Enqueuer,
	metrics *telemetry.Metrics,
) *PaymentCallbackService {
	logger := factory.NewModuleLogger("payment-callback")
	return &PaymentCallbackService{
		payments:  payments,
		callbacks: callbacks,
		gateways:  gateways,
		handlers:  handlers,
		settler:   &donationSettler{donations: donations, jobs: jobs, logger: logger, now: time.Now},
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleCallback loads the payment and processes the callback. It always
// returns a result the payer can be redirected with. The error, if any, is
// for the transport to pick a status code and is never shown to the payer.
func (s *PaymentCallbackService) HandleCallback(ctx context.Context, paymentID string, req *callback.Request) (result *callback.Result, err error) {
	logger := s.logger.WithField("payment_id", paymentID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payment %s: callback processing panicked: %v", paymentID, r)
			logger.WithError(err).WithField("stack", string(debug.Stack())).Error("payment_callback_panicked")
			result = callback.RejectedResult(paymentID)
		}
	}()

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		logger.WithError(err).Error("payment_callback_lookup_failed")
		return callback.RejectedResult(paymentID), err
	}
	if payment == nil {
		logger.Warn("payment_callback_unknown_payment")
		s.audit(ctx, "", "", req, ErrPaymentNotFound)
		return callback.RejectedResult(paymentID), ErrPaymentNotFound
	}

	result, err = s.ProcessCallback(ctx, payment, req)
	if err != nil {
		entry := logger.WithError(err).WithFields(logrus.Fields{
			"payment_method": string(payment.PaymentMethod),
			"status":         string(payment.Status),
		})
		if IsCallbackError(err, CallbackInvalid) {
			entry.Warn("payment_callback_rejected")
		} else {
			entry.Error("payment_callback_failed")
		}
		return callback.RejectedResult(paymentID), err
	}

	return result, nil
}

// ProcessCallback authenticates a gateway callback, applies its outcome to
// the payment through the gateway and settles the owning donation. A
// callback for an already settled payment is authenticated and answered with
// the stored outcome; it only finishes a donation update left undone.
func (s *PaymentCallbackService) ProcessCallback(ctx context.Context, payment *entity.Payment, req *callback.Request) (*callback.Result, error) {
	method := string(payment.PaymentMethod)

	handler, err := s.handlers.Resolve(payment.PaymentMethod)
	if err != nil {
		cbErr := &CallbackError{Kind: CallbackNoHandler, PaymentID: payment.ID, Err: err}
		s.reject(ctx, payment, req, cbErr)
		return nil, cbErr
	}

	if !handler.ValidateCallback(ctx, payment, req) {
		cbErr := &CallbackError{Kind: CallbackInvalid, PaymentID: payment.ID}
		s.reject(ctx, payment, req, cbErr)
		return nil, cbErr
	}

	if payment.Status.Settled() {
		s.logger.WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"status":     string(payment.Status),
		}).Info("payment_callback_duplicate")
		// An earlier delivery may have stopped between persisting the
		// payment and updating the donation.
		if payment.Status != entity.PaymentStatusRefunded {
			if err := s.settler.settle(ctx, payment); err != nil {
				s.reject(ctx, payment, req, err)
				return nil, err
			}
		}
		s.audit(ctx, payment.ID, method, req, nil)
		s.metrics.Callback(ctx, method, telemetry.OutcomeSkipped)
		return callback.StoredResult(payment), nil
	}

	result, err := handler.HandleCallback(ctx, payment, req)
	if err != nil {
		s.reject(ctx, payment, req, err)
		return nil, fmt.Errorf("payment %s: handle callback: %w", payment.ID, err)
	}

	if err := s.apply(ctx, payment, result); err != nil {
		s.reject(ctx, payment, req, err)
		return nil, err
	}

	if err := s.settler.settle(ctx, payment); err != nil {
		s.reject(ctx, payment, req, err)
		return nil, err
	}

	s.audit(ctx, payment.ID, method, req, nil)
	s.metrics.Callback(ctx, method, telemetry.OutcomeSuccess)
	s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"payment_method": method,
		"status":         string(payment.Status),
	}).Info("payment_callback_processed")

	return result, nil
}

// apply hands the outcome to the gateway so every status change goes through
// the same transition path.
func (s *PaymentCallbackService) apply(ctx context.Context, payment *entity.Payment, result *callback.Result) error {
	if !result.Successful() && !result.Failed() {
		return nil
	}

	gw, err := s.gateways.Resolve(payment.PaymentMethod)
	if err != nil {
		return err
	}

	if result.Successful() {
		return gw.CompletePayment(ctx, payment, result.TransactionID, result.GatewayResponse)
	}
	return gw.FailPayment(ctx, payment, result.ErrorMessage, result.ErrorCode, result.GatewayResponse)
}

func (s *PaymentCallbackService) reject(ctx context.Context, payment *entity.Payment, req *callback.Request, cause error) {
	s.audit(ctx, payment.ID, string(payment.PaymentMethod), req, cause)
	s.metrics.Callback(ctx, string(payment.PaymentMethod), telemetry.OutcomeFailure)
}

func (s *PaymentCallbackService) audit(ctx context.Context, paymentID, method string, req *callback.Request, cause error) {
	record := &entity.PaymentCallback{
		PaymentMethod: method,
		HTTPMethod:    req.Method,
		PayloadJSON:   encodeCallbackPayload(req),
		Status:        entity.PaymentCallbackProcessed,
		CreatedAt:     s.now().UTC(),
	}
	if paymentID != "" {
		record.PaymentID = &paymentID
	}
	if cause != nil {
		reason := truncate(cause.Error(), 1024)
		record.Error = &reason
		record.Status = entity.PaymentCallbackRejected
	}

	if err := s.callbacks.Create(ctx, record); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Warn("payment_callback_audit_failed")
	}
}

func encodeCallbackPayload(req *callback.Request) string {
	encoded, err := json.Marshal(map[string]any{
		"params": req.Params,
		"body":   string(req.Body),
	})
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
