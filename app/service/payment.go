package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/entity"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/gateway"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/queue"
	"github.com/vibast-solutions/ms-go-crowdfunding/config"
)

const (
	defaultBatchSize = int32(100)

	CodePaymentTimeout = "PAYMENT_TIMEOUT"
)

type PaymentService struct {
	payments paymentRepository
	gateways *gateway.Registry
	settler  *donationSettler
	jobsCfg  config.JobsConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewPaymentService(
	payments paymentRepository,
	donations donationRepository,
	gateways *gateway.Registry,
	jobs queue.Enqueuer,
	jobsCfg config.JobsConfig,
) *PaymentService {
	logger := factory.NewModuleLogger("payment-service")
	return &PaymentService{
		payments: payments,
		gateways: gateways,
		settler:  &donationSettler{donations: donations, jobs: jobs, logger: logger, now: time.Now},
		jobsCfg:  jobsCfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*entity.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// ProcessPayment runs an inline gateway charge. Whatever the outcome, the
// donation is settled the same way a callback would settle it.
func (s *PaymentService) ProcessPayment(ctx context.Context, id string, input *gateway.ProcessInput) (*entity.Payment, error) {
	payment, gw, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	payment, procErr := gw.ProcessPayment(ctx, payment, input)
	if payment != nil && payment.Status.Settled() {
		if err := s.settler.settle(ctx, payment); err != nil {
			return payment, errors.Join(procErr, err)
		}
	}
	return payment, procErr
}

// RefundPayment refunds a completed payment. The donation keeps its status.
func (s *PaymentService) RefundPayment(ctx context.Context, id string, input *gateway.RefundInput) (*entity.Payment, error) {
	payment, gw, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return gw.RefundPayment(ctx, payment, input)
}

func (s *PaymentService) VerifyPayment(ctx context.Context, id string) (*entity.Payment, error) {
	payment, gw, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return gw.VerifyPaymentStatus(ctx, payment)
}

// RunExpireStaleBatch fails pending and processing payments that have not
// moved for longer than the stale timeout.
func (s *PaymentService) RunExpireStaleBatch(ctx context.Context) (int, error) {
	before := s.now().UTC().Add(-s.jobsCfg.StaleTimeout)
	items, err := s.payments.ListStale(ctx, before, s.batchSize())
	if err != nil {
		return 0, err
	}

	expired := 0
	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.Status.Settled() {
			continue
		}

		gw, err := s.gateways.Resolve(payment.PaymentMethod)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		if err := gw.FailPayment(ctx, payment, "payment was not completed in time", CodePaymentTimeout, nil); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if err := s.settler.settle(ctx, payment); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.WithField("count", expired).Info("stale_payments_expired")
	}
	return expired, firstErr
}

func (s *PaymentService) load(ctx context.Context, id string) (*entity.Payment, gateway.Gateway, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	gw, err := s.gateways.Resolve(payment.PaymentMethod)
	if err != nil {
		return nil, nil, err
	}
	return payment, gw, nil
}

func (s *PaymentService) batchSize() int32 {
	if s.jobsCfg.BatchSize > 0 {
		return s.jobsCfg.BatchSize
	}
	return defaultBatchSize
}
