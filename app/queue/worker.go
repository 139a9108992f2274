package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/telemetry"
	"golang.org/x/sync/errgroup"
)

type HandlerFunc func(ctx context.Context, job *Job) error

// FailureHook runs once a job has exhausted its attempts or failed permanently.
type FailureHook func(ctx context.Context, job *Job, err error)

type WorkerConfig struct {
	Concurrency  int
	Backoff      time.Duration
	PollTimeout  time.Duration
	PromoteEvery time.Duration
}

type Worker struct {
	broker    Broker
	cfg       WorkerConfig
	handlers  map[string]HandlerFunc
	onFailure map[string][]FailureHook
	metrics   *telemetry.Metrics
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewWorker(broker Broker, cfg WorkerConfig, metrics *telemetry.Metrics) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.PromoteEvery <= 0 {
		cfg.PromoteEvery = time.Second
	}

	return &Worker{
		broker:    broker,
		cfg:       cfg,
		handlers:  make(map[string]HandlerFunc),
		onFailure: make(map[string][]FailureHook),
		metrics:   metrics,
		logger:    factory.NewModuleLogger("queue-worker"),
		now:       time.Now,
	}
}

func (w *Worker) Handle(jobType string, handler HandlerFunc) {
	w.handlers[jobType] = handler
}

func (w *Worker) OnFailure(jobType string, hook FailureHook) {
	w.onFailure[jobType] = append(w.onFailure[jobType], hook)
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	requeued, err := w.broker.Requeue(ctx)
	if err != nil {
		return fmt.Errorf("requeue in-flight jobs: %w", err)
	}
	if requeued > 0 {
		w.logger.WithField("count", requeued).Warn("in_flight_jobs_requeued")
	}

	w.logger.WithField("concurrency", w.cfg.Concurrency).Info("worker_started")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.promoteLoop(groupCtx)
	})
	for i := 0; i < w.cfg.Concurrency; i++ {
		group.Go(func() error {
			return w.consumeLoop(groupCtx)
		})
	}

	err = group.Wait()
	w.logger.Info("worker_stopped")
	return err
}

func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PromoteEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.broker.PromoteDue(ctx, w.now()); err != nil && ctx.Err() == nil {
				w.logger.WithError(err).Error("promote_delayed_jobs_failed")
			}
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		delivery, err := w.broker.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.WithError(err).Error("dequeue_failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if delivery == nil {
			continue
		}

		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery *Delivery) {
	job := delivery.Job
	job.Attempt++

	logger := w.logger.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"job_type":     job.Type,
		"attempt":      job.Attempt,
		"max_attempts": job.MaxAttempts,
	})

	err := w.execute(ctx, job)

	// Settle the delivery even when shutdown cancelled the handler.
	settleCtx := context.WithoutCancel(ctx)

	if err == nil {
		if ackErr := w.broker.Ack(settleCtx, delivery); ackErr != nil {
			logger.WithError(ackErr).Error("job_ack_failed")
		}
		logger.Info("job_completed")
		w.metrics.Job(ctx, job.Type, telemetry.OutcomeSuccess)
		return
	}

	if !IsPermanent(err) && job.Attempt < job.MaxAttempts {
		if retryErr := w.broker.Retry(settleCtx, delivery, w.cfg.Backoff, err); retryErr != nil {
			logger.WithError(retryErr).Error("job_retry_schedule_failed")
		}
		logger.WithError(err).WithField("backoff", w.cfg.Backoff.String()).Warn("job_retry_scheduled")
		w.metrics.Job(ctx, job.Type, telemetry.OutcomeRetry)
		return
	}

	if buryErr := w.broker.Bury(settleCtx, delivery, err); buryErr != nil {
		logger.WithError(buryErr).Error("job_bury_failed")
	}
	logger.WithError(err).Error("job_permanently_failed")
	w.metrics.Job(ctx, job.Type, telemetry.OutcomeDead)

	for _, hook := range w.onFailure[job.Type] {
		hook(settleCtx, job, err)
	}
}

func (w *Worker) execute(ctx context.Context, job *Job) (err error) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	return handler(ctx, job)
}
