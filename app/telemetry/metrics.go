package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/vibast-solutions/ms-go-crowdfunding"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRetry   = "retry"
	OutcomeDead    = "dead"
	OutcomeSkipped = "skipped"
)

// Metrics groups the service counters. A nil *Metrics records nothing.
type Metrics struct {
	gatewayOperations metric.Int64Counter
	callbacks         metric.Int64Counter
	recalculations    metric.Int64Counter
	goalsAchieved     metric.Int64Counter
	jobs              metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}

	gatewayOperations, err := meter.Int64Counter("crowdfunding.gateway.operations",
		metric.WithDescription("Gateway operations by method, operation and outcome"))
	if err != nil {
		return nil, err
	}
	callbacks, err := meter.Int64Counter("crowdfunding.payment.callbacks",
		metric.WithDescription("Inbound payment callbacks by method and outcome"))
	if err != nil {
		return nil, err
	}
	recalculations, err := meter.Int64Counter("crowdfunding.campaign.recalculations",
		metric.WithDescription("Campaign amount recalculations by outcome"))
	if err != nil {
		return nil, err
	}
	goalsAchieved, err := meter.Int64Counter("crowdfunding.campaign.goals_achieved",
		metric.WithDescription("Campaigns that newly reached their goal"))
	if err != nil {
		return nil, err
	}
	jobs, err := meter.Int64Counter("crowdfunding.queue.jobs",
		metric.WithDescription("Queue job executions by type and outcome"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatewayOperations: gatewayOperations,
		callbacks:         callbacks,
		recalculations:    recalculations,
		goalsAchieved:     goalsAchieved,
		jobs:              jobs,
	}, nil
}

func (m *Metrics) GatewayOperation(ctx context.Context, method, operation, outcome string) {
	if m == nil {
		return
	}
	m.gatewayOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", method),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Callback(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.callbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", method),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Recalculation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.recalculations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) GoalAchieved(ctx context.Context) {
	if m == nil {
		return
	}
	m.goalsAchieved.Add(ctx, 1)
}

func (m *Metrics) Job(ctx context.Context, jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", jobType),
		attribute.String("outcome", outcome),
	))
}
