package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.GatewayOperation(context.Background(), "fake", "prepare", OutcomeSuccess)
	m.Callback(context.Background(), "fake", OutcomeFailure)
	m.Recalculation(context.Background(), OutcomeSuccess)
	m.GoalAchieved(context.Background())
	m.Job(context.Background(), "recalculate_campaign_amount", OutcomeRetry)
}

func TestMetricsRecordsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.Recalculation(ctx, OutcomeSuccess)
	m.Recalculation(ctx, OutcomeSuccess)
	m.GoalAchieved(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, item := range scope.Metrics {
			sum, ok := item.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				totals[item.Name] += point.Value
			}
		}
	}

	if totals["crowdfunding.campaign.recalculations"] != 2 {
		t.Fatalf("unexpected recalculation count: %d", totals["crowdfunding.campaign.recalculations"])
	}
	if totals["crowdfunding.campaign.goals_achieved"] != 1 {
		t.Fatalf("unexpected goal count: %d", totals["crowdfunding.campaign.goals_achieved"])
	}
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "crowdfunding-test", "", 0)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	shutdown(context.Background())
}
