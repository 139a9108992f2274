package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

type ShutdownFunc func(context.Context)

// Init installs a global meter provider exporting over OTLP/gRPC. Without an
// endpoint it leaves the no-op provider in place.
func Init(ctx context.Context, serviceName, endpoint string, interval time.Duration) (ShutdownFunc, error) {
	if endpoint == "" {
		logrus.Info("OpenTelemetry endpoint not set, metrics export disabled")
		return func(context.Context) {}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, errors.New("failed to create otel resource")
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, errors.New("failed to create otel metric exporter")
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("failed to shutdown meter provider")
		}
	}, nil
}
