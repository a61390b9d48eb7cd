// Package telemetry initializes the OpenTelemetry metric provider used to
// record Provider Adapter latency and token counts (spec §4.1 "token/latency
// metrics"). Scoped to metrics only: this repo has no request-serving
// surface to trace, unlike its grounding source.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown flushes and stops the meter provider; callers invoke it once, at
// process exit.
type Shutdown func(ctx context.Context) error

// Init configures the global OpenTelemetry meter provider. If endpoint is
// empty, Init installs nothing and returns a no-op Shutdown, leaving the
// global meter provider as it was (OpenTelemetry's default is a no-op),
// mirroring the teacher pack's telemetry.Init.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return mp.Shutdown(ctx)
	}, nil
}

// Meter returns the global meter for the given instrumentation scope, e.g.
// a provider adapter package name.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}
