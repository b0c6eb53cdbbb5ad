// Package otel wires OpenTelemetry tracing and metrics for service processes.
package otel

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const metricExportInterval = 15 * time.Second

// Setup initialises OpenTelemetry for the given service.
//
// Telemetry is opt-in: FORTHCOMING_OTEL_ENDPOINT enables OTLP/HTTP traces and
// FORTHCOMING_OTEL_METRICS_ENDPOINT enables OTLP/gRPC metrics. When both are
// empty, or FORTHCOMING_OTEL_ENABLED is "false", Setup returns a no-op
// shutdown function and registers no global provider. Instruments created
// from the global meter stay no-ops in that case.
//
// The returned shutdown function flushes pending spans and metric points and
// should be deferred by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv("FORTHCOMING_OTEL_ENABLED"), "false") {
		return noop, nil
	}

	traceEndpoint := strings.TrimSpace(os.Getenv("FORTHCOMING_OTEL_ENDPOINT"))
	metricsEndpoint := strings.TrimSpace(os.Getenv("FORTHCOMING_OTEL_METRICS_ENDPOINT"))
	if traceEndpoint == "" && metricsEndpoint == "" {
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	var shutdowns []func(context.Context) error

	if traceEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(traceEndpoint),
		)
		if err != nil {
			return noop, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	if metricsEndpoint != "" {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(metricsEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return joinShutdowns(shutdowns), err
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(metricExportInterval),
			)),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return joinShutdowns(shutdowns), nil
}

func joinShutdowns(shutdowns []func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			if err := shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
