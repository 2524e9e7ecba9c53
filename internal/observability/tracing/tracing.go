// Package tracing wires the OpenTelemetry SDK. Export is opt-in: without an
// OTLP endpoint the global no-op provider stays in place and otelhttp spans
// cost next to nothing.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes buffered spans
type ShutdownFunc func(context.Context) error

// Init reads OTEL_EXPORTER_OTLP_ENDPOINT and OTEL_TRACES_SAMPLER_ARG. The
// endpoint may be host:port (plain HTTP) or a full URL, in which case the
// scheme decides TLS.
func Init(ctx context.Context, logger *slog.Logger, serviceName, environment string) (ShutdownFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		logger.Info("tracing disabled", slog.String("reason", "OTEL_EXPORTER_OTLP_ENDPOINT not set"))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, exporterOptions(endpoint)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	ratio := samplingRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG"))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing initialized",
		slog.String("endpoint", endpoint),
		slog.String("service", serviceName),
		slog.Float64("sample_ratio", ratio),
	)
	return tp.Shutdown, nil
}

func exporterOptions(endpoint string) []otlptracehttp.Option {
	if strings.Contains(endpoint, "://") {
		return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	}
	return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
}

// samplingRatio defaults to sampling everything; out of range values clamp.
func samplingRatio(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	switch {
	case err != nil:
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
