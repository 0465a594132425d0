// Package telemetry wires up the process-wide zap logger and OpenTelemetry
// tracer/meter providers (SPEC_FULL.md §4.8). Every other package obtains its
// own `otel.Tracer("github.com/bimatlas/core/<pkg>")` / `otel.Meter(...)`
// instance at package-init time the way internal/storage/dolt/store.go does
// with doltTracer/doltMetrics; Init here only installs the real SDK
// providers behind those package-level handles, which are no-ops otherwise.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// Shutdown flushes and stops the installed providers. Callers should defer
// it from main.
type Shutdown func(context.Context) error

// Init installs a TracerProvider and MeterProvider for serviceName. Spans
// and metrics are written to stdout by default (suitable for local
// development and the test suite); a production deployment points the same
// exporters at an OTLP collector by swapping the exporter construction below
// without touching call sites, since every package only ever holds the
// global otel.Tracer/otel.Meter handle.
func Init(serviceName string) (Shutdown, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("building trace exporter: %w", err)
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("building metric exporter: %w", err)
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
		return meterProvider.Shutdown(ctx)
	}, nil
}

// NewLogger returns a production zap.Logger unless dev is true, matching the
// verbosity split the teacher's CLI makes between human-facing and
// machine-facing (--json) output.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
