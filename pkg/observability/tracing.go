package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracing installs a process-wide go.opentelemetry.io/otel
// TracerProvider so the tracer.Start calls already threaded through
// internal/graph/apply.go and internal/exec/find.go produce real spans
// instead of the no-op default. Grounded on
// internal/infrastructure/tracing/tracing.go (teacher): an OTLP-exporting
// TracerProvider set as the global provider at process start, shut down on
// exit. This module carries no OTLP exporter dependency (no collector
// endpoint is part of its scope), so the provider here samples spans but
// registers no span processor: ended spans are neither exported nor kept.
// Adding an exporter is a one-line sdktrace.WithBatcher(exporter) addition
// at this call site, not a change to any caller of otel.Tracer.
func InitTracing(serviceName string) (shutdown func(context.Context) error, err error) {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
