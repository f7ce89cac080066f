package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTracing installs a process-wide TracerProvider so pkg/session's spans
// around Connect/request/Call have somewhere real to go. No exporter is
// configured here — there is no collector in scope for this tester — so
// the provider samples and drops spans; pkg/session still gets a working
// SDK tracer (context propagation, span parenting) rather than the global
// no-op stand-in it would fall back to with no provider installed at all.
func initTracing() func(context.Context) error {
	res := sdkresource.NewSchemaless(attribute.String("service.name", "mcp-aegis"))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
