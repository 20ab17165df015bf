package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this module in any collector
// they are eventually shipped to.
const TracerName = "github.com/rulectl/rulectl"

// NewTracerProvider returns an OpenTelemetry TracerProvider. In dev
// mode it exports spans to stdout alongside the verbose logging that
// flag already enables; outside dev mode it returns otel's built-in
// no-op provider so span creation stays cheap when nobody is watching.
//
// The caller owns the returned shutdown func and must call it before
// process exit to flush any buffered spans.
func NewTracerProvider(devMode bool) (trace.TracerProvider, func(context.Context) error) {
	if !devMode {
		return trace.NewNoopTracerProvider(), func(context.Context) error { return nil }
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return trace.NewNoopTracerProvider(), func(context.Context) error { return nil }
	}

	res := resource.NewSchemaless()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, tp.Shutdown
}

// Tracer returns the package-wide tracer from the given provider (or
// the global otel provider if nil).
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(TracerName)
}
