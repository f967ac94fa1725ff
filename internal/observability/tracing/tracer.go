package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("digestly")

// GetTracer returns the process-wide tracer used for pipeline spans.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "collection")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
