// Package tracing provides OpenTelemetry tracing integration.
//
// Pipeline runs are traced as a root span per generation with one child
// span per stage. Spans carry the generation ID and stage name so traces
// can be correlated with structured logs.
//
// Example usage:
//
//	import "digestly/internal/observability/tracing"
//
//	func runStage(ctx context.Context) {
//	    ctx, span := tracing.StartStage(ctx, "gen-123", "collection")
//	    defer span.End()
//	    // ... stage work ...
//	}
package tracing
