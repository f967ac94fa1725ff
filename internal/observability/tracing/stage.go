package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartRun starts the root span for a newsletter generation run.
func StartRun(ctx context.Context, generationID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "newsletter.run",
		trace.WithAttributes(
			attribute.String("generation.id", generationID),
		),
	)
}

// StartStage starts a child span for a single pipeline stage.
func StartStage(ctx context.Context, generationID, stage string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "newsletter.stage."+stage,
		trace.WithAttributes(
			attribute.String("generation.id", generationID),
			attribute.String("stage", stage),
		),
	)
}

// EndStage ends a stage span, recording the error when the stage failed.
func EndStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
