package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ethicsdesk"

// StartSubmissionSpan starts a span covering proposal submission routing.
func StartSubmissionSpan(ctx context.Context, proposalID, reference string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "submission",
		trace.WithAttributes(
			attribute.String("proposal.id", proposalID),
			attribute.String("proposal.reference", reference),
		),
	)
}

// StartReviewCloseSpan starts a span covering a review close-out.
func StartReviewCloseSpan(ctx context.Context, reviewID, reviewType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "review.close",
		trace.WithAttributes(
			attribute.String("review.id", reviewID),
			attribute.String("review.type", reviewType),
		),
	)
}
