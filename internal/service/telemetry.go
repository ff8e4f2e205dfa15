package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	edotel "github.com/ethicsdesk/ethicsdesk/internal/adapter/otel"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/port/messagequeue"
)

// TelemetryService records workflow metrics from queue events. Keeping the
// instrumentation on the consumer side means the workflow path stays free of
// metric plumbing and a telemetry outage cannot affect submissions.
type TelemetryService struct {
	metrics *edotel.Metrics
}

func NewTelemetryService(metrics *edotel.Metrics) *TelemetryService {
	return &TelemetryService{metrics: metrics}
}

// Run subscribes the service to the workflow event subjects and returns a
// cancel function tearing the subscriptions down.
func (s *TelemetryService) Run(ctx context.Context, queue messagequeue.Queue) (func(), error) {
	subs := []struct {
		subject string
		handler messagequeue.Handler
	}{
		{messagequeue.SubjectProposalSubmitted, s.handleSubmitted},
		{messagequeue.SubjectReviewCreated, s.handleReviewCreated},
		{messagequeue.SubjectReviewClosed, s.handleReviewClosed},
		{messagequeue.SubjectDecisionRecorded, s.handleDecision},
	}

	cancels := make([]func(), 0, len(subs))
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, sub := range subs {
		cancel, err := queue.Subscribe(ctx, sub.subject, sub.handler)
		if err != nil {
			cancelAll()
			return nil, fmt.Errorf("subscribe %s: %w", sub.subject, err)
		}
		cancels = append(cancels, cancel)
	}
	return cancelAll, nil
}

func (s *TelemetryService) handleSubmitted(ctx context.Context, _ string, _ []byte) error {
	s.metrics.ProposalsSubmitted.Add(ctx, 1)
	return nil
}

func (s *TelemetryService) handleReviewCreated(ctx context.Context, _ string, data []byte) error {
	var r review.Review
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode review event: %w", err)
	}
	s.metrics.ReviewsOpened.Add(ctx, 1,
		metric.WithAttributes(attribute.String("review.type", string(r.Type))))
	return nil
}

func (s *TelemetryService) handleReviewClosed(ctx context.Context, _ string, data []byte) error {
	var r review.Review
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode review event: %w", err)
	}

	attrs := metric.WithAttributes(attribute.String("review.type", string(r.Type)))
	s.metrics.ReviewsClosed.Add(ctx, 1, attrs)
	if r.DateEnd != nil {
		days := r.DateEnd.Sub(r.DateStart).Hours() / 24
		s.metrics.ReviewDuration.Record(ctx, days, attrs)
	}
	return nil
}

func (s *TelemetryService) handleDecision(ctx context.Context, _ string, _ []byte) error {
	s.metrics.DecisionsRecorded.Add(ctx, 1)
	return nil
}
