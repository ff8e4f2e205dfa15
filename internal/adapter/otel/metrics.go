package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ethicsdesk"

// Metrics holds the workflow metric instruments.
type Metrics struct {
	ProposalsSubmitted metric.Int64Counter
	ReviewsOpened      metric.Int64Counter
	ReviewsClosed      metric.Int64Counter
	DecisionsRecorded  metric.Int64Counter
	ReviewDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ProposalsSubmitted, err = meter.Int64Counter("ethicsdesk.proposals.submitted",
		metric.WithDescription("Number of proposals submitted for review"))
	if err != nil {
		return nil, err
	}

	m.ReviewsOpened, err = meter.Int64Counter("ethicsdesk.reviews.opened",
		metric.WithDescription("Number of reviews opened"))
	if err != nil {
		return nil, err
	}

	m.ReviewsClosed, err = meter.Int64Counter("ethicsdesk.reviews.closed",
		metric.WithDescription("Number of reviews closed"))
	if err != nil {
		return nil, err
	}

	m.DecisionsRecorded, err = meter.Int64Counter("ethicsdesk.decisions.recorded",
		metric.WithDescription("Number of reviewer decisions recorded"))
	if err != nil {
		return nil, err
	}

	m.ReviewDuration, err = meter.Float64Histogram("ethicsdesk.review.duration_days",
		metric.WithDescription("Days from review open to close"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
