// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for workflow events. The notification and document
// subsystems consume these; the workflow core only publishes.
const (
	// SubjectProposalStatus carries {proposal_id, old_status, new_status, reason}
	// for every proposal status transition.
	SubjectProposalStatus = "proposals.status"

	// SubjectProposalSubmitted is published when an applicant finalizes a draft.
	SubjectProposalSubmitted = "proposals.submitted"

	// SubjectReviewCreated is published when the orchestrator opens a review.
	SubjectReviewCreated = "reviews.created"

	// SubjectReviewClosed carries the review's final continuation code.
	SubjectReviewClosed = "reviews.closed"

	// SubjectDecisionRecorded is published when a reviewer submits a vote.
	SubjectDecisionRecorded = "reviews.decision"

	// SubjectDocumentsReady signals the external document generator that a
	// proposal reached its approved state and a confirmation PDF is due.
	SubjectDocumentsReady = "proposals.documents"
)
