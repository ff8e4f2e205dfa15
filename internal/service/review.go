package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ethicsdesk/ethicsdesk/internal/adapter/ws"
	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/port/broadcast"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
	"github.com/ethicsdesk/ethicsdesk/internal/port/messagequeue"
)

// DecisionInput is a reviewer's vote as submitted through the API. Reject
// marks a dissent as final; without it a dissent returns the proposal for
// revision.
type DecisionInput struct {
	Go         *bool             `json:"go"`
	Comments   string            `json:"comments,omitempty"`
	Reject     bool              `json:"reject"`
	Escalation review.Escalation `json:"escalation,omitempty"`
}

// Validate checks the vote payload.
func (in *DecisionInput) Validate() error {
	if in.Go == nil {
		return fmt.Errorf("%w: a decision requires a go verdict", domain.ErrValidation)
	}
	switch in.Escalation {
	case review.EscalationNone, review.EscalationLongRoute, review.EscalationMETC:
		return nil
	default:
		return fmt.Errorf("%w: unknown escalation %q", domain.ErrValidation, in.Escalation)
	}
}

// ReviewService manages reviews, reviewer assignment, and decision
// recording. Closing a review is delegated to the store's transactional
// record-and-close; the follow-up workflow dispatch happens here.
type ReviewService struct {
	store     database.Store
	queue     messagequeue.Queue
	broadcast broadcast.Broadcaster
	workflow  *WorkflowService
}

// NewReviewService creates a ReviewService.
func NewReviewService(store database.Store, queue messagequeue.Queue, bc broadcast.Broadcaster, workflow *WorkflowService) *ReviewService {
	return &ReviewService{store: store, queue: queue, broadcast: bc, workflow: workflow}
}

// ListForProposal returns all reviews of a proposal, oldest first.
func (s *ReviewService) ListForProposal(ctx context.Context, proposalID string) ([]review.Review, error) {
	return s.store.ListReviews(ctx, proposalID)
}

// Get returns a single review.
func (s *ReviewService) Get(ctx context.Context, id string) (*review.Review, error) {
	return s.store.GetReview(ctx, id)
}

// ListDecisions returns the decisions of a review.
func (s *ReviewService) ListDecisions(ctx context.Context, reviewID string) ([]review.Decision, error) {
	return s.store.ListDecisions(ctx, reviewID)
}

// GetMyDecision returns the calling reviewer's decision slot.
func (s *ReviewService) GetMyDecision(ctx context.Context, reviewID, reviewerID string) (*review.Decision, error) {
	return s.store.GetDecision(ctx, reviewID, reviewerID)
}

// AssignReviewers registers the given committee members on a review and
// moves it from assignment to assessment. The reviewer count is policy
// configuration; assigning fewer is a policy violation, since an
// under-assigned review could otherwise close on too few votes.
func (s *ReviewService) AssignReviewers(ctx context.Context, reviewID string, reviewerIDs []string) (*review.Review, error) {
	r, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if r.Stage != review.StageCommitteeAssignment {
		return nil, fmt.Errorf("%w: review %s is not awaiting assignment", domain.ErrPolicy, r.ID)
	}

	required := s.workflow.ReviewersRequired(r)
	if len(reviewerIDs) < required {
		return nil, fmt.Errorf("%w: review %s requires %d reviewers, got %d",
			domain.ErrPolicy, r.ID, required, len(reviewerIDs))
	}
	seen := make(map[string]bool, len(reviewerIDs))
	for _, id := range reviewerIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: reviewer %s assigned twice", domain.ErrValidation, id)
		}
		seen[id] = true

		u, err := s.store.GetUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reviewer %s: %w", id, err)
		}
		if !u.CanReview() {
			return nil, fmt.Errorf("%w: user %s cannot be assigned reviews", domain.ErrPolicy, id)
		}
	}

	for _, id := range reviewerIDs {
		d := &review.Decision{ReviewID: r.ID, ReviewerID: id}
		if err := s.store.CreateDecision(ctx, d); err != nil {
			return nil, fmt.Errorf("assign reviewer %s: %w", id, err)
		}
	}

	if err := s.store.UpdateReviewStage(ctx, r.ID, review.StageCommitteeAssignment, review.StageCommitteeAssessment); err != nil {
		return nil, err
	}
	r.Stage = review.StageCommitteeAssessment

	// Assignment puts the proposal under active review. An escalated
	// review's proposal is already there; no status move then.
	p, err := s.store.GetProposal(ctx, r.ProposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusUnderReview {
		if err := s.workflow.moveStatus(ctx, p, proposal.StatusUnderReview, "reviewers_assigned"); err != nil {
			return nil, err
		}
	}

	slog.Info("reviewers assigned", "review", r.ID, "count", len(reviewerIDs))
	return r, nil
}

// SubmitDecision records (or updates) a reviewer's vote. When the vote
// completes the decision set, the review closes in the same transaction and
// the workflow continuation dispatch runs.
func (s *ReviewService) SubmitDecision(ctx context.Context, reviewID, reviewerID string, in DecisionInput) (*review.Review, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	d := &review.Decision{
		ReviewID:   reviewID,
		ReviewerID: reviewerID,
		Go:         in.Go,
		Comments:   in.Comments,
		Reject:     in.Reject,
		Escalation: in.Escalation,
	}

	r, err := s.store.RecordDecisionAndClose(ctx, d, func(r *review.Review, decisions []review.Decision) (review.Outcome, error) {
		return review.Aggregate(decisions)
	})
	if err != nil {
		return nil, err
	}

	s.publishDecision(ctx, r)

	if r.Closed() {
		p, err := s.store.GetProposal(ctx, r.ProposalID)
		if err != nil {
			return nil, err
		}
		if err := s.workflow.OnReviewClosed(ctx, p, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s *ReviewService) publishDecision(ctx context.Context, r *review.Review) {
	decisions, err := s.store.ListDecisions(ctx, r.ID)
	if err != nil {
		slog.Error("list decisions for event", "review", r.ID, "error", err)
		return
	}
	submitted := 0
	for i := range decisions {
		if decisions[i].Submitted() {
			submitted++
		}
	}

	event := ws.DecisionEvent{
		ReviewID:   r.ID,
		ProposalID: r.ProposalID,
		Submitted:  submitted,
		Expected:   len(decisions),
	}
	if s.queue != nil {
		if data, err := json.Marshal(event); err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectDecisionRecorded, data); err != nil {
				slog.Error("publish decision event", "review", r.ID, "error", err)
			}
		}
	}
	if s.broadcast != nil {
		s.broadcast.BroadcastEvent(ctx, ws.EventDecisionRecorded, event)
	}
}
