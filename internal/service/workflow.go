package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	edotel "github.com/ethicsdesk/ethicsdesk/internal/adapter/otel"
	"github.com/ethicsdesk/ethicsdesk/internal/adapter/ws"
	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/route"
	"github.com/ethicsdesk/ethicsdesk/internal/port/broadcast"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
	"github.com/ethicsdesk/ethicsdesk/internal/port/documents"
	"github.com/ethicsdesk/ethicsdesk/internal/port/messagequeue"
)

// WorkflowConfig carries the committee policy knobs the orchestrator needs.
type WorkflowConfig struct {
	Chambers            route.ChamberMap
	ShortRouteReviewers int
	LongRouteReviewers  int
}

// StatusChangedEvent is the structured payload emitted on every proposal
// status transition.
type StatusChangedEvent struct {
	ProposalID string `json:"proposal_id"`
	Reference  string `json:"reference"`
	OldStatus  int    `json:"old_status"`
	NewStatus  int    `json:"new_status"`
	Reason     string `json:"reason"`
}

// WorkflowService orchestrates the review lifecycle: it reacts to proposal
// submission and review closure, creates follow-up reviews, moves proposal
// statuses, and emits events for the notification and document subsystems.
type WorkflowService struct {
	store     database.Store
	queue     messagequeue.Queue
	broadcast broadcast.Broadcaster
	docs      documents.Generator
	cfg       WorkflowConfig
}

// NewWorkflowService creates a WorkflowService. broadcast and docs may be
// nil; the corresponding side effects are then skipped.
func NewWorkflowService(store database.Store, queue messagequeue.Queue, bc broadcast.Broadcaster, docs documents.Generator, cfg WorkflowConfig) *WorkflowService {
	return &WorkflowService{store: store, queue: queue, broadcast: bc, docs: docs, cfg: cfg}
}

// ReviewersRequired returns the policy-configured reviewer count for a
// review, based on its route.
func (s *WorkflowService) ReviewersRequired(r *review.Review) int {
	if r.ShortRoute != nil && *r.ShortRoute {
		return s.cfg.ShortRouteReviewers
	}
	return s.cfg.LongRouteReviewers
}

// OnProposalSubmitted classifies the proposal, opens its first review, and
// moves the proposal into the matching awaiting status.
func (s *WorkflowService) OnProposalSubmitted(ctx context.Context, p *proposal.Proposal) error {
	ctx, span := edotel.StartSubmissionSpan(ctx, p.ID, p.Reference)
	defer span.End()

	decision, err := route.Classify(p, s.cfg.Chambers)
	if err != nil {
		return fmt.Errorf("classify proposal %s: %w", p.ID, err)
	}

	var next proposal.Status
	if p.HasSupervisor() {
		next = proposal.StatusSubmittedToSupervisor
		if err := s.createSupervisorReview(ctx, p); err != nil {
			return err
		}
	} else {
		next = proposal.StatusSubmitted
		if _, err := s.createCommitteeReview(ctx, p, decision.Route.ShortRoute(), string(decision.Chamber)); err != nil {
			return err
		}
	}

	if err := s.moveStatus(ctx, p, next, "submitted"); err != nil {
		return err
	}
	s.publish(ctx, messagequeue.SubjectProposalSubmitted, p)

	slog.Info("proposal routed",
		"proposal", p.Reference,
		"route", decision.Route,
		"chamber", decision.Chamber,
	)
	return nil
}

// OnReviewClosed dispatches on the closed review's continuation code.
// Calling it for a review that is not closed is a policy violation; the
// transactional close in the store guarantees it runs at most once per
// closure.
func (s *WorkflowService) OnReviewClosed(ctx context.Context, p *proposal.Proposal, r *review.Review) error {
	if !r.Closed() || r.Continuation == nil {
		return fmt.Errorf("%w: review %s is not closed", domain.ErrPolicy, r.ID)
	}
	ctx, span := edotel.StartReviewCloseSpan(ctx, r.ID, string(r.Type))
	defer span.End()

	cont := *r.Continuation
	s.publishReviewClosed(ctx, r, cont)

	switch cont {
	case review.ContinuationApproved, review.ContinuationPostHocApproved:
		return s.onApproved(ctx, p, r)

	case review.ContinuationRevision:
		return s.moveStatus(ctx, p, proposal.StatusDraft, "revision_requested")

	case review.ContinuationRejected, review.ContinuationPostHocRejected:
		return s.onRejected(ctx, p)

	case review.ContinuationLongRoute:
		// Escalation to the full committee track. The proposal stays in
		// review; the escalated review replaces the short-route pass.
		_, err := s.createCommitteeReview(ctx, p, false, r.Chamber)
		return err

	case review.ContinuationMETC:
		// External committee referral. A tracking review stays open so the
		// secretary records the external verdict when it arrives.
		_, err := s.createCommitteeReview(ctx, p, false, r.Chamber)
		return err

	default:
		return fmt.Errorf("%w: review %s closed with unhandled continuation %s",
			domain.ErrPolicy, r.ID, cont)
	}
}

func (s *WorkflowService) onApproved(ctx context.Context, p *proposal.Proposal, r *review.Review) error {
	if r.Type == review.TypeSupervisor {
		// Supervisor sign-off opens the committee pass; the proposal is
		// not approved yet.
		decision, err := route.Classify(p, s.cfg.Chambers)
		if err != nil {
			return fmt.Errorf("classify proposal %s: %w", p.ID, err)
		}
		if _, err := s.createCommitteeReview(ctx, p, decision.Route.ShortRoute(), string(decision.Chamber)); err != nil {
			return err
		}
		if err := s.moveStatus(ctx, p, proposal.StatusSubmitted, "supervisor_approved"); err != nil {
			return err
		}
		return s.stampSubmitted(ctx, p, time.Now().UTC())
	}

	// Final committee approval.
	now := time.Now().UTC()
	p.DateReviewed = &now
	if err := s.moveStatus(ctx, p, proposal.StatusReviewed, "approved"); err != nil {
		return err
	}
	if err := s.stampReviewed(ctx, p, now); err != nil {
		return err
	}

	if s.docs != nil {
		kind := "approval"
		if p.IsPreAssessment {
			kind = "pre_assessment"
		}
		sig := documents.ReadySignal{ProposalID: p.ID, Reference: p.Reference, Kind: kind}
		if err := s.docs.SignalReady(ctx, sig); err != nil {
			slog.Error("document signal failed", "proposal", p.Reference, "error", err)
		}
	}
	return nil
}

func (s *WorkflowService) onRejected(ctx context.Context, p *proposal.Proposal) error {
	return s.moveStatus(ctx, p, proposal.StatusRejected, "rejected")
}

func (s *WorkflowService) createSupervisorReview(ctx context.Context, p *proposal.Proposal) error {
	r := &review.Review{
		ProposalID: p.ID,
		Type:       review.TypeSupervisor,
		Stage:      review.InitialStage(review.TypeSupervisor),
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		return fmt.Errorf("create supervisor review: %w", err)
	}

	// The supervisor is the sole assigned reviewer; the decision slot is
	// opened immediately.
	d := &review.Decision{ReviewID: r.ID, ReviewerID: p.SupervisorID}
	if err := s.store.CreateDecision(ctx, d); err != nil {
		return fmt.Errorf("assign supervisor decision: %w", err)
	}

	s.publishReviewCreated(ctx, r)
	return nil
}

func (s *WorkflowService) createCommitteeReview(ctx context.Context, p *proposal.Proposal, shortRoute bool, chamber string) (*review.Review, error) {
	// At most one committee review is open per proposal. The guard keeps a
	// replayed closure dispatch a policy violation rather than leaving it to
	// the store's unique index, which would surface as a conflict.
	if existing, err := s.store.GetActiveReview(ctx, p.ID, review.TypeCommittee); err == nil {
		return nil, fmt.Errorf("%w: proposal %s already has an open committee review %s",
			domain.ErrPolicy, p.ID, existing.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	r := &review.Review{
		ProposalID: p.ID,
		Type:       review.TypeCommittee,
		Stage:      review.InitialStage(review.TypeCommittee),
		Chamber:    chamber,
		ShortRoute: &shortRoute,
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("create committee review: %w", err)
	}

	s.publishReviewCreated(ctx, r)
	return r, nil
}

// moveStatus applies a compare-and-set status transition and emits the
// status-changed event. The transition table in the proposal domain is the
// single authority on which moves are legal.
func (s *WorkflowService) moveStatus(ctx context.Context, p *proposal.Proposal, to proposal.Status, reason string) error {
	from := p.Status
	if !proposal.CanTransition(from, to) {
		return fmt.Errorf("%w: proposal %s cannot move from %s to %s",
			domain.ErrPolicy, p.ID, from, to)
	}

	if err := s.store.UpdateProposalStatus(ctx, p.ID, from, to); err != nil {
		return err
	}
	p.Status = to

	s.publishStatus(ctx, p, from, to, reason)
	return nil
}

// stampSubmitted persists date_submitted once the proposal reaches the
// committee track. Supervised proposals carry only
// date_submitted_supervisor until the supervisor signs off.
func (s *WorkflowService) stampSubmitted(ctx context.Context, p *proposal.Proposal, now time.Time) error {
	fresh, err := s.store.GetProposal(ctx, p.ID)
	if err != nil {
		return err
	}
	if fresh.DateSubmitted != nil {
		p.DateSubmitted = fresh.DateSubmitted
		return nil
	}
	fresh.DateSubmitted = &now
	if err := s.store.UpdateProposal(ctx, fresh); err != nil {
		return fmt.Errorf("stamp date_submitted: %w", err)
	}
	p.Version = fresh.Version
	p.DateSubmitted = &now
	return nil
}

// stampReviewed persists date_reviewed after final approval.
func (s *WorkflowService) stampReviewed(ctx context.Context, p *proposal.Proposal, now time.Time) error {
	fresh, err := s.store.GetProposal(ctx, p.ID)
	if err != nil {
		return err
	}
	fresh.DateReviewed = &now
	if err := s.store.UpdateProposal(ctx, fresh); err != nil {
		return fmt.Errorf("stamp date_reviewed: %w", err)
	}
	p.Version = fresh.Version
	p.DateReviewed = &now
	return nil
}

func (s *WorkflowService) publishStatus(ctx context.Context, p *proposal.Proposal, from, to proposal.Status, reason string) {
	event := StatusChangedEvent{
		ProposalID: p.ID,
		Reference:  p.Reference,
		OldStatus:  int(from),
		NewStatus:  int(to),
		Reason:     reason,
	}
	s.publish(ctx, messagequeue.SubjectProposalStatus, event)

	if s.broadcast != nil {
		s.broadcast.BroadcastEvent(ctx, ws.EventProposalStatus, ws.ProposalStatusEvent{
			ProposalID: p.ID,
			Reference:  p.Reference,
			OldStatus:  from.String(),
			NewStatus:  to.String(),
		})
	}
}

func (s *WorkflowService) publishReviewCreated(ctx context.Context, r *review.Review) {
	s.publish(ctx, messagequeue.SubjectReviewCreated, r)
	if s.broadcast != nil {
		s.broadcast.BroadcastEvent(ctx, ws.EventReviewCreated, ws.ReviewEvent{
			ReviewID:   r.ID,
			ProposalID: r.ProposalID,
			Type:       string(r.Type),
			Stage:      r.Stage.String(),
		})
	}
}

func (s *WorkflowService) publishReviewClosed(ctx context.Context, r *review.Review, cont review.Continuation) {
	s.publish(ctx, messagequeue.SubjectReviewClosed, r)
	if s.broadcast != nil {
		s.broadcast.BroadcastEvent(ctx, ws.EventReviewClosed, ws.ReviewEvent{
			ReviewID:     r.ID,
			ProposalID:   r.ProposalID,
			Type:         string(r.Type),
			Stage:        r.Stage.String(),
			Continuation: cont.String(),
		})
	}
}

// publish marshals and publishes a queue event. Event delivery failure is
// logged, not propagated: the workflow transition has already committed and
// queue consumers tolerate gaps.
func (s *WorkflowService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish event", "subject", subject, "error", err)
	}
}
