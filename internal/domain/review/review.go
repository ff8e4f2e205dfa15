// Package review defines the review entity, its stage machine, and the
// decision aggregation rules.
package review

import (
	"fmt"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// Stage is the position of a review in its assessment pipeline.
//
// The integer values are persisted and must keep their historical meaning.
// Stage 3 was a separate secretary close-out step in an earlier portal
// generation; it collapsed into Closed but its value stays reserved so old
// rows keep decoding. Do not renumber and do not reuse 3.
type Stage int

const (
	StageSupervisor          Stage = 0
	StageCommitteeAssignment Stage = 1
	StageCommitteeAssessment Stage = 2
	StageClosed              Stage = 4
)

// String returns a stable machine-readable name for the stage.
func (s Stage) String() string {
	switch s {
	case StageSupervisor:
		return "supervisor"
	case StageCommitteeAssignment:
		return "committee_assignment"
	case StageCommitteeAssessment:
		return "committee_assessment"
	case StageClosed:
		return "closed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Valid reports whether s is a reachable stage value.
func (s Stage) Valid() bool {
	switch s {
	case StageSupervisor, StageCommitteeAssignment, StageCommitteeAssessment, StageClosed:
		return true
	}
	return false
}

// Type distinguishes the supervisor sign-off pass from committee assessment.
type Type string

const (
	TypeSupervisor Type = "supervisor"
	TypeCommittee  Type = "committee"
)

// InitialStage returns the stage a freshly created review of the given type
// starts in.
func InitialStage(t Type) Stage {
	if t == TypeSupervisor {
		return StageSupervisor
	}
	return StageCommitteeAssignment
}

// Continuation is the coded outcome of a closed review. The integer values
// are legacy identifiers shared with persisted data.
type Continuation int

const (
	ContinuationApproved        Continuation = 0
	ContinuationRevision        Continuation = 1
	ContinuationRejected        Continuation = 2
	ContinuationLongRoute       Continuation = 3
	ContinuationMETC            Continuation = 4
	ContinuationPostHocApproved Continuation = 5
	ContinuationPostHocRejected Continuation = 6
	ContinuationNotProcessed    Continuation = 7
)

// String returns a stable machine-readable name for the continuation code.
func (c Continuation) String() string {
	switch c {
	case ContinuationApproved:
		return "approved"
	case ContinuationRevision:
		return "revision_required"
	case ContinuationRejected:
		return "rejected"
	case ContinuationLongRoute:
		return "long_route"
	case ContinuationMETC:
		return "refer_to_metc"
	case ContinuationPostHocApproved:
		return "post_hoc_approved"
	case ContinuationPostHocRejected:
		return "post_hoc_rejected"
	case ContinuationNotProcessed:
		return "not_processed"
	default:
		return fmt.Sprintf("continuation(%d)", int(c))
	}
}

// Positive reports whether the continuation closes the proposal favourably.
func (c Continuation) Positive() bool {
	return c == ContinuationApproved || c == ContinuationPostHocApproved
}

// Review is one assessment pass (by a supervisor or a committee) against a
// proposal.
type Review struct {
	ID           string        `json:"id"`
	ProposalID   string        `json:"proposal_id"`
	Type         Type          `json:"type"`
	Stage        Stage         `json:"stage"`
	Chamber      string        `json:"chamber"`
	ShortRoute   *bool         `json:"short_route,omitempty"`
	Go           *bool         `json:"go,omitempty"`
	Continuation *Continuation `json:"continuation,omitempty"`
	Version      int           `json:"version"`
	DateStart    time.Time     `json:"date_start"`
	DateEnd      *time.Time    `json:"date_end,omitempty"`
}

// Closed reports whether the review has reached its terminal stage.
func (r *Review) Closed() bool { return r.Stage == StageClosed }

// IsCommittee reports whether this is a committee assessment pass.
func (r *Review) IsCommittee() bool { return r.Type == TypeCommittee }

// ValidTransition reports whether a stage move from -> to is part of the
// review pipeline. Closed is terminal; nothing leaves it.
func ValidTransition(from, to Stage) bool {
	switch from {
	case StageSupervisor:
		return to == StageClosed
	case StageCommitteeAssignment:
		return to == StageCommitteeAssessment
	case StageCommitteeAssessment:
		return to == StageClosed
	default:
		return false
	}
}

// Advance moves the review to the given stage, rejecting anything outside
// the transition table with a policy violation.
func (r *Review) Advance(to Stage) error {
	if !ValidTransition(r.Stage, to) {
		return fmt.Errorf("%w: review %s cannot move from %s to %s",
			domain.ErrPolicy, r.ID, r.Stage, to)
	}
	r.Stage = to
	return nil
}

// Close records the final outcome and moves the review to Closed. A revision
// never reopens a closed review; it creates a new one.
func (r *Review) Close(goResult bool, cont Continuation, now time.Time) error {
	if r.Closed() {
		return fmt.Errorf("%w: review %s is already closed", domain.ErrPolicy, r.ID)
	}
	if err := r.Advance(StageClosed); err != nil {
		return err
	}
	r.Go = &goResult
	r.Continuation = &cont
	r.DateEnd = &now
	return nil
}

// Escalation is a reviewer-flagged special route request attached to a
// decision. An escalation overrides the plain vote-derived continuation.
type Escalation string

const (
	EscalationNone      Escalation = ""
	EscalationLongRoute Escalation = "long_route"
	EscalationMETC      Escalation = "metc"
)

// Decision is one reviewer's individual vote within a review. Decisions are
// never deleted; they form the audit trail.
//
// Reject marks a dissent as final: the reviewer sees no path to revision.
// A plain dissent returns the proposal for revision instead.
type Decision struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"review_id"`
	ReviewerID  string     `json:"reviewer_id"`
	Go          *bool      `json:"go,omitempty"`
	Comments    string     `json:"comments,omitempty"`
	Reject      bool       `json:"reject"`
	Escalation  Escalation `json:"escalation,omitempty"`
	DateDecided *time.Time `json:"date_decided,omitempty"`
}

// Submitted reports whether the reviewer has recorded a vote.
func (d *Decision) Submitted() bool { return d.Go != nil }
