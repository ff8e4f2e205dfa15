// Package proposal defines domain types for research-ethics applications.
package proposal

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// Status is the top-level lifecycle state of a proposal.
//
// The values are legacy identifiers carried over from earlier generations of
// the portal's persisted data: the numbering was extended over time without
// renumbering existing rows, hence the gaps. Never renumber.
type Status int

const (
	StatusDraft                  Status = 1
	StatusSubmittedToSupervisor  Status = 40
	StatusSubmitted              Status = 50
	StatusUnderReview            Status = 55
	StatusReviewed               Status = 60
	StatusRejected               Status = 65
	StatusArchived               Status = 70
)

// String returns a stable machine-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusSubmittedToSupervisor:
		return "submitted_to_supervisor"
	case StatusSubmitted:
		return "submitted"
	case StatusUnderReview:
		return "under_review"
	case StatusReviewed:
		return "reviewed"
	case StatusRejected:
		return "rejected"
	case StatusArchived:
		return "archived"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmittedToSupervisor, StatusSubmitted,
		StatusUnderReview, StatusReviewed, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// editableStatuses are the states in which the applicant may modify the
// proposal through the portal forms.
var editableStatuses = map[Status]bool{
	StatusDraft: true,
}

// Editable reports whether the applicant may still edit the proposal.
func (s Status) Editable() bool { return editableStatuses[s] }

// CanTransition reports whether a proposal status change from -> to is a
// legal forward move. The only backward move is the revision reset to Draft,
// which happens when a review closes with a revision-required continuation.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusDraft {
		// Revision reset: allowed from any submitted-but-not-terminal state.
		return from == StatusSubmittedToSupervisor || from == StatusSubmitted || from == StatusUnderReview
	}
	if to == StatusArchived {
		// Withdrawal / archiving is permitted from any state.
		return true
	}
	return to > from
}

// RiskProfile holds the declared risk and study characteristics that drive
// review routing. Values arrive pre-validated from the form layer.
type RiskProfile struct {
	PhysicalRisk      bool   `json:"physical_risk"`
	PsychologicalRisk bool   `json:"psychological_risk"`
	LegalRisk         bool   `json:"legal_risk"`
	Deception         bool   `json:"deception"`
	LegallyIncapable  bool   `json:"legally_incapable"`
	MedicalResearch   bool   `json:"medical_research"`
	METCApplicable    bool   `json:"metc_applicable"`
	ResearchDomain    string `json:"research_domain"`
}

// Elevated reports whether any declared flag mandates the long review route
// with full committee assessment.
func (r RiskProfile) Elevated() bool {
	return r.PhysicalRisk || r.PsychologicalRisk || r.LegalRisk ||
		r.Deception || r.LegallyIncapable || r.MedicalResearch || r.METCApplicable
}

// Proposal is a submitted application describing a planned study.
type Proposal struct {
	ID                      string      `json:"id"`
	Reference               string      `json:"reference"`
	Title                   string      `json:"title"`
	Status                  Status      `json:"status"`
	IsPreAssessment         bool        `json:"is_pre_assessment"`
	IsRevision              bool        `json:"is_revision"`
	InArchive               bool        `json:"in_archive"`
	Embargo                 bool        `json:"embargo"`
	ParentID                string      `json:"parent_id,omitempty"`
	ApplicantID             string      `json:"applicant_id"`
	SupervisorID            string      `json:"supervisor_id,omitempty"`
	Risk                    RiskProfile `json:"risk"`
	Version                 int         `json:"version"`
	DateCreated             time.Time   `json:"date_created"`
	DateModified            time.Time   `json:"date_modified"`
	DateSubmittedSupervisor *time.Time  `json:"date_submitted_supervisor,omitempty"`
	DateSubmitted           *time.Time  `json:"date_submitted,omitempty"`
	DateReviewed            *time.Time  `json:"date_reviewed,omitempty"`
}

// HasSupervisor reports whether a supervisor sign-off pass is required
// before committee review.
func (p *Proposal) HasSupervisor() bool { return p.SupervisorID != "" }

// Study describes one participant group / protocol nested under a proposal.
// The workflow core stores the form layer's validated payload without
// interpreting it.
type Study struct {
	ID             string   `json:"id"`
	ProposalID     string   `json:"proposal_id"`
	Order          int      `json:"order"`
	Name           string   `json:"name"`
	AgeGroups      []string `json:"age_groups,omitempty"`
	SettingIDs     []string `json:"setting_ids,omitempty"`
	RecruitmentIDs []string `json:"recruitment_ids,omitempty"`
	CompensationID string   `json:"compensation_id,omitempty"`
	TraitIDs       []string `json:"trait_ids,omitempty"`
}

// CreateRequest holds the fields for creating a new proposal draft.
type CreateRequest struct {
	Title           string      `json:"title"`
	ApplicantID     string      `json:"applicant_id"`
	SupervisorID    string      `json:"supervisor_id,omitempty"`
	IsPreAssessment bool        `json:"is_pre_assessment"`
	Embargo         bool        `json:"embargo"`
	Risk            RiskProfile `json:"risk"`
	ParentID        string      `json:"parent_id,omitempty"`
	IsRevision      bool        `json:"is_revision"`
}

// UpdateRequest holds partial updates applied to a draft proposal.
type UpdateRequest struct {
	Title        *string      `json:"title,omitempty"`
	SupervisorID *string      `json:"supervisor_id,omitempty"`
	Embargo      *bool        `json:"embargo,omitempty"`
	Risk         *RiskProfile `json:"risk,omitempty"`
}

var (
	ErrTitleRequired     = errors.New("proposal title is required")
	ErrApplicantRequired = errors.New("applicant is required")
	ErrParentRequired    = errors.New("a revision must reference its parent proposal")
	ErrNotEditable       = errors.New("proposal is no longer editable")
)

// Validate checks the create request for correctness.
func (r *CreateRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrTitleRequired)
	}
	if r.ApplicantID == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrApplicantRequired)
	}
	if r.IsRevision && r.ParentID == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrParentRequired)
	}
	return nil
}
