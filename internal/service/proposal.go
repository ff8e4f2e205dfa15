package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
)

// ProposalService manages the proposal lifecycle up to and including
// submission. Everything after submission belongs to the workflow service.
type ProposalService struct {
	store    database.Store
	workflow *WorkflowService
}

// NewProposalService creates a ProposalService.
func NewProposalService(store database.Store, workflow *WorkflowService) *ProposalService {
	return &ProposalService{store: store, workflow: workflow}
}

// List returns proposals, optionally filtered to one applicant.
func (s *ProposalService) List(ctx context.Context, applicantID string, includeArchived bool) ([]proposal.Proposal, error) {
	return s.store.ListProposals(ctx, applicantID, includeArchived)
}

// Get returns a single proposal.
func (s *ProposalService) Get(ctx context.Context, id string) (*proposal.Proposal, error) {
	return s.store.GetProposal(ctx, id)
}

// Create opens a new draft with a freshly allocated reference number.
func (s *ProposalService) Create(ctx context.Context, req proposal.CreateRequest) (*proposal.Proposal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ref, err := s.allocateReference(ctx, req)
	if err != nil {
		return nil, err
	}

	p := &proposal.Proposal{
		Reference:       ref,
		Title:           req.Title,
		Status:          proposal.StatusDraft,
		IsPreAssessment: req.IsPreAssessment,
		IsRevision:      req.IsRevision,
		Embargo:         req.Embargo,
		ParentID:        req.ParentID,
		ApplicantID:     req.ApplicantID,
		SupervisorID:    req.SupervisorID,
		Risk:            req.Risk,
	}
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// allocateReference produces the YY-NNN-NN reference. A revision reuses the
// parent's year and sequence with the sub-number bumped; a fresh proposal
// draws the next sequence for the current year.
func (s *ProposalService) allocateReference(ctx context.Context, req proposal.CreateRequest) (string, error) {
	if req.IsRevision {
		parent, err := s.store.GetProposal(ctx, req.ParentID)
		if err != nil {
			return "", fmt.Errorf("revision parent: %w", err)
		}
		ref, err := proposal.NextRevisionReference(parent.Reference)
		if err != nil {
			return "", err
		}
		return ref, nil
	}

	year := time.Now().Year()
	seq, err := s.store.NextReferenceSeq(ctx, year)
	if err != nil {
		return "", err
	}
	return proposal.FormatReference(year, seq, 0), nil
}

// Update applies draft edits. Only editable proposals accept changes.
func (s *ProposalService) Update(ctx context.Context, id string, req proposal.UpdateRequest) (*proposal.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.Editable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicy, proposal.ErrNotEditable)
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.SupervisorID != nil {
		p.SupervisorID = *req.SupervisorID
	}
	if req.Embargo != nil {
		p.Embargo = *req.Embargo
	}
	if req.Risk != nil {
		p.Risk = *req.Risk
	}

	if err := s.store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Submit finalizes a draft and hands it to the workflow orchestrator, which
// classifies the route and opens the first review.
func (s *ProposalService) Submit(ctx context.Context, id string) (*proposal.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusDraft {
		return nil, fmt.Errorf("%w: proposal %s is not a draft", domain.ErrPolicy, p.ID)
	}

	now := time.Now().UTC()
	if p.HasSupervisor() {
		p.DateSubmittedSupervisor = &now
	} else {
		p.DateSubmitted = &now
	}
	if err := s.store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}

	if err := s.workflow.OnProposalSubmitted(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Withdraw archives a proposal. Modeled as an ordinary status transition;
// there is no cancellation primitive.
func (s *ProposalService) Withdraw(ctx context.Context, id string) (*proposal.Proposal, error) {
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.workflow.moveStatus(ctx, p, proposal.StatusArchived, "withdrawn"); err != nil {
		return nil, err
	}

	p.InArchive = true
	if err := s.store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateRevision opens a new draft referencing this proposal as parent.
// The child carries a back-reference only; deleting the parent later leaves
// the reference dangling by design of the legacy data model.
func (s *ProposalService) CreateRevision(ctx context.Context, parentID string) (*proposal.Proposal, error) {
	parent, err := s.store.GetProposal(ctx, parentID)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, proposal.CreateRequest{
		Title:           parent.Title,
		ApplicantID:     parent.ApplicantID,
		SupervisorID:    parent.SupervisorID,
		IsPreAssessment: parent.IsPreAssessment,
		Embargo:         parent.Embargo,
		Risk:            parent.Risk,
		ParentID:        parent.ID,
		IsRevision:      true,
	})
}

// CreateCopy duplicates a proposal as an independent new draft with its own
// reference number and no parent link.
func (s *ProposalService) CreateCopy(ctx context.Context, id, applicantID string) (*proposal.Proposal, error) {
	src, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	if applicantID == "" {
		applicantID = src.ApplicantID
	}
	copied, err := s.Create(ctx, proposal.CreateRequest{
		Title:           src.Title + " (copy)",
		ApplicantID:     applicantID,
		SupervisorID:    src.SupervisorID,
		IsPreAssessment: src.IsPreAssessment,
		Embargo:         src.Embargo,
		Risk:            src.Risk,
	})
	if err != nil {
		return nil, err
	}

	studies, err := s.store.ListStudies(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	if len(studies) > 0 {
		for i := range studies {
			studies[i].ID = ""
		}
		if err := s.store.ReplaceStudies(ctx, copied.ID, studies); err != nil {
			return nil, err
		}
	}
	return copied, nil
}

// Studies returns a proposal's study set.
func (s *ProposalService) Studies(ctx context.Context, proposalID string) ([]proposal.Study, error) {
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return nil, err
	}
	return s.store.ListStudies(ctx, proposalID)
}

// ReplaceStudies swaps a proposal's study set. Drafts only.
func (s *ProposalService) ReplaceStudies(ctx context.Context, proposalID string, studies []proposal.Study) ([]proposal.Study, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.Status.Editable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicy, proposal.ErrNotEditable)
	}

	if err := s.store.ReplaceStudies(ctx, proposalID, studies); err != nil {
		return nil, err
	}
	return studies, nil
}
