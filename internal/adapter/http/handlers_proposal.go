package http

import (
	"net/http"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
)

// ListProposals handles GET /api/v1/proposals.
// Query params: applicant_id filters to one applicant, include_archived
// includes archived proposals.
func (h *Handlers) ListProposals(w http.ResponseWriter, r *http.Request) {
	applicantID := r.URL.Query().Get("applicant_id")
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	proposals, err := h.Proposals.List(r.Context(), applicantID, includeArchived)
	if err != nil {
		writeDomainError(w, err, "proposals not found")
		return
	}
	if proposals == nil {
		proposals = []proposal.Proposal{}
	}
	writeJSON(w, http.StatusOK, proposals)
}

// CreateProposal handles POST /api/v1/proposals.
func (h *Handlers) CreateProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[proposal.CreateRequest](w, r)
	if !ok {
		return
	}
	if req.ApplicantID == "" {
		if u := middleware.UserFromContext(r.Context()); u != nil {
			req.ApplicantID = u.ID
		}
	}

	p, err := h.Proposals.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "proposal not created")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProposal handles GET /api/v1/proposals/{id}.
func (h *Handlers) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Proposals.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProposal handles PUT /api/v1/proposals/{id}.
func (h *Handlers) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[proposal.UpdateRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Proposals.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SubmitProposal handles POST /api/v1/proposals/{id}/submit.
func (h *Handlers) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Proposals.Submit(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// WithdrawProposal handles POST /api/v1/proposals/{id}/withdraw.
func (h *Handlers) WithdrawProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Proposals.Withdraw(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateRevision handles POST /api/v1/proposals/{id}/revisions.
func (h *Handlers) CreateRevision(w http.ResponseWriter, r *http.Request) {
	p, err := h.Proposals.CreateRevision(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// CreateCopy handles POST /api/v1/proposals/{id}/copy.
func (h *Handlers) CreateCopy(w http.ResponseWriter, r *http.Request) {
	var applicantID string
	if u := middleware.UserFromContext(r.Context()); u != nil {
		applicantID = u.ID
	}

	p, err := h.Proposals.CreateCopy(r.Context(), urlParam(r, "id"), applicantID)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListStudies handles GET /api/v1/proposals/{id}/studies.
func (h *Handlers) ListStudies(w http.ResponseWriter, r *http.Request) {
	studies, err := h.Proposals.Studies(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	if studies == nil {
		studies = []proposal.Study{}
	}
	writeJSON(w, http.StatusOK, studies)
}

// ReplaceStudies handles PUT /api/v1/proposals/{id}/studies.
func (h *Handlers) ReplaceStudies(w http.ResponseWriter, r *http.Request) {
	studies, ok := readJSON[[]proposal.Study](w, r)
	if !ok {
		return
	}

	saved, err := h.Proposals.ReplaceStudies(r.Context(), urlParam(r, "id"), studies)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
