package http

import (
	"net/http"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
	"github.com/ethicsdesk/ethicsdesk/internal/service"
)

// ListProposalReviews handles GET /api/v1/proposals/{id}/reviews.
func (h *Handlers) ListProposalReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Reviews.ListForProposal(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	if reviews == nil {
		reviews = []review.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// GetReview handles GET /api/v1/reviews/{id}.
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Reviews.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

type assignReviewersRequest struct {
	ReviewerIDs []string `json:"reviewer_ids"`
}

// AssignReviewers handles POST /api/v1/reviews/{id}/reviewers.
func (h *Handlers) AssignReviewers(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assignReviewersRequest](w, r)
	if !ok {
		return
	}

	rev, err := h.Reviews.AssignReviewers(r.Context(), urlParam(r, "id"), req.ReviewerIDs)
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// ListDecisions handles GET /api/v1/reviews/{id}/decisions.
func (h *Handlers) ListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.Reviews.ListDecisions(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	if decisions == nil {
		decisions = []review.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// GetMyDecision handles GET /api/v1/reviews/{id}/decisions/me.
func (h *Handlers) GetMyDecision(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	d, err := h.Reviews.GetMyDecision(r.Context(), urlParam(r, "id"), u.ID)
	if err != nil {
		writeDomainError(w, err, "no decision assigned to you on this review")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SubmitDecision handles POST /api/v1/reviews/{id}/decisions. The vote is
// recorded for the authenticated user.
func (h *Handlers) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	in, ok := readJSON[service.DecisionInput](w, r)
	if !ok {
		return
	}

	rev, err := h.Reviews.SubmitDecision(r.Context(), urlParam(r, "id"), u.ID, in)
	if err != nil {
		writeDomainError(w, err, "no decision assigned to you on this review")
		return
	}
	writeJSON(w, http.StatusOK, rev)
}
