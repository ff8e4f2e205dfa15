package http

import (
	"net/http"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/refdata"
)

// ListRefData handles GET /api/v1/refdata. The kind query param selects one
// lookup table; empty returns all.
func (h *Handlers) ListRefData(w http.ResponseWriter, r *http.Request) {
	kind := refdata.Kind(r.URL.Query().Get("kind"))

	items, err := h.RefData.List(r.Context(), kind)
	if err != nil {
		writeDomainError(w, err, "reference data not found")
		return
	}
	if items == nil {
		items = []refdata.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateRefData handles POST /api/v1/refdata.
func (h *Handlers) CreateRefData(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[refdata.CreateRequest](w, r)
	if !ok {
		return
	}

	item, err := h.RefData.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "reference data not created")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateRefData handles PUT /api/v1/refdata/{id}.
func (h *Handlers) UpdateRefData(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[refdata.UpdateRequest](w, r)
	if !ok {
		return
	}

	item, err := h.RefData.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "reference data not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteRefData handles DELETE /api/v1/refdata/{id}.
func (h *Handlers) DeleteRefData(w http.ResponseWriter, r *http.Request) {
	if err := h.RefData.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "reference data not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
