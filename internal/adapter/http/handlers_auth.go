package http

import (
	"net/http"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
)

// CreateAPIKey handles POST /api/v1/auth/keys. The key is minted for the
// authenticated user; the plaintext is returned exactly once.
func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	req, ok := readJSON[user.CreateKeyRequest](w, r)
	if !ok {
		return
	}

	resp, err := h.Auth.CreateAPIKey(r.Context(), u.ID, req)
	if err != nil {
		writeDomainError(w, err, "api key not created")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// DeleteAPIKey handles DELETE /api/v1/auth/keys/{id}.
func (h *Handlers) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.DeleteAPIKey(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "api key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
