package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
	"github.com/ethicsdesk/ethicsdesk/internal/port/directory"
)

// ListUsers handles GET /api/v1/users.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "users not found")
		return
	}
	if users == nil {
		users = []user.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser handles POST /api/v1/users.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r)
	if !ok {
		return
	}

	u, err := h.Users.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "user not created")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /api/v1/users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateUser handles PUT /api/v1/users/{id}.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.UpdateRequest](w, r)
	if !ok {
		return
	}

	u, err := h.Users.Update(r.Context(), urlParam(r, "id"), &req)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetCurrentUser handles GET /api/v1/users/me.
func (h *Handlers) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// SearchDirectory handles GET /api/v1/users/directory/search?q=&limit=.
func (h *Handlers) SearchDirectory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Users.SearchDirectory(r.Context(), q, limit)
	if err != nil {
		writeDomainError(w, err, "directory unavailable")
		return
	}
	if entries == nil {
		entries = []directory.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ResolveDirectoryID handles GET /api/v1/users/directory/{id}.
func (h *Handlers) ResolveDirectoryID(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Users.Resolve(r.Context(), urlParam(r, "id"))
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "directory entry not found")
			return
		}
		writeDomainError(w, err, "directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
