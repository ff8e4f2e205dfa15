package user

import (
	"fmt"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// APIKeyPrefix is prepended to generated API keys for identification.
const APIKeyPrefix = "edk_"

// Resource-based API key scopes.
const (
	ScopeProposalsRead  = "proposals:read"
	ScopeProposalsWrite = "proposals:write"
	ScopeReviewsRead    = "reviews:read"
	ScopeReviewsWrite   = "reviews:write"
	ScopeRefDataWrite   = "refdata:write"
	ScopeAdminAll       = "admin:all"
)

// ValidScopes is the set of all valid API key scopes.
var ValidScopes = map[string]bool{
	ScopeProposalsRead:  true,
	ScopeProposalsWrite: true,
	ScopeReviewsRead:    true,
	ScopeReviewsWrite:   true,
	ScopeRefDataWrite:   true,
	ScopeAdminAll:       true,
}

// APIKey represents a stored API key linked to a user.
type APIKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"` // first 12 chars for display and lookup
	KeyHash   string    `json:"-"`      // bcrypt hash, never serialized
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	CreatedAt time.Time `json:"created_at"`
}

// HasScope checks whether the API key grants the required scope. A nil
// Scopes slice means full access (keys minted before scoping existed).
func (k *APIKey) HasScope(required string) bool {
	if k.Scopes == nil {
		return true
	}
	for _, s := range k.Scopes {
		if s == required || s == ScopeAdminAll {
			return true
		}
	}
	return false
}

// Expired reports whether the key has an expiry in the past.
func (k *APIKey) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// CreateKeyRequest is the input for minting a new API key.
type CreateKeyRequest struct {
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Validate checks the key creation request.
func (r *CreateKeyRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: key name is required", domain.ErrValidation)
	}
	for _, s := range r.Scopes {
		if !ValidScopes[s] {
			return fmt.Errorf("%w: invalid scope %q", domain.ErrValidation, s)
		}
	}
	return nil
}
