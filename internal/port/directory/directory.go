// Package directory defines the user-directory lookup port. The institutional
// directory (LDAP/SAML) is an external collaborator; the workflow core stores
// only the opaque ids this port resolves.
package directory

import (
	"context"
	"errors"
)

// ErrUserNotFound indicates the directory has no entry for the query.
var ErrUserNotFound = errors.New("directory: user not found")

// Entry is a resolved directory identity.
type Entry struct {
	ID    string `json:"id"` // opaque external identifier
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Directory resolves portal identity references against the institutional
// user directory.
type Directory interface {
	// Lookup resolves a directory id to an entry.
	Lookup(ctx context.Context, id string) (*Entry, error)

	// Search finds entries matching a free-text query (name or email).
	Search(ctx context.Context, query string, limit int) ([]Entry, error)
}
