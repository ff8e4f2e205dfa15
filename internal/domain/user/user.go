// Package user defines the portal user model for authorization and reviewer
// assignment.
package user

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// Role represents a user's function within the portal.
type Role string

const (
	RoleApplicant  Role = "applicant"
	RoleSupervisor Role = "supervisor"
	RoleCommittee  Role = "committee"
	RoleSecretary  Role = "secretary"
	RoleAdmin      Role = "admin"
)

// ValidRoles is the set of all valid user roles.
var ValidRoles = map[Role]bool{
	RoleApplicant:  true,
	RoleSupervisor: true,
	RoleCommittee:  true,
	RoleSecretary:  true,
	RoleAdmin:      true,
}

// User represents a registered portal user. Identity resolution (LDAP/SAML)
// is external; DirectoryID is the opaque reference into that directory.
type User struct {
	ID          string    `json:"id"`
	DirectoryID string    `json:"directory_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	Chamber     string    `json:"chamber,omitempty"` // committee members only
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanReview reports whether this user may be assigned decisions.
func (u *User) CanReview() bool {
	return u.Enabled && (u.Role == RoleCommittee || u.Role == RoleSupervisor || u.Role == RoleSecretary)
}

// CreateRequest is the input for registering a new user.
type CreateRequest struct {
	DirectoryID string `json:"directory_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Chamber     string `json:"chamber,omitempty"`
}

var (
	ErrEmailRequired = errors.New("email is required")
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrNameRequired  = errors.New("name is required")
	ErrInvalidRole   = errors.New("invalid role")
)

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrEmailRequired)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrInvalidEmail)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrNameRequired)
	}
	if !ValidRoles[r.Role] {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrInvalidRole)
	}
	return nil
}

// UpdateRequest is the input for updating an existing user.
type UpdateRequest struct {
	Name    string `json:"name,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Chamber *string `json:"chamber,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}
