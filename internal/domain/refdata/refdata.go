// Package refdata defines the admin-configurable lookup tables referenced by
// proposal forms: study settings, recruitment methods, compensation kinds,
// participant traits, and registration kinds.
//
// These are keyed configuration records, not part of the workflow state
// machine. All tables share the order/description/needs-details pattern.
package refdata

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// Kind identifies which lookup table an item belongs to.
type Kind string

const (
	KindSetting          Kind = "setting"
	KindRecruitment      Kind = "recruitment"
	KindCompensation     Kind = "compensation"
	KindTrait            Kind = "trait"
	KindRegistration     Kind = "registration"
	KindRegistrationKind Kind = "registration_kind"
)

// ValidKinds is the set of all lookup table kinds.
var ValidKinds = map[Kind]bool{
	KindSetting:          true,
	KindRecruitment:      true,
	KindCompensation:     true,
	KindTrait:            true,
	KindRegistration:     true,
	KindRegistrationKind: true,
}

// Item is one entry of a lookup table.
type Item struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	Order          int       `json:"order"`
	Description    string    `json:"description"`
	NeedsDetails   bool      `json:"needs_details"`
	RequiresReview bool      `json:"requires_review"`
	ParentID       string    `json:"parent_id,omitempty"` // registration kinds nest under a registration
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateRequest holds the fields for adding a lookup item.
type CreateRequest struct {
	Kind           Kind   `json:"kind"`
	Order          int    `json:"order"`
	Description    string `json:"description"`
	NeedsDetails   bool   `json:"needs_details"`
	RequiresReview bool   `json:"requires_review"`
	ParentID       string `json:"parent_id,omitempty"`
}

// UpdateRequest holds partial updates for a lookup item.
type UpdateRequest struct {
	Order          *int    `json:"order,omitempty"`
	Description    *string `json:"description,omitempty"`
	NeedsDetails   *bool   `json:"needs_details,omitempty"`
	RequiresReview *bool   `json:"requires_review,omitempty"`
}

var (
	ErrInvalidKind         = errors.New("invalid lookup table kind")
	ErrDescriptionRequired = errors.New("description is required")
	ErrParentRequired      = errors.New("registration kinds require a parent registration")
)

// Validate checks the create request for correctness.
func (r *CreateRequest) Validate() error {
	if !ValidKinds[r.Kind] {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrInvalidKind)
	}
	if r.Description == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrDescriptionRequired)
	}
	if r.Kind == KindRegistrationKind && r.ParentID == "" {
		return fmt.Errorf("%w: %s", domain.ErrValidation, ErrParentRequired)
	}
	return nil
}

// Apply folds the non-nil update fields into the item.
func (r *UpdateRequest) Apply(item *Item) {
	if r.Order != nil {
		item.Order = *r.Order
	}
	if r.Description != nil {
		item.Description = *r.Description
	}
	if r.NeedsDetails != nil {
		item.NeedsDetails = *r.NeedsDetails
	}
	if r.RequiresReview != nil {
		item.RequiresReview = *r.RequiresReview
	}
}
