// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/proposal"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/refdata"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
)

// ReviewCloser computes a review's close-out inside a transaction. It
// receives the review locked for update together with its full decision
// set, and returns the outcome to persist. Returning review.Outcome with
// Pending=true leaves the review open.
type ReviewCloser func(r *review.Review, decisions []review.Decision) (review.Outcome, error)

// Store is the port interface for database operations.
type Store interface {
	// Proposals
	ListProposals(ctx context.Context, applicantID string, includeArchived bool) ([]proposal.Proposal, error)
	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)
	CreateProposal(ctx context.Context, p *proposal.Proposal) error
	UpdateProposal(ctx context.Context, p *proposal.Proposal) error
	UpdateProposalStatus(ctx context.Context, id string, from, to proposal.Status) error
	NextReferenceSeq(ctx context.Context, year int) (int, error)

	// Studies
	ListStudies(ctx context.Context, proposalID string) ([]proposal.Study, error)
	ReplaceStudies(ctx context.Context, proposalID string, studies []proposal.Study) error

	// Reviews
	ListReviews(ctx context.Context, proposalID string) ([]review.Review, error)
	GetReview(ctx context.Context, id string) (*review.Review, error)
	GetActiveReview(ctx context.Context, proposalID string, t review.Type) (*review.Review, error)
	CreateReview(ctx context.Context, r *review.Review) error
	UpdateReviewStage(ctx context.Context, id string, from, to review.Stage) error

	// Decisions
	ListDecisions(ctx context.Context, reviewID string) ([]review.Decision, error)
	GetDecision(ctx context.Context, reviewID, reviewerID string) (*review.Decision, error)
	CreateDecision(ctx context.Context, d *review.Decision) error

	// RecordDecisionAndClose persists a reviewer's vote and, when the
	// decision set becomes complete, closes the review, all in one
	// transaction with the review row locked. Concurrent submissions
	// serialize on that lock; a serialization failure is retried once
	// before surfacing domain.ErrConflict.
	RecordDecisionAndClose(ctx context.Context, d *review.Decision, closer ReviewCloser) (*review.Review, error)

	// Reference data
	ListRefData(ctx context.Context, kind refdata.Kind) ([]refdata.Item, error)
	CreateRefData(ctx context.Context, item *refdata.Item) error
	UpdateRefData(ctx context.Context, item *refdata.Item) error
	DeleteRefData(ctx context.Context, id string) error

	// Users
	ListUsers(ctx context.Context) ([]user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error
	UpdateUser(ctx context.Context, u *user.User) error

	// API keys
	CreateAPIKey(ctx context.Context, k *user.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*user.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
}
