package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/review"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
)

const reviewColumns = `id, proposal_id, review_type, stage, chamber,
	short_route, go_result, continuation, version, date_start, date_end`

func scanReview(row scannable) (review.Review, error) {
	var r review.Review
	var stage int
	var cont *int
	err := row.Scan(
		&r.ID, &r.ProposalID, &r.Type, &stage, &r.Chamber,
		&r.ShortRoute, &r.Go, &cont, &r.Version, &r.DateStart, &r.DateEnd,
	)
	if err != nil {
		return r, err
	}
	r.Stage = review.Stage(stage)
	if cont != nil {
		c := review.Continuation(*cont)
		r.Continuation = &c
	}
	return r, nil
}

// --- Reviews ---

func (s *Store) ListReviews(ctx context.Context, proposalID string) ([]review.Review, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE proposal_id = $1 ORDER BY date_start`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []review.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *Store) GetReview(ctx context.Context, id string) (*review.Review, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	r, err := scanReview(row)
	if err != nil {
		return nil, notFoundWrap(err, "get review %s", id)
	}
	return &r, nil
}

// GetActiveReview returns the one open review of the given type for a
// proposal. The partial unique index guarantees at most one exists.
func (s *Store) GetActiveReview(ctx context.Context, proposalID string, t review.Type) (*review.Review, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews
		 WHERE proposal_id = $1 AND review_type = $2 AND stage <> $3`,
		proposalID, string(t), int(review.StageClosed))
	r, err := scanReview(row)
	if err != nil {
		return nil, notFoundWrap(err, "active %s review for proposal %s", t, proposalID)
	}
	return &r, nil
}

func (s *Store) CreateReview(ctx context.Context, r *review.Review) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO reviews (proposal_id, review_type, stage, chamber, short_route)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, version, date_start`,
		r.ProposalID, string(r.Type), int(r.Stage), r.Chamber, r.ShortRoute,
	).Scan(&r.ID, &r.Version, &r.DateStart)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (s *Store) UpdateReviewStage(ctx context.Context, id string, from, to review.Stage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reviews SET stage = $3, version = version + 1 WHERE id = $1 AND stage = $2`,
		id, int(from), int(to))
	if err != nil {
		return fmt.Errorf("update review stage %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update review stage %s (%s -> %s): %w", id, from, to, domain.ErrConflict)
	}
	return nil
}

// --- Decisions ---

const decisionColumns = `id, review_id, reviewer_id, go_result, comments,
	reject, escalation, date_decided`

func scanDecision(row scannable) (review.Decision, error) {
	var d review.Decision
	var esc string
	err := row.Scan(
		&d.ID, &d.ReviewID, &d.ReviewerID, &d.Go, &d.Comments,
		&d.Reject, &esc, &d.DateDecided,
	)
	if err != nil {
		return d, err
	}
	d.Escalation = review.Escalation(esc)
	return d, nil
}

func (s *Store) ListDecisions(ctx context.Context, reviewID string) ([]review.Decision, error) {
	return listDecisions(ctx, s.pool, reviewID, false)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDecisions(ctx context.Context, q querier, reviewID string, forUpdate bool) ([]review.Decision, error) {
	sql := `SELECT ` + decisionColumns + ` FROM decisions WHERE review_id = $1 ORDER BY reviewer_id`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []review.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (s *Store) GetDecision(ctx context.Context, reviewID, reviewerID string) (*review.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE review_id = $1 AND reviewer_id = $2`,
		reviewID, reviewerID)
	d, err := scanDecision(row)
	if err != nil {
		return nil, notFoundWrap(err, "get decision for review %s reviewer %s", reviewID, reviewerID)
	}
	return &d, nil
}

// CreateDecision registers a reviewer on a review with an empty vote slot.
func (s *Store) CreateDecision(ctx context.Context, d *review.Decision) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO decisions (review_id, reviewer_id, go_result, comments, reject, escalation, date_decided)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id`,
		d.ReviewID, d.ReviewerID, d.Go, d.Comments, d.Reject, string(d.Escalation), d.DateDecided,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

// RecordDecisionAndClose stores a reviewer's vote and, if the closer decides
// the review is complete, closes it in the same transaction. The review row
// is locked for update first so concurrent reviewers serialize; the loser of
// a serialization conflict gets one retry.
func (s *Store) RecordDecisionAndClose(ctx context.Context, d *review.Decision, closer database.ReviewCloser) (*review.Review, error) {
	r, err := s.recordDecisionAndClose(ctx, d, closer)
	if err != nil && isSerializationFailure(err) {
		r, err = s.recordDecisionAndClose(ctx, d, closer)
		if err != nil && isSerializationFailure(err) {
			return nil, fmt.Errorf("record decision for review %s: %w", d.ReviewID, domain.ErrConflict)
		}
	}
	return r, err
}

func (s *Store) recordDecisionAndClose(ctx context.Context, d *review.Decision, closer database.ReviewCloser) (*review.Review, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, d.ReviewID)
	r, err := scanReview(row)
	if err != nil {
		return nil, notFoundWrap(err, "lock review %s", d.ReviewID)
	}
	if r.Closed() {
		return nil, fmt.Errorf("%w: review %s is already closed", domain.ErrPolicy, r.ID)
	}

	now := time.Now().UTC()
	d.DateDecided = &now
	tag, err := tx.Exec(ctx,
		`UPDATE decisions SET go_result = $3, comments = $4, reject = $5,
			escalation = $6, date_decided = $7
		 WHERE review_id = $1 AND reviewer_id = $2`,
		d.ReviewID, d.ReviewerID, d.Go, d.Comments, d.Reject, string(d.Escalation), d.DateDecided)
	if err := execExpectOne(tag, err, "record decision for review %s reviewer %s", d.ReviewID, d.ReviewerID); err != nil {
		return nil, err
	}

	decisions, err := listDecisions(ctx, tx, d.ReviewID, true)
	if err != nil {
		return nil, err
	}

	outcome, err := closer(&r, decisions)
	if err != nil {
		return nil, err
	}

	if !outcome.Pending {
		goResult := outcome.Go != nil && *outcome.Go
		if err := r.Close(goResult, outcome.Continuation, now); err != nil {
			return nil, err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE reviews SET stage = $2, go_result = $3, continuation = $4,
				version = version + 1, date_end = $5
			 WHERE id = $1`,
			r.ID, int(r.Stage), r.Go, int(*r.Continuation), r.DateEnd)
		if err := execExpectOne(tag, err, "close review %s", r.ID); err != nil {
			return nil, err
		}
		r.Version++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit decision for review %s: %w", d.ReviewID, err)
	}
	return &r, nil
}
