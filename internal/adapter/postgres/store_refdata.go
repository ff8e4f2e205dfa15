package postgres

import (
	"context"
	"fmt"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/refdata"
)

const refdataColumns = `id, kind, ord, description, needs_details, requires_review, parent_id, created_at, updated_at`

func scanRefItem(row scannable) (refdata.Item, error) {
	var item refdata.Item
	var parentID *string
	err := row.Scan(&item.ID, &item.Kind, &item.Order, &item.Description,
		&item.NeedsDetails, &item.RequiresReview, &parentID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return item, err
	}
	item.ParentID = emptyIfNil(parentID)
	return item, nil
}

func (s *Store) ListRefData(ctx context.Context, kind refdata.Kind) ([]refdata.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+refdataColumns+` FROM refdata WHERE ($1 = '' OR kind = $1) ORDER BY kind, ord`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list refdata: %w", err)
	}
	defer rows.Close()

	var items []refdata.Item
	for rows.Next() {
		item, err := scanRefItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) CreateRefData(ctx context.Context, item *refdata.Item) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO refdata (kind, ord, description, needs_details, requires_review, parent_id)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id, created_at, updated_at`,
		string(item.Kind), item.Order, item.Description, item.NeedsDetails,
		item.RequiresReview, nullIfEmpty(item.ParentID),
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create refdata: %w", err)
	}
	return nil
}

func (s *Store) UpdateRefData(ctx context.Context, item *refdata.Item) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refdata SET ord = $2, description = $3, needs_details = $4,
			requires_review = $5, parent_id = $6, updated_at = now()
		 WHERE id = $1`,
		item.ID, item.Order, item.Description, item.NeedsDetails,
		item.RequiresReview, nullIfEmpty(item.ParentID))
	return execExpectOne(tag, err, "update refdata %s", item.ID)
}

func (s *Store) DeleteRefData(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM refdata WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete refdata %s", id)
}
