package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/refdata"
	"github.com/ethicsdesk/ethicsdesk/internal/port/cache"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
)

// RefDataService serves the lookup tables behind the proposal form. Reads
// go through the cache; any write clears it wholesale, since the tables are
// tiny and writes are rare secretary actions.
type RefDataService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewRefDataService creates a RefDataService. cache may be nil to disable
// caching.
func NewRefDataService(store database.Store, c cache.Cache, ttl time.Duration) *RefDataService {
	return &RefDataService{store: store, cache: c, ttl: ttl}
}

// List returns the items of one lookup table.
func (s *RefDataService) List(ctx context.Context, kind refdata.Kind) ([]refdata.Item, error) {
	if kind != "" && !refdata.ValidKinds[kind] {
		return nil, fmt.Errorf("%w: unknown refdata kind %q", domain.ErrValidation, kind)
	}

	cacheKey := "refdata:" + string(kind)
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			var items []refdata.Item
			if err := json.Unmarshal(data, &items); err == nil {
				return items, nil
			}
		}
	}

	items, err := s.store.ListRefData(ctx, kind)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.ttl); err != nil {
				slog.Debug("refdata cache set failed", "kind", kind, "error", err)
			}
		}
	}
	return items, nil
}

// Create adds a lookup item and invalidates the cache.
func (s *RefDataService) Create(ctx context.Context, req refdata.CreateRequest) (*refdata.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item := &refdata.Item{
		Kind:           req.Kind,
		Order:          req.Order,
		Description:    req.Description,
		NeedsDetails:   req.NeedsDetails,
		RequiresReview: req.RequiresReview,
		ParentID:       req.ParentID,
	}
	if err := s.store.CreateRefData(ctx, item); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return item, nil
}

// Update modifies a lookup item and invalidates the cache.
func (s *RefDataService) Update(ctx context.Context, id string, req refdata.UpdateRequest) (*refdata.Item, error) {
	items, err := s.store.ListRefData(ctx, "")
	if err != nil {
		return nil, err
	}
	var item *refdata.Item
	for i := range items {
		if items[i].ID == id {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("refdata %s: %w", id, domain.ErrNotFound)
	}

	req.Apply(item)
	if err := s.store.UpdateRefData(ctx, item); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return item, nil
}

// Delete removes a lookup item and invalidates the cache.
func (s *RefDataService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteRefData(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *RefDataService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Clear(ctx); err != nil {
		slog.Warn("refdata cache clear failed", "error", err)
	}
}
