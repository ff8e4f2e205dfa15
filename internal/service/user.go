package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
	"github.com/ethicsdesk/ethicsdesk/internal/port/directory"
)

// UserService manages portal user accounts. Identity itself lives in the
// institutional directory; the service keeps the local account record that
// carries role, chamber and enabled state.
type UserService struct {
	store database.Store
	dir   directory.Directory
}

// NewUserService creates a UserService. dir may be nil when no directory
// backend is configured.
func NewUserService(store database.Store, dir directory.Directory) *UserService {
	return &UserService{store: store, dir: dir}
}

func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *UserService) Get(ctx context.Context, id string) (*user.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// Create registers a user account. The email must not already be registered.
func (s *UserService) Create(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user with email %s already exists", domain.ErrConflict, req.Email)
	}

	u := &user.User{
		DirectoryID: req.DirectoryID,
		Email:       req.Email,
		Name:        req.Name,
		Role:        req.Role,
		Chamber:     req.Chamber,
		Enabled:     true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Update applies a partial update to a user account.
func (s *UserService) Update(ctx context.Context, id string, req *user.UpdateRequest) (*user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Role != "" {
		if !user.ValidRoles[req.Role] {
			return nil, fmt.Errorf("%w: %s", domain.ErrValidation, user.ErrInvalidRole)
		}
		u.Role = req.Role
	}
	if req.Chamber != nil {
		u.Chamber = *req.Chamber
	}
	if req.Enabled != nil {
		u.Enabled = *req.Enabled
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Resolve looks up a directory identity by its opaque id.
func (s *UserService) Resolve(ctx context.Context, directoryID string) (*directory.Entry, error) {
	if s.dir == nil {
		return nil, fmt.Errorf("%w: no directory backend configured", domain.ErrConfig)
	}
	return s.dir.Lookup(ctx, directoryID)
}

// SearchDirectory finds directory entries matching a free-text query.
func (s *UserService) SearchDirectory(ctx context.Context, query string, limit int) ([]directory.Entry, error) {
	if s.dir == nil {
		return nil, fmt.Errorf("%w: no directory backend configured", domain.ErrConfig)
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return s.dir.Search(ctx, query, limit)
}
