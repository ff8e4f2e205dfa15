// Package service contains application services.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/port/database"
)

// keyDisplayLen is how many characters of a key (including the edk_ prefix)
// are stored in clear for lookup and display.
const keyDisplayLen = 12

// AuthService manages API keys. User identity itself comes from the
// institutional directory; keys only authenticate integrations and the
// frontend session bridge.
type AuthService struct {
	store      database.Store
	bcryptCost int
}

// NewAuthService creates an AuthService.
func NewAuthService(store database.Store, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{store: store, bcryptCost: bcryptCost}
}

// CreateKeyResponse carries the plaintext key exactly once, at mint time.
type CreateKeyResponse struct {
	APIKey   user.APIKey `json:"api_key"`
	PlainKey string      `json:"plain_key"`
}

// CreateAPIKey generates a new API key for a user. Only the bcrypt hash is
// stored; the plaintext is returned once and cannot be recovered.
func (s *AuthService) CreateAPIKey(ctx context.Context, userID string, req user.CreateKeyRequest) (*CreateKeyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	plainKey := user.APIKeyPrefix + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	key := &user.APIKey{
		UserID:    userID,
		Name:      req.Name,
		Prefix:    plainKey[:keyDisplayLen],
		KeyHash:   string(hash),
		Scopes:    req.Scopes,
		ExpiresAt: req.ExpiresAt,
	}

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	return &CreateKeyResponse{APIKey: *key, PlainKey: plainKey}, nil
}

// ValidateAPIKey looks up a key by its display prefix and compares the
// bcrypt hash. Returns the owning user and the key for scope checks.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*user.User, *user.APIKey, error) {
	if len(rawKey) < keyDisplayLen {
		return nil, nil, errors.New("invalid api key")
	}

	key, err := s.store.GetAPIKeyByPrefix(ctx, rawKey[:keyDisplayLen])
	if err != nil {
		return nil, nil, errors.New("invalid api key")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)); err != nil {
		return nil, nil, errors.New("invalid api key")
	}
	if key.Expired(time.Now()) {
		return nil, nil, errors.New("api key expired")
	}

	u, err := s.store.GetUser(ctx, key.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if !u.Enabled {
		return nil, nil, errors.New("user disabled")
	}
	return u, key, nil
}

// DeleteAPIKey removes an API key.
func (s *AuthService) DeleteAPIKey(ctx context.Context, id string) error {
	return s.store.DeleteAPIKey(ctx, id)
}
