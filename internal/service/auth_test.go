package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
)

func seedEnabledUser(store *mockStore) *user.User {
	u := &user.User{
		Email:   "secretary@example.org",
		Name:    "Secretary",
		Role:    user.RoleSecretary,
		Enabled: true,
	}
	_ = store.CreateUser(context.Background(), u)
	return u
}

// bcrypt cost 4 keeps the tests fast.
func newTestAuthService(store *mockStore) *AuthService {
	return NewAuthService(store, 4)
}

func TestAuth_CreateAndValidateKey(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()
	owner := seedEnabledUser(store)

	resp, err := svc.CreateAPIKey(ctx, owner.ID, user.CreateKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	if !strings.HasPrefix(resp.PlainKey, user.APIKeyPrefix) {
		t.Errorf("plain key %q missing %s prefix", resp.PlainKey, user.APIKeyPrefix)
	}
	if resp.APIKey.KeyHash == resp.PlainKey {
		t.Error("key stored in clear")
	}
	if resp.APIKey.Prefix != resp.PlainKey[:keyDisplayLen] {
		t.Errorf("prefix = %q, want first %d chars of the key", resp.APIKey.Prefix, keyDisplayLen)
	}

	u, k, err := svc.ValidateAPIKey(ctx, resp.PlainKey)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if u.ID != owner.ID {
		t.Errorf("owner = %s, want %s", u.ID, owner.ID)
	}
	if k.ID != resp.APIKey.ID {
		t.Errorf("key id = %s, want %s", k.ID, resp.APIKey.ID)
	}
}

func TestAuth_ValidateKey_WrongSecret(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()
	owner := seedEnabledUser(store)

	resp, err := svc.CreateAPIKey(ctx, owner.ID, user.CreateKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatal(err)
	}

	// Same prefix, tampered tail.
	forged := resp.PlainKey[:len(resp.PlainKey)-4] + "0000"
	if _, _, err := svc.ValidateAPIKey(ctx, forged); err == nil {
		t.Fatal("forged key accepted")
	}
}

func TestAuth_ValidateKey_UnknownOrShort(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	if _, _, err := svc.ValidateAPIKey(ctx, "edk_deadbeefdeadbeef"); err == nil {
		t.Error("unknown key accepted")
	}
	if _, _, err := svc.ValidateAPIKey(ctx, "short"); err == nil {
		t.Error("short key accepted")
	}
}

func TestAuth_ValidateKey_Expired(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()
	owner := seedEnabledUser(store)

	resp, err := svc.CreateAPIKey(ctx, owner.ID, user.CreateKeyRequest{
		Name:      "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.ValidateAPIKey(ctx, resp.PlainKey); err == nil {
		t.Fatal("expired key accepted")
	}
}

func TestAuth_ValidateKey_DisabledUser(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()
	owner := seedEnabledUser(store)

	resp, err := svc.CreateAPIKey(ctx, owner.ID, user.CreateKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatal(err)
	}

	store.users[owner.ID].Enabled = false
	if _, _, err := svc.ValidateAPIKey(ctx, resp.PlainKey); err == nil {
		t.Fatal("key for disabled user accepted")
	}
}

func TestAuth_CreateKey_InvalidRequest(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()

	_, err := svc.CreateAPIKey(ctx, "user-1", user.CreateKeyRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing name err = %v, want ErrValidation", err)
	}

	_, err = svc.CreateAPIKey(ctx, "user-1", user.CreateKeyRequest{
		Name:   "ci",
		Scopes: []string{"everything:forever"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad scope err = %v, want ErrValidation", err)
	}
}

func TestAuth_DeleteKey(t *testing.T) {
	store := newMockStore()
	svc := newTestAuthService(store)
	ctx := context.Background()
	owner := seedEnabledUser(store)

	resp, err := svc.CreateAPIKey(ctx, owner.ID, user.CreateKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteAPIKey(ctx, resp.APIKey.ID); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if _, _, err := svc.ValidateAPIKey(ctx, resp.PlainKey); err == nil {
		t.Fatal("deleted key accepted")
	}
}
