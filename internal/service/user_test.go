package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/port/directory"
)

// mockDirectory is a canned directory.Directory.
type mockDirectory struct {
	entries map[string]directory.Entry
}

func (d *mockDirectory) Lookup(_ context.Context, id string) (*directory.Entry, error) {
	e, ok := d.entries[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return &e, nil
}

func (d *mockDirectory) Search(_ context.Context, _ string, limit int) ([]directory.Entry, error) {
	var out []directory.Entry
	for _, e := range d.entries {
		if len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func TestUser_Create(t *testing.T) {
	store := newMockStore()
	svc := NewUserService(store, nil)
	ctx := context.Background()

	u, err := svc.Create(ctx, &user.CreateRequest{
		Email: "member@example.org",
		Name:  "Committee Member",
		Role:  user.RoleCommittee,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !u.Enabled {
		t.Error("new users start enabled")
	}

	// Duplicate email is a conflict.
	_, err = svc.Create(ctx, &user.CreateRequest{
		Email: "member@example.org",
		Name:  "Someone Else",
		Role:  user.RoleApplicant,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate err = %v, want ErrConflict", err)
	}
}

func TestUser_Create_Invalid(t *testing.T) {
	svc := NewUserService(newMockStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  user.CreateRequest
	}{
		{"missing email", user.CreateRequest{Name: "n", Role: user.RoleApplicant}},
		{"bad email", user.CreateRequest{Email: "not-an-address", Name: "n", Role: user.RoleApplicant}},
		{"missing name", user.CreateRequest{Email: "a@b.org", Role: user.RoleApplicant}},
		{"bad role", user.CreateRequest{Email: "a@b.org", Name: "n", Role: user.Role("janitor")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, &tc.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUser_Update(t *testing.T) {
	store := newMockStore()
	svc := NewUserService(store, nil)
	ctx := context.Background()

	u, err := svc.Create(ctx, &user.CreateRequest{
		Email: "member@example.org",
		Name:  "Member",
		Role:  user.RoleApplicant,
	})
	if err != nil {
		t.Fatal(err)
	}

	chamber := "chamber-l"
	disabled := false
	got, err := svc.Update(ctx, u.ID, &user.UpdateRequest{
		Role:    user.RoleCommittee,
		Chamber: &chamber,
		Enabled: &disabled,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Role != user.RoleCommittee || got.Chamber != chamber || got.Enabled {
		t.Errorf("update not applied: %+v", got)
	}

	_, err = svc.Update(ctx, u.ID, &user.UpdateRequest{Role: user.Role("janitor")})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad role err = %v, want ErrValidation", err)
	}
}

func TestUser_DirectoryResolution(t *testing.T) {
	dir := &mockDirectory{entries: map[string]directory.Entry{
		"uid-1": {ID: "uid-1", Email: "known@example.org", Name: "Known"},
	}}
	svc := NewUserService(newMockStore(), dir)
	ctx := context.Background()

	e, err := svc.Resolve(ctx, "uid-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if e.Email != "known@example.org" {
		t.Errorf("email = %s", e.Email)
	}

	if _, err := svc.Resolve(ctx, "uid-2"); !errors.Is(err, directory.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}

	entries, err := svc.SearchDirectory(ctx, "known", 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, err = %v", entries, err)
	}
}

func TestUser_NoDirectoryConfigured(t *testing.T) {
	svc := NewUserService(newMockStore(), nil)

	_, err := svc.Resolve(context.Background(), "uid-1")
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}
