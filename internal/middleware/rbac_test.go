package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
	"github.com/ethicsdesk/ethicsdesk/internal/middleware"
)

func injectUser(u *user.User, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.AuthUserCtxKeyForTest(), u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestRequireRole_AdminAllowed(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Auth disabled injects an admin user.
	handler := middleware.Auth(nil, false)(
		middleware.RequireRole(user.RoleAdmin)(inner),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireRole_NoUser_Returns401(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.RequireRole(user.RoleAdmin)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole_WrongRole_Returns403(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	applicant := &user.User{ID: "u1", Role: user.RoleApplicant, Enabled: true}
	handler := injectUser(applicant, middleware.RequireRole(user.RoleSecretary, user.RoleAdmin)(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequireRole_MatchingRoleAllowed(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	secretary := &user.User{ID: "u2", Role: user.RoleSecretary, Enabled: true}
	handler := injectUser(secretary, middleware.RequireRole(user.RoleSecretary, user.RoleAdmin)(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireScope_KeyWithoutScope_Returns403(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	v := &mockValidator{
		user: &user.User{ID: "u1", Role: user.RoleSecretary, Enabled: true},
		key:  &user.APIKey{ID: "k1", Scopes: []string{user.ScopeProposalsRead}},
	}
	handler := middleware.Auth(v, true)(
		middleware.RequireScope(user.ScopeRefDataWrite)(inner),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refdata", http.NoBody)
	req.Header.Set("X-API-Key", "edk_limited")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequireScope_NilScopesPass(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	v := &mockValidator{
		user: &user.User{ID: "u1", Role: user.RoleSecretary, Enabled: true},
		key:  &user.APIKey{ID: "k1"},
	}
	handler := middleware.Auth(v, true)(
		middleware.RequireScope(user.ScopeRefDataWrite)(inner),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refdata", http.NoBody)
	req.Header.Set("X-API-Key", "edk_old")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
