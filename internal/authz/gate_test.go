package authz

import (
	"context"
	"errors"
	"testing"
)

type stubRoleStore struct {
	adminFn func(context.Context, string) (bool, error)
	roleFn  func(context.Context, string, string) (Role, bool, error)
}

func (s *stubRoleStore) GlobalAdminExists(ctx context.Context, subjectID string) (bool, error) {
	if s.adminFn != nil {
		return s.adminFn(ctx, subjectID)
	}
	return false, nil
}

func (s *stubRoleStore) JurisdictionRole(ctx context.Context, subjectID, jurisdictionID string) (Role, bool, error) {
	if s.roleFn != nil {
		return s.roleFn(ctx, subjectID, jurisdictionID)
	}
	return "", false, nil
}

func newTestGate(t *testing.T, elevated, scoped *stubRoleStore) *Gate {
	t.Helper()
	resolver, err := NewResolver(elevated, scoped)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	gate, err := NewGate(resolver)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return gate
}

func TestRequireRoleDeniesWithoutMembership(t *testing.T) {
	gate := newTestGate(t, &stubRoleStore{}, &stubRoleStore{})

	err := gate.RequireRole(context.Background(), "user-1", "j1", RoleModerator)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRequireRoleDeniesRoleOutsideAllowList(t *testing.T) {
	elevated := &stubRoleStore{
		roleFn: func(_ context.Context, _, _ string) (Role, bool, error) {
			return RoleMember, true, nil
		},
	}
	gate := newTestGate(t, elevated, &stubRoleStore{})

	err := gate.RequireRole(context.Background(), "user-1", "j1", RoleModerator)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRequireRolePassesOnAllowedMembership(t *testing.T) {
	elevated := &stubRoleStore{
		roleFn: func(_ context.Context, subjectID, jurisdictionID string) (Role, bool, error) {
			if subjectID != "user-1" || jurisdictionID != "j1" {
				t.Fatalf("unexpected lookup %s/%s", subjectID, jurisdictionID)
			}
			return RoleEditor, true, nil
		},
	}
	gate := newTestGate(t, elevated, &stubRoleStore{})

	if err := gate.RequireRole(context.Background(), "user-1", "j1", RoleModerator, RoleEditor); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestRequireRoleAdminSupersedesScopedChecks(t *testing.T) {
	elevated := &stubRoleStore{
		adminFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		roleFn: func(_ context.Context, _, _ string) (Role, bool, error) {
			t.Fatal("scoped lookup must not run for global admins")
			return "", false, nil
		},
	}
	gate := newTestGate(t, elevated, &stubRoleStore{})

	// Empty allow-list and empty jurisdiction still pass for admins.
	if err := gate.RequireRole(context.Background(), "root", ""); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestRequireRoleFailsClosedWithoutScope(t *testing.T) {
	gate := newTestGate(t, &stubRoleStore{}, &stubRoleStore{})

	if err := gate.RequireRole(context.Background(), "user-1", "", RoleModerator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing scope, got %v", err)
	}
	if err := gate.RequireRole(context.Background(), "user-1", "j1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty allow-list, got %v", err)
	}
}

func TestRequireRolePropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	elevated := &stubRoleStore{
		adminFn: func(_ context.Context, _ string) (bool, error) { return false, storeErr },
	}
	gate := newTestGate(t, elevated, &stubRoleStore{})

	err := gate.RequireRole(context.Background(), "user-1", "j1", RoleModerator)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store failure to propagate, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("store failure must not be reported as unauthorized")
	}
}

func TestRequireGlobalAdmin(t *testing.T) {
	elevated := &stubRoleStore{
		adminFn: func(_ context.Context, subjectID string) (bool, error) {
			return subjectID == "root", nil
		},
	}
	gate := newTestGate(t, elevated, &stubRoleStore{})

	if err := gate.RequireGlobalAdmin(context.Background(), "root"); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if err := gate.RequireGlobalAdmin(context.Background(), "user-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
