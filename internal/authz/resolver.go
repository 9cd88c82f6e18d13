package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolver answers role questions for a subject. The global admin check
// runs against the elevated store; if the elevated credential itself is
// rejected, the resolver retries against the subject-scoped store. That
// fallback is a documented relaxation of the read, not an authorization
// bypass: the fallback query answers the same question over the same
// table. Any other failure propagates so callers fail closed.
type Resolver struct {
	elevated ElevatedRoleStore
	scoped   RoleStore
}

// NewResolver constructs a Resolver. Both stores are required.
func NewResolver(elevated ElevatedRoleStore, scoped RoleStore) (*Resolver, error) {
	if elevated == nil {
		return nil, errors.New("elevated role store is required")
	}
	if scoped == nil {
		return nil, errors.New("scoped role store is required")
	}
	return &Resolver{elevated: elevated, scoped: scoped}, nil
}

// IsGlobalAdmin reports whether the subject holds the global admin grant.
// Decisions are never cached; every call re-reads the store.
func (r *Resolver) IsGlobalAdmin(ctx context.Context, subjectID string) (bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return false, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	ok, err := r.elevated.GlobalAdminExists(ctx, subjectID)
	if err == nil {
		return ok, nil
	}
	if !errors.Is(err, ErrElevatedCredential) {
		return false, fmt.Errorf("check global admin: %w", err)
	}
	ok, err = r.scoped.GlobalAdminExists(ctx, subjectID)
	if err != nil {
		return false, fmt.Errorf("check global admin (fallback): %w", err)
	}
	return ok, nil
}

// JurisdictionRole returns the subject's role within a jurisdiction, if any.
func (r *Resolver) JurisdictionRole(ctx context.Context, subjectID, jurisdictionID string) (Role, bool, error) {
	subjectID = strings.TrimSpace(subjectID)
	jurisdictionID = strings.TrimSpace(jurisdictionID)
	if subjectID == "" || jurisdictionID == "" {
		return "", false, fmt.Errorf("%w: subject id and jurisdiction id are required", ErrInvalidInput)
	}
	role, found, err := r.elevated.JurisdictionRole(ctx, subjectID, jurisdictionID)
	if err != nil {
		return "", false, fmt.Errorf("get jurisdiction role: %w", err)
	}
	return role, found, nil
}
