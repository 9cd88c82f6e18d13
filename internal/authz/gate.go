package authz

import (
	"context"
	"errors"
)

// Gate is the sole privilege decision point. Every privileged entry point
// calls it before performing or rendering privileged work, and maps
// ErrUnauthorized to a denial rather than partial output.
type Gate struct {
	resolver *Resolver
}

// NewGate constructs a Gate over the given resolver.
func NewGate(resolver *Resolver) (*Gate, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	return &Gate{resolver: resolver}, nil
}

// RequireGlobalAdmin passes iff the subject holds the global admin grant.
// A store failure propagates as-is: "can't verify" is never "authorized".
func (g *Gate) RequireGlobalAdmin(ctx context.Context, subjectID string) error {
	admin, err := g.resolver.IsGlobalAdmin(ctx, subjectID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}
	return nil
}

// RequireRole passes when the subject is a global admin, or when it holds
// a jurisdiction membership role contained in the allow-list. A scoped
// check with no jurisdiction or an empty allow-list is a configuration
// error and fails closed.
func (g *Gate) RequireRole(ctx context.Context, subjectID, jurisdictionID string, allowed ...Role) error {
	admin, err := g.resolver.IsGlobalAdmin(ctx, subjectID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	if jurisdictionID == "" || len(allowed) == 0 {
		return ErrUnauthorized
	}
	role, found, err := g.resolver.JurisdictionRole(ctx, subjectID, jurisdictionID)
	if err != nil {
		return err
	}
	if !found {
		return ErrUnauthorized
	}
	for _, candidate := range allowed {
		if role == candidate {
			return nil
		}
	}
	return ErrUnauthorized
}
