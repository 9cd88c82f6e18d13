package authz

import "context"

// RoleStore reads role grants. Both methods are pure lookups: idempotent,
// side-effect free, and safe to call concurrently within one request.
type RoleStore interface {
	// GlobalAdminExists reports whether the subject holds the global
	// admin grant.
	GlobalAdminExists(ctx context.Context, subjectID string) (bool, error)

	// JurisdictionRole returns the subject's membership role within the
	// jurisdiction. Absence is (.., false, nil), not an error.
	JurisdictionRole(ctx context.Context, subjectID, jurisdictionID string) (Role, bool, error)
}

// ElevatedRoleStore marks a RoleStore backed by an elevated-trust
// connection, so the global admin check cannot be filtered by
// subject-level row policies. Failures of the elevated credential surface
// as ErrElevatedCredential.
type ElevatedRoleStore interface {
	RoleStore
}
