package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"polyvox.org/internal/authz"
)

var _ authz.RoleStore = (*Store)(nil)

// GlobalAdminExists reports whether the subject holds the global admin
// grant. A rejected connection credential maps to
// authz.ErrElevatedCredential so the resolver can fall back.
func (s *Store) GlobalAdminExists(ctx context.Context, subjectID string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1 from user_global_roles
			where user_id = $1 and role = $2
		)
	`, subjectID, authz.GlobalRoleAdmin).Scan(&exists)
	if err != nil {
		if isCredentialError(err) {
			return false, fmt.Errorf("%w: %v", authz.ErrElevatedCredential, err)
		}
		return false, err
	}
	return exists, nil
}

// JurisdictionRole returns the subject's membership role within the
// jurisdiction. The first matching row wins; absence is not an error.
func (s *Store) JurisdictionRole(ctx context.Context, subjectID, jurisdictionID string) (authz.Role, bool, error) {
	if s.db == nil {
		return "", false, errors.New("database connection unavailable")
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `
		select role from jurisdiction_memberships
		where user_id = $1 and jurisdiction_id = $2
		limit 1
	`, subjectID, jurisdictionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	role, err := authz.ParseRole(raw)
	if err != nil {
		return "", false, fmt.Errorf("stored role for %s in %s: %w", subjectID, jurisdictionID, err)
	}
	return role, true, nil
}
