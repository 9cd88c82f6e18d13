package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"polyvox.org/internal/authz"
)

// ErrJurisdictionNotFound marks an activation against an unknown id.
var ErrJurisdictionNotFound = errors.New("pg: jurisdiction not found")

// Jurisdiction is the slice of the jurisdictions table this core touches.
type Jurisdiction struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// ActivateJurisdiction marks the jurisdiction active and returns its
// current row. Re-activating keeps the original activation time.
func (s *Store) ActivateJurisdiction(ctx context.Context, id string, at time.Time) (Jurisdiction, error) {
	if s.db == nil {
		return Jurisdiction{}, errors.New("database connection unavailable")
	}
	var j Jurisdiction
	err := s.db.QueryRowContext(ctx, `
		update jurisdictions
		set status = 'active', activated_at = coalesce(activated_at, $2)
		where id = $1
		returning id, name, status, activated_at
	`, id, at).Scan(&j.ID, &j.Name, &j.Status, &j.ActivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Jurisdiction{}, ErrJurisdictionNotFound
	}
	if err != nil {
		return Jurisdiction{}, err
	}
	return j, nil
}

// SeedFounder grants the founder role if the user has no membership yet.
// An existing membership, whatever its role, is left alone.
func (s *Store) SeedFounder(ctx context.Context, subjectID, jurisdictionID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into jurisdiction_memberships (user_id, jurisdiction_id, role)
		values ($1, $2, $3)
		on conflict (user_id, jurisdiction_id) do nothing
	`, subjectID, jurisdictionID, string(authz.RoleFounder))
	return err
}

// UpsertMembership assigns the role within a jurisdiction, replacing any
// existing role for the (user, jurisdiction) pair.
func (s *Store) UpsertMembership(ctx context.Context, subjectID, jurisdictionID string, role authz.Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into jurisdiction_memberships (user_id, jurisdiction_id, role)
		values ($1, $2, $3)
		on conflict (user_id, jurisdiction_id) do update set role = excluded.role
	`, subjectID, jurisdictionID, string(role))
	return err
}
