package authz

import (
	"fmt"
	"strings"
)

// Role is a membership role held within a single jurisdiction.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleEditor    Role = "editor"
	RoleMember    Role = "member"
	RoleViewer    Role = "viewer"
	RoleFounder   Role = "founder"
)

// GlobalRoleAdmin is the only role granted independent of any jurisdiction.
// It supersedes every scoped check.
const GlobalRoleAdmin = "admin"

var knownRoles = map[Role]struct{}{
	RoleAdmin:     {},
	RoleModerator: {},
	RoleEditor:    {},
	RoleMember:    {},
	RoleViewer:    {},
	RoleFounder:   {},
}

// ParseRole normalizes and validates a jurisdiction role value.
func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(value)))
	if _, ok := knownRoles[role]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, value)
	}
	return role, nil
}
