package domain

import "github.com/google/uuid"

// Role is the acting user's role, resolved once at the API boundary.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAgent  Role = "AGENT"
	RoleAdmin  Role = "ADMIN"
)

// Identity is the authenticated caller. Role is the most privileged role
// held (ADMIN over AGENT over CLIENT) and is what logs and audit record.
// Roles lists every recognised role when the token carries more than one.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	Roles []Role    `json:"roles,omitempty"`
}

// HasRole reports whether the identity holds any of the given roles.
// Roles are not hierarchical: an ADMIN-only token does not pass a CLIENT check.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
		for _, held := range i.Roles {
			if held == r {
				return true
			}
		}
	}
	return false
}
