// Package identity defines the caller identity consumed by the approval
// engine once an inbound credential has been resolved.
package identity

import "strings"

// Role is a caller's role.
type Role string

const (
	RoleViewer    Role = "VIEWER"
	RoleSteward   Role = "STEWARD"
	RoleDataOwner Role = "DATA_OWNER"
	RoleAdmin     Role = "ADMIN"
)

// aliases maps alternative spellings onto canonical roles.
var aliases = map[string]Role{
	"DATA_STEWARD": RoleSteward,
	"OWNER":        RoleDataOwner,
}

// ParseRole normalizes s (case, surrounding space, aliases).
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	if role, ok := aliases[s]; ok {
		return role
	}
	return Role(s)
}

// Identity is a resolved caller.
type Identity struct {
	Email string `json:"email" yaml:"email"`
	Role  Role   `json:"role" yaml:"role"`
}

// IsAdmin reports whether the identity holds the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an email address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
