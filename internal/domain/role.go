package domain

// Role is the identity provider claim carried by a caller.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	RoleDriver     Role = "driver"
)

// ParseRole maps a raw claim onto the closed role set. Unknown values yield "".
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin, RoleSuperAdmin, RoleDriver:
		return Role(raw)
	}
	return ""
}

// IsAdmin reports whether the role may perform admin operations.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Principal identifies the caller of an operation.
// Subject is the driver key for drivers and an opaque id for admins.
type Principal struct {
	Subject string
	Role    Role
}
