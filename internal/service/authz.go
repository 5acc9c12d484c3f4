package service

import (
	"fleet/internal/domain"
)

// RequireAdmin denies unless the principal carries the admin or superadmin role.
// A missing or unknown role is denied.
func RequireAdmin(p domain.Principal) error {
	if p.Subject == "" || !p.Role.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}

// RequireDriverSelf denies unless the principal is the driver identified by key.
func RequireDriverSelf(p domain.Principal, key string) error {
	if p.Role != domain.RoleDriver || p.Subject == "" || domain.NormalizeKey(p.Subject) != domain.NormalizeKey(key) {
		return ErrPermissionDenied
	}
	return nil
}
