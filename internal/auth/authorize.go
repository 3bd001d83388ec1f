package auth

import "sort"

// Principal is the authenticated caller with capabilities resolved from its role claims.
type Principal struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal and resolves its permissions.
func NewPrincipal(userID, email string, roles []string) Principal {
	roles = dedupeRoles(roles)
	return Principal{
		UserID:      userID,
		Email:       email,
		Roles:       roles,
		Permissions: PermissionsForRoles(roles),
	}
}

// HasPermission reports whether the principal can execute action identified by key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// PermissionList returns the granted permissions sorted by key.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
