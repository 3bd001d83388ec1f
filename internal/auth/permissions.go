package auth

import "strings"

const (
	RoleAdmin    = "admin"
	RoleReviewer = "kyc_reviewer"
	RoleUser     = "user"
)

const (
	PermSubmit    = "kyc.submit"
	PermSubmitAny = "kyc.submit_any" // on behalf of another user
	PermReadOwn   = "kyc.read_own"
	PermReadAll   = "kyc.read_all"
	PermReview    = "kyc.review"
	PermDecide    = "kyc.decide"
)

// RolePermissions maps role claims to the capabilities they grant.
var RolePermissions = map[string][]string{
	RoleAdmin:    {PermSubmit, PermSubmitAny, PermReadOwn, PermReadAll, PermReview, PermDecide},
	RoleReviewer: {PermReadOwn, PermReadAll, PermReview, PermDecide},
	RoleUser:     {PermSubmit, PermReadOwn},
}

// PermissionsForRoles resolves the union of capabilities of roles. Unknown
// roles grant nothing.
func PermissionsForRoles(roles []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, p := range RolePermissions[strings.ToLower(strings.TrimSpace(role))] {
			set[p] = struct{}{}
		}
	}
	return set
}
