package domain

import "strings"

var (
	defaultUserScopes = []string{
		"user:own:read", "user:own:write", "user:read",
		"sso:own:read", "sso:own:write", "villager:read",
	}
	defaultAdminScopes = []string{
		"user:admin", "sso:admin", "villager:admin", "villager:write",
		"villager:read", "fish:admin", "bug:admin", "bug:write",
	}
	systemScopes = []string{"villager:admin", "bug:admin", "fish:admin"}
)

// DefaultScopes returns a fresh copy of the scopes granted to new accounts of role.
func DefaultScopes(role Role) []string {
	var src []string
	switch role {
	case RoleAdmin:
		src = defaultAdminScopes
	case RoleSystem:
		src = systemScopes
	default:
		src = defaultUserScopes
	}
	return append([]string(nil), src...)
}

// HasScope reports whether granted satisfies at least one of required.
// A ":read" scope is also satisfied by its ":write" variant, and any
// "<resource>:..." scope by "<resource>:admin".
func HasScope(granted []string, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
		if strings.Contains(r, ":read") {
			if _, ok := set[strings.Replace(r, ":read", ":write", 1)]; ok {
				return true
			}
		}
		if i := strings.Index(r, ":"); i > 0 {
			if _, ok := set[r[:i]+":admin"]; ok {
				return true
			}
		}
	}
	return false
}
