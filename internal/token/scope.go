package token

import (
	"strings"
	"unicode"
)

// HasScope decides whether the payload authorizes the required permission
// list.
//
// With no role map configured, every verified caller is allowed. With a
// role map but no required permissions, the decision reduces to the role
// gate alone. Otherwise every required scope must match a claimed scope
// exactly or via a "<resource>:*" or "*:*" wildcard; the first required
// scope without a match hands the whole decision to the role gate and the
// remaining scopes are not checked.
func HasScope(p *Payload, roleMap map[Role]bool, requiredPermissions string) bool {
	if roleMap == nil {
		return true
	}

	if requiredPermissions == "" {
		return roleMap[p.Role]
	}

	// A non-empty string that splits to zero tokens (separators only) is
	// vacuously satisfied; only the empty string reduces to the role gate.
	required := splitScopes(requiredPermissions)
	claimed := splitScopes(p.Permission)
	for _, scope := range required {
		if !scopeMatches(claimed, scope) {
			// Any-miss-means-role-decides: the first unmatched scope
			// delegates the whole check to the role gate.
			return roleMap[p.Role]
		}
	}
	return true
}

// splitScopes breaks a permission string on runs of whitespace and commas,
// discarding empty tokens.
func splitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func scopeMatches(claimed []string, required string) bool {
	for _, scope := range claimed {
		if scope == required || scope == "*:*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(scope, ":*"); ok && strings.HasPrefix(required, prefix+":") {
			return true
		}
	}
	return false
}
