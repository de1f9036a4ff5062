package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scopedPayload(permission string, role Role) *Payload {
	return &Payload{ID: "id", UserID: "1", Permission: permission, Role: role}
}

func TestHasScopeNoRoleMapAllowsAll(t *testing.T) {
	p := scopedPayload("", RoleUser)
	require.True(t, HasScope(p, nil, "read:user"))
	require.True(t, HasScope(p, nil, ""))
}

func TestHasScopeRoleGateOnly(t *testing.T) {
	p := scopedPayload("read:user", RoleUser)
	require.True(t, HasScope(p, map[Role]bool{RoleUser: true}, ""))
	require.False(t, HasScope(p, map[Role]bool{RoleAdmin: true}, ""))
	require.False(t, HasScope(p, map[Role]bool{RoleUser: false}, ""))
}

func TestHasScopeExactMatch(t *testing.T) {
	p := scopedPayload("read:user,write:user", RoleUser)
	roleMap := map[Role]bool{}

	require.True(t, HasScope(p, roleMap, "read:user"))
	require.True(t, HasScope(p, roleMap, "read:user write:user"))
	require.True(t, HasScope(p, roleMap, "read:user, write:user"))
	require.False(t, HasScope(p, roleMap, "delete:user"))
}

func TestHasScopeResourceWildcard(t *testing.T) {
	p := scopedPayload("user:*", RoleUser)
	roleMap := map[Role]bool{RoleUser: false}

	// "user:*" covers any "user:<anything>" regardless of role gate.
	require.True(t, HasScope(p, roleMap, "user:read"))
	require.True(t, HasScope(p, roleMap, "user:delete"))
	// An unrelated resource falls back to the role gate.
	require.False(t, HasScope(p, roleMap, "post:create"))
	require.True(t, HasScope(p, map[Role]bool{RoleUser: true}, "post:create"))
}

func TestHasScopeUniversalWildcard(t *testing.T) {
	p := scopedPayload("*:*", RoleUser)
	roleMap := map[Role]bool{RoleUser: false}

	require.True(t, HasScope(p, roleMap, "read:user"))
	require.True(t, HasScope(p, roleMap, "anything:at-all"))
	require.True(t, HasScope(p, roleMap, "read:user write:post delete:everything"))
}

func TestHasScopeFirstMissDelegatesToRole(t *testing.T) {
	// The first unmatched required scope decides the outcome via the role
	// gate, even when a later required scope would also have missed.
	p := scopedPayload("read:user", RoleAdmin)
	allowed := map[Role]bool{RoleAdmin: true}
	denied := map[Role]bool{RoleAdmin: false}

	require.True(t, HasScope(p, allowed, "write:user read:user"))
	require.False(t, HasScope(p, denied, "write:user read:user"))

	// All required scopes matching never consults the role gate.
	require.True(t, HasScope(p, denied, "read:user"))
}

func TestHasScopeEmptyClaimedPermission(t *testing.T) {
	p := scopedPayload("", RoleUser)

	require.False(t, HasScope(p, map[Role]bool{RoleUser: false}, "read:user"))
	require.True(t, HasScope(p, map[Role]bool{RoleUser: true}, "read:user"))
}

func TestHasScopeSeparatorsOnlyIsVacuouslyAllowed(t *testing.T) {
	// A non-empty required string that splits to zero tokens matches
	// vacuously; only the empty string reduces to the role gate.
	p := scopedPayload("read:user", RoleUser)
	denied := map[Role]bool{RoleUser: false}

	require.True(t, HasScope(p, denied, ","))
	require.True(t, HasScope(p, denied, "  "))
	require.True(t, HasScope(p, denied, " ,\t, "))
	require.False(t, HasScope(p, denied, ""))
}

func TestHasScopeSeparatorNoise(t *testing.T) {
	p := scopedPayload(" read:user ,, write:user\t", RoleUser)
	roleMap := map[Role]bool{}

	require.True(t, HasScope(p, roleMap, ",read:user,  write:user ,"))
}
