package orgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrgPolicyMatrix(t *testing.T) {
	roles := []EffectiveRole{EffectiveNone, EffectiveMember, EffectiveManager, EffectiveAdmin, EffectiveOwner}

	tests := []struct {
		name    string
		check   func(EffectiveRole) bool
		allowed map[EffectiveRole]bool
	}{
		{
			name:  "view",
			check: CanViewOrg,
			allowed: map[EffectiveRole]bool{
				EffectiveMember:  true,
				EffectiveManager: true,
				EffectiveAdmin:   true,
				EffectiveOwner:   true,
			},
		},
		{
			name:  "update",
			check: CanUpdateOrg,
			allowed: map[EffectiveRole]bool{
				EffectiveAdmin: true,
				EffectiveOwner: true,
			},
		},
		{
			name:  "delete",
			check: CanDeleteOrg,
			allowed: map[EffectiveRole]bool{
				EffectiveOwner: true,
			},
		},
		{
			name:  "manage members",
			check: CanManageMembers,
			allowed: map[EffectiveRole]bool{
				EffectiveAdmin: true,
				EffectiveOwner: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, role := range roles {
				require.Equal(t, tt.allowed[role], tt.check(role),
					"operation %q for role %s", tt.name, role)
			}
		})
	}
}

// An admin can manage members but must not be able to delete the org.
func TestAdminCannotDeleteOrg(t *testing.T) {
	require.True(t, CanManageMembers(EffectiveAdmin))
	require.False(t, CanDeleteOrg(EffectiveAdmin))
}
