package orgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemberRoleIsValid(t *testing.T) {
	require.True(t, RoleAdmin.IsValid())
	require.True(t, RoleManager.IsValid())
	require.True(t, RoleMember.IsValid())
	require.False(t, MemberRole("owner").IsValid())
	require.False(t, MemberRole("").IsValid())
	require.False(t, MemberRole("Admin").IsValid())
}

func TestEffectiveRoleOrdering(t *testing.T) {
	require.True(t, EffectiveOwner > EffectiveAdmin)
	require.True(t, EffectiveAdmin > EffectiveManager)
	require.True(t, EffectiveManager > EffectiveMember)
	require.True(t, EffectiveMember > EffectiveNone)
}

func TestEffectiveRoleHasAtLeast(t *testing.T) {
	tests := []struct {
		name string
		role EffectiveRole
		min  EffectiveRole
		want bool
	}{
		{"owner has at least admin", EffectiveOwner, EffectiveAdmin, true},
		{"owner has at least owner", EffectiveOwner, EffectiveOwner, true},
		{"admin lacks owner", EffectiveAdmin, EffectiveOwner, false},
		{"admin has at least manager", EffectiveAdmin, EffectiveManager, true},
		{"manager has at least member", EffectiveManager, EffectiveMember, true},
		{"manager lacks admin", EffectiveManager, EffectiveAdmin, false},
		{"member has at least member", EffectiveMember, EffectiveMember, true},
		{"member lacks manager", EffectiveMember, EffectiveManager, false},
		{"none lacks member", EffectiveNone, EffectiveMember, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.role.HasAtLeast(tt.min))
		})
	}
}

func TestMemberRoleEffective(t *testing.T) {
	require.Equal(t, EffectiveAdmin, RoleAdmin.Effective())
	require.Equal(t, EffectiveManager, RoleManager.Effective())
	require.Equal(t, EffectiveMember, RoleMember.Effective())
	require.Equal(t, EffectiveNone, MemberRole("bogus").Effective())
}

func TestEffectiveRoleString(t *testing.T) {
	require.Equal(t, "owner", EffectiveOwner.String())
	require.Equal(t, "admin", EffectiveAdmin.String())
	require.Equal(t, "manager", EffectiveManager.String())
	require.Equal(t, "member", EffectiveMember.String())
	require.Equal(t, "none", EffectiveNone.String())
}
