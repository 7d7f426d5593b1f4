package projects

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rkwebforge/tracklet/internal/orgs"
)

// Relation fixtures covering the interesting privilege combinations.
var (
	outsider       = Relation{}
	orgMemberOnly  = Relation{OrgRole: orgs.EffectiveMember}
	orgAdminOnly   = Relation{OrgRole: orgs.EffectiveAdmin}
	orgOwnerOnly   = Relation{OrgRole: orgs.EffectiveOwner}
	projMemberOnly = Relation{ProjectRole: RoleMember}
	projManager    = Relation{ProjectRole: RoleManager, OrgRole: orgs.EffectiveMember}
	projOwner      = Relation{IsProjectOwner: true, OrgRole: orgs.EffectiveMember}
)

func TestProjectPolicyView(t *testing.T) {
	require.False(t, CanView(outsider))
	require.True(t, CanView(orgMemberOnly))
	require.True(t, CanView(orgAdminOnly))
	require.True(t, CanView(projMemberOnly))
	require.True(t, CanView(projManager))
	require.True(t, CanView(projOwner))

	// A project owner who left the org can still see their project
	require.True(t, CanView(Relation{IsProjectOwner: true}))
}

func TestProjectPolicyUpdate(t *testing.T) {
	require.False(t, CanUpdate(outsider))
	require.False(t, CanUpdate(orgMemberOnly))
	require.False(t, CanUpdate(projMemberOnly))
	require.True(t, CanUpdate(projManager))
	require.True(t, CanUpdate(projOwner))
	require.True(t, CanUpdate(orgAdminOnly))
	require.True(t, CanUpdate(orgOwnerOnly))
}

func TestProjectPolicyDelete(t *testing.T) {
	require.False(t, CanDelete(outsider))
	require.False(t, CanDelete(orgMemberOnly))
	require.False(t, CanDelete(projMemberOnly))
	// Project managers can update but not delete
	require.False(t, CanDelete(projManager))
	require.True(t, CanDelete(projOwner))
	require.True(t, CanDelete(orgAdminOnly))
	require.True(t, CanDelete(orgOwnerOnly))
}

func TestProjectPolicyManageMembers(t *testing.T) {
	require.False(t, CanManageMembers(outsider))
	require.False(t, CanManageMembers(orgMemberOnly))
	require.False(t, CanManageMembers(projMemberOnly))
	require.True(t, CanManageMembers(projManager))
	require.True(t, CanManageMembers(projOwner))
	require.True(t, CanManageMembers(orgAdminOnly))
}

func TestProjectRoleIsValid(t *testing.T) {
	require.True(t, RoleManager.IsValid())
	require.True(t, RoleMember.IsValid())
	require.False(t, RoleNone.IsValid())
	require.False(t, ProjectRole("admin").IsValid())
}

func TestRelationIsProjectMember(t *testing.T) {
	require.False(t, outsider.IsProjectMember())
	require.True(t, projMemberOnly.IsProjectMember())
	require.True(t, projManager.IsProjectMember())
	// Creator status alone is not a membership row
	require.False(t, Relation{IsProjectOwner: true}.IsProjectMember())
}
