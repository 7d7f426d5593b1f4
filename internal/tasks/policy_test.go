package tasks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/projects"
)

var (
	outsider       = Relation{}
	orgMemberOnly  = Relation{Project: projects.Relation{OrgRole: orgs.EffectiveMember}}
	projMember     = Relation{Project: projects.Relation{ProjectRole: projects.RoleMember, OrgRole: orgs.EffectiveMember}}
	projManager    = Relation{Project: projects.Relation{ProjectRole: projects.RoleManager, OrgRole: orgs.EffectiveMember}}
	projOwner      = Relation{Project: projects.Relation{IsProjectOwner: true, OrgRole: orgs.EffectiveMember}}
	assigneeOnly   = Relation{IsAssignee: true, Project: projects.Relation{ProjectRole: projects.RoleMember, OrgRole: orgs.EffectiveMember}}
	reporterOnly   = Relation{IsReporter: true, Project: projects.Relation{OrgRole: orgs.EffectiveMember}}
	assigneeNonMem = Relation{IsAssignee: true, Project: projects.Relation{OrgRole: orgs.EffectiveMember}}
)

func TestTaskPolicyView(t *testing.T) {
	require.False(t, CanView(outsider))
	require.True(t, CanView(orgMemberOnly))
	require.True(t, CanView(projMember))
	require.True(t, CanView(projManager))
	require.True(t, CanView(projOwner))
}

func TestTaskPolicyCreate(t *testing.T) {
	require.False(t, CanCreate(projects.Relation{}))
	require.True(t, CanCreate(projects.Relation{OrgRole: orgs.EffectiveMember}))
	require.True(t, CanCreate(projects.Relation{ProjectRole: projects.RoleMember}))
	require.True(t, CanCreate(projects.Relation{IsProjectOwner: true}))
}

func TestTaskPolicyUpdate(t *testing.T) {
	require.False(t, CanUpdate(outsider))
	require.False(t, CanUpdate(orgMemberOnly))
	require.False(t, CanUpdate(projMember))
	require.True(t, CanUpdate(assigneeOnly))
	require.True(t, CanUpdate(reporterOnly))
	require.True(t, CanUpdate(projManager))
	require.True(t, CanUpdate(projOwner))
}

func TestTaskPolicyDelete(t *testing.T) {
	require.False(t, CanDelete(outsider))
	require.False(t, CanDelete(orgMemberOnly))
	require.False(t, CanDelete(projMember))
	// The assignee can update but not delete
	require.False(t, CanDelete(assigneeNonMem))
	require.True(t, CanDelete(reporterOnly))
	require.True(t, CanDelete(projManager))
	require.True(t, CanDelete(projOwner))
}

func TestTaskPolicyAssign(t *testing.T) {
	require.False(t, CanAssign(outsider))
	// Org membership alone is not enough to assign
	require.False(t, CanAssign(orgMemberOnly))
	require.True(t, CanAssign(projMember))
	require.True(t, CanAssign(projManager))
	require.True(t, CanAssign(projOwner))
}

func TestTaskPolicyComment(t *testing.T) {
	require.False(t, CanComment(outsider))
	require.True(t, CanComment(orgMemberOnly))
	require.True(t, CanComment(projMember))
	require.True(t, CanComment(projOwner))
}
