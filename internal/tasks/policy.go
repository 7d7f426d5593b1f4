package tasks

import (
	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/projects"
)

// Task policy. Pure decisions over a resolved Relation; privilege composes
// transitively through the parent project and organization.

func canReachProject(rel Relation) bool {
	return rel.Project.IsProjectMember() ||
		rel.Project.IsProjectOwner ||
		rel.Project.OrgRole.HasAtLeast(orgs.EffectiveMember)
}

// CanView allows anyone who can reach the parent project
func CanView(rel Relation) bool {
	return canReachProject(rel)
}

// CanCreate allows anyone who can reach the parent project
func CanCreate(rel projects.Relation) bool {
	return rel.IsProjectMember() ||
		rel.IsProjectOwner ||
		rel.OrgRole.HasAtLeast(orgs.EffectiveMember)
}

// CanUpdate allows the assignee, the reporter, project managers and the
// project owner
func CanUpdate(rel Relation) bool {
	return rel.IsAssignee ||
		rel.IsReporter ||
		rel.Project.ProjectRole == projects.RoleManager ||
		rel.Project.IsProjectOwner
}

// CanDelete allows the reporter, project managers and the project owner.
// The assignee alone cannot delete.
func CanDelete(rel Relation) bool {
	return rel.IsReporter ||
		rel.Project.ProjectRole == projects.RoleManager ||
		rel.Project.IsProjectOwner
}

// CanAssign allows project members, including the owner
func CanAssign(rel Relation) bool {
	return rel.Project.IsProjectMember() || rel.Project.IsProjectOwner
}

// CanComment mirrors CanView
func CanComment(rel Relation) bool {
	return canReachProject(rel)
}
