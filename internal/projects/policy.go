package projects

import "github.com/rkwebforge/tracklet/internal/orgs"

// Project policy. Each function is a pure decision over a resolved Relation.
// Privilege composes across levels: the project's creator and the parent
// organization's admins (and owner) override project-level roles.

// CanView allows project members, the project owner and any member of the
// parent organization
func CanView(rel Relation) bool {
	return rel.IsProjectMember() ||
		rel.IsProjectOwner ||
		rel.OrgRole.HasAtLeast(orgs.EffectiveMember)
}

// CanUpdate allows the project owner, project managers and org admins
func CanUpdate(rel Relation) bool {
	return rel.IsProjectOwner ||
		rel.ProjectRole == RoleManager ||
		rel.OrgRole.HasAtLeast(orgs.EffectiveAdmin)
}

// CanDelete allows the project owner and org admins. Project managers are
// not enough.
func CanDelete(rel Relation) bool {
	return rel.IsProjectOwner || rel.OrgRole.HasAtLeast(orgs.EffectiveAdmin)
}

// CanManageMembers mirrors CanUpdate
func CanManageMembers(rel Relation) bool {
	return rel.IsProjectOwner ||
		rel.ProjectRole == RoleManager ||
		rel.OrgRole.HasAtLeast(orgs.EffectiveAdmin)
}
