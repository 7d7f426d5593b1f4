package orgs

import (
	"context"

	"github.com/google/uuid"
)

// Organization policy. Each function is a pure decision over the actor's
// resolved effective role; callers resolve the role once (see RoleResolver)
// and reuse it across checks.

// CanViewOrg allows any member, including the owner
func CanViewOrg(role EffectiveRole) bool {
	return role.HasAtLeast(EffectiveMember)
}

// CanUpdateOrg allows admin members and the owner
func CanUpdateOrg(role EffectiveRole) bool {
	return role.HasAtLeast(EffectiveAdmin)
}

// CanDeleteOrg allows only the owner; admins are deliberately excluded
func CanDeleteOrg(role EffectiveRole) bool {
	return role == EffectiveOwner
}

// CanManageMembers allows admin members and the owner to add, update,
// remove members and to create, list, revoke invitations
func CanManageMembers(role EffectiveRole) bool {
	return role.HasAtLeast(EffectiveAdmin)
}

type roleKey struct {
	userID uuid.UUID
	orgID  uuid.UUID
}

// RoleResolver memoizes effective-role lookups for the duration of a single
// request, so that policies consulting the same (user, org) pair repeatedly
// hit the database once. Not safe for concurrent use; create one per request.
type RoleResolver struct {
	svc   *Service
	cache map[roleKey]EffectiveRole
}

func NewRoleResolver(svc *Service) *RoleResolver {
	return &RoleResolver{svc: svc, cache: make(map[roleKey]EffectiveRole)}
}

// OrgRole resolves the user's effective role in the organization, consulting
// the cache first. EffectiveNone (with nil error) means no relationship.
func (r *RoleResolver) OrgRole(ctx context.Context, userID, orgID uuid.UUID) (EffectiveRole, error) {
	key := roleKey{userID: userID, orgID: orgID}
	if role, ok := r.cache[key]; ok {
		return role, nil
	}

	role, err := r.svc.EffectiveRoleOf(ctx, userID, orgID)
	if err != nil {
		return EffectiveNone, err
	}

	r.cache[key] = role
	return role, nil
}
