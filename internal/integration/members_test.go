package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/projects"
)

func TestOwnerImmutability(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	admin := createUser(t, pool, "Admin", "admin@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, org.ID, owner, "admin@example.com", orgs.RoleAdmin)
	require.NoError(t, err)

	// Even another admin cannot demote the owner
	_, err = svc.UpdateMemberRole(ctx, org.ID, admin, owner, orgs.RoleMember)
	require.ErrorIs(t, err, orgs.ErrCannotModifyOwner)

	// Nor remove them
	_, err = svc.RemoveMember(ctx, org.ID, admin, owner)
	require.ErrorIs(t, err, orgs.ErrCannotModifyOwner)

	// The owner outranks admins regardless of their membership row
	role, err := svc.EffectiveRoleOf(ctx, owner, org.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.EffectiveOwner, role)
}

func TestMemberRoleUpdateAndIdempotentRemoval(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	member := createUser(t, pool, "Member", "member@example.com")
	stranger := createUser(t, pool, "Stranger", "stranger@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, org.ID, owner, "member@example.com", orgs.RoleMember)
	require.NoError(t, err)

	// Duplicate add surfaces the unique constraint as a domain error
	_, err = svc.AddMember(ctx, org.ID, owner, "member@example.com", orgs.RoleManager)
	require.ErrorIs(t, err, orgs.ErrMemberAlreadyExists)

	previous, err := svc.UpdateMemberRole(ctx, org.ID, owner, member, orgs.RoleManager)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleMember, previous)

	role, err := svc.EffectiveRoleOf(ctx, member, org.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.EffectiveManager, role)

	// Removing someone who was never a member succeeds as a no-op
	removed, err := svc.RemoveMember(ctx, org.ID, owner, stranger)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = svc.RemoveMember(ctx, org.ID, owner, member)
	require.NoError(t, err)
	require.True(t, removed)

	role, err = svc.EffectiveRoleOf(ctx, member, org.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.EffectiveNone, role)
}

func TestMemberPermissionEnforcement(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	member := createUser(t, pool, "Member", "member@example.com")
	createUser(t, pool, "Target", "target@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, org.ID, owner, "member@example.com", orgs.RoleMember)
	require.NoError(t, err)

	// Plain members cannot manage membership
	_, err = svc.AddMember(ctx, org.ID, member, "target@example.com", orgs.RoleMember)
	require.ErrorIs(t, err, orgs.ErrInsufficientPermissions)

	_, _, err = svc.CreateInvite(ctx, org.ID, member, orgs.CreateInviteParams{Role: orgs.RoleMember})
	require.ErrorIs(t, err, orgs.ErrInsufficientPermissions)

	// Non-members cannot even list
	outsider := createUser(t, pool, "Outsider", "outsider@example.com")
	_, err = svc.ListMembers(ctx, org.ID, outsider)
	require.ErrorIs(t, err, orgs.ErrNotMember)
}

func TestProjectMembershipAndPolicy(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	orgSvc := orgs.NewService(pool, "http://localhost:8080")
	projSvc := projects.NewService(pool, orgSvc)

	owner := createUser(t, pool, "Owner", "owner@example.com")
	colleague := createUser(t, pool, "Colleague", "colleague@example.com")
	outsider := createUser(t, pool, "Outsider", "outsider@example.com")

	org, err := orgSvc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)
	_, err = orgSvc.AddMember(ctx, org.ID, owner, "colleague@example.com", orgs.RoleMember)
	require.NoError(t, err)

	project, err := projSvc.Create(ctx, org.ID, owner, "Billing", "BILL", "")
	require.NoError(t, err)
	require.Equal(t, "BILL", project.Key)

	// Creator gets a manager membership in the same transaction
	rel, err := projSvc.Relation(ctx, owner, project.ID)
	require.NoError(t, err)
	require.True(t, rel.IsProjectOwner)
	require.Equal(t, projects.RoleManager, rel.ProjectRole)

	// Duplicate key within the org is rejected
	_, err = projSvc.Create(ctx, org.ID, owner, "Billing 2", "BILL", "")
	require.ErrorIs(t, err, projects.ErrKeyConflict)

	// Org members can see the project without a project membership
	colleagueRel, err := projSvc.Relation(ctx, colleague, project.ID)
	require.NoError(t, err)
	require.True(t, projects.CanView(colleagueRel))
	require.False(t, projects.CanUpdate(colleagueRel))

	// Outsiders cannot join a project without org membership
	_, err = projSvc.AddMember(ctx, owner, project.ID, outsider, projects.RoleMember)
	require.ErrorIs(t, err, projects.ErrNotOrgMember)

	// Org members can
	membership, err := projSvc.AddMember(ctx, owner, project.ID, colleague, projects.RoleMember)
	require.NoError(t, err)
	require.Equal(t, projects.RoleMember, membership.Role)

	colleagueRel, err = projSvc.Relation(ctx, colleague, project.ID)
	require.NoError(t, err)
	require.True(t, colleagueRel.IsProjectMember())
}
