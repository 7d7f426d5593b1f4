package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/rkwebforge/tracklet/internal/orgs"
)

func createUser(t *testing.T, pool *pgxpool.Pool, name, email string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, 'not-a-real-hash')
		RETURNING id
	`, name, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestOrgCreateSlugDisambiguation(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Dana", "dana@example.com")

	first, err := svc.Create(ctx, "Acme Corp", "", owner)
	require.NoError(t, err)
	require.Equal(t, "acme-corp", first.Slug)

	second, err := svc.Create(ctx, "Acme Corp!", "", owner)
	require.NoError(t, err)
	require.Equal(t, "acme-corp-1", second.Slug)

	third, err := svc.Create(ctx, "ACME corp", "", owner)
	require.NoError(t, err)
	require.Equal(t, "acme-corp-2", third.Slug)

	// The creator resolves as owner, above any membership role
	role, err := svc.EffectiveRoleOf(ctx, owner, first.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.EffectiveOwner, role)

	// Creation also writes the owner's admin membership row
	var memberRole string
	err = pool.QueryRow(ctx, `
		SELECT role FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, first.ID, owner).Scan(&memberRole)
	require.NoError(t, err)
	require.Equal(t, "admin", memberRole)
}

func TestInviteSingleUseLifecycle(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	joiner := createUser(t, pool, "Joiner", "joiner@example.com")
	latecomer := createUser(t, pool, "Late", "late@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, url, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:          orgs.RoleMember,
		ExpiresInDays: intPtr(7),
		MaxUses:       intPtr(1),
	})
	require.NoError(t, err)
	require.Contains(t, url, inv.Token)
	require.Equal(t, 0, inv.UsesCount)

	// First redemption joins the org with the invitation's role
	joined, err := svc.RedeemInvite(ctx, inv.Token, joiner)
	require.NoError(t, err)
	require.Equal(t, org.ID, joined.ID)

	role, err := svc.EffectiveRoleOf(ctx, joiner, org.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.EffectiveMember, role)

	// The quota is now exhausted
	_, err = svc.RedeemInvite(ctx, inv.Token, latecomer)
	require.ErrorIs(t, err, orgs.ErrInvalidInvitation)

	// Exhausted invitations drop out of the active listing
	active, err := svc.ListActiveInvites(ctx, org.ID, owner)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestInviteUnlimitedUses(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, _, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role: orgs.RoleManager,
	})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		user := createUser(t, pool, fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i))
		_, err := svc.RedeemInvite(ctx, inv.Token, user)
		require.NoError(t, err)

		role, err := svc.EffectiveRoleOf(ctx, user, org.ID)
		require.NoError(t, err)
		require.Equal(t, orgs.EffectiveManager, role)
	}

	// Unlimited invitations stay listable no matter how often they are used
	active, err := svc.ListActiveInvites(ctx, org.ID, owner)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, 50, active[0].UsesCount)
}

func TestInviteAlreadyMember(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	member := createUser(t, pool, "Member", "member@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, _, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role: orgs.RoleMember,
	})
	require.NoError(t, err)

	_, err = svc.RedeemInvite(ctx, inv.Token, member)
	require.NoError(t, err)

	// A second redemption by the same user fails without consuming a use
	_, err = svc.RedeemInvite(ctx, inv.Token, member)
	require.ErrorIs(t, err, orgs.ErrInvalidInvitation)

	got, err := svc.GetInviteByToken(ctx, inv.Token)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsesCount)
}

func TestInviteExpiry(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc := orgs.NewService(pool, "http://localhost:8080").WithClock(func() time.Time { return now })

	owner := createUser(t, pool, "Owner", "owner@example.com")
	joiner := createUser(t, pool, "Joiner", "joiner@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, _, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:          orgs.RoleMember,
		ExpiresInDays: intPtr(3),
	})
	require.NoError(t, err)
	require.NotNil(t, inv.ExpiresAt)
	require.Equal(t, base.Add(72*time.Hour), inv.ExpiresAt.UTC())

	// Still listed while valid
	active, err := svc.ListActiveInvites(ctx, org.ID, owner)
	require.NoError(t, err)
	require.Len(t, active, 1)

	// Advance past expiry: no sweep runs, validity is evaluated at read time
	now = base.Add(73 * time.Hour)

	_, err = svc.RedeemInvite(ctx, inv.Token, joiner)
	require.ErrorIs(t, err, orgs.ErrInvalidInvitation)

	active, err = svc.ListActiveInvites(ctx, org.ID, owner)
	require.NoError(t, err)
	require.Empty(t, active)

	// The row itself is untouched, only derived validity changed
	got, err := svc.GetInviteByToken(ctx, inv.Token)
	require.NoError(t, err)
	require.False(t, got.IsValid(now))
}

func TestInviteEmailGuard(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	intended := createUser(t, pool, "Intended", "intended@example.com")
	intruder := createUser(t, pool, "Intruder", "intruder@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, _, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:  orgs.RoleMember,
		Email: strPtr("Intended@Example.com"),
	})
	require.NoError(t, err)

	// The guard rejects any account whose email differs
	_, err = svc.RedeemInvite(ctx, inv.Token, intruder)
	require.ErrorIs(t, err, orgs.ErrInvalidInvitation)

	// Comparison is case-insensitive
	_, err = svc.RedeemInvite(ctx, inv.Token, intended)
	require.NoError(t, err)
}

func TestInviteRevoke(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	joiner := createUser(t, pool, "Joiner", "joiner@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, _, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role: orgs.RoleMember,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeInvite(ctx, org.ID, inv.ID, owner))

	// Revocation is a hard delete; redeeming the dead token reads as an
	// invalid invitation, not a distinct not-found condition
	_, err = svc.RedeemInvite(ctx, inv.Token, joiner)
	require.ErrorIs(t, err, orgs.ErrInvalidInvitation)

	err = svc.RevokeInvite(ctx, org.ID, inv.ID, owner)
	require.ErrorIs(t, err, orgs.ErrInvitationNotFound)
}

func TestInviteConcurrentSingleUse(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	inv, _, err := svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:    orgs.RoleMember,
		MaxUses: intPtr(1),
	})
	require.NoError(t, err)

	const racers = 8
	users := make([]uuid.UUID, racers)
	for i := range users {
		users[i] = createUser(t, pool, fmt.Sprintf("Racer %d", i), fmt.Sprintf("racer%d@example.com", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RedeemInvite(ctx, inv.Token, users[i])
		}(i)
	}
	wg.Wait()

	// Exactly one racer wins; the row lock and conditional increment keep
	// the quota exact under contention
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, orgs.ErrInvalidInvitation)
		}
	}
	require.Equal(t, 1, succeeded)

	got, err := svc.GetInviteByToken(ctx, inv.Token)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsesCount)

	var memberCount int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM organization_members WHERE organization_id = $1
	`, org.ID).Scan(&memberCount)
	require.NoError(t, err)
	require.Equal(t, 2, memberCount) // owner + the single winner
}

func TestInviteEmailGuardConflicts(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	svc := orgs.NewService(pool, "http://localhost:8080")
	owner := createUser(t, pool, "Owner", "owner@example.com")
	member := createUser(t, pool, "Member", "member@example.com")

	org, err := svc.Create(ctx, "Acme", "", owner)
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, org.ID, owner, "member@example.com", orgs.RoleMember)
	require.NoError(t, err)
	_ = member

	// Guarded invitations cannot target existing members
	_, _, err = svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:  orgs.RoleMember,
		Email: strPtr("member@example.com"),
	})
	require.ErrorIs(t, err, orgs.ErrMemberAlreadyExists)

	// Nor duplicate an outstanding guarded invitation
	_, _, err = svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:  orgs.RoleMember,
		Email: strPtr("new@example.com"),
	})
	require.NoError(t, err)

	_, _, err = svc.CreateInvite(ctx, org.ID, owner, orgs.CreateInviteParams{
		Role:  orgs.RoleMember,
		Email: strPtr("new@example.com"),
	})
	require.ErrorIs(t, err, orgs.ErrInvitationAlreadyExists)
}
