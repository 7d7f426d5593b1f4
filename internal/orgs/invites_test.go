package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(n int) *int              { return &n }

func TestInvitationIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry never expires", nil, false},
		{"future expiry", ptrTime(now.Add(time.Hour)), false},
		{"past expiry", ptrTime(now.Add(-time.Hour)), true},
		{"expiry exactly now", ptrTime(now), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Invitation{ExpiresAt: tt.expiresAt}
			require.Equal(t, tt.want, inv.IsExpired(now))
		})
	}
}

func TestInvitationIsMaxUsesReached(t *testing.T) {
	tests := []struct {
		name      string
		maxUses   *int
		usesCount int
		want      bool
	}{
		{"unlimited uses", nil, 500, false},
		{"under quota", ptrInt(5), 4, false},
		{"at quota", ptrInt(5), 5, true},
		{"over quota", ptrInt(1), 2, true},
		{"single use unredeemed", ptrInt(1), 0, false},
		{"single use redeemed", ptrInt(1), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Invitation{MaxUses: tt.maxUses, UsesCount: tt.usesCount}
			require.Equal(t, tt.want, inv.IsMaxUsesReached())
		})
	}
}

func TestInvitationIsValid(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("fresh unlimited invite is valid", func(t *testing.T) {
		inv := Invitation{}
		require.True(t, inv.IsValid(now))
	})

	t.Run("valid until the moment it expires", func(t *testing.T) {
		inv := Invitation{ExpiresAt: ptrTime(now.Add(72 * time.Hour))}
		require.True(t, inv.IsValid(now))
		require.True(t, inv.IsValid(now.Add(72*time.Hour-time.Second)))
		require.False(t, inv.IsValid(now.Add(72*time.Hour)))
		require.False(t, inv.IsValid(now.Add(100*time.Hour)))
	})

	t.Run("exhausted invite is invalid even before expiry", func(t *testing.T) {
		inv := Invitation{
			ExpiresAt: ptrTime(now.Add(time.Hour)),
			MaxUses:   ptrInt(3),
			UsesCount: 3,
		}
		require.False(t, inv.IsValid(now))
	})

	t.Run("expired invite is invalid even with quota left", func(t *testing.T) {
		inv := Invitation{
			ExpiresAt: ptrTime(now.Add(-time.Minute)),
			MaxUses:   ptrInt(10),
			UsesCount: 0,
		}
		require.False(t, inv.IsValid(now))
	})
}

func TestCreateInviteRejectsNonPositiveLimits(t *testing.T) {
	// Parameter validation happens before any database access.
	svc := NewService(nil, "http://localhost:8080")
	ctx := context.Background()

	_, _, err := svc.CreateInvite(ctx, uuid.New(), uuid.New(), CreateInviteParams{
		Role:    RoleMember,
		MaxUses: ptrInt(0),
	})
	require.ErrorIs(t, err, ErrInvalidInviteParams)

	_, _, err = svc.CreateInvite(ctx, uuid.New(), uuid.New(), CreateInviteParams{
		Role:          RoleMember,
		ExpiresInDays: ptrInt(-1),
	})
	require.ErrorIs(t, err, ErrInvalidInviteParams)
}
