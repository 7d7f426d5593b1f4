package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Purger deletes rows that no longer serve any request path. Invitation
// validity is always evaluated at read time, so purging is purely hygiene:
// it never changes which invitations are redeemable, it only drops rows
// that stopped being redeemable long ago.
type Purger struct {
	pool *pgxpool.Pool

	invitePurgeDays    int
	auditRetentionDays int
}

func NewPurger(pool *pgxpool.Pool, invitePurgeDays, auditRetentionDays int) *Purger {
	return &Purger{
		pool:               pool,
		invitePurgeDays:    invitePurgeDays,
		auditRetentionDays: auditRetentionDays,
	}
}

// Run executes one purge pass. Intended to be scheduled (see cmd wiring)
// but safe to call at any time.
func (p *Purger) Run(ctx context.Context) error {
	start := time.Now()

	invites, err := p.purgeInvitations(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge invitations: %w", err)
	}

	auditRows, err := p.purgeAuditLog(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge audit log: %w", err)
	}

	log.Info().
		Int64("invitations", invites).
		Int64("audit_rows", auditRows).
		Dur("elapsed", time.Since(start)).
		Msg("Retention purge complete")
	return nil
}

// purgeInvitations removes invitations that expired more than the purge
// window ago. Exhausted-but-unexpired invitations are kept: their uses_count
// still documents how members joined.
func (p *Purger) purgeInvitations(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM organization_invitations
		WHERE expires_at IS NOT NULL
		  AND expires_at < NOW() - make_interval(days => $1)
	`, p.invitePurgeDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Purger) purgeAuditLog(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM audit_log
		WHERE created_at < NOW() - make_interval(days => $1)
	`, p.auditRetentionDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
