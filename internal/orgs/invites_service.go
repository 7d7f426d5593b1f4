package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const inviteColumns = `id, organization_id, invited_by, token, role, email, max_uses, uses_count, expires_at, created_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(
		&inv.ID,
		&inv.OrgID,
		&inv.InvitedBy,
		&inv.Token,
		&inv.Role,
		&inv.Email,
		&inv.MaxUses,
		&inv.UsesCount,
		&inv.ExpiresAt,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInviteParams carries the optional constraints for a new invitation.
// Nil ExpiresInDays means the link never expires; nil MaxUses means
// unlimited redemptions; a non-nil Email restricts redemption to a user
// holding that address.
type CreateInviteParams struct {
	Role          MemberRole
	ExpiresInDays *int
	MaxUses       *int
	Email         *string
}

// CreateInvite mints a new invitation link. The actor must pass the
// manage-members policy. Multiple concurrent links for the same role may
// coexist; only email-guarded invitations are checked for duplicates.
func (s *Service) CreateInvite(ctx context.Context, orgID, actorUserID uuid.UUID, params CreateInviteParams) (*Invitation, string, error) {
	if !params.Role.IsValid() {
		return nil, "", ErrInvalidOrgRole
	}
	if params.MaxUses != nil && *params.MaxUses < 1 {
		return nil, "", fmt.Errorf("%w: max uses must be positive", ErrInvalidInviteParams)
	}
	if params.ExpiresInDays != nil && *params.ExpiresInDays < 1 {
		return nil, "", fmt.Errorf("%w: expiry days must be positive", ErrInvalidInviteParams)
	}

	if _, err := s.RequireManageMembers(ctx, actorUserID, orgID); err != nil {
		return nil, "", err
	}

	if params.Email != nil {
		email := strings.TrimSpace(*params.Email)
		if email == "" {
			return nil, "", fmt.Errorf("%w: email guard must not be empty", ErrInvalidInviteParams)
		}
		params.Email = &email

		if err := s.checkEmailGuardConflicts(ctx, orgID, email); err != nil {
			return nil, "", err
		}
	}

	var expiresAt *time.Time
	if params.ExpiresInDays != nil {
		t := s.now().Add(time.Duration(*params.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	// Token collisions are astronomically unlikely but the unique constraint
	// makes them observable; retry with a fresh token.
	for attempt := 0; attempt < 3; attempt++ {
		token, err := GenerateInviteToken()
		if err != nil {
			return nil, "", err
		}

		inv, err := scanInvitation(s.pool.QueryRow(ctx, `
			INSERT INTO organization_invitations (
			  organization_id, invited_by, token, role, email, max_uses, uses_count, expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
			RETURNING `+inviteColumns,
			orgID, actorUserID, token, params.Role, params.Email, params.MaxUses, expiresAt,
		))
		if err == nil {
			return inv, s.InviteURL(inv.Token), nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, "", fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil, "", fmt.Errorf("failed to create invitation: token collision retry exhausted")
}

// checkEmailGuardConflicts rejects an email-guarded invitation when the
// address already maps to a member or to another still-valid guarded link
func (s *Service) checkEmailGuardConflicts(ctx context.Context, orgID uuid.UUID, email string) error {
	var isMember bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM organization_members m
			INNER JOIN users u ON u.id = m.user_id
			WHERE m.organization_id = $1 AND lower(u.email) = lower($2)
		)
	`, orgID, email).Scan(&isMember)
	if err != nil {
		return fmt.Errorf("failed to check existing membership: %w", err)
	}
	if isMember {
		return ErrMemberAlreadyExists
	}

	var hasOutstanding bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM organization_invitations
			WHERE organization_id = $1
			  AND lower(email) = lower($2)
			  AND (expires_at IS NULL OR expires_at > $3)
			  AND (max_uses IS NULL OR uses_count < max_uses)
		)
	`, orgID, email, s.now()).Scan(&hasOutstanding)
	if err != nil {
		return fmt.Errorf("failed to check outstanding invitations: %w", err)
	}
	if hasOutstanding {
		return ErrInvitationAlreadyExists
	}

	return nil
}

// InviteURL builds the shareable URL embedding the token
func (s *Service) InviteURL(token string) string {
	return s.baseURL + "/register?invite=" + token
}

// GetInviteByToken looks up an invitation by exact token match. No validity
// filtering is applied; the caller decides how to react to expired or
// exhausted results.
func (s *Service) GetInviteByToken(ctx context.Context, token string) (*Invitation, error) {
	if !ValidateInviteTokenFormat(token) {
		return nil, ErrInvitationNotFound
	}

	inv, err := scanInvitation(s.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM organization_invitations WHERE token = $1`, token,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// ListActiveInvites returns the organization's still-redeemable invitations,
// newest first, each with its inviter resolved. Expired and exhausted links
// drop out of the listing but their rows remain until revoked or purged.
func (s *Service) ListActiveInvites(ctx context.Context, orgID, actorUserID uuid.UUID) ([]InviteListItem, error) {
	if _, err := s.RequireManageMembers(ctx, actorUserID, orgID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.token,
		  i.role,
		  i.email,
		  i.max_uses,
		  i.uses_count,
		  i.expires_at,
		  i.created_at,
		  u.id,
		  u.name
		FROM organization_invitations i
		INNER JOIN users u ON u.id = i.invited_by
		WHERE i.organization_id = $1
		  AND (i.expires_at IS NULL OR i.expires_at > $2)
		  AND (i.max_uses IS NULL OR i.uses_count < i.max_uses)
		ORDER BY i.created_at DESC
	`, orgID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invites []InviteListItem
	for rows.Next() {
		var inv InviteListItem
		if err := rows.Scan(
			&inv.ID,
			&inv.Token,
			&inv.Role,
			&inv.Email,
			&inv.MaxUses,
			&inv.UsesCount,
			&inv.ExpiresAt,
			&inv.CreatedAt,
			&inv.Inviter.ID,
			&inv.Inviter.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}

	return invites, nil
}

// RedeemInvite exchanges a token for a membership. The membership insert and
// the use-count increment commit in one transaction; the increment is
// conditional on the quota so concurrent redemptions of a nearly exhausted
// link can never over-admit.
func (s *Service) RedeemInvite(ctx context.Context, token string, userID uuid.UUID) (*Org, error) {
	if !ValidateInviteTokenFormat(token) {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidInvitation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	inv, err := scanInvitation(tx.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM organization_invitations WHERE token = $1 FOR UPDATE`, token,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown token", ErrInvalidInvitation)
		}
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}

	now := s.now()
	if inv.IsExpired(now) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidInvitation)
	}
	if inv.IsMaxUsesReached() {
		return nil, fmt.Errorf("%w: use quota reached", ErrInvalidInvitation)
	}

	if inv.Email != nil {
		var userEmail string
		if err := tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		if !strings.EqualFold(userEmail, *inv.Email) {
			return nil, fmt.Errorf("%w: email does not match", ErrInvalidInvitation)
		}
	}

	var alreadyMember bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organization_members
			WHERE organization_id = $1 AND user_id = $2
		)
	`, inv.OrgID, userID).Scan(&alreadyMember); err != nil {
		return nil, fmt.Errorf("failed to check existing membership: %w", err)
	}
	if alreadyMember {
		return nil, fmt.Errorf("%w: already a member of this organization", ErrInvalidInvitation)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
	`, inv.OrgID, userID, inv.Role); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: already a member of this organization", ErrInvalidInvitation)
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	// Conditional increment is the authoritative quota guard: a lost-update
	// race on uses_count cannot admit more than max_uses members.
	tag, err := tx.Exec(ctx, `
		UPDATE organization_invitations
		SET uses_count = uses_count + 1
		WHERE id = $1
		  AND (max_uses IS NULL OR uses_count < max_uses)
	`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment invitation uses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: use quota reached", ErrInvalidInvitation)
	}

	org, err := scanOrg(tx.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, inv.OrgID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return org, nil
}

// RevokeInvite hard-deletes an invitation. Allowed at any time, before or
// after use; the link simply stops resolving.
func (s *Service) RevokeInvite(ctx context.Context, orgID, inviteID, actorUserID uuid.UUID) error {
	if _, err := s.RequireManageMembers(ctx, actorUserID, orgID); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM organization_invitations
		WHERE id = $1 AND organization_id = $2
	`, inviteID, orgID)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationNotFound
	}

	return nil
}
