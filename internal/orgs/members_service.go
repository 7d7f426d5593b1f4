package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrMemberAlreadyExists is returned when the target user already holds
	// a membership in the organization
	ErrMemberAlreadyExists = errors.New("user is already a member of this organization")

	// ErrMemberNotFound is returned when the target user has no membership row
	ErrMemberNotFound = errors.New("user is not a member of this organization")

	// ErrCannotModifyOwner is returned when a role update or removal targets
	// the organization owner
	ErrCannotModifyOwner = errors.New("cannot modify the organization owner")
)

// ListMembers retrieves all members of an organization, each resolved with
// their user record. The actor must pass the view policy.
func (s *Service) ListMembers(ctx context.Context, orgID, actorUserID uuid.UUID) ([]MemberInfo, error) {
	if _, err := s.RequireMember(ctx, actorUserID, orgID); err != nil {
		return nil, err
	}

	query := `
		SELECT m.user_id, u.name, u.email, m.role, m.created_at
		FROM organization_members m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var member MemberInfo
		if err := rows.Scan(&member.UserID, &member.Name, &member.Email, &member.Role, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}

// AddMember resolves the email to an existing user and inserts a membership
// row. Fails with ErrUserNotFound for an unknown email and
// ErrMemberAlreadyExists when the (organization, user) pair already exists.
func (s *Service) AddMember(ctx context.Context, orgID, actorUserID uuid.UUID, email string, role MemberRole) (*Membership, error) {
	if !role.IsValid() {
		return nil, ErrInvalidOrgRole
	}

	if _, err := s.RequireManageMembers(ctx, actorUserID, orgID); err != nil {
		return nil, err
	}

	userID, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	var membership Membership
	err = s.pool.QueryRow(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, user_id, role, created_at
	`, orgID, userID, role).Scan(
		&membership.ID,
		&membership.OrgID,
		&membership.UserID,
		&membership.Role,
		&membership.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrMemberAlreadyExists
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return &membership, nil
}

// UpdateMemberRole overwrites a member's role. The owner's privilege is not
// expressed through membership rows, so any attempt to retarget the owner
// fails with ErrCannotModifyOwner regardless of the actor.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, newRole MemberRole) (previousRole MemberRole, err error) {
	if !newRole.IsValid() {
		return "", ErrInvalidOrgRole
	}

	if _, err := s.RequireManageMembers(ctx, actorUserID, orgID); err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var ownerID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT owner_id FROM organizations WHERE id = $1`, orgID).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrgNotFound
		}
		return "", fmt.Errorf("failed to load organization: %w", err)
	}
	if ownerID == targetUserID {
		return "", ErrCannotModifyOwner
	}

	var currentRole MemberRole
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
		FOR UPDATE
	`, orgID, targetUserID).Scan(&currentRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE organization_members
		SET role = $3
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, targetUserID, newRole); err != nil {
		return "", fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return currentRole, nil
}

// RemoveMember deletes a membership row. Removing the owner fails with
// ErrCannotModifyOwner; removing a user who is not a member is an idempotent
// no-op and reports removed=false.
func (s *Service) RemoveMember(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID) (bool, error) {
	if _, err := s.RequireManageMembers(ctx, actorUserID, orgID); err != nil {
		return false, err
	}

	var ownerID uuid.UUID
	if err := s.pool.QueryRow(ctx, `SELECT owner_id FROM organizations WHERE id = $1`, orgID).Scan(&ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrOrgNotFound
		}
		return false, fmt.Errorf("failed to load organization: %w", err)
	}
	if ownerID == targetUserID {
		return false, ErrCannotModifyOwner
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, targetUserID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
