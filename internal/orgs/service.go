package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rkwebforge/tracklet/internal/validation"
	"github.com/rs/zerolog/log"
)

var (
	// ErrOrgNotFound is returned when an organization is not found
	ErrOrgNotFound = errors.New("organization not found")

	// ErrSlugConflict is returned when an organization slug already exists
	ErrSlugConflict = errors.New("organization slug already exists")

	// ErrNotMember is returned when a user is not a member of an organization
	ErrNotMember = errors.New("user is not a member of this organization")

	// ErrInsufficientPermissions is returned when a user lacks required permissions
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrUserNotFound is returned when an email does not resolve to a user
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidOrgName is returned when an organization name yields no slug
	ErrInvalidOrgName = errors.New("organization name must contain letters or digits")
)

// Service provides organization, membership and invitation operations.
// All time comparisons go through the injected clock.
type Service struct {
	pool    *pgxpool.Pool
	baseURL string
	now     func() time.Time
}

// NewService creates a new organization service. baseURL is used to build
// shareable invitation URLs.
func NewService(pool *pgxpool.Pool, baseURL string) *Service {
	return &Service{
		pool:    pool,
		baseURL: baseURL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

const orgColumns = `id, name, slug, description, owner_id, created_at, updated_at`

func scanOrg(row pgx.Row) (*Org, error) {
	var org Org
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Description,
		&org.OwnerID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetByID retrieves an organization by ID
func (s *Service) GetByID(ctx context.Context, orgID uuid.UUID) (*Org, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrg(s.pool.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetBySlug retrieves an organization by slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Org, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE slug = $1`

	org, err := scanOrg(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// ListUserOrgs retrieves all organizations a user belongs to, with the
// user's effective role in each
func (s *Service) ListUserOrgs(ctx context.Context, userID uuid.UUID) ([]OrgWithRole, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.description, o.owner_id, o.created_at, o.updated_at, m.role
		FROM organizations o
		INNER JOIN organization_members m ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orgs: %w", err)
	}
	defer rows.Close()

	var orgs []OrgWithRole
	for rows.Next() {
		var org OrgWithRole
		var memberRole MemberRole
		err := rows.Scan(
			&org.ID,
			&org.Name,
			&org.Slug,
			&org.Description,
			&org.OwnerID,
			&org.CreatedAt,
			&org.UpdatedAt,
			&memberRole,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan org: %w", err)
		}
		org.Role = memberRole.Effective()
		if org.OwnerID == userID {
			org.Role = EffectiveOwner
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating org rows: %w", err)
	}

	return orgs, nil
}

// Create creates a new organization owned by ownerID, deriving a unique
// URL-safe slug from the name, and inserts the owner's admin membership row.
// Both inserts happen in one transaction.
func (s *Service) Create(ctx context.Context, name, description string, ownerID uuid.UUID) (*Org, error) {
	base := validation.Slugify(name)
	if base == "" {
		return nil, ErrInvalidOrgName
	}

	// A concurrent creation with the same name can steal the candidate slug
	// between the availability check and the insert; the unique constraint
	// catches that and we retry with a fresh candidate.
	for attempt := 0; attempt < 3; attempt++ {
		slug, err := s.availableSlug(ctx, base)
		if err != nil {
			return nil, err
		}

		org, err := s.createWithSlug(ctx, name, slug, description, ownerID)
		if err == nil {
			return org, nil
		}
		if errors.Is(err, ErrSlugConflict) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to create organization: slug retry exhausted")
}

// availableSlug returns the first free slug among base, base-1, base-2, ...
func (s *Service) availableSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for counter := 1; ; counter++ {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM organizations WHERE slug = $1)`, slug,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check slug availability: %w", err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *Service) createWithSlug(ctx context.Context, name, slug, description string, ownerID uuid.UUID) (*Org, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO organizations (name, slug, description, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + orgColumns

	org, err := scanOrg(tx.QueryRow(ctx, query, name, slug, description, ownerID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	// The owner also gets a regular admin membership row so that membership
	// joins see them; owner privilege itself is derived from owner_id.
	memberQuery := `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
	`

	if _, err := tx.Exec(ctx, memberQuery, org.ID, ownerID, RoleAdmin); err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return org, nil
}

// Update changes an organization's name and description. The slug is stable
// after creation.
func (s *Service) Update(ctx context.Context, orgID uuid.UUID, name, description string) (*Org, error) {
	query := `
		UPDATE organizations
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orgColumns

	org, err := scanOrg(s.pool.QueryRow(ctx, query, orgID, name, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// Delete removes an organization. Memberships, invitations and projects
// cascade at the database level.
func (s *Service) Delete(ctx context.Context, orgID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrgNotFound
	}
	return nil
}

// EffectiveRoleOf resolves a user's effective role in an organization:
// owner if organizations.owner_id matches, otherwise the membership role,
// otherwise EffectiveNone. Returns ErrOrgNotFound for an unknown org.
func (s *Service) EffectiveRoleOf(ctx context.Context, userID, orgID uuid.UUID) (EffectiveRole, error) {
	var ownerID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM organizations WHERE id = $1`, orgID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EffectiveNone, ErrOrgNotFound
		}
		return EffectiveNone, fmt.Errorf("failed to load organization: %w", err)
	}

	if ownerID == userID {
		return EffectiveOwner, nil
	}

	var role MemberRole
	err = s.pool.QueryRow(ctx, `
		SELECT role FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EffectiveNone, nil
		}
		return EffectiveNone, fmt.Errorf("failed to check org membership: %w", err)
	}

	return role.Effective(), nil
}

// RequireMember resolves the user's effective role and fails with
// ErrNotMember when the user has no relationship with the organization
func (s *Service) RequireMember(ctx context.Context, userID, orgID uuid.UUID) (EffectiveRole, error) {
	role, err := s.EffectiveRoleOf(ctx, userID, orgID)
	if err != nil {
		return EffectiveNone, err
	}
	if !CanViewOrg(role) {
		log.Debug().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Msg("RBAC: user is not a member of organization")
		return EffectiveNone, ErrNotMember
	}
	return role, nil
}

// RequireManageMembers enforces the manage-members policy for the user
func (s *Service) RequireManageMembers(ctx context.Context, userID, orgID uuid.UUID) (EffectiveRole, error) {
	role, err := s.RequireMember(ctx, userID, orgID)
	if err != nil {
		return EffectiveNone, err
	}
	if !CanManageMembers(role) {
		log.Warn().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Str("user_role", role.String()).
			Msg("RBAC: insufficient permissions")
		return role, ErrInsufficientPermissions
	}
	return role, nil
}

// userByEmail resolves an email address to a user id, treating the users
// table as an opaque identity directory
func (s *Service) userByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	return userID, nil
}
