package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkwebforge/tracklet/internal/orgs"
	"github.com/rkwebforge/tracklet/internal/validation"
)

var (
	// ErrProjectNotFound is returned when a project doesn't exist
	ErrProjectNotFound = errors.New("project not found")

	// ErrKeyConflict is returned when the project key is taken within the org
	ErrKeyConflict = errors.New("project key already in use")

	// ErrInvalidKey is returned when the project key fails format validation
	ErrInvalidKey = errors.New("invalid project key")

	ErrInvalidProjectRole = errors.New("invalid project role")

	// ErrMemberAlreadyExists is returned when the user already has a
	// membership row in the project
	ErrMemberAlreadyExists = errors.New("user is already a project member")

	// ErrMemberNotFound is returned when the target has no membership row
	ErrMemberNotFound = errors.New("project member not found")

	// ErrNotOrgMember is returned when adding a project member who does not
	// belong to the parent organization
	ErrNotOrgMember = errors.New("user is not a member of the organization")

	// ErrInsufficientPermissions is returned when the actor's relation does
	// not allow the operation
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// Service provides project and project membership operations. Organization
// roles are resolved through the org service so owner derivation stays in
// one place.
type Service struct {
	pool   *pgxpool.Pool
	orgSvc *orgs.Service
}

func NewService(pool *pgxpool.Pool, orgSvc *orgs.Service) *Service {
	return &Service{pool: pool, orgSvc: orgSvc}
}

const projectColumns = `id, organization_id, name, key, description, owner_id, status, created_at, updated_at`

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.Name,
		&p.Key,
		&p.Description,
		&p.OwnerID,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a project by ID
func (s *Service) GetByID(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListByOrg returns the organization's projects visible to the user. Any
// org member sees every project; a user whose only tie is a project
// membership sees just those projects.
func (s *Service) ListByOrg(ctx context.Context, orgID, userID uuid.UUID, includeArchived bool) ([]Project, error) {
	orgRole, err := s.orgSvc.EffectiveRoleOf(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE organization_id = $1`
	args := []any{orgID}

	if !orgRole.HasAtLeast(orgs.EffectiveMember) {
		query += ` AND (owner_id = $2 OR id IN (SELECT project_id FROM project_members WHERE user_id = $2))`
		args = append(args, userID)
	}
	if !includeArchived {
		query += ` AND status = '` + string(StatusActive) + `'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Create inserts a project and its creator's manager membership in one
// transaction, so a project can never exist without a managing member.
func (s *Service) Create(ctx context.Context, orgID, creatorID uuid.UUID, name, key, description string) (*Project, error) {
	if _, err := s.orgSvc.RequireMember(ctx, creatorID, orgID); err != nil {
		return nil, err
	}

	key = strings.ToUpper(strings.TrimSpace(key))
	if err := validation.ValidateProjectKey(key); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		INSERT INTO projects (organization_id, name, key, description, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+projectColumns+`
	`, orgID, name, key, description, creatorID)

	p, err := scanProject(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrKeyConflict
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`, p.ID, creatorID, RoleManager); err != nil {
		return nil, fmt.Errorf("failed to add creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return p, nil
}

// Update modifies a project's name, description and status
func (s *Service) Update(ctx context.Context, userID, projectID uuid.UUID, name, description string, status Status) (*Project, error) {
	rel, p, err := s.relationAndProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !CanUpdate(rel) {
		return nil, ErrInsufficientPermissions
	}

	if !status.IsValid() {
		status = p.Status
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE projects
		SET name = $2, description = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+projectColumns+`
	`, projectID, name, description, status)

	updated, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return updated, nil
}

// Delete removes a project and cascades to its members, boards and tasks
func (s *Service) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	rel, _, err := s.relationAndProject(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !CanDelete(rel) {
		return ErrInsufficientPermissions
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Relation resolves the user's standing toward the project: project
// membership, creator status and parent-organization role.
func (s *Service) Relation(ctx context.Context, userID, projectID uuid.UUID) (Relation, error) {
	rel, _, err := s.relationAndProject(ctx, userID, projectID)
	return rel, err
}

func (s *Service) relationAndProject(ctx context.Context, userID, projectID uuid.UUID) (Relation, *Project, error) {
	p, err := s.GetByID(ctx, projectID)
	if err != nil {
		return Relation{}, nil, err
	}

	rel := Relation{IsProjectOwner: p.OwnerID == userID}

	var role ProjectRole
	err = s.pool.QueryRow(ctx, `
		SELECT role FROM project_members
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&role)
	switch {
	case err == nil:
		rel.ProjectRole = role
	case errors.Is(err, pgx.ErrNoRows):
		rel.ProjectRole = RoleNone
	default:
		return Relation{}, nil, fmt.Errorf("failed to load project role: %w", err)
	}

	orgRole, err := s.orgSvc.EffectiveRoleOf(ctx, userID, p.OrgID)
	if err != nil {
		return Relation{}, nil, err
	}
	rel.OrgRole = orgRole

	return rel, p, nil
}

// ListMembers returns project members with their user records
func (s *Service) ListMembers(ctx context.Context, userID, projectID uuid.UUID) ([]MemberInfo, error) {
	rel, _, err := s.relationAndProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !CanView(rel) {
		return nil, ErrInsufficientPermissions
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pm.user_id, u.name, u.email, pm.role, pm.created_at
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY pm.created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var m MemberInfo
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember adds an organization member to the project. Users outside the
// parent organization cannot hold project memberships.
func (s *Service) AddMember(ctx context.Context, actorID, projectID, targetUserID uuid.UUID, role ProjectRole) (*Membership, error) {
	if !role.IsValid() {
		return nil, ErrInvalidProjectRole
	}

	rel, p, err := s.relationAndProject(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if !CanManageMembers(rel) {
		return nil, ErrInsufficientPermissions
	}

	targetOrgRole, err := s.orgSvc.EffectiveRoleOf(ctx, targetUserID, p.OrgID)
	if err != nil {
		return nil, err
	}
	if !targetOrgRole.HasAtLeast(orgs.EffectiveMember) {
		return nil, ErrNotOrgMember
	}

	var membership Membership
	err = s.pool.QueryRow(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, user_id, role, created_at
	`, projectID, targetUserID, role).Scan(
		&membership.ID,
		&membership.ProjectID,
		&membership.UserID,
		&membership.Role,
		&membership.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, ErrMemberAlreadyExists
		}
		return nil, fmt.Errorf("failed to add project member: %w", err)
	}

	return &membership, nil
}

// UpdateMemberRole changes a project member's role. The project owner's
// override privilege comes from projects.owner_id, not from the membership
// row, so their row may be edited like any other.
func (s *Service) UpdateMemberRole(ctx context.Context, actorID, projectID, targetUserID uuid.UUID, newRole ProjectRole) error {
	if !newRole.IsValid() {
		return ErrInvalidProjectRole
	}

	rel, _, err := s.relationAndProject(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	if !CanManageMembers(rel) {
		return ErrInsufficientPermissions
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE project_members
		SET role = $3
		WHERE project_id = $1 AND user_id = $2
	`, projectID, targetUserID, newRole)
	if err != nil {
		return fmt.Errorf("failed to update project member role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// RemoveMember deletes a project membership row. Removing a non-member is
// an idempotent no-op.
func (s *Service) RemoveMember(ctx context.Context, actorID, projectID, targetUserID uuid.UUID) (bool, error) {
	rel, _, err := s.relationAndProject(ctx, actorID, projectID)
	if err != nil {
		return false, err
	}
	if !CanManageMembers(rel) {
		return false, ErrInsufficientPermissions
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM project_members
		WHERE project_id = $1 AND user_id = $2
	`, projectID, targetUserID)
	if err != nil {
		return false, fmt.Errorf("failed to remove project member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
