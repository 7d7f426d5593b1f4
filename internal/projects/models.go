package projects

import (
	"time"

	"github.com/google/uuid"

	"github.com/rkwebforge/tracklet/internal/orgs"
)

// ProjectRole is the role stored on a project membership row. Project roles
// are a separate ladder from organization roles: an org admin has override
// privilege without holding a project membership at all.
type ProjectRole string

const (
	RoleManager ProjectRole = "manager"
	RoleMember  ProjectRole = "member"

	// RoleNone is never stored; it marks the absence of a membership in a
	// resolved Relation.
	RoleNone ProjectRole = ""
)

func (r ProjectRole) IsValid() bool {
	return r == RoleManager || r == RoleMember
}

// Status of a project. Archived projects stay readable but are excluded
// from default listings.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusArchived
}

// Project represents a project within an organization
type Project struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"organization_id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership represents a user's membership in a project
type Membership struct {
	ID        uuid.UUID   `json:"id"`
	ProjectID uuid.UUID   `json:"project_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      ProjectRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// MemberInfo is a project member resolved with their user record
type MemberInfo struct {
	UserID    uuid.UUID   `json:"user_id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      ProjectRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// Relation is a user's resolved standing toward a project: their project
// membership (if any), whether they created the project, and their effective
// role in the parent organization. Policies are pure functions over this
// snapshot, so one resolution serves any number of checks.
type Relation struct {
	IsProjectOwner bool
	ProjectRole    ProjectRole
	OrgRole        orgs.EffectiveRole
}

// IsProjectMember reports whether the user holds any project membership row
func (rel Relation) IsProjectMember() bool {
	return rel.ProjectRole != RoleNone
}
