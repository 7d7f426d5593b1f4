package orgs

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole is the role stored on a membership row. Ownership is not a
// membership role: the owner is recorded on the organization itself and
// resolved separately (see EffectiveRole).
type MemberRole string

const (
	RoleAdmin   MemberRole = "admin"
	RoleManager MemberRole = "manager"
	RoleMember  MemberRole = "member"
)

// IsValid reports whether the role is one of the storable membership roles
func (r MemberRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// EffectiveRole is a user's resolved privilege within an organization,
// totally ordered so policy checks reduce to a single comparison. Owner
// sits above admin and is derived from organizations.owner_id, never from
// a membership row.
type EffectiveRole int

const (
	EffectiveNone EffectiveRole = iota
	EffectiveMember
	EffectiveManager
	EffectiveAdmin
	EffectiveOwner
)

// HasAtLeast reports whether the role meets the required privilege level
func (r EffectiveRole) HasAtLeast(required EffectiveRole) bool {
	return r >= required
}

func (r EffectiveRole) String() string {
	switch r {
	case EffectiveMember:
		return "member"
	case EffectiveManager:
		return "manager"
	case EffectiveAdmin:
		return "admin"
	case EffectiveOwner:
		return "owner"
	default:
		return "none"
	}
}

// Effective maps a stored membership role to its effective privilege level
func (r MemberRole) Effective() EffectiveRole {
	switch r {
	case RoleAdmin:
		return EffectiveAdmin
	case RoleManager:
		return EffectiveManager
	case RoleMember:
		return EffectiveMember
	default:
		return EffectiveNone
	}
}

// Org represents an organization in the system
type Org struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership represents a user's membership in an organization
type Membership struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     uuid.UUID  `json:"organization_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Role      MemberRole `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// OrgWithRole combines org information with the user's effective role
type OrgWithRole struct {
	Org
	Role EffectiveRole `json:"-"`
}

// MemberInfo represents a member of an organization resolved with their user
type MemberInfo struct {
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      MemberRole `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}
