package orgs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidOrgRole = errors.New("invalid organization role")

	// ErrInvitationNotFound is returned when no invitation matches a token or id
	ErrInvitationNotFound = errors.New("invitation not found")

	// ErrInvalidInviteParams is returned when the max-uses, expiry or email
	// guard values fail validation before an invitation is created
	ErrInvalidInviteParams = errors.New("invalid invitation parameters")

	// ErrInvalidInvitation is returned when redemption is attempted against
	// an expired, exhausted or otherwise unusable invitation
	ErrInvalidInvitation = errors.New("invitation is no longer valid")

	// ErrInvitationAlreadyExists is returned when an email-guarded invitation
	// for the same address is still outstanding
	ErrInvitationAlreadyExists = errors.New("an invitation for this email already exists")
)

// Invitation is a shareable join link. The token is a bearer credential:
// anyone holding it can redeem, constrained only by the optional expiry,
// use quota and email guard. Expiry and exhaustion are derived at read time;
// there is no stored status column.
type Invitation struct {
	ID        uuid.UUID  `json:"id"`
	OrgID     uuid.UUID  `json:"organization_id"`
	InvitedBy uuid.UUID  `json:"invited_by"`
	Token     string     `json:"token"`
	Role      MemberRole `json:"role"`
	Email     *string    `json:"email,omitempty"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	UsesCount int        `json:"uses_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the invitation's expiry, if set, has passed
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// IsMaxUsesReached reports whether the use quota, if set, is exhausted.
// Once true it stays true: uses_count never decreases and max_uses never
// changes after creation.
func (i *Invitation) IsMaxUsesReached() bool {
	return i.MaxUses != nil && i.UsesCount >= *i.MaxUses
}

// IsValid reports whether the invitation can still be redeemed
func (i *Invitation) IsValid(now time.Time) bool {
	return !i.IsExpired(now) && !i.IsMaxUsesReached()
}

// InviteListItem is the listing shape for active invitations, with the
// inviter resolved
type InviteListItem struct {
	ID        uuid.UUID  `json:"id"`
	Token     string     `json:"token"`
	Role      MemberRole `json:"role"`
	Email     *string    `json:"email,omitempty"`
	MaxUses   *int       `json:"max_uses"`
	UsesCount int        `json:"uses_count"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	Inviter   Inviter    `json:"inviter"`
}

// Inviter identifies the member who created an invitation
type Inviter struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
