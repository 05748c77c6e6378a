// Package studio manages tenants: studios, their clients, memberships,
// and invitations.
package studio

import (
	"errors"
	"time"

	"github.com/atelierhq/atelier/pkg/identity"
)

var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember indicates the user already has a membership
	ErrAlreadyMember = errors.New("user is already a member")
	// ErrInvalidRole indicates a role name not valid for the membership kind
	ErrInvalidRole = errors.New("invalid role for membership")
	// ErrInvitationExpired indicates the invitation has passed its expiry
	ErrInvitationExpired = errors.New("invitation expired")
	// ErrInvitationAccepted indicates the invitation was already accepted
	ErrInvitationAccepted = errors.New("invitation already accepted")
)

// Studio is a design studio tenant
type Studio struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is a client organization belonging to a studio
type Client struct {
	ID        int64     `json:"id"`
	StudioID  int64     `json:"studio_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a user's membership in a studio
type Member struct {
	UserID   int64         `json:"user_id"`
	StudioID int64         `json:"studio_id"`
	Role     identity.Role `json:"role"`
	JoinedAt time.Time     `json:"joined_at"`
}

// ClientUser is a user's membership in a client organization
type ClientUser struct {
	UserID    int64         `json:"user_id"`
	ClientID  int64         `json:"client_id"`
	Role      identity.Role `json:"role"`
	IsPrimary bool          `json:"is_primary"`
	AddedAt   time.Time     `json:"added_at"`
}

// Invitation invites an email address into a studio or a client
// organization. Exactly one of StudioID and ClientID is set.
type Invitation struct {
	ID         int64         `json:"id"`
	Email      string        `json:"email"`
	StudioID   *int64        `json:"studio_id,omitempty"`
	ClientID   *int64        `json:"client_id,omitempty"`
	Role       identity.Role `json:"role"`
	ExpiresAt  time.Time     `json:"expires_at"`
	AcceptedAt *time.Time    `json:"accepted_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// IsExpired reports whether the invitation has passed its expiry
func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// studioRoles are the roles valid for studio memberships
func validStudioRole(role identity.Role) bool {
	return role == identity.RoleStudioAdmin || role == identity.RoleStudioMember
}

// clientRoles are the roles valid for client memberships
func validClientRole(role identity.Role) bool {
	return role == identity.RoleClientAdmin || role == identity.RoleClientMember
}
