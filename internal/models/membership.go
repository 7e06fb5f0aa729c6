package models

import (
	"time"

	"github.com/google/uuid"
)

// Role defines the role of a user within an organization.
type Role string

const (
	// RoleOwner has full control over the organization.
	RoleOwner Role = "owner"
	// RoleAdmin can manage members and all resources.
	RoleAdmin Role = "admin"
	// RoleMember can create and manage resources.
	RoleMember Role = "member"
	// RoleViewer has view-only access.
	RoleViewer Role = "viewer"
)

// ValidRoles returns all valid organization roles.
func ValidRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}
}

// IsValidRole checks if the given role is a valid organization role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}

// OrgMembership represents a user's membership in an organization.
type OrgMembership struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrgMembership creates a new OrgMembership.
func NewOrgMembership(userID, orgID uuid.UUID, role Role) *OrgMembership {
	now := time.Now()
	return &OrgMembership{
		ID:        uuid.New(),
		UserID:    userID,
		OrgID:     orgID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOwner returns true if the membership role is owner.
func (m *OrgMembership) IsOwner() bool {
	return m.Role == RoleOwner
}

// IsAdmin returns true if the membership role is admin or owner.
func (m *OrgMembership) IsAdmin() bool {
	return m.Role == RoleAdmin || m.Role == RoleOwner
}
