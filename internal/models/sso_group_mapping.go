package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GroupRoleMapping maps an identity provider group to a role. Group may be
// "*" to match everyone or end in "*" to match a prefix.
type GroupRoleMapping struct {
	Group string `json:"group" yaml:"group"`
	Role  Role   `json:"role" yaml:"role"`
}

// GroupRoleMappingConfig is the group-to-role policy of one SSO provider.
type GroupRoleMappingConfig struct {
	Enabled     bool               `json:"enabled" yaml:"enabled"`
	GroupsClaim string             `json:"groups_claim,omitempty" yaml:"groups_claim"`
	DefaultRole *Role              `json:"default_role,omitempty" yaml:"default_role"`
	SyncOnLogin bool               `json:"sync_on_login" yaml:"sync_on_login"`
	Mappings    []GroupRoleMapping `json:"mappings" yaml:"mappings"`
}

// Validate checks that every role named by the config exists and that no
// mapping has an empty group.
func (c GroupRoleMappingConfig) Validate() error {
	if c.DefaultRole != nil && !IsValidRole(string(*c.DefaultRole)) {
		return fmt.Errorf("invalid default role %q", *c.DefaultRole)
	}
	for i, m := range c.Mappings {
		if strings.TrimSpace(m.Group) == "" {
			return fmt.Errorf("mapping %d: group is required", i)
		}
		if !IsValidRole(string(m.Role)) {
			return fmt.Errorf("mapping %d: invalid role %q", i, m.Role)
		}
	}
	return nil
}

// SSOProvider is an organization's identity provider configuration.
type SSOProvider struct {
	ID             uuid.UUID              `json:"id"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	Name           string                 `json:"name"`
	Issuer         string                 `json:"issuer"`
	GroupMapping   GroupRoleMappingConfig `json:"group_mapping"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewSSOProvider creates a new SSOProvider with group mapping disabled.
func NewSSOProvider(orgID uuid.UUID, name, issuer string) *SSOProvider {
	now := time.Now()
	return &SSOProvider{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Issuer:         issuer,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// GroupSyncAction records what group sync did to a membership.
type GroupSyncAction string

const (
	GroupSyncCreated   GroupSyncAction = "created"
	GroupSyncUpdated   GroupSyncAction = "updated"
	GroupSyncUnchanged GroupSyncAction = "unchanged"
	// GroupSyncSkipped means sync on login is off for an existing member.
	GroupSyncSkipped GroupSyncAction = "skipped"
	// GroupSyncOwnerKept means the resolved role would have demoted an owner.
	GroupSyncOwnerKept GroupSyncAction = "owner_kept"
)

// GroupSyncResult represents the result of syncing a user's groups.
type GroupSyncResult struct {
	UserID         uuid.UUID       `json:"user_id"`
	OrgID          uuid.UUID       `json:"org_id"`
	GroupsReceived []string        `json:"groups_received"`
	ResolvedRole   *Role           `json:"resolved_role,omitempty"`
	PreviousRole   *Role           `json:"previous_role,omitempty"`
	Role           *Role           `json:"role,omitempty"`
	Action         GroupSyncAction `json:"action"`
}
