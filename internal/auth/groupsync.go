package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openstatushq/entitlements/internal/metrics"
	"github.com/openstatushq/entitlements/internal/models"
)

// GroupSyncStore defines the interface for group sync persistence operations.
type GroupSyncStore interface {
	GetSSOProvider(ctx context.Context, id uuid.UUID) (*models.SSOProvider, error)
	// GetMembershipByUserAndOrg returns nil, nil when the user is not a member.
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error)
	CreateMembership(ctx context.Context, m *models.OrgMembership) error
	UpdateMembershipRole(ctx context.Context, membershipID uuid.UUID, role models.Role) error
}

// GroupSync applies an SSO provider's group mapping to memberships at login.
type GroupSync struct {
	store        GroupSyncStore
	metrics      metrics.Metrics
	logger       zerolog.Logger
	fallbackRole models.Role
}

// NewGroupSync creates a new GroupSync instance. m may be nil.
func NewGroupSync(store GroupSyncStore, m metrics.Metrics, logger zerolog.Logger) *GroupSync {
	return &GroupSync{
		store:        store,
		metrics:      metrics.OrNoop(m),
		logger:       logger.With().Str("component", "group_sync").Logger(),
		fallbackRole: models.RoleMember,
	}
}

// SyncFromClaims extracts groups from verified token claims using the
// provider's groups claim and syncs the membership.
func (gs *GroupSync) SyncFromClaims(ctx context.Context, providerID, userID uuid.UUID, claims jwt.MapClaims) (*models.GroupSyncResult, error) {
	provider, err := gs.store.GetSSOProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get SSO provider: %w", err)
	}
	return gs.sync(ctx, provider, userID, ExtractGroups(claims, provider.GroupMapping.GroupsClaim))
}

// SyncMembership resolves the user's role from groups and creates or updates
// their membership in the provider's organization.
//
// A new member gets the resolved role, or member when none resolves. An
// existing member is left alone unless mapping is enabled with sync on
// login, an owner is never demoted, and the role is only written when it
// changes.
func (gs *GroupSync) SyncMembership(ctx context.Context, providerID, userID uuid.UUID, groups []string) (*models.GroupSyncResult, error) {
	provider, err := gs.store.GetSSOProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get SSO provider: %w", err)
	}
	return gs.sync(ctx, provider, userID, groups)
}

func (gs *GroupSync) sync(ctx context.Context, provider *models.SSOProvider, userID uuid.UUID, groups []string) (*models.GroupSyncResult, error) {
	orgID := provider.OrganizationID
	cfg := provider.GroupMapping
	result := &models.GroupSyncResult{
		UserID:         userID,
		OrgID:          orgID,
		GroupsReceived: groups,
	}

	role, resolved := ResolveRoleFromGroups(groups, cfg)
	if resolved {
		result.ResolvedRole = rolePtr(role)
	}

	log := gs.logger.With().
		Str("user_id", userID.String()).
		Str("org_id", orgID.String()).
		Logger()

	existing, err := gs.store.GetMembershipByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}

	if existing == nil {
		if !resolved {
			role = gs.fallbackRole
		}
		m := models.NewOrgMembership(userID, orgID, role)
		if err := gs.store.CreateMembership(ctx, m); err != nil {
			return nil, fmt.Errorf("create membership: %w", err)
		}
		result.Role = rolePtr(role)
		log.Info().Str("role", string(role)).Int("groups", len(groups)).Msg("created membership from SSO groups")
		return gs.finish(result, models.GroupSyncCreated), nil
	}

	result.PreviousRole = rolePtr(existing.Role)
	result.Role = rolePtr(existing.Role)

	switch {
	case !cfg.Enabled || !cfg.SyncOnLogin:
		log.Debug().Msg("role sync on login disabled, keeping existing role")
		return gs.finish(result, models.GroupSyncSkipped), nil
	case !resolved || existing.Role == role:
		return gs.finish(result, models.GroupSyncUnchanged), nil
	case existing.IsOwner():
		log.Info().Str("resolved_role", string(role)).Msg("not demoting owner from SSO groups")
		return gs.finish(result, models.GroupSyncOwnerKept), nil
	}

	if err := gs.store.UpdateMembershipRole(ctx, existing.ID, role); err != nil {
		return nil, fmt.Errorf("update membership role: %w", err)
	}
	result.Role = rolePtr(role)
	log.Info().
		Str("old_role", string(existing.Role)).
		Str("new_role", string(role)).
		Msg("updated membership role from SSO groups")
	return gs.finish(result, models.GroupSyncUpdated), nil
}

func (gs *GroupSync) finish(result *models.GroupSyncResult, action models.GroupSyncAction) *models.GroupSyncResult {
	result.Action = action
	gs.metrics.IncGroupSync(string(action))
	return result
}

func rolePtr(r models.Role) *models.Role {
	return &r
}
