package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openstatushq/entitlements/internal/license"
	"github.com/openstatushq/entitlements/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateOrganization creates a new organization.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO organizations (id, name, slug, plan, license_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, org.ID, org.Name, org.Slug, org.Plan, org.LicenseID, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganization returns an organization by ID.
func (db *DB) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, slug, plan, COALESCE(license_id, ''), created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.Plan, &org.LicenseID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get organization %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

// GetSubscriptionTier returns the stored plan of an organization. The value
// is returned as stored; callers parse it.
func (db *DB) GetSubscriptionTier(ctx context.Context, orgID uuid.UUID) (license.SubscriptionTier, error) {
	var plan string
	err := db.Pool.QueryRow(ctx, `
		SELECT plan FROM organizations WHERE id = $1
	`, orgID).Scan(&plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("get subscription tier for %s: %w", orgID, ErrNotFound)
		}
		return "", fmt.Errorf("get subscription tier: %w", err)
	}
	return license.SubscriptionTier(plan), nil
}

// SetSubscriptionTier updates the stored plan and license of an organization.
func (db *DB) SetSubscriptionTier(ctx context.Context, orgID uuid.UUID, tier license.SubscriptionTier, licenseID string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE organizations
		SET plan = $2, license_id = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
	`, orgID, string(tier), licenseID)
	if err != nil {
		return fmt.Errorf("set subscription tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set subscription tier for %s: %w", orgID, ErrNotFound)
	}
	return nil
}

// CreateSSOProvider creates a new SSO provider with its group mapping.
func (db *DB) CreateSSOProvider(ctx context.Context, p *models.SSOProvider) error {
	mapping, err := json.Marshal(p.GroupMapping)
	if err != nil {
		return fmt.Errorf("marshal group mapping: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO sso_providers (id, org_id, name, issuer, group_mapping, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.OrganizationID, p.Name, p.Issuer, mapping, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create SSO provider: %w", err)
	}
	return nil
}

// UpdateGroupMapping replaces the group mapping of an SSO provider.
func (db *DB) UpdateGroupMapping(ctx context.Context, providerID uuid.UUID, cfg models.GroupRoleMappingConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("update group mapping: %w", err)
	}
	mapping, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal group mapping: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE sso_providers
		SET group_mapping = $2, updated_at = NOW()
		WHERE id = $1
	`, providerID, mapping)
	if err != nil {
		return fmt.Errorf("update group mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update group mapping for %s: %w", providerID, ErrNotFound)
	}
	return nil
}

// GetSSOProvider returns an SSO provider by ID.
func (db *DB) GetSSOProvider(ctx context.Context, id uuid.UUID) (*models.SSOProvider, error) {
	var p models.SSOProvider
	var mapping []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT id, org_id, name, issuer, group_mapping, created_at, updated_at
		FROM sso_providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Issuer, &mapping, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get SSO provider %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get SSO provider: %w", err)
	}
	if err := json.Unmarshal(mapping, &p.GroupMapping); err != nil {
		return nil, fmt.Errorf("unmarshal group mapping: %w", err)
	}
	return &p, nil
}

// GetMembershipByUserAndOrg returns a user's membership in an organization,
// or nil when the user is not a member.
func (db *DB) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error) {
	var m models.OrgMembership
	var roleStr string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, org_id, role, created_at, updated_at
		FROM org_memberships
		WHERE user_id = $1 AND org_id = $2
	`, userID, orgID).Scan(&m.ID, &m.UserID, &m.OrgID, &roleStr, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	m.Role = models.Role(roleStr)
	return &m, nil
}

// CreateMembership creates a new organization membership.
func (db *DB) CreateMembership(ctx context.Context, m *models.OrgMembership) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO org_memberships (id, user_id, org_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// UpdateMembershipRole updates a membership's role.
func (db *DB) UpdateMembershipRole(ctx context.Context, membershipID uuid.UUID, role models.Role) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE org_memberships
		SET role = $2, updated_at = $3
		WHERE id = $1
	`, membershipID, string(role), time.Now())
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update membership role for %s: %w", membershipID, ErrNotFound)
	}
	return nil
}
