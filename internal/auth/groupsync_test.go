package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openstatushq/entitlements/internal/models"
)

// mockGroupSyncStore implements GroupSyncStore for testing.
type mockGroupSyncStore struct {
	providers   map[uuid.UUID]*models.SSOProvider
	memberships map[string]*models.OrgMembership // key: "userID:orgID"

	getProviderErr      error
	getMembershipErr    error
	createMembershipErr error
	updateRoleErr       error

	createdMemberships []*models.OrgMembership
	updatedRoles       []roleUpdate
}

type roleUpdate struct {
	membershipID uuid.UUID
	role         models.Role
}

func newMockGroupSyncStore() *mockGroupSyncStore {
	return &mockGroupSyncStore{
		providers:   make(map[uuid.UUID]*models.SSOProvider),
		memberships: make(map[string]*models.OrgMembership),
	}
}

func (m *mockGroupSyncStore) addProvider(cfg models.GroupRoleMappingConfig) *models.SSOProvider {
	p := models.NewSSOProvider(uuid.New(), "okta", "https://example.okta.com")
	p.GroupMapping = cfg
	m.providers[p.ID] = p
	return p
}

func (m *mockGroupSyncStore) addMembership(userID, orgID uuid.UUID, role models.Role) *models.OrgMembership {
	membership := models.NewOrgMembership(userID, orgID, role)
	m.memberships[userID.String()+":"+orgID.String()] = membership
	return membership
}

func (m *mockGroupSyncStore) GetSSOProvider(_ context.Context, id uuid.UUID) (*models.SSOProvider, error) {
	if m.getProviderErr != nil {
		return nil, m.getProviderErr
	}
	p, ok := m.providers[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (m *mockGroupSyncStore) GetMembershipByUserAndOrg(_ context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error) {
	if m.getMembershipErr != nil {
		return nil, m.getMembershipErr
	}
	return m.memberships[userID.String()+":"+orgID.String()], nil
}

func (m *mockGroupSyncStore) CreateMembership(_ context.Context, membership *models.OrgMembership) error {
	if m.createMembershipErr != nil {
		return m.createMembershipErr
	}
	m.createdMemberships = append(m.createdMemberships, membership)
	m.memberships[membership.UserID.String()+":"+membership.OrgID.String()] = membership
	return nil
}

func (m *mockGroupSyncStore) UpdateMembershipRole(_ context.Context, membershipID uuid.UUID, role models.Role) error {
	if m.updateRoleErr != nil {
		return m.updateRoleErr
	}
	m.updatedRoles = append(m.updatedRoles, roleUpdate{membershipID: membershipID, role: role})
	return nil
}

type countingMetrics struct {
	groupSync map[string]int
}

func (c *countingMetrics) IncVerification(string, string) {}
func (c *countingMetrics) IncOrgTypeResolved(string)      {}
func (c *countingMetrics) IncEntitlementCache(string)     {}
func (c *countingMetrics) IncGroupSync(action string) {
	if c.groupSync == nil {
		c.groupSync = make(map[string]int)
	}
	c.groupSync[action]++
}

var adminMapping = models.GroupRoleMappingConfig{
	Enabled:     true,
	SyncOnLogin: true,
	Mappings:    []models.GroupRoleMapping{{Group: "admins-*", Role: models.RoleAdmin}},
}

func TestSyncMembership_NewMember(t *testing.T) {
	store := newMockGroupSyncStore()
	provider := store.addProvider(adminMapping)
	gs := NewGroupSync(store, nil, zerolog.Nop())
	userID := uuid.New()

	result, err := gs.SyncMembership(context.Background(), provider.ID, userID, []string{"Admins-EU"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != models.GroupSyncCreated {
		t.Errorf("expected action created, got %s", result.Action)
	}
	if len(store.createdMemberships) != 1 {
		t.Fatalf("expected 1 created membership, got %d", len(store.createdMemberships))
	}
	created := store.createdMemberships[0]
	if created.Role != models.RoleAdmin || created.OrgID != provider.OrganizationID || created.UserID != userID {
		t.Errorf("unexpected membership: %+v", created)
	}
}

func TestSyncMembership_NewMemberFallbackRole(t *testing.T) {
	store := newMockGroupSyncStore()
	provider := store.addProvider(adminMapping)
	gs := NewGroupSync(store, nil, zerolog.Nop())

	result, err := gs.SyncMembership(context.Background(), provider.ID, uuid.New(), []string{"engineering"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResolvedRole != nil {
		t.Errorf("expected no resolved role, got %s", *result.ResolvedRole)
	}
	if result.Role == nil || *result.Role != models.RoleMember {
		t.Errorf("expected fallback role member, got %v", result.Role)
	}
}

func TestSyncMembership_ExistingMember(t *testing.T) {
	viewer := models.RoleViewer

	tests := []struct {
		name        string
		cfg         models.GroupRoleMappingConfig
		current     models.Role
		groups      []string
		wantAction  models.GroupSyncAction
		wantUpdated models.Role
	}{
		{
			name:        "role changes",
			cfg:         adminMapping,
			current:     models.RoleMember,
			groups:      []string{"admins-1"},
			wantAction:  models.GroupSyncUpdated,
			wantUpdated: models.RoleAdmin,
		},
		{
			name:       "same role",
			cfg:        adminMapping,
			current:    models.RoleAdmin,
			groups:     []string{"admins-1"},
			wantAction: models.GroupSyncUnchanged,
		},
		{
			name: "sync on login off",
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: adminMapping.Mappings,
			},
			current:    models.RoleMember,
			groups:     []string{"admins-1"},
			wantAction: models.GroupSyncSkipped,
		},
		{
			name: "mapping disabled",
			cfg: models.GroupRoleMappingConfig{
				SyncOnLogin: true,
				DefaultRole: &viewer,
			},
			current:    models.RoleAdmin,
			groups:     []string{"admins-1"},
			wantAction: models.GroupSyncSkipped,
		},
		{
			name:       "owner never demoted",
			cfg:        adminMapping,
			current:    models.RoleOwner,
			groups:     []string{"admins-1"},
			wantAction: models.GroupSyncOwnerKept,
		},
		{
			name:       "no role resolved",
			cfg:        adminMapping,
			current:    models.RoleMember,
			groups:     []string{"engineering"},
			wantAction: models.GroupSyncUnchanged,
		},
		{
			name: "default role applies on no match",
			cfg: models.GroupRoleMappingConfig{
				Enabled:     true,
				SyncOnLogin: true,
				DefaultRole: &viewer,
				Mappings:    adminMapping.Mappings,
			},
			current:     models.RoleMember,
			groups:      []string{"engineering"},
			wantAction:  models.GroupSyncUpdated,
			wantUpdated: models.RoleViewer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockGroupSyncStore()
			provider := store.addProvider(tt.cfg)
			userID := uuid.New()
			existing := store.addMembership(userID, provider.OrganizationID, tt.current)
			m := &countingMetrics{}

			result, err := NewGroupSync(store, m, zerolog.Nop()).SyncMembership(context.Background(), provider.ID, userID, tt.groups)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Action != tt.wantAction {
				t.Errorf("expected action %s, got %s", tt.wantAction, result.Action)
			}
			if m.groupSync[string(tt.wantAction)] != 1 {
				t.Errorf("expected metric for %s, got %v", tt.wantAction, m.groupSync)
			}
			if len(store.createdMemberships) != 0 {
				t.Errorf("expected no created memberships, got %d", len(store.createdMemberships))
			}

			if tt.wantUpdated == "" {
				if len(store.updatedRoles) != 0 {
					t.Errorf("expected no role updates, got %+v", store.updatedRoles)
				}
				if *result.Role != tt.current {
					t.Errorf("expected role to stay %s, got %s", tt.current, *result.Role)
				}
				return
			}
			if len(store.updatedRoles) != 1 {
				t.Fatalf("expected 1 role update, got %d", len(store.updatedRoles))
			}
			if store.updatedRoles[0].membershipID != existing.ID || store.updatedRoles[0].role != tt.wantUpdated {
				t.Errorf("unexpected update: %+v", store.updatedRoles[0])
			}
			if *result.PreviousRole != tt.current || *result.Role != tt.wantUpdated {
				t.Errorf("unexpected result roles: previous %s, role %s", *result.PreviousRole, *result.Role)
			}
		})
	}
}

func TestSyncMembership_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("provider", func(t *testing.T) {
		store := newMockGroupSyncStore()
		store.getProviderErr = boom
		_, err := NewGroupSync(store, nil, zerolog.Nop()).SyncMembership(ctx, uuid.New(), uuid.New(), nil)
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})

	t.Run("membership lookup", func(t *testing.T) {
		store := newMockGroupSyncStore()
		p := store.addProvider(adminMapping)
		store.getMembershipErr = boom
		_, err := NewGroupSync(store, nil, zerolog.Nop()).SyncMembership(ctx, p.ID, uuid.New(), nil)
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})

	t.Run("create", func(t *testing.T) {
		store := newMockGroupSyncStore()
		p := store.addProvider(adminMapping)
		store.createMembershipErr = boom
		_, err := NewGroupSync(store, nil, zerolog.Nop()).SyncMembership(ctx, p.ID, uuid.New(), []string{"admins-1"})
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		store := newMockGroupSyncStore()
		p := store.addProvider(adminMapping)
		userID := uuid.New()
		store.addMembership(userID, p.OrganizationID, models.RoleViewer)
		store.updateRoleErr = boom
		_, err := NewGroupSync(store, nil, zerolog.Nop()).SyncMembership(ctx, p.ID, userID, []string{"admins-1"})
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped error, got %v", err)
		}
	})
}

func TestSyncFromClaims_UsesProviderClaim(t *testing.T) {
	store := newMockGroupSyncStore()
	cfg := adminMapping
	cfg.GroupsClaim = "teams"
	provider := store.addProvider(cfg)

	claims := jwt.MapClaims{
		"teams":  []any{"admins-core"},
		"groups": []any{"everyone"},
	}
	result, err := NewGroupSync(store, nil, zerolog.Nop()).SyncFromClaims(context.Background(), provider.ID, uuid.New(), claims)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Role == nil || *result.Role != models.RoleAdmin {
		t.Errorf("expected admin from custom claim, got %v", result.Role)
	}
	if len(result.GroupsReceived) != 1 || result.GroupsReceived[0] != "admins-core" {
		t.Errorf("unexpected groups: %v", result.GroupsReceived)
	}
}
