package auth

import (
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/openstatushq/entitlements/internal/models"
)

func role(r models.Role) *models.Role {
	return &r
}

func TestResolveRoleFromGroups(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		cfg    models.GroupRoleMappingConfig
		want   models.Role
		wantOK bool
	}{
		{
			name:   "prefix match ignores case",
			groups: []string{"Admins-Team1"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: []models.GroupRoleMapping{{Group: "admins-*", Role: models.RoleAdmin}},
			},
			want:   models.RoleAdmin,
			wantOK: true,
		},
		{
			name:   "no match falls back to default",
			groups: []string{"engineering"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:     true,
				DefaultRole: role(models.RoleViewer),
				Mappings:    []models.GroupRoleMapping{{Group: "admins-*", Role: models.RoleAdmin}},
			},
			want:   models.RoleViewer,
			wantOK: true,
		},
		{
			name:   "no match and no default",
			groups: []string{"engineering"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: []models.GroupRoleMapping{{Group: "admins", Role: models.RoleAdmin}},
			},
			wantOK: false,
		},
		{
			name:   "exact match ignores case",
			groups: []string{"ENGINEERING"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: []models.GroupRoleMapping{{Group: "Engineering", Role: models.RoleMember}},
			},
			want:   models.RoleMember,
			wantOK: true,
		},
		{
			name:   "exact rule does not prefix match",
			groups: []string{"engineering-eu"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: []models.GroupRoleMapping{{Group: "engineering", Role: models.RoleMember}},
			},
			wantOK: false,
		},
		{
			name:   "first match wins",
			groups: []string{"admins", "staff"},
			cfg: models.GroupRoleMappingConfig{
				Enabled: true,
				Mappings: []models.GroupRoleMapping{
					{Group: "staff", Role: models.RoleViewer},
					{Group: "admins", Role: models.RoleAdmin},
				},
			},
			want:   models.RoleViewer,
			wantOK: true,
		},
		{
			name:   "wildcard matches without groups",
			groups: nil,
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: []models.GroupRoleMapping{{Group: "*", Role: models.RoleMember}},
			},
			want:   models.RoleMember,
			wantOK: true,
		},
		{
			name:   "disabled returns default",
			groups: []string{"admins"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:     false,
				DefaultRole: role(models.RoleViewer),
				Mappings:    []models.GroupRoleMapping{{Group: "admins", Role: models.RoleAdmin}},
			},
			want:   models.RoleViewer,
			wantOK: true,
		},
		{
			name:   "no rules returns default",
			groups: []string{"admins"},
			cfg:    models.GroupRoleMappingConfig{Enabled: true, DefaultRole: role(models.RoleMember)},
			want:   models.RoleMember,
			wantOK: true,
		},
		{
			name:   "empty default role is no role",
			groups: []string{"admins"},
			cfg:    models.GroupRoleMappingConfig{Enabled: true, DefaultRole: role("")},
			wantOK: false,
		},
		{
			name:   "unicode case folding",
			groups: []string{"ÉQUIPE-OPS"},
			cfg: models.GroupRoleMappingConfig{
				Enabled:  true,
				Mappings: []models.GroupRoleMapping{{Group: "équipe-*", Role: models.RoleAdmin}},
			},
			want:   models.RoleAdmin,
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveRoleFromGroups(tt.groups, tt.cfg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRoleFromGroups_Concurrent(t *testing.T) {
	cfg := models.GroupRoleMappingConfig{
		Enabled:  true,
		Mappings: []models.GroupRoleMapping{{Group: "admins-*", Role: models.RoleAdmin}},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok := ResolveRoleFromGroups([]string{"Admins-X"}, cfg)
			assert.True(t, ok)
			assert.Equal(t, models.RoleAdmin, got)
		}()
	}
	wg.Wait()
}

func TestExtractGroups(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		custom string
		want   []string
	}{
		{"groups array", jwt.MapClaims{"groups": []any{"a", "b"}}, "", []string{"a", "b"}},
		{"non string items dropped", jwt.MapClaims{"groups": []any{"a", 1, true}}, "", []string{"a"}},
		{"scalar role", jwt.MapClaims{"role": "admin"}, "", []string{"admin"}},
		{"probe order", jwt.MapClaims{"role": "x", "roles": []any{"y"}}, "", []string{"y"}},
		{"cognito", jwt.MapClaims{"cognito:groups": []any{"pool-admins"}}, "", []string{"pool-admins"}},
		{"custom claim wins", jwt.MapClaims{"teams": []any{"t1"}, "groups": []any{"g1"}}, "teams", []string{"t1"}},
		{"custom claim scalar", jwt.MapClaims{"teams": "t1"}, "teams", []string{"t1"}},
		{"missing custom claim probes defaults", jwt.MapClaims{"groups": []any{"g1"}}, "teams", []string{"g1"}},
		{"claim names", jwt.MapClaims{"_claim_names": map[string]any{"groups": "src1"}}, "", []string{"groups"}},
		{"nothing", jwt.MapClaims{"sub": "u1"}, "", []string{}},
		{"wrong type", jwt.MapClaims{"groups": 42}, "", []string{}},
		{"null groups falls through", jwt.MapClaims{"groups": nil, "roles": []any{"admin"}}, "", []string{"admin"}},
		{"wrong typed groups falls through", jwt.MapClaims{"groups": 42.0, "role": "ops"}, "", []string{"ops"}},
		{"null custom claim probes defaults", jwt.MapClaims{"my_groups": nil, "groups": []any{"eng"}}, "my_groups", []string{"eng"}},
		{"wrong typed custom claim probes defaults", jwt.MapClaims{"my_groups": 42, "groups": []any{"eng"}}, "my_groups", []string{"eng"}},
		{"empty array is used", jwt.MapClaims{"groups": []any{}, "roles": []any{"admin"}}, "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractGroups(tt.claims, tt.custom))
		})
	}
}
