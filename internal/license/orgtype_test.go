package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrgType_SelfHosted(t *testing.T) {
	tests := []struct {
		name string
		lc   *LicenseContext
		want OrgType
	}{
		{"no license", nil, OrgTypeSelfHosted},
		{"active", &LicenseContext{Status: StatusActive}, OrgTypeSelfHostedEnterprise},
		{"grace period", &LicenseContext{Status: "GRACE_PERIOD"}, OrgTypeSelfHostedEnterprise},
		{"expired", &LicenseContext{Status: StatusExpired, Plan: "enterprise"}, OrgTypeSelfHosted},
		{"suspended", &LicenseContext{Status: StatusSuspended}, OrgTypeSelfHosted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOrgType(TierEnterprise, tt.lc, ResolveOptions{SelfHosted: true})
			assert.Equal(t, tt.want, got.OrgType)
			assert.Equal(t, tt.want.IsEnterprise(), got.EnterpriseFeatures)
			assert.Equal(t, Unlimited, got.Limits.Monitors)
			assert.Equal(t, Unlimited, got.Limits.StatusPages)
			assert.Equal(t, Unlimited, got.Limits.TeamMembers)
			assert.Equal(t, Unlimited, got.Limits.Regions)
			require.NoError(t, got.Validate())
		})
	}
}

func TestResolveOrgType_SelfHostedNoLicense(t *testing.T) {
	got := ResolveOrgType("", nil, ResolveOptions{SelfHosted: true})
	assert.Equal(t, OrgTypeContext{OrgType: OrgTypeSelfHosted, Limits: UnlimitedLimits()}, got)
}

func TestResolveOrgType_LicensePlanOverridesTier(t *testing.T) {
	got := ResolveOrgType(TierFree, &LicenseContext{Status: StatusActive, Plan: "enterprise"}, ResolveOptions{})
	assert.Equal(t, OrgTypeEnterprise, got.OrgType)
	assert.True(t, got.EnterpriseFeatures)
	assert.Equal(t, EnterpriseLimits(), got.Limits)
	require.NoError(t, got.Validate())
}

func TestResolveOrgType_EffectiveTier(t *testing.T) {
	tests := []struct {
		name string
		tier SubscriptionTier
		plan string
		want OrgType
	}{
		{"stored free", TierFree, "", OrgTypeFree},
		{"stored professional", TierProfessional, "", OrgTypeProfessional},
		{"stored pro alias", SubscriptionTier("pro"), "", OrgTypeProfessional},
		{"stored enterprise", TierEnterprise, "", OrgTypeEnterprise},
		{"empty tier", "", "", OrgTypeFree},
		{"unknown tier", SubscriptionTier("platinum"), "", OrgTypeFree},
		{"plan pro", TierFree, "pro", OrgTypeProfessional},
		{"plan Professional", TierFree, "Professional", OrgTypeProfessional},
		{"unknown plan falls back", TierProfessional, "starter", OrgTypeProfessional},
		{"free plan falls back", TierEnterprise, "free", OrgTypeEnterprise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOrgType(tt.tier, &LicenseContext{Status: StatusActive, Plan: tt.plan}, ResolveOptions{})
			assert.Equal(t, tt.want, got.OrgType)
			require.NoError(t, got.Validate())
		})
	}
}

func TestResolveOrgType_EnterpriseUsesEntitlements(t *testing.T) {
	ents := &Entitlements{Monitors: 500, StatusPages: 20, TeamMembers: Unlimited, Regions: 8, SSO: true}
	got := ResolveOrgType(TierEnterprise, &LicenseContext{Status: StatusActive, Entitlements: ents}, ResolveOptions{})

	assert.Equal(t, 500, got.Limits.Monitors)
	assert.Equal(t, 20, got.Limits.StatusPages)
	assert.Equal(t, Unlimited, got.Limits.TeamMembers)
	assert.Equal(t, 8, got.Limits.Regions)
	assert.Equal(t, Unlimited, got.Limits.AlertChannels)
	assert.True(t, got.Limits.EnterpriseFeatures)
	require.NotNil(t, got.LicenseEntitlements)
	assert.Equal(t, *ents, *got.LicenseEntitlements)

	ents.Monitors = 1
	assert.Equal(t, 500, got.LicenseEntitlements.Monitors, "context must not alias the caller's entitlements")
}

func TestResolveOrgType_ProfessionalOverrides(t *testing.T) {
	base := ProfessionalLimits()
	ents := &Entitlements{Monitors: 200, StatusPages: 1, TeamMembers: Unlimited, Regions: 6}

	got := ResolveOrgType(TierProfessional, &LicenseContext{Status: StatusActive, Entitlements: ents}, ResolveOptions{})
	assert.Equal(t, OrgTypeProfessional, got.OrgType)
	assert.False(t, got.EnterpriseFeatures)
	assert.Equal(t, 200, got.Limits.Monitors)
	assert.Equal(t, base.StatusPages, got.Limits.StatusPages, "entitlements never lower a professional limit")
	assert.Equal(t, Unlimited, got.Limits.TeamMembers)
	assert.Equal(t, base.Regions, got.Limits.Regions)
	assert.Equal(t, base.AlertChannels, got.Limits.AlertChannels)
}

func TestResolveOrgType_ProfessionalAdditiveBonus(t *testing.T) {
	base := ProfessionalLimits()
	lc := &LicenseContext{Status: StatusActive, Entitlements: &Entitlements{Monitors: 25, StatusPages: 1, TeamMembers: 1, Regions: 1}}

	override := ResolveOrgType(TierProfessional, lc, ResolveOptions{})
	additive := ResolveOrgType(TierProfessional, lc, ResolveOptions{AdditiveProfessionalBonus: true})

	assert.Equal(t, base.Monitors, override.Limits.Monitors)
	assert.Equal(t, base.Monitors+20, additive.Limits.Monitors)

	lc.Entitlements.Monitors = Unlimited
	assert.Equal(t, Unlimited, ResolveOrgType(TierProfessional, lc, ResolveOptions{AdditiveProfessionalBonus: true}).Limits.Monitors)
}

func TestProfessionalMonitorBonus(t *testing.T) {
	assert.Equal(t, 0, ProfessionalMonitorBonus(nil))
	assert.Equal(t, 0, ProfessionalMonitorBonus(&Entitlements{Monitors: FreeMonitors}))
	assert.Equal(t, 45, ProfessionalMonitorBonus(&Entitlements{Monitors: 50}))
	assert.Equal(t, Unlimited, ProfessionalMonitorBonus(&Entitlements{Monitors: Unlimited}))
}

func TestOrgTypeContext_Validate(t *testing.T) {
	assert.Error(t, OrgTypeContext{OrgType: OrgTypeEnterprise}.Validate())
	assert.Error(t, OrgTypeContext{OrgType: OrgTypeFree, EnterpriseFeatures: true}.Validate())
	assert.Error(t, OrgTypeContext{OrgType: OrgTypeSelfHostedEnterprise, EnterpriseFeatures: true}.Validate())
	assert.NoError(t, OrgTypeContext{OrgType: OrgTypeFree, Limits: FreeLimits()}.Validate())
}

func TestLimitChecks(t *testing.T) {
	assert.False(t, IsLimitExceeded(Unlimited, 1_000_000))
	assert.False(t, IsLimitExceeded(5, 4))
	assert.True(t, IsLimitExceeded(5, 5))
	assert.True(t, IsLimitExceeded(0, 0))

	free := FreeLimits()
	assert.True(t, CanAddResource(free, ResourceMonitors, 4))
	assert.False(t, CanAddResource(free, ResourceMonitors, 5))
	assert.False(t, CanAddResource(free, ResourceStatusPages, 1))
	assert.True(t, CanAddResource(UnlimitedLimits(), ResourceAlertChannels, 9999))
	assert.False(t, CanAddResource(UnlimitedLimits(), Resource("widgets"), 0))
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier(" PRO ")
	assert.True(t, ok)
	assert.Equal(t, TierProfessional, tier)

	_, ok = ParseTier("gold")
	assert.False(t, ok)
}
