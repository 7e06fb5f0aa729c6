package license

import (
	"fmt"
	"strings"
)

// OrgType is the resolved classification of an organization.
type OrgType string

const (
	OrgTypeSelfHosted           OrgType = "SELF_HOSTED"
	OrgTypeSelfHostedEnterprise OrgType = "SELF_HOSTED_ENTERPRISE"
	OrgTypeFree                 OrgType = "FREE"
	OrgTypeProfessional         OrgType = "PROFESSIONAL"
	OrgTypeEnterprise           OrgType = "ENTERPRISE"
)

// IsEnterprise reports whether the org type grants enterprise features.
func (t OrgType) IsEnterprise() bool {
	return t == OrgTypeEnterprise || t == OrgTypeSelfHostedEnterprise
}

// IsSelfHosted reports whether the org type belongs to a self-hosted install.
func (t OrgType) IsSelfHosted() bool {
	return t == OrgTypeSelfHosted || t == OrgTypeSelfHostedEnterprise
}

// SubscriptionTier is the plan stored for a hosted organization.
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierProfessional SubscriptionTier = "professional"
	TierEnterprise   SubscriptionTier = "enterprise"
)

// ParseTier normalizes a stored tier or license plan. "pro" is accepted as
// professional. ok is false for anything unrecognized.
func ParseTier(s string) (SubscriptionTier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pro", "professional":
		return TierProfessional, true
	case "enterprise":
		return TierEnterprise, true
	case "free":
		return TierFree, true
	default:
		return "", false
	}
}

// LicenseContext is what a verified license contributes to resolution.
type LicenseContext struct {
	Status       LicenseStatus `json:"status"`
	Plan         string        `json:"plan,omitempty"`
	Entitlements *Entitlements `json:"entitlements,omitempty"`
}

// effectivePlan maps the license plan to a tier. Only paid plans count;
// a "free" plan never overrides the stored tier.
func (lc *LicenseContext) effectivePlan() (SubscriptionTier, bool) {
	if lc == nil || lc.Plan == "" {
		return "", false
	}
	tier, ok := ParseTier(lc.Plan)
	if !ok || tier == TierFree {
		return "", false
	}
	return tier, true
}

// ResolveOptions adjusts ResolveOrgType.
type ResolveOptions struct {
	SelfHosted bool
	// AdditiveProfessionalBonus adds purchased monitors on top of the
	// professional base instead of letting the entitlement replace it.
	AdditiveProfessionalBonus bool
}

// OrgTypeContext is the resolved org type with its limits.
type OrgTypeContext struct {
	OrgType             OrgType            `json:"orgType"`
	Limits              OrganizationLimits `json:"limits"`
	EnterpriseFeatures  bool               `json:"enterpriseFeatures"`
	LicenseEntitlements *Entitlements      `json:"licenseEntitlements,omitempty"`
}

// Validate checks that the org type and the enterprise flags agree.
func (c OrgTypeContext) Validate() error {
	want := c.OrgType.IsEnterprise()
	if c.EnterpriseFeatures != want {
		return fmt.Errorf("org type %s with enterpriseFeatures=%t", c.OrgType, c.EnterpriseFeatures)
	}
	if c.Limits.EnterpriseFeatures != want {
		return fmt.Errorf("org type %s with limits.enterpriseFeatures=%t", c.OrgType, c.Limits.EnterpriseFeatures)
	}
	return nil
}

// ResolveOrgType combines deployment mode, the stored tier and the license
// into an OrgTypeContext. tier may be empty and lc may be nil.
func ResolveOrgType(tier SubscriptionTier, lc *LicenseContext, opts ResolveOptions) OrgTypeContext {
	var ents *Entitlements
	if lc != nil && lc.Entitlements != nil {
		e := *lc.Entitlements
		ents = &e
	}

	if opts.SelfHosted {
		limits := UnlimitedLimits()
		if lc != nil && lc.Status.IsActive() {
			limits.EnterpriseFeatures = true
			return OrgTypeContext{
				OrgType:             OrgTypeSelfHostedEnterprise,
				Limits:              limits,
				EnterpriseFeatures:  true,
				LicenseEntitlements: ents,
			}
		}
		return OrgTypeContext{
			OrgType:             OrgTypeSelfHosted,
			Limits:              limits,
			LicenseEntitlements: ents,
		}
	}

	effective, ok := lc.effectivePlan()
	if !ok {
		effective, _ = ParseTier(string(tier))
	}

	switch effective {
	case TierEnterprise:
		return OrgTypeContext{
			OrgType:             OrgTypeEnterprise,
			Limits:              enterpriseLimitsFor(ents),
			EnterpriseFeatures:  true,
			LicenseEntitlements: ents,
		}
	case TierProfessional:
		return OrgTypeContext{
			OrgType:             OrgTypeProfessional,
			Limits:              professionalLimitsFor(ents, opts.AdditiveProfessionalBonus),
			LicenseEntitlements: ents,
		}
	default:
		return OrgTypeContext{
			OrgType:             OrgTypeFree,
			Limits:              FreeLimits(),
			LicenseEntitlements: ents,
		}
	}
}

func enterpriseLimitsFor(ents *Entitlements) OrganizationLimits {
	limits := EnterpriseLimits()
	if ents != nil {
		limits.Monitors = ents.Monitors
		limits.StatusPages = ents.StatusPages
		limits.TeamMembers = ents.TeamMembers
		limits.Regions = ents.Regions
	}
	limits.AlertChannels = Unlimited
	limits.EnterpriseFeatures = true
	return limits
}

func professionalLimitsFor(ents *Entitlements, additive bool) OrganizationLimits {
	limits := ProfessionalLimits()
	if ents == nil {
		return limits
	}
	if additive {
		limits.Monitors = addLimit(limits.Monitors, intPtr(ProfessionalMonitorBonus(ents)))
	} else {
		limits.Monitors = raiseLimit(limits.Monitors, ents.Monitors)
	}
	limits.StatusPages = raiseLimit(limits.StatusPages, ents.StatusPages)
	limits.TeamMembers = raiseLimit(limits.TeamMembers, ents.TeamMembers)
	limits.Regions = raiseLimit(limits.Regions, ents.Regions)
	return limits
}

// ProfessionalMonitorBonus returns the monitors purchased beyond the free
// allowance, for callers that add them to the professional base.
func ProfessionalMonitorBonus(ents *Entitlements) int {
	if ents == nil {
		return 0
	}
	if IsUnlimited(ents.Monitors) {
		return Unlimited
	}
	if ents.Monitors <= FreeMonitors {
		return 0
	}
	return ents.Monitors - FreeMonitors
}

// raiseLimit returns v when it is unlimited or above base.
func raiseLimit(base, v int) int {
	if IsUnlimited(base) {
		return base
	}
	if IsUnlimited(v) || v > base {
		return v
	}
	return base
}

func intPtr(v int) *int {
	return &v
}
