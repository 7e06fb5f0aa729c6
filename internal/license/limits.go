package license

// Unlimited is a sentinel value indicating no limit on a resource.
const Unlimited = -1

// OrganizationLimits are the resource limits enforced for an organization.
// MinCheckInterval is in seconds and DataRetention in days.
type OrganizationLimits struct {
	Monitors           int  `json:"monitors"`
	StatusPages        int  `json:"statusPages"`
	TeamMembers        int  `json:"teamMembers"`
	Regions            int  `json:"regions"`
	AlertChannels      int  `json:"alertChannels"`
	MinCheckInterval   int  `json:"minCheckInterval"`
	DataRetention      int  `json:"dataRetention"`
	EnterpriseFeatures bool `json:"enterpriseFeatures"`
}

// UnlimitedLimits returns limits with every resource unlimited. Enterprise
// features are off; callers decide whether to grant them.
func UnlimitedLimits() OrganizationLimits {
	return OrganizationLimits{
		Monitors:         Unlimited,
		StatusPages:      Unlimited,
		TeamMembers:      Unlimited,
		Regions:          Unlimited,
		AlertChannels:    Unlimited,
		MinCheckInterval: Unlimited,
		DataRetention:    Unlimited,
	}
}

// FreeLimits returns the hosted free tier limits.
func FreeLimits() OrganizationLimits {
	return OrganizationLimits{
		Monitors:         FreeMonitors,
		StatusPages:      FreeStatusPages,
		TeamMembers:      FreeTeamMembers,
		Regions:          FreeRegions,
		AlertChannels:    1,
		MinCheckInterval: 600,
		DataRetention:    14,
	}
}

// ProfessionalLimits returns the hosted professional tier base limits.
func ProfessionalLimits() OrganizationLimits {
	return OrganizationLimits{
		Monitors:         50,
		StatusPages:      5,
		TeamMembers:      10,
		Regions:          6,
		AlertChannels:    10,
		MinCheckInterval: 60,
		DataRetention:    90,
	}
}

// EnterpriseLimits returns the hosted enterprise defaults used when the
// license carries no entitlements.
func EnterpriseLimits() OrganizationLimits {
	return OrganizationLimits{
		Monitors:           Unlimited,
		StatusPages:        Unlimited,
		TeamMembers:        Unlimited,
		Regions:            Unlimited,
		AlertChannels:      Unlimited,
		MinCheckInterval:   30,
		DataRetention:      365,
		EnterpriseFeatures: true,
	}
}

// Resource names a countable resource governed by OrganizationLimits.
type Resource string

const (
	ResourceMonitors      Resource = "monitors"
	ResourceStatusPages   Resource = "status_pages"
	ResourceTeamMembers   Resource = "team_members"
	ResourceRegions       Resource = "regions"
	ResourceAlertChannels Resource = "alert_channels"
)

// Limit returns the limit for r. ok is false for an unknown resource.
func (l OrganizationLimits) Limit(r Resource) (limit int, ok bool) {
	switch r {
	case ResourceMonitors:
		return l.Monitors, true
	case ResourceStatusPages:
		return l.StatusPages, true
	case ResourceTeamMembers:
		return l.TeamMembers, true
	case ResourceRegions:
		return l.Regions, true
	case ResourceAlertChannels:
		return l.AlertChannels, true
	default:
		return 0, false
	}
}

// IsUnlimited returns true if the given limit value represents unlimited.
func IsUnlimited(limit int) bool {
	return limit == Unlimited
}

// IsLimitExceeded reports whether count has reached limit.
func IsLimitExceeded(limit, count int) bool {
	if IsUnlimited(limit) {
		return false
	}
	return count >= limit
}

// CanAddResource reports whether one more r fits given the current count.
// Unknown resources are refused.
func CanAddResource(limits OrganizationLimits, r Resource, count int) bool {
	limit, ok := limits.Limit(r)
	if !ok {
		return false
	}
	return !IsLimitExceeded(limit, count)
}
