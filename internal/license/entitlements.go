package license

import (
	"encoding/json"
	"math"
	"sort"
)

// Metadata keys understood on provider entitlement records.
const (
	MetaMonitors       = "monitors"
	MetaStatusPages    = "statusPages"
	MetaTeamMembers    = "teamMembers"
	MetaRegions        = "regions"
	MetaAuditLogs      = "auditLogs"
	MetaSSO            = "sso"
	MetaOAuthProviders = "oauthProviders"
	MetaCustomRoles    = "customRoles"
	MetaSLO            = "slo"
	MetaReports        = "reports"
	MetaMultiRegion    = "multiRegion"
	MetaOncall         = "oncall"
)

// Free tier defaults applied in hosted mode when no entitlement grants a limit.
const (
	FreeMonitors    = 5
	FreeStatusPages = 1
	FreeTeamMembers = 1
	FreeRegions     = 1
)

// RawEntitlement is one entitlement record as delivered by the license provider.
type RawEntitlement struct {
	ID       string              `json:"id"`
	Code     string              `json:"code"`
	Metadata EntitlementMetadata `json:"metadata"`
}

// EntitlementMetadata is the typed form of an entitlement's metadata map. A
// nil field means the record does not mention it.
type EntitlementMetadata struct {
	Monitors    *int `json:"monitors,omitempty"`
	StatusPages *int `json:"statusPages,omitempty"`
	TeamMembers *int `json:"teamMembers,omitempty"`
	Regions     *int `json:"regions,omitempty"`

	AuditLogs      *bool `json:"auditLogs,omitempty"`
	SSO            *bool `json:"sso,omitempty"`
	OAuthProviders *bool `json:"oauthProviders,omitempty"`
	CustomRoles    *bool `json:"customRoles,omitempty"`
	SLO            *bool `json:"slo,omitempty"`
	Reports        *bool `json:"reports,omitempty"`
	MultiRegion    *bool `json:"multiRegion,omitempty"`
	Oncall         *bool `json:"oncall,omitempty"`

	// Dropped lists known keys whose values had the wrong type or range.
	Dropped []string `json:"-"`
}

// ParseEntitlementMetadata converts a provider metadata map into the typed
// form. Numeric limits must be whole numbers >= -1; anything else is dropped
// and named in Dropped. Unknown keys are ignored.
func ParseEntitlementMetadata(raw map[string]any) EntitlementMetadata {
	var m EntitlementMetadata

	limits := map[string]**int{
		MetaMonitors:    &m.Monitors,
		MetaStatusPages: &m.StatusPages,
		MetaTeamMembers: &m.TeamMembers,
		MetaRegions:     &m.Regions,
	}
	for key, dst := range limits {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		n, ok := toLimit(v)
		if !ok {
			m.Dropped = append(m.Dropped, key)
			continue
		}
		*dst = &n
	}

	flags := map[string]**bool{
		MetaAuditLogs:      &m.AuditLogs,
		MetaSSO:            &m.SSO,
		MetaOAuthProviders: &m.OAuthProviders,
		MetaCustomRoles:    &m.CustomRoles,
		MetaSLO:            &m.SLO,
		MetaReports:        &m.Reports,
		MetaMultiRegion:    &m.MultiRegion,
		MetaOncall:         &m.Oncall,
	}
	for key, dst := range flags {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			m.Dropped = append(m.Dropped, key)
			continue
		}
		*dst = &b
	}

	sort.Strings(m.Dropped)
	return m
}

// UnmarshalJSON validates metadata through ParseEntitlementMetadata.
func (m *EntitlementMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = ParseEntitlementMetadata(raw)
	return nil
}

func toLimit(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < Unlimited || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Entitlements is the normalized capability snapshot built from a license's
// entitlement records. Numeric limits use Unlimited (-1) for no limit.
type Entitlements struct {
	Monitors    int `json:"monitors"`
	StatusPages int `json:"statusPages"`
	TeamMembers int `json:"teamMembers"`
	Regions     int `json:"regions"`

	AuditLogs      bool `json:"auditLogs"`
	SSO            bool `json:"sso"`
	OAuthProviders bool `json:"oauthProviders"`
	CustomRoles    bool `json:"customRoles"`
	SLO            bool `json:"slo"`
	Reports        bool `json:"reports"`
	MultiRegion    bool `json:"multiRegion"`
	Oncall         bool `json:"oncall"`
}

// MapEntitlements folds entitlement records into a fresh Entitlements value.
//
// Self-hosted installs are never limited numerically, so only the feature
// flags are read. In hosted mode limits are summed with Unlimited absorbing,
// and any limit no record granted falls back to the free tier default.
func MapEntitlements(records []RawEntitlement, mode DeploymentMode) Entitlements {
	var e Entitlements
	for _, r := range records {
		e.mergeFlags(r.Metadata)
	}

	if mode.IsSelfHosted() {
		e.Monitors = Unlimited
		e.StatusPages = Unlimited
		e.TeamMembers = Unlimited
		e.Regions = Unlimited
		return e
	}

	for _, r := range records {
		e.Monitors = addLimit(e.Monitors, r.Metadata.Monitors)
		e.StatusPages = addLimit(e.StatusPages, r.Metadata.StatusPages)
		e.TeamMembers = addLimit(e.TeamMembers, r.Metadata.TeamMembers)
		e.Regions = addLimit(e.Regions, r.Metadata.Regions)
	}

	e.Monitors = orDefault(e.Monitors, FreeMonitors)
	e.StatusPages = orDefault(e.StatusPages, FreeStatusPages)
	e.TeamMembers = orDefault(e.TeamMembers, FreeTeamMembers)
	e.Regions = orDefault(e.Regions, FreeRegions)
	return e
}

func (e *Entitlements) mergeFlags(m EntitlementMetadata) {
	e.AuditLogs = e.AuditLogs || isTrue(m.AuditLogs)
	e.SSO = e.SSO || isTrue(m.SSO)
	e.OAuthProviders = e.OAuthProviders || isTrue(m.OAuthProviders)
	e.CustomRoles = e.CustomRoles || isTrue(m.CustomRoles)
	e.SLO = e.SLO || isTrue(m.SLO)
	e.Reports = e.Reports || isTrue(m.Reports)
	e.MultiRegion = e.MultiRegion || isTrue(m.MultiRegion)
	e.Oncall = e.Oncall || isTrue(m.Oncall)
}

func addLimit(acc int, v *int) int {
	if v == nil {
		return acc
	}
	if acc == Unlimited || *v == Unlimited {
		return Unlimited
	}
	return acc + *v
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// Feature is a boolean capability gated by entitlements.
type Feature string

const (
	FeatureAuditLogs      Feature = "audit_logs"
	FeatureSSO            Feature = "sso"
	FeatureOAuthProviders Feature = "oauth_providers"
	FeatureCustomRoles    Feature = "custom_roles"
	FeatureSLO            Feature = "slo"
	FeatureReports        Feature = "reports"
	FeatureMultiRegion    Feature = "multi_region"
	FeatureOncall         Feature = "oncall"
)

// AllFeatures returns every gated feature.
func AllFeatures() []Feature {
	return []Feature{
		FeatureAuditLogs,
		FeatureSSO,
		FeatureOAuthProviders,
		FeatureCustomRoles,
		FeatureSLO,
		FeatureReports,
		FeatureMultiRegion,
		FeatureOncall,
	}
}

// HasFeature reports whether the entitlements enable f.
func (e Entitlements) HasFeature(f Feature) bool {
	switch f {
	case FeatureAuditLogs:
		return e.AuditLogs
	case FeatureSSO:
		return e.SSO
	case FeatureOAuthProviders:
		return e.OAuthProviders
	case FeatureCustomRoles:
		return e.CustomRoles
	case FeatureSLO:
		return e.SLO
	case FeatureReports:
		return e.Reports
	case FeatureMultiRegion:
		return e.MultiRegion
	case FeatureOncall:
		return e.Oncall
	default:
		return false
	}
}

// Features lists the enabled features in AllFeatures order.
func (e Entitlements) Features() []Feature {
	var out []Feature
	for _, f := range AllFeatures() {
		if e.HasFeature(f) {
			out = append(out, f)
		}
	}
	return out
}
