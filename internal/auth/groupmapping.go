package auth

import (
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/openstatushq/entitlements/internal/models"
)

// DefaultGroupClaims are the claim names probed, in order, when a provider
// does not name its groups claim.
var DefaultGroupClaims = []string{
	"groups",
	"roles",
	"group",
	"role",
	"_claim_names",
	"wids",
	"cognito:groups",
	"custom:groups",
}

// ResolveRoleFromGroups picks the role for a user's identity provider groups.
// Mappings are tried in order and the first match wins. "*" matches anyone,
// a trailing "*" matches by prefix and anything else must equal a group.
// Matching ignores case. When mapping is disabled, has no rules or nothing
// matches, the default role is returned; ok is false if there is none.
func ResolveRoleFromGroups(groups []string, cfg models.GroupRoleMappingConfig) (models.Role, bool) {
	if !cfg.Enabled || len(cfg.Mappings) == 0 {
		return defaultRole(cfg)
	}

	// A Caser is not safe for concurrent use.
	lower := cases.Lower(language.Und)
	normalized := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		normalized[lower.String(g)] = struct{}{}
	}

	for _, m := range cfg.Mappings {
		if matchesGroup(lower.String(m.Group), normalized) {
			return m.Role, true
		}
	}
	return defaultRole(cfg)
}

func matchesGroup(rule string, groups map[string]struct{}) bool {
	if rule == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(rule, "*"); ok {
		for g := range groups {
			if strings.HasPrefix(g, prefix) {
				return true
			}
		}
		return false
	}
	_, ok := groups[rule]
	return ok
}

func defaultRole(cfg models.GroupRoleMappingConfig) (models.Role, bool) {
	if cfg.DefaultRole == nil || *cfg.DefaultRole == "" {
		return "", false
	}
	return *cfg.DefaultRole, true
}

// ExtractGroups reads group names from decoded token claims. A configured
// custom claim is used exclusively when it holds an array or a string;
// otherwise the first of DefaultGroupClaims holding one is used. Null or
// wrong-typed claims are skipped. A single string becomes a one element
// slice. No groups yields an empty, non-nil slice.
func ExtractGroups(claims jwt.MapClaims, customClaim string) []string {
	if customClaim != "" {
		if groups, ok := extractStringSlice(claims[customClaim]); ok {
			return groups
		}
	}

	for _, name := range DefaultGroupClaims {
		if groups, ok := extractStringSlice(claims[name]); ok {
			return groups
		}
	}
	return []string{}
}

// extractStringSlice converts the claim formats providers use for groups to
// a string slice. ok is false for absent, null or unsupported values.
func extractStringSlice(claim any) ([]string, bool) {
	switch v := claim.(type) {
	case []string:
		return append([]string{}, v...), true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result, true
	case string:
		return []string{v}, true
	case map[string]any:
		// _claim_names maps claim names to claim sources.
		result := make([]string, 0, len(v))
		for k := range v {
			result = append(result, k)
		}
		sort.Strings(result)
		return result, true
	default:
		return nil, false
	}
}
