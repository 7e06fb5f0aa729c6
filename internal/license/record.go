package license

import (
	"fmt"
	"strings"
	"time"
)

// LicenseStatus is the provider-declared lifecycle state of a license.
type LicenseStatus string

const (
	StatusActive      LicenseStatus = "active"
	StatusGracePeriod LicenseStatus = "grace_period"
	StatusExpiring    LicenseStatus = "expiring"
	StatusExpired     LicenseStatus = "expired"
	StatusSuspended   LicenseStatus = "suspended"
	StatusBanned      LicenseStatus = "banned"
	StatusInactive    LicenseStatus = "inactive"
)

// NormalizeStatus lowercases a provider status ("ACTIVE" -> "active").
func NormalizeStatus(s string) LicenseStatus {
	return LicenseStatus(strings.ToLower(strings.TrimSpace(s)))
}

// IsActive reports whether the status grants entitlements, which includes the
// grace period after a missed renewal.
func (s LicenseStatus) IsActive() bool {
	switch NormalizeStatus(string(s)) {
	case StatusActive, StatusGracePeriod:
		return true
	default:
		return false
	}
}

// LicenseRecord is the license extracted from a key or a license file.
type LicenseRecord struct {
	ID           string           `json:"id"`
	Key          string           `json:"key,omitempty"`
	Expiry       *time.Time       `json:"expiry,omitempty"`
	Status       string           `json:"status,omitempty"`
	Policy       string           `json:"policy,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Entitlements []RawEntitlement `json:"entitlements,omitempty"`
}

// IsExpired reports whether the record carries an expiry at or before now.
func (r *LicenseRecord) IsExpired(now time.Time) bool {
	return r.Expiry != nil && !r.Expiry.After(now)
}

// Plan returns the plan name recorded in the license metadata, if any.
func (r *LicenseRecord) Plan() string {
	if r == nil {
		return ""
	}
	for _, key := range []string{"plan", "tier"} {
		if v, ok := r.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// parseTimestamp accepts RFC 3339 timestamps with or without fractional seconds.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
