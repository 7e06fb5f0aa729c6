package license

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrLicenseNotFound is returned by an EntitlementFetcher when the license
// does not exist at the provider.
var ErrLicenseNotFound = errors.New("license not found")

// EntitlementFetcher loads the entitlements attached to a license from the
// license provider.
type EntitlementFetcher interface {
	FetchEntitlements(ctx context.Context, licenseID string) ([]RawEntitlement, error)
}

// TierStore returns the subscription tier stored for an organization.
type TierStore interface {
	GetSubscriptionTier(ctx context.Context, orgID uuid.UUID) (SubscriptionTier, error)
}

// EntitlementCache holds fetched entitlements per license. Get reports
// ok=false on a miss.
type EntitlementCache interface {
	Get(ctx context.Context, licenseID string) (records []RawEntitlement, ok bool, err error)
	Set(ctx context.Context, licenseID string, records []RawEntitlement) error
	Invalidate(ctx context.Context, licenseID string) error
	// InvalidateAll drops every cached license, for events that cannot be
	// traced to one license.
	InvalidateAll(ctx context.Context) error
}
