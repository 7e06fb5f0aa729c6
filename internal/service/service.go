// Package service composes license verification, entitlement loading and
// org type resolution behind one entry point.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openstatushq/entitlements/internal/license"
	"github.com/openstatushq/entitlements/internal/metrics"
	"github.com/openstatushq/entitlements/internal/webhooks"
)

// ErrInvalidWebhookSignature is returned by HandleWebhook when the
// signature header does not verify.
var ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

// Entitlement cache metric results.
const (
	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheError = "error"
)

// Options configures a Service. Fetcher, Cache and Tiers are optional.
type Options struct {
	Config  license.Config
	Fetcher license.EntitlementFetcher
	Cache   license.EntitlementCache
	Tiers   license.TierStore
	Metrics metrics.Metrics
	Logger  zerolog.Logger

	// WebhookTolerance bounds the age of timestamped webhook signatures.
	WebhookTolerance time.Duration
	// AdditiveProfessionalBonus is passed through to ResolveOrgType.
	AdditiveProfessionalBonus bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service verifies license material and resolves org types. It is safe for
// concurrent use.
type Service struct {
	cfg      license.Config
	keys     *license.KeyVerifier
	files    *license.FileVerifier
	webhooks *webhooks.Verifier
	fetcher  license.EntitlementFetcher
	cache    license.EntitlementCache
	tiers    license.TierStore
	metrics  metrics.Metrics
	logger   zerolog.Logger
	additive bool
}

// New creates a Service. Missing verification material is logged once here
// rather than on every call.
func New(opts Options) *Service {
	logger := opts.Logger.With().Str("component", "license_service").Logger()

	keys := license.NewKeyVerifier(opts.Config)
	keys.Now = opts.Now
	files := license.NewFileVerifier(opts.Config)
	files.Now = opts.Now
	hooks := webhooks.NewVerifier(opts.Config)
	hooks.Now = opts.Now
	hooks.Tolerance = opts.WebhookTolerance

	if opts.Config.PublicKey == "" {
		logger.Warn().Str("mode", string(opts.Config.Mode)).Msg("no license public key configured, license verification will fail")
	}
	if opts.Config.WebhookSecret == "" && opts.Config.WebhookPublicKey == "" {
		logger.Warn().Msg("no webhook secret or public key configured, webhooks will be rejected")
	}

	return &Service{
		cfg:      opts.Config,
		keys:     keys,
		files:    files,
		webhooks: hooks,
		fetcher:  opts.Fetcher,
		cache:    opts.Cache,
		tiers:    opts.Tiers,
		metrics:  metrics.OrNoop(opts.Metrics),
		logger:   logger,
		additive: opts.AdditiveProfessionalBonus,
	}
}

// Mode returns the configured deployment mode.
func (s *Service) Mode() license.DeploymentMode {
	return s.cfg.Mode
}

// VerifyKey verifies a license key.
func (s *Service) VerifyKey(key string) license.KeyResult {
	res := s.keys.Verify(key)
	s.metrics.IncVerification(metrics.KindKey, string(res.Code))
	if !res.Valid {
		s.logger.Debug().Str("code", string(res.Code)).Msg("license key rejected")
	}
	return res
}

// VerifyFile verifies a license file certificate.
func (s *Service) VerifyFile(certificate, licenseKey string) license.FileResult {
	res := s.files.Verify(certificate, licenseKey)
	s.metrics.IncVerification(metrics.KindFile, string(res.Code))
	if !res.Valid {
		s.logger.Debug().Str("code", string(res.Code)).Str("algorithm", res.Algorithm).Msg("license file rejected")
	}
	return res
}

// Entitlements returns the mapped entitlements of a verified license.
// Entitlements embedded in the record (license files) are used as they are;
// otherwise they are loaded through the cache and fetcher. Without a fetcher
// the mode defaults apply.
func (s *Service) Entitlements(ctx context.Context, rec *license.LicenseRecord) (license.Entitlements, error) {
	records, err := s.rawEntitlements(ctx, rec)
	if err != nil {
		return license.Entitlements{}, err
	}
	return license.MapEntitlements(records, s.cfg.Mode), nil
}

func (s *Service) rawEntitlements(ctx context.Context, rec *license.LicenseRecord) ([]license.RawEntitlement, error) {
	if rec == nil {
		return nil, nil
	}
	if rec.Entitlements != nil {
		return rec.Entitlements, nil
	}
	if s.fetcher == nil || rec.ID == "" {
		return nil, nil
	}

	if s.cache != nil {
		records, ok, err := s.cache.Get(ctx, rec.ID)
		switch {
		case err != nil:
			s.metrics.IncEntitlementCache(cacheError)
			s.logger.Warn().Err(err).Str("license_id", rec.ID).Msg("entitlement cache read failed")
		case ok:
			s.metrics.IncEntitlementCache(cacheHit)
			return records, nil
		default:
			s.metrics.IncEntitlementCache(cacheMiss)
		}
	}

	records, err := s.fetcher.FetchEntitlements(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch entitlements for license %s: %w", rec.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rec.ID, records); err != nil {
			s.metrics.IncEntitlementCache(cacheError)
			s.logger.Warn().Err(err).Str("license_id", rec.ID).Msg("entitlement cache write failed")
		}
	}
	return records, nil
}

// LicenseContext builds what a verified license contributes to org type
// resolution.
func (s *Service) LicenseContext(ctx context.Context, rec *license.LicenseRecord) (*license.LicenseContext, error) {
	if rec == nil {
		return nil, nil
	}
	ents, err := s.Entitlements(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &license.LicenseContext{
		Status:       license.NormalizeStatus(rec.Status),
		Plan:         rec.Plan(),
		Entitlements: &ents,
	}, nil
}

// ResolveForOrg resolves the org type of an organization. In hosted mode the
// stored tier is read from the tier store; lc may be nil.
func (s *Service) ResolveForOrg(ctx context.Context, orgID uuid.UUID, lc *license.LicenseContext) (license.OrgTypeContext, error) {
	opts := license.ResolveOptions{
		SelfHosted:                s.cfg.Mode.IsSelfHosted(),
		AdditiveProfessionalBonus: s.additive,
	}

	var tier license.SubscriptionTier
	if !opts.SelfHosted && s.tiers != nil {
		t, err := s.tiers.GetSubscriptionTier(ctx, orgID)
		if err != nil {
			return license.OrgTypeContext{}, fmt.Errorf("get subscription tier: %w", err)
		}
		tier = t
	}

	resolved := license.ResolveOrgType(tier, lc, opts)
	if err := resolved.Validate(); err != nil {
		return license.OrgTypeContext{}, fmt.Errorf("resolve org type for %s: %w", orgID, err)
	}

	s.metrics.IncOrgTypeResolved(string(resolved.OrgType))
	s.logger.Debug().
		Str("org_id", orgID.String()).
		Str("tier", string(tier)).
		Str("org_type", string(resolved.OrgType)).
		Msg("resolved org type")
	return resolved, nil
}

// HandleWebhook verifies a provider webhook and drops cached entitlements
// when the event can change them. Events about a license invalidate that
// license; entitlement and policy events invalidate everything.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, header string) (webhooks.Event, error) {
	if !s.webhooks.Verify(string(body), header) {
		s.metrics.IncVerification(metrics.KindWebhook, string(license.CodeInvalidSignature))
		return webhooks.Event{}, ErrInvalidWebhookSignature
	}
	s.metrics.IncVerification(metrics.KindWebhook, string(license.CodeValid))

	evt, err := webhooks.ParseEvent(body)
	if err != nil {
		return webhooks.Event{}, err
	}

	if s.cache == nil || !evt.AffectsEntitlements() {
		return evt, nil
	}

	if evt.ResourceType == "licenses" && evt.ResourceID != "" {
		err = s.cache.Invalidate(ctx, evt.ResourceID)
	} else {
		err = s.cache.InvalidateAll(ctx)
	}
	if err != nil {
		return evt, fmt.Errorf("invalidate entitlements for %s: %w", evt.Type, err)
	}

	s.logger.Info().Str("event", evt.Type).Str("resource_id", evt.ResourceID).Msg("invalidated cached entitlements")
	return evt, nil
}
