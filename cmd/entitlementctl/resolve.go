package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openstatushq/entitlements/internal/cache"
	"github.com/openstatushq/entitlements/internal/db"
	"github.com/openstatushq/entitlements/internal/keygen"
	"github.com/openstatushq/entitlements/internal/license"
	"github.com/openstatushq/entitlements/internal/service"
)

// staticTier answers every tier lookup with one tier.
type staticTier license.SubscriptionTier

func (s staticTier) GetSubscriptionTier(context.Context, uuid.UUID) (license.SubscriptionTier, error) {
	return license.SubscriptionTier(s), nil
}

type licenseOutput struct {
	Valid  bool         `json:"valid"`
	Code   license.Code `json:"code"`
	Detail string       `json:"detail,omitempty"`
}

type resolveOutput struct {
	License *licenseOutput         `json:"license,omitempty"`
	Context license.OrgTypeContext `json:"context"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		tier        string
		orgID       string
		licenseKey  string
		licenseFile string
		additive    bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an organization's type and limits",
		Long: `Resolve the org type and limits of an organization and print them as JSON.

The stored tier comes from --tier, or from the database for --org when
DATABASE_URL is set. A license key or license file contributes its plan,
status and entitlements; entitlements not embedded in a license file are
fetched from the license provider and cached in Redis when REDIS_URL is set.
An invalid license is reported and ignored.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			licenseCfg, err := opts.licenseConfig.Get()
			if err != nil {
				return err
			}
			if licenseKey == "" {
				licenseKey = cfg.LicenseKey
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			id := uuid.Nil
			if orgID != "" {
				if id, err = uuid.Parse(orgID); err != nil {
					return fmt.Errorf("parse --org: %w", err)
				}
			}

			svcOpts := service.Options{
				Config:                    licenseCfg,
				Metrics:                   promMetrics(),
				Logger:                    opts.logger,
				WebhookTolerance:          time.Duration(cfg.WebhookTolerance) * time.Second,
				AdditiveProfessionalBonus: additive,
				Tiers:                     staticTier(tier),
			}

			if id != uuid.Nil && cfg.DatabaseURL != "" && !cmd.Flags().Changed("tier") {
				database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), opts.logger)
				if err != nil {
					return err
				}
				defer database.Close()
				svcOpts.Tiers = database
			}

			if svcOpts.Config.AccountID != "" && licenseKey != "" {
				client, err := keygen.New(svcOpts.Config, keygen.Credentials{LicenseKey: licenseKey}, keygen.WithLogger(opts.logger))
				if err != nil {
					return err
				}
				svcOpts.Fetcher = client
			}

			if cfg.RedisURL != "" && cfg.EntitlementCacheTTL > 0 {
				ttl := time.Duration(cfg.EntitlementCacheTTL) * time.Second
				rc, err := cache.New(ctx, cfg.RedisURL, ttl, opts.logger)
				if err != nil {
					opts.logger.Warn().Err(err).Msg("entitlement cache unavailable, continuing without it")
				} else {
					defer rc.Close()
					svcOpts.Cache = rc
				}
			}

			svc := service.New(svcOpts)
			out, err := resolve(ctx, cmd, svc, id, licenseKey, licenseFile)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&tier, "tier", string(license.TierFree), "Stored subscription tier (free, pro, professional, enterprise)")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID to read the stored tier for")
	cmd.Flags().StringVar(&licenseKey, "license-key", "", "License key (default LICENSE_KEY)")
	cmd.Flags().StringVar(&licenseFile, "license-file", "", "License file certificate path")
	cmd.Flags().BoolVar(&additive, "additive-bonus", false, "Add purchased monitors to the professional base")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	return cmd
}

func resolve(ctx context.Context, cmd *cobra.Command, svc *service.Service, orgID uuid.UUID, licenseKey, licenseFile string) (resolveOutput, error) {
	var (
		out    resolveOutput
		record *license.LicenseRecord
	)

	switch {
	case licenseFile != "":
		cert, err := readInput(cmd, licenseFile)
		if err != nil {
			return out, err
		}
		res := svc.VerifyFile(string(cert), licenseKey)
		out.License = &licenseOutput{Valid: res.Valid, Code: res.Code, Detail: res.Detail}
		if res.Valid {
			record = res.License
		}
	case licenseKey != "":
		res := svc.VerifyKey(licenseKey)
		out.License = &licenseOutput{Valid: res.Valid, Code: res.Code, Detail: res.Detail}
		if res.Valid {
			record = res.License
		}
	}

	lc, err := svc.LicenseContext(ctx, record)
	if err != nil {
		return out, err
	}

	resolved, err := svc.ResolveForOrg(ctx, orgID, lc)
	if err != nil {
		return out, err
	}
	out.Context = resolved
	return out, nil
}
