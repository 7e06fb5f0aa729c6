// Package config provides configuration management for the entitlement service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openstatushq/entitlements/internal/license"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// DefaultLicenseAPIURL is the license provider API used when none is set.
const DefaultLicenseAPIURL = "https://api.keygen.sh"

// LicenseSettings are the license provider settings for one deployment mode.
type LicenseSettings struct {
	AccountID        string `yaml:"account_id,omitempty"`
	APIURL           string `yaml:"api_url,omitempty"`
	PublicKey        string `yaml:"public_key,omitempty"`
	ProductID        string `yaml:"product_id,omitempty"`
	WebhookSecret    string `yaml:"webhook_secret,omitempty"`
	WebhookPublicKey string `yaml:"webhook_public_key,omitempty"`
}

// ServerConfig holds service configuration. Values come from an optional
// YAML file, then environment variables override them.
type ServerConfig struct {
	Environment         Environment     `yaml:"environment,omitempty"`
	SelfHosted          bool            `yaml:"self_hosted,omitempty"`
	DatabaseURL         string          `yaml:"database_url,omitempty"`
	RedisURL            string          `yaml:"redis_url,omitempty"`
	EntitlementCacheTTL int             `yaml:"entitlement_cache_ttl,omitempty"` // seconds, 0 disables caching
	WebhookTolerance    int             `yaml:"webhook_tolerance,omitempty"`     // seconds, 0 disables the check
	LicenseKey          string          `yaml:"license_key,omitempty"`
	License             LicenseSettings `yaml:"license,omitempty"`
	// SelfHostedLicense takes precedence over License in self-hosted mode.
	SelfHostedLicense LicenseSettings `yaml:"self_hosted_license,omitempty"`
}

// DefaultServerConfig returns the configuration used before any overrides.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Environment:         EnvDevelopment,
		EntitlementCacheTTL: 300,
		License:             LicenseSettings{APIURL: DefaultLicenseAPIURL},
	}
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	cfg := DefaultServerConfig()
	applyEnv(&cfg)
	return cfg
}

// Load reads the configuration file at path and applies environment
// overrides. A missing file is not an error.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return ServerConfig{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return ServerConfig{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *ServerConfig) {
	cfg.Environment = Environment(getEnvString("ENV", string(cfg.Environment)))
	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		cfg.Environment = EnvDevelopment
	}

	cfg.SelfHosted = getEnvBool("SELF_HOSTED", cfg.SelfHosted)
	cfg.DatabaseURL = getEnvString("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnvString("REDIS_URL", cfg.RedisURL)
	cfg.LicenseKey = getEnvString("LICENSE_KEY", cfg.LicenseKey)

	cfg.EntitlementCacheTTL = getEnvInt("ENTITLEMENT_CACHE_TTL", cfg.EntitlementCacheTTL)
	if cfg.EntitlementCacheTTL < 0 {
		cfg.EntitlementCacheTTL = 0
	}
	cfg.WebhookTolerance = getEnvInt("LICENSE_WEBHOOK_TOLERANCE", cfg.WebhookTolerance)
	if cfg.WebhookTolerance < 0 {
		cfg.WebhookTolerance = 0
	}

	applyLicenseEnv(&cfg.License, "LICENSE_")
	applyLicenseEnv(&cfg.SelfHostedLicense, "SELF_HOSTED_LICENSE_")
}

func applyLicenseEnv(s *LicenseSettings, prefix string) {
	s.AccountID = getEnvString(prefix+"ACCOUNT_ID", s.AccountID)
	s.APIURL = getEnvString(prefix+"API_URL", s.APIURL)
	s.PublicKey = getEnvString(prefix+"PUBLIC_KEY", s.PublicKey)
	s.ProductID = getEnvString(prefix+"PRODUCT_ID", s.ProductID)
	s.WebhookSecret = getEnvString(prefix+"WEBHOOK_SECRET", s.WebhookSecret)
	s.WebhookPublicKey = getEnvString(prefix+"WEBHOOK_PUBLIC_KEY", s.WebhookPublicKey)
}

// Mode returns the deployment mode.
func (c ServerConfig) Mode() license.DeploymentMode {
	if c.SelfHosted {
		return license.ModeSelfHosted
	}
	return license.ModeHosted
}

// LicenseConfig builds the license provider configuration for the current
// mode. In self-hosted mode each self-hosted setting that is set replaces
// the shared one.
func (c ServerConfig) LicenseConfig() license.Config {
	s := c.License
	if c.SelfHosted {
		s = overlay(s, c.SelfHostedLicense)
	}
	if s.APIURL == "" {
		s.APIURL = DefaultLicenseAPIURL
	}
	return license.Config{
		Mode:             c.Mode(),
		AccountID:        s.AccountID,
		APIURL:           strings.TrimRight(s.APIURL, "/"),
		PublicKey:        s.PublicKey,
		ProductID:        s.ProductID,
		WebhookSecret:    s.WebhookSecret,
		WebhookPublicKey: s.WebhookPublicKey,
	}
}

func overlay(base, over LicenseSettings) LicenseSettings {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return LicenseSettings{
		AccountID:        pick(base.AccountID, over.AccountID),
		APIURL:           pick(base.APIURL, over.APIURL),
		PublicKey:        pick(base.PublicKey, over.PublicKey),
		ProductID:        pick(base.ProductID, over.ProductID),
		WebhookSecret:    pick(base.WebhookSecret, over.WebhookSecret),
		WebhookPublicKey: pick(base.WebhookPublicKey, over.WebhookPublicKey),
	}
}

// getEnvString reads a string from an environment variable, returning the default if unset.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
