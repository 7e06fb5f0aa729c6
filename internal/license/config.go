package license

import (
	"errors"
	"sync"
)

// DeploymentMode selects between the hosted product and a self-hosted install.
type DeploymentMode string

const (
	// ModeHosted is the multi-tenant hosted deployment.
	ModeHosted DeploymentMode = "hosted"
	// ModeSelfHosted is a customer-operated deployment.
	ModeSelfHosted DeploymentMode = "self_hosted"
)

// IsSelfHosted reports whether the mode is self-hosted.
func (m DeploymentMode) IsSelfHosted() bool {
	return m == ModeSelfHosted
}

// Config holds the license provider settings for one deployment mode.
type Config struct {
	Mode             DeploymentMode `yaml:"mode"`
	AccountID        string         `yaml:"account_id"`
	APIURL           string         `yaml:"api_url"`
	PublicKey        string         `yaml:"public_key"`
	ProductID        string         `yaml:"product_id"`
	WebhookSecret    string         `yaml:"webhook_secret"`
	WebhookPublicKey string         `yaml:"webhook_public_key"`
}

// ErrNoConfigLoader is returned by a ConfigCache constructed without a loader.
var ErrNoConfigLoader = errors.New("license config loader is required")

// ConfigCache lazily builds a Config once and hands out the cached value.
// Initialisation is serialised so concurrent first callers share one load.
type ConfigCache struct {
	mu     sync.Mutex
	loader func() (Config, error)
	cfg    *Config
}

// NewConfigCache creates a cache around loader.
func NewConfigCache(loader func() (Config, error)) *ConfigCache {
	return &ConfigCache{loader: loader}
}

// Get returns the cached config, loading it on first use. A failed load is
// not cached.
func (c *ConfigCache) Get() (Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg != nil {
		return *c.cfg, nil
	}
	if c.loader == nil {
		return Config{}, ErrNoConfigLoader
	}

	cfg, err := c.loader()
	if err != nil {
		return Config{}, err
	}
	c.cfg = &cfg
	return cfg, nil
}

// Reset drops the cached config so the next Get reloads it.
func (c *ConfigCache) Reset() {
	c.mu.Lock()
	c.cfg = nil
	c.mu.Unlock()
}
