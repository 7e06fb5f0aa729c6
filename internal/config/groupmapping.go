package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openstatushq/entitlements/internal/models"
)

// LoadGroupMapping reads and validates a group-role mapping policy from a
// YAML file.
func LoadGroupMapping(path string) (models.GroupRoleMappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GroupRoleMappingConfig{}, fmt.Errorf("read group mapping file: %w", err)
	}

	var cfg models.GroupRoleMappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.GroupRoleMappingConfig{}, fmt.Errorf("parse group mapping file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return models.GroupRoleMappingConfig{}, fmt.Errorf("invalid group mapping: %w", err)
	}
	return cfg, nil
}
