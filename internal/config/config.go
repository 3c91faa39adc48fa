// Package config loads and validates the dashlink.yml configuration used by
// the CLI and the submitter side.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level dashlink.yml configuration.
type Config struct {
	Version         string `yaml:"version"`
	Instance        string `yaml:"instance"`
	RedisURL        string `yaml:"redis_url"`
	Link            string `yaml:"link,omitempty"`   // Default link id, "grafana" if omitted
	Leader          *bool  `yaml:"leader,omitempty"` // Write leadership, true if omitted
	Environment     string `yaml:"environment"`
	EnvironmentUUID string `yaml:"environment_uuid"`
	Application     string `yaml:"application"`
}

// DefaultLink is used when dashlink.yml does not name a link.
const DefaultLink = "grafana"

// Validate performs strict validation on the configuration.
// Defaults for optional fields are applied as part of validation.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		return fmt.Errorf("instance cannot be empty")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("redis_url cannot be empty")
	}

	if c.Environment == "" || c.EnvironmentUUID == "" || c.Application == "" {
		return fmt.Errorf("environment, environment_uuid and application are all required")
	}

	if c.Link == "" {
		c.Link = DefaultLink
	}
	if c.Leader == nil {
		leader := true
		c.Leader = &leader
	}

	return nil
}

// IsLeader reports whether this instance holds write leadership.
func (c *Config) IsLeader() bool {
	return c.Leader == nil || *c.Leader
}

// Load reads and validates a dashlink.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
