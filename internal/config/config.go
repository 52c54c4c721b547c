package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models standline.yml.
type Config struct {
	Predictor PredictorConfig `yaml:"predictor"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Webhooks  []WebhookConfig `yaml:"webhooks,omitempty"`
}

// PredictorConfig selects the risk-prediction provider. The mode is an
// explicit configuration value injected at construction time; business logic
// never consults the process environment for it.
type PredictorConfig struct {
	Mode           string `yaml:"mode"` // mock or http
	BaseURL        string `yaml:"base_url,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// SchedulerConfig names the actor attributed to automated sweeps.
type SchedulerConfig struct {
	ActorID string `yaml:"actor_id"`
}

// WebhookConfig is one outbound event delivery target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

const fileName = "standline.yml"

// Path returns the config path for the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Default returns the configuration used when no file exists: a mock
// predictor and a dedicated scheduler actor.
func Default() *Config {
	return &Config{
		Predictor: PredictorConfig{Mode: "mock", TimeoutSeconds: 10},
		Scheduler: SchedulerConfig{ActorID: "scheduler"},
	}
}

// Load reads config from the workspace, falling back to defaults when no
// file is present.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Predictor.Mode {
	case "mock":
	case "http":
		if c.Predictor.BaseURL == "" {
			return fmt.Errorf("config.predictor.base_url is required for http mode")
		}
	default:
		return fmt.Errorf("config.predictor.mode must be 'mock' or 'http'")
	}
	if c.Scheduler.ActorID == "" {
		return fmt.Errorf("config.scheduler.actor_id is required")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}
