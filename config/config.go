// Package config loads the ward daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by LoadConfig when the file leaves fields unset.
const (
	DefaultSyncInterval       = 15 * time.Minute
	DefaultSweepInterval      = time.Hour
	DefaultExecutionRetention = 30 * 24 * time.Hour
	DefaultMetricsPort        = 9464
)

// ConnectorConfig selects and configures one discovery connector.
type ConnectorConfig struct {
	Name         string `yaml:"name"`
	TenantDomain string `yaml:"tenant_domain,omitempty"`
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	APIEndpoint  string `yaml:"api_endpoint,omitempty"`
}

// Config is the main daemon configuration.
type Config struct {
	Version  string `yaml:"version"`
	TenantID string `yaml:"tenant_id"`

	StorageDir string `yaml:"storage_dir"`
	AuditDir   string `yaml:"audit_dir"`

	SyncInterval       time.Duration `yaml:"sync_interval"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	ExecutionRetention time.Duration `yaml:"execution_retention"`

	MetricsPort  int    `yaml:"metrics_port"`
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	Environment  string `yaml:"environment,omitempty"`

	Connectors []ConnectorConfig `yaml:"connectors,omitempty"`
}

// LoadConfig loads configuration from file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ExecutionRetention <= 0 {
		c.ExecutionRetention = DefaultExecutionRetention
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = DefaultMetricsPort
	}
	if c.AuditDir == "" && c.StorageDir != "" {
		c.AuditDir = c.StorageDir + "/audit"
	}
}

// Validate ensures config has required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir is required")
	}
	for i, conn := range c.Connectors {
		if conn.Name == "" {
			return fmt.Errorf("connector %d has no name", i)
		}
	}
	return nil
}
