package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Create a temp config file
	content := `
version: v1
tenant_id: acme
storage_dir: /var/lib/ward

sync_interval: 5m
metrics_port: 9100

connectors:
  - name: static
    tenant_domain: acme.example.com
`
	tmpfile, err := os.CreateTemp("", "ward-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Load the config
	cfg, err := LoadConfig(tmpfile.Name())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	// Verify config
	if cfg.Version != "v1" {
		t.Errorf("Version = %v, want v1", cfg.Version)
	}
	if cfg.TenantID != "acme" {
		t.Errorf("TenantID = %v, want acme", cfg.TenantID)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want 5m", cfg.SyncInterval)
	}
	if cfg.MetricsPort != 9100 {
		t.Errorf("MetricsPort = %v, want 9100", cfg.MetricsPort)
	}
	if len(cfg.Connectors) != 1 {
		t.Errorf("Connectors count = %v, want 1", len(cfg.Connectors))
	}

	// Unset fields pick up defaults
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %v, want default %v", cfg.SweepInterval, DefaultSweepInterval)
	}
	if cfg.ExecutionRetention != DefaultExecutionRetention {
		t.Errorf("ExecutionRetention = %v, want default %v", cfg.ExecutionRetention, DefaultExecutionRetention)
	}
	if cfg.AuditDir != "/var/lib/ward/audit" {
		t.Errorf("AuditDir = %v, want derived from storage_dir", cfg.AuditDir)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				Version:    "v1",
				TenantID:   "acme",
				StorageDir: "/var/lib/ward",
			},
			wantErr: false,
		},
		{
			name: "missing version",
			config: Config{
				TenantID:   "acme",
				StorageDir: "/var/lib/ward",
			},
			wantErr: true,
		},
		{
			name: "missing tenant",
			config: Config{
				Version:    "v1",
				StorageDir: "/var/lib/ward",
			},
			wantErr: true,
		},
		{
			name: "missing storage dir",
			config: Config{
				Version:  "v1",
				TenantID: "acme",
			},
			wantErr: true,
		},
		{
			name: "connector without name",
			config: Config{
				Version:    "v1",
				TenantID:   "acme",
				StorageDir: "/var/lib/ward",
				Connectors: []ConnectorConfig{{TenantDomain: "acme.example.com"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
