package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func resetGlobalConfig() {
	globalConfig = defaultConfig()
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test-tollgate.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return tmpFile
}

func TestLoad_CompareFullStruct(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
databasePath: "/var/lib/tollgate"
metadataPlugin: "postgres"
metadataDsn: "host=db user=tollgate dbname=tollgate"
bindAddr: "127.0.0.1"
apiPort: 9000
metricsPort: 9001
tracing: true
shutdownTimeout: "10s"
metadataMaxConnections: 20
storageMaintenanceInterval: "1h"
tlsCertFilePath: "cert1.pem"
tlsKeyFilePath: "key1.pem"
governance:
  admin: "admin"
  validators: ["v1", "v2", "v3"]
  threshold: 2
  timelockDelay: 3600
targets:
  - address: "vault"
    implementation: "vault-v1"
    implementations: ["vault-v2"]
apiTokens:
  secret-v1: "v1"
`
	expected := &Config{
		DatabasePath:    "/var/lib/tollgate",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  "postgres",
		MetadataDsn:     "host=db user=tollgate dbname=tollgate",
		BindAddr:        "127.0.0.1",
		ApiPort:         9000,
		MetricsPort:     9001,
		Tracing:         true,
		ShutdownTimeout: "10s",
		TlsCertFilePath: "cert1.pem",
		TlsKeyFilePath:  "key1.pem",
		Governance: GovernanceConfig{
			Admin:            "admin",
			ManagerPrincipal: "tollgate-manager",
			Validators:       []string{"v1", "v2", "v3"},
			Threshold:        2,
			TimelockDelay:    3600,
		},
		Targets: []TargetConfig{
			{
				Address:         "vault",
				Implementation:  "vault-v1",
				Implementations: []string{"vault-v2"},
			},
		},
		MetadataMaxConnections:     20,
		StorageMaintenanceInterval: "1h",
		ApiTokens:                  map[string]string{"secret-v1": "v1"},
	}

	actual, err := LoadConfig(writeConfigFile(t, yamlContent))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf(
			"Loaded config does not match expected.\nActual: %+v\nExpected: %+v",
			actual,
			expected,
		)
	}
}

func TestLoad_WithoutConfigFile_UsesDefaults(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, defaultConfig()) {
		t.Errorf(
			"config mismatch without file:\nExpected: %+v\nGot:      %+v",
			defaultConfig(),
			cfg,
		)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("TOLLGATE_API_PORT", "7070")
	t.Setenv("TOLLGATE_GOVERNANCE_VALIDATORS", "a,b")
	t.Setenv("TOLLGATE_GOVERNANCE_TIMELOCK_DELAY", "60")
	t.Setenv("TOLLGATE_API_TOKENS", "tok-a:a,tok-b:b")

	cfg, err := LoadConfig(writeConfigFile(t, "apiPort: 9000\n"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.ApiPort != 7070 {
		t.Errorf("expected ApiPort 7070, got: %d", cfg.ApiPort)
	}
	if !reflect.DeepEqual(cfg.Governance.Validators, []string{"a", "b"}) {
		t.Errorf("unexpected validators: %v", cfg.Governance.Validators)
	}
	if cfg.Governance.TimelockDelay != 60 {
		t.Errorf("expected TimelockDelay 60, got: %d", cfg.Governance.TimelockDelay)
	}
	if cfg.ApiTokens["tok-b"] != "b" {
		t.Errorf("unexpected API tokens: %v", cfg.ApiTokens)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	resetGlobalConfig()
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(
		filepath.Join(dir, DefaultEnvFile),
		[]byte("TOLLGATE_METRICS_PORT=5555\n"),
		0o600,
	); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	// godotenv sets the process environment directly
	t.Cleanup(func() {
		_ = os.Unsetenv("TOLLGATE_METRICS_PORT")
	})

	cfg, err := LoadConfig(writeConfigFile(t, ""))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.MetricsPort != 5555 {
		t.Errorf("expected MetricsPort 5555, got: %d", cfg.MetricsPort)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad timeout", func(c *Config) { c.ShutdownTimeout = "soon" }},
		{"postgres without dsn", func(c *Config) { c.MetadataPlugin = "postgres" }},
		{"mysql without dsn", func(c *Config) { c.MetadataPlugin = "mysql" }},
		{"negative max connections", func(c *Config) { c.MetadataMaxConnections = -1 }},
		{"bad maintenance interval", func(c *Config) { c.StorageMaintenanceInterval = "daily" }},
		{"negative maintenance interval", func(c *Config) { c.StorageMaintenanceInterval = "-1m" }},
		{"empty manager principal", func(c *Config) { c.Governance.ManagerPrincipal = "" }},
		{"threshold too high", func(c *Config) {
			c.Governance.Validators = []string{"v1"}
			c.Governance.Threshold = 2
		}},
		{"empty target address", func(c *Config) {
			c.Targets = []TargetConfig{{Implementation: "x"}}
		}},
		{"duplicate target", func(c *Config) {
			c.Targets = []TargetConfig{
				{Address: "vault", Implementation: "v1"},
				{Address: "vault", Implementation: "v2"},
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := defaultConfig()
	timeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timeout != 30*time.Second {
		t.Errorf("expected 30s, got: %s", timeout)
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected no config in empty context")
	}
	cfg := defaultConfig()
	if FromContext(WithContext(context.Background(), cfg)) != cfg {
		t.Fatal("expected config from context")
	}
}
