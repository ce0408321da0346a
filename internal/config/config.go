// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "tollgate.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultEnvFile         = ".env"
	EnvPrefix              = "tollgate"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// GovernanceConfig bootstraps the timelock and upgrade manager on first
// start. It is ignored once they are initialized.
type GovernanceConfig struct {
	Admin string `yaml:"admin"`
	// ManagerPrincipal is the identity the manager acts as. It becomes the
	// timelock admin and the default proxy governance.
	ManagerPrincipal string   `yaml:"managerPrincipal" split_words:"true"`
	Validators       []string `yaml:"validators"`
	Threshold        uint32   `yaml:"threshold"`
	// TimelockDelay is in seconds
	TimelockDelay uint64 `yaml:"timelockDelay" split_words:"true"`
}

// TargetConfig describes a managed target and its proxy
type TargetConfig struct {
	Address        string `yaml:"address"`
	Implementation string `yaml:"implementation"`
	// Implementations lists further code references the target may be
	// upgraded to
	Implementations []string `yaml:"implementations"`
	// Governance defaults to the manager principal
	Governance string `yaml:"governance"`
}

type Config struct {
	DatabasePath    string           `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string           `yaml:"blobPlugin"      split_words:"true"`
	MetadataPlugin  string           `yaml:"metadataPlugin"  split_words:"true"`
	MetadataDsn     string           `yaml:"metadataDsn"     split_words:"true"`
	BindAddr        string           `yaml:"bindAddr"        split_words:"true"`
	TlsCertFilePath string           `yaml:"tlsCertFilePath" envconfig:"TLS_CERT_FILE_PATH"`
	TlsKeyFilePath  string           `yaml:"tlsKeyFilePath"  envconfig:"TLS_KEY_FILE_PATH"`
	ShutdownTimeout string           `yaml:"shutdownTimeout" split_words:"true"`
	ApiPort         uint             `yaml:"apiPort"         split_words:"true"`
	MetricsPort     uint             `yaml:"metricsPort"     split_words:"true"`
	Tracing         bool             `yaml:"tracing"`
	TracingStdout   bool             `yaml:"tracingStdout"   split_words:"true"`
	Governance      GovernanceConfig `yaml:"governance"`
	Targets         []TargetConfig   `yaml:"targets"         ignored:"true"`
	// Storage tuning. Zero values keep the plugin defaults
	MetadataMaxConnections     int    `yaml:"metadataMaxConnections"     split_words:"true"`
	StorageMaintenanceInterval string `yaml:"storageMaintenanceInterval" split_words:"true"`
	// ApiTokens maps bearer tokens to principals. From the environment use
	// TOLLGATE_API_TOKENS=token1:principal1,token2:principal2
	ApiTokens map[string]string `yaml:"apiTokens" split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".tollgate",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		ApiPort:         8080,
		MetricsPort:     12798,
		ShutdownTimeout: DefaultShutdownTimeout,
		Governance: GovernanceConfig{
			ManagerPrincipal: "tollgate-manager",
			TimelockDelay:    86400,
		},
	}
}

var globalConfig = defaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.tollgate/tollgate.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".tollgate", "tollgate.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/tollgate/tollgate.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/tollgate/tollgate.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Overlay config values onto existing defaults
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Values from a .env file never override the real environment
	if _, err := os.Stat(DefaultEnvFile); err == nil {
		if err := godotenv.Load(DefaultEnvFile); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", DefaultEnvFile, err)
		}
	}

	// Process environment variables
	err := envconfig.Process(EnvPrefix, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks the settings that can be checked without opening the
// database
func (c *Config) Validate() error {
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.StorageMaintenanceIntervalDuration(); err != nil {
		return err
	}
	switch c.MetadataPlugin {
	case "postgres", "mysql":
		if c.MetadataDsn == "" {
			return fmt.Errorf(
				"metadataDsn is required for the %s metadata plugin",
				c.MetadataPlugin,
			)
		}
	}
	if c.MetadataMaxConnections < 0 {
		return errors.New("metadataMaxConnections must not be negative")
	}
	gov := c.Governance
	if gov.ManagerPrincipal == "" {
		return errors.New("governance.managerPrincipal must not be empty")
	}
	if int(gov.Threshold) > len(gov.Validators) {
		return fmt.Errorf(
			"governance.threshold %d exceeds %d validators",
			gov.Threshold,
			len(gov.Validators),
		)
	}
	seen := make(map[string]struct{}, len(c.Targets))
	for _, target := range c.Targets {
		if target.Address == "" {
			return errors.New("target address must not be empty")
		}
		if target.Implementation == "" {
			return fmt.Errorf("target %s: implementation must not be empty", target.Address)
		}
		if _, ok := seen[target.Address]; ok {
			return fmt.Errorf("duplicate target %s", target.Address)
		}
		seen[target.Address] = struct{}{}
	}
	return nil
}

// ShutdownTimeoutDuration parses ShutdownTimeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf(
			"invalid shutdownTimeout %q: %w",
			c.ShutdownTimeout,
			err,
		)
	}
	return timeout, nil
}

// StorageMaintenanceIntervalDuration parses StorageMaintenanceInterval. An
// empty value returns zero.
func (c *Config) StorageMaintenanceIntervalDuration() (time.Duration, error) {
	if c.StorageMaintenanceInterval == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(c.StorageMaintenanceInterval)
	if err != nil {
		return 0, fmt.Errorf(
			"invalid storageMaintenanceInterval %q: %w",
			c.StorageMaintenanceInterval,
			err,
		)
	}
	if interval < 0 {
		return 0, fmt.Errorf(
			"storageMaintenanceInterval %q must not be negative",
			c.StorageMaintenanceInterval,
		)
	}
	return interval, nil
}
