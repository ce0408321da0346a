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

package tollgate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/clock"
	"github.com/blinklabs-io/tollgate/migration"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultManagerPrincipal auth.Principal = "tollgate-manager"
	DefaultTimelockDelay    uint64         = 86400
)

// GovernanceConfig bootstraps the timelock and the upgrade manager. It only
// applies the first time the node starts against a database.
type GovernanceConfig struct {
	Admin auth.Principal
	// ManagerPrincipal is the identity the manager acts as. It is the
	// timelock admin and the default governance of every proxy.
	ManagerPrincipal auth.Principal
	Validators       []auth.Principal
	// Threshold of 0 requires every validator
	Threshold uint32
	// TimelockDelay is in seconds
	TimelockDelay uint64
}

// TargetConfig describes a managed target. Its data is kept in the node
// database and its proxy starts at Implementation.
type TargetConfig struct {
	Address        string
	Implementation string
	// Implementations lists further code references the target may be
	// upgraded to
	Implementations []string
	// Governance defaults to the manager principal. Any other principal may
	// roll the proxy back behind the manager, leaving the target data version
	// ahead of the proxy version
	Governance auth.Principal
}

type Config struct {
	promRegistry        prometheus.Registerer
	logger              *slog.Logger
	clock               clock.Clock
	codes               *proxy.CodeRegistry
	migrations          *migration.Registry
	dataDir             string
	blobPlugin          string
	metadataPlugin      string
	metadataDsn         string
	metadataMaxConns    int
	maintenanceInterval time.Duration
	bindAddr            string
	tlsCertFilePath     string
	tlsKeyFilePath      string
	apiTokens           map[string]string
	governance          GovernanceConfig
	targets             []TargetConfig
	apiPort             uint
	apiDisabled         bool
	tracing             bool
	tracingStdout       bool
	shutdownTimeout     time.Duration
}

func (n *Node) configValidate() error {
	gov := n.config.governance
	if gov.ManagerPrincipal == "" {
		return errors.New("manager principal must not be empty")
	}
	if int(gov.Threshold) > len(gov.Validators) {
		return fmt.Errorf(
			"threshold %d exceeds %d validators",
			gov.Threshold,
			len(gov.Validators),
		)
	}
	if gov.Admin == "" && len(gov.Validators) > 0 {
		return errors.New("validators defined without an admin")
	}
	seen := make(map[string]struct{}, len(n.config.targets))
	for _, target := range n.config.targets {
		if target.Address == "" {
			return errors.New("target address must not be empty")
		}
		if target.Implementation == "" {
			return fmt.Errorf(
				"target %s: implementation must not be empty",
				target.Address,
			)
		}
		if _, ok := seen[target.Address]; ok {
			return fmt.Errorf("duplicate target %s", target.Address)
		}
		seen[target.Address] = struct{}{}
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new tollgate config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		governance: GovernanceConfig{
			ManagerPrincipal: DefaultManagerPrincipal,
			TimelockDelay:    DefaultTimelockDelay,
		},
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithMetadataDsn specifies the connection string for network-backed metadata plugins
func WithMetadataDsn(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataDsn = dsn
	}
}

// WithMetadataMaxConnections caps the connection pool of network-backed
// metadata plugins. Zero keeps the plugin default.
func WithMetadataMaxConnections(maxConns int) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataMaxConns = maxConns
	}
}

// WithStorageMaintenanceInterval sets how often the storage plugins run their
// background maintenance (badger value log GC, sqlite vacuum). Zero keeps the
// plugin defaults.
func WithStorageMaintenanceInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.maintenanceInterval = interval
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithClock specifies the clock used for timelock deadlines. This defaults to the system clock
func WithClock(clk clock.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clk
	}
}

// WithCodeRegistry specifies the implementations available to proxies. Configured targets add a data
// implementation for each of their code references that is not already registered
func WithCodeRegistry(codes *proxy.CodeRegistry) ConfigOptionFunc {
	return func(c *Config) {
		c.codes = codes
	}
}

// WithMigrationRegistry specifies additional managed targets. Configured targets whose address is not
// already registered get a data-only target
func WithMigrationRegistry(migrations *migration.Registry) ConfigOptionFunc {
	return func(c *Config) {
		c.migrations = migrations
	}
}

// WithGovernance specifies the governance bootstrap settings
func WithGovernance(governance GovernanceConfig) ConfigOptionFunc {
	return func(c *Config) {
		if governance.ManagerPrincipal == "" {
			governance.ManagerPrincipal = DefaultManagerPrincipal
		}
		c.governance = governance
	}
}

// WithTargets specifies the managed targets
func WithTargets(targets ...TargetConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.targets = append(c.targets, targets...)
	}
}

// WithBindAddr specifies the address the API listens on. This defaults to all addresses
func WithBindAddr(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.bindAddr = addr
	}
}

// WithApiPort specifies the port to use for the API listener. A port of 0 binds an ephemeral port
func WithApiPort(port uint) ConfigOptionFunc {
	return func(c *Config) {
		c.apiPort = port
	}
}

// WithApiDisabled turns off the API listener
func WithApiDisabled(disabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.apiDisabled = disabled
	}
}

// WithApiTokens specifies the bearer tokens accepted by the API and the principals they map to
func WithApiTokens(tokens map[string]string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiTokens = tokens
	}
}

// WithApiTlsCertFilePath specifies the path to the TLS certificate for the API listener. This defaults to empty
func WithApiTlsCertFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsCertFilePath = path
	}
}

// WithApiTlsKeyFilePath specifies the path to the TLS key for the API listener. This defaults to empty
func WithApiTlsKeyFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.tlsKeyFilePath = path
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
