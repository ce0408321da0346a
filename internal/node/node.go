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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/tollgate"
	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeConfig converts the loaded configuration into node options. Extra
// options are applied last.
func NodeConfig(
	cfg *config.Config,
	logger *slog.Logger,
	opts ...tollgate.ConfigOptionFunc,
) (tollgate.Config, error) {
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return tollgate.Config{}, err
	}
	maintenanceInterval, err := cfg.StorageMaintenanceIntervalDuration()
	if err != nil {
		return tollgate.Config{}, err
	}
	validators := make([]auth.Principal, 0, len(cfg.Governance.Validators))
	for _, validator := range cfg.Governance.Validators {
		validators = append(validators, auth.Principal(validator))
	}
	targets := make([]tollgate.TargetConfig, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		targets = append(targets, tollgate.TargetConfig{
			Address:         target.Address,
			Implementation:  target.Implementation,
			Implementations: target.Implementations,
			Governance:      auth.Principal(target.Governance),
		})
	}
	nodeOpts := []tollgate.ConfigOptionFunc{
		tollgate.WithLogger(logger),
		tollgate.WithDatabasePath(cfg.DatabasePath),
		tollgate.WithBlobPlugin(cfg.BlobPlugin),
		tollgate.WithMetadataPlugin(cfg.MetadataPlugin),
		tollgate.WithMetadataDsn(cfg.MetadataDsn),
		tollgate.WithMetadataMaxConnections(cfg.MetadataMaxConnections),
		tollgate.WithStorageMaintenanceInterval(maintenanceInterval),
		tollgate.WithBindAddr(cfg.BindAddr),
		tollgate.WithApiPort(cfg.ApiPort),
		tollgate.WithApiTlsCertFilePath(cfg.TlsCertFilePath),
		tollgate.WithApiTlsKeyFilePath(cfg.TlsKeyFilePath),
		tollgate.WithApiTokens(cfg.ApiTokens),
		tollgate.WithGovernance(tollgate.GovernanceConfig{
			Admin:            auth.Principal(cfg.Governance.Admin),
			ManagerPrincipal: auth.Principal(cfg.Governance.ManagerPrincipal),
			Validators:       validators,
			Threshold:        cfg.Governance.Threshold,
			TimelockDelay:    cfg.Governance.TimelockDelay,
		}),
		tollgate.WithTargets(targets...),
		tollgate.WithShutdownTimeout(shutdownTimeout),
		// Enable metrics with default prometheus registry
		tollgate.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		tollgate.WithTracing(cfg.Tracing),
		tollgate.WithTracingStdout(cfg.TracingStdout),
	}
	return tollgate.NewConfig(append(nodeOpts, opts...)...), nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	nodeCfg, err := NodeConfig(cfg, logger)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	n, err := tollgate.New(nodeCfg)
	if err != nil {
		return err
	}
	// Metrics listener
	metricsAddr := net.JoinHostPort(cfg.BindAddr, fmt.Sprintf("%d", cfg.MetricsPort))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", "node",
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	metricsErrCh := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			metricsErrCh <- fmt.Errorf("failed to start metrics listener: %w", err)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- n.Run(signalCtx)
	}()

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		return nil
	}

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		if err := shutdown(); err != nil {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-metricsErrCh:
		logger.Error("metrics listener error", "error", err)
		signalCtxStop()
		return errors.Join(err, shutdown())
	case err := <-errChan:
		if err == nil {
			logger.Info("node stopped")
			return shutdown()
		}
		logger.Error("node error", "error", err)
		signalCtxStop()
		return errors.Join(err, shutdown())
	}
}
