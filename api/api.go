// Copyright 2026 Blink Labs Software
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

// Package api serves the upgrade manager, proxies and timelock over
// HTTP/JSON. Callers identify themselves with a bearer token.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"github.com/blinklabs-io/tollgate/auth"
	"github.com/blinklabs-io/tollgate/manager"
	"github.com/blinklabs-io/tollgate/proxy"
	"github.com/blinklabs-io/tollgate/timelock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ServiceName is reported by the gRPC health check
const ServiceName = "tollgate.v1.GovernanceService"

type Api struct {
	config   ApiConfig
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	doneCh   chan struct{}
}

type ApiConfig struct {
	Logger          *slog.Logger
	Manager         *manager.Manager
	Proxies         *proxy.Registry
	Timelock        *timelock.Timelock
	Tokens          *auth.TokenTable
	Host            string
	Port            uint
	TlsCertFilePath string
	TlsKeyFilePath  string
}

// NewApi creates the API server. A zero Port binds an ephemeral port.
func NewApi(cfg ApiConfig) *Api {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "api")
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Proxies == nil {
		cfg.Proxies = proxy.NewRegistry()
	}
	return &Api{
		config: cfg,
	}
}

// Handler returns the routes of the API, including the gRPC health and
// reflection services
func (a *Api) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	r.Use(a.authenticate)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Route("/proposals", func(r chi.Router) {
			r.Post("/", a.handleCreateProposal)
			r.Get("/", a.handleListProposals)
			r.Get("/{id}", a.handleGetProposal)
			r.Post("/{id}/approve", a.handleApproveProposal)
			r.Post("/{id}/execute", a.handleExecuteProposal)
			r.Post("/{id}/cancel", a.handleCancelProposal)
		})
		r.Get("/proxies/{target}", a.handleGetProxy)
		r.Get("/proxies/{target}/history", a.handleProxyHistory)
		r.Post("/proxies/{target}/invoke", a.handleInvoke)
		// Timelock entry IDs may contain slashes
		r.Get("/timelock/*", a.handleGetTimelockEntry)
	})

	// connect returns subtree paths, which chi matches with a wildcard
	compress1KB := connect.WithCompressMinBytes(1024)
	healthPath, healthHandler := grpchealth.NewHandler(
		grpchealth.NewStaticChecker(ServiceName),
		compress1KB,
	)
	r.Handle(healthPath+"*", healthHandler)
	reflector := grpcreflect.NewStaticReflector(grpchealth.HealthV1ServiceName)
	reflectPath, reflectHandler := grpcreflect.NewHandlerV1(reflector, compress1KB)
	r.Handle(reflectPath+"*", reflectHandler)
	reflectPath, reflectHandler = grpcreflect.NewHandlerV1Alpha(reflector, compress1KB)
	r.Handle(reflectPath+"*", reflectHandler)
	return r
}

// Start binds the listener and serves in the background until Stop is
// called
func (a *Api) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return errors.New("api already started")
	}
	addr := net.JoinHostPort(a.config.Host, fmt.Sprintf("%d", a.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	useTls := a.config.TlsCertFilePath != "" && a.config.TlsKeyFilePath != ""
	handler := a.Handler()
	if !useTls {
		// Use h2c so we can serve HTTP/2 without TLS
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	a.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.listener = listener
	a.doneCh = make(chan struct{})
	server := a.server
	doneCh := a.doneCh
	go func() {
		defer close(doneCh)
		var err error
		if useTls {
			a.config.Logger.Info(
				"starting API TLS listener on " + listener.Addr().String(),
			)
			err = server.ServeTLS(
				listener,
				a.config.TlsCertFilePath,
				a.config.TlsKeyFilePath,
			)
		} else {
			a.config.Logger.Info(
				"starting API listener on " + listener.Addr().String(),
			)
			err = server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.config.Logger.Error(
				"API server failed",
				"error", err,
			)
		}
	}()
	return nil
}

// Addr returns the bound listener address, or an empty string when not
// started
func (a *Api) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop gracefully shuts down the server
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	doneCh := a.doneCh
	a.server = nil
	a.listener = nil
	a.mu.Unlock()
	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	<-doneCh
	return err
}
