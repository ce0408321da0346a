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

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blinklabs-io/tollgate/api"
	"github.com/blinklabs-io/tollgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPlugins(t *testing.T) {
	shouldExit, output := listPlugins("badger", "sqlite")
	assert.False(t, shouldExit)
	assert.Empty(t, output)

	shouldExit, output = listPlugins("list", "list")
	assert.True(t, shouldExit)
	assert.Contains(t, output, "Available blob plugins:")
	assert.Contains(t, output, "badger")
	assert.Contains(t, output, "Available metadata plugins:")
	assert.Contains(t, output, "sqlite")
	assert.Contains(t, output, "postgres")
	assert.Contains(t, output, "mysql")
}

func TestDefaultApiUrl(t *testing.T) {
	tests := []struct {
		cfg      config.Config
		expected string
	}{
		{
			cfg:      config.Config{BindAddr: "0.0.0.0", ApiPort: 8080},
			expected: "http://127.0.0.1:8080",
		},
		{
			cfg:      config.Config{BindAddr: "10.0.0.5", ApiPort: 9000},
			expected: "http://10.0.0.5:9000",
		},
		{
			cfg:      config.Config{BindAddr: "::1", ApiPort: 9000},
			expected: "http://[::1]:9000",
		},
		{
			cfg: config.Config{
				BindAddr:        "node.example",
				ApiPort:         443,
				TlsCertFilePath: "cert.pem",
				TlsKeyFilePath:  "key.pem",
			},
			expected: "https://node.example:443",
		},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, defaultApiUrl(&tc.cfg))
	}
}

func TestParseProposalID(t *testing.T) {
	id, err := parseProposalID("42")
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	_, err = parseProposalID("-1")
	assert.Error(t, err)
}

func TestProxyInvokeCommand(t *testing.T) {
	var got api.InvokeRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/proxies/vault/invoke", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.InvokeResponse{
			Target: "vault",
			Result: []byte("gold"),
		})
	}))
	t.Cleanup(srv.Close)

	cmd := proxyCommand()
	cmd.SetArgs([]string{
		"invoke",
		"--api-url", srv.URL,
		"--token", "tok-v1",
		"vault", "get", "alice",
	})
	ctx := config.WithContext(context.Background(), &config.Config{})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Equal(t, "get", got.Method)
	assert.Equal(t, "alice", string(got.Args))
	assert.Equal(t, "Bearer tok-v1", gotAuth)

	// The target and method are required
	cmd = proxyCommand()
	cmd.SetArgs([]string{"invoke", "--api-url", srv.URL, "vault"})
	require.Error(t, cmd.ExecuteContext(ctx))
}
