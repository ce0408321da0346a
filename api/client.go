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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxResponseBytes limits JSON API responses to 10 MiB
const maxResponseBytes = 10 << 20

// ClientError is returned for non-2xx responses from the API
type ClientError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *ClientError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf(
		"%s (%d): %s [request %s]",
		e.Code,
		e.StatusCode,
		e.Message,
		e.RequestID,
	)
}

// Client is an HTTP client for the governance API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client for the API client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new API client for the node at baseURL
// (e.g., "http://127.0.0.1:8080").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the governance configuration of the node
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var ret StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &ret); err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}
	return &ret, nil
}

// ListProposals returns proposals, optionally restricted to one target or to
// proposals that are not yet finished. A limit of 0 returns all of them.
func (c *Client) ListProposals(
	ctx context.Context,
	target string,
	pendingOnly bool,
	limit int,
) ([]ProposalResponse, error) {
	query := url.Values{}
	if target != "" {
		query.Set("target", target)
	}
	if pendingOnly {
		query.Set("pending", "true")
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/proposals"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var ret ProposalListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &ret); err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	return ret.Proposals, nil
}

// GetProposal returns a single proposal
func (c *Client) GetProposal(
	ctx context.Context,
	id uint64,
) (*ProposalResponse, error) {
	var ret ProposalResponse
	if err := c.do(ctx, http.MethodGet, proposalPath(id, ""), nil, &ret); err != nil {
		return nil, fmt.Errorf("getting proposal %d: %w", id, err)
	}
	return &ret, nil
}

// Propose creates a proposal as the principal of the client token
func (c *Client) Propose(
	ctx context.Context,
	req ProposeRequest,
) (*ProposalResponse, error) {
	var ret ProposalResponse
	if err := c.do(ctx, http.MethodPost, "/v1/proposals", req, &ret); err != nil {
		return nil, fmt.Errorf("creating proposal: %w", err)
	}
	return &ret, nil
}

// Approve approves a proposal as the principal of the client token
func (c *Client) Approve(
	ctx context.Context,
	id uint64,
) (*ProposalResponse, error) {
	var ret ProposalResponse
	if err := c.do(ctx, http.MethodPost, proposalPath(id, "approve"), nil, &ret); err != nil {
		return nil, fmt.Errorf("approving proposal %d: %w", id, err)
	}
	return &ret, nil
}

// Execute runs a proposal whose delay has passed
func (c *Client) Execute(
	ctx context.Context,
	id uint64,
) (*ExecutionResponse, error) {
	var ret ExecutionResponse
	if err := c.do(ctx, http.MethodPost, proposalPath(id, "execute"), nil, &ret); err != nil {
		return nil, fmt.Errorf("executing proposal %d: %w", id, err)
	}
	return &ret, nil
}

// Cancel cancels a proposal as the principal of the client token
func (c *Client) Cancel(
	ctx context.Context,
	id uint64,
) (*ProposalResponse, error) {
	var ret ProposalResponse
	if err := c.do(ctx, http.MethodPost, proposalPath(id, "cancel"), nil, &ret); err != nil {
		return nil, fmt.Errorf("cancelling proposal %d: %w", id, err)
	}
	return &ret, nil
}

// GetProxy returns the proxy state of a target
func (c *Client) GetProxy(
	ctx context.Context,
	target string,
) (*ProxyResponse, error) {
	var ret ProxyResponse
	path := "/v1/proxies/" + url.PathEscape(target)
	if err := c.do(ctx, http.MethodGet, path, nil, &ret); err != nil {
		return nil, fmt.Errorf("getting proxy %s: %w", target, err)
	}
	return &ret, nil
}

// ProxyHistory returns the audit trail of a proxy, oldest first
func (c *Client) ProxyHistory(
	ctx context.Context,
	target string,
) ([]ProxyHistoryEntry, error) {
	var ret ProxyHistoryResponse
	path := "/v1/proxies/" + url.PathEscape(target) + "/history"
	if err := c.do(ctx, http.MethodGet, path, nil, &ret); err != nil {
		return nil, fmt.Errorf("getting proxy history %s: %w", target, err)
	}
	return ret.History, nil
}

// Invoke calls method on the current implementation behind target and
// returns its result
func (c *Client) Invoke(
	ctx context.Context,
	target string,
	method string,
	args []byte,
) ([]byte, error) {
	var ret InvokeResponse
	path := "/v1/proxies/" + url.PathEscape(target) + "/invoke"
	req := InvokeRequest{Method: method, Args: args}
	if err := c.do(ctx, http.MethodPost, path, req, &ret); err != nil {
		return nil, fmt.Errorf("invoking %s on %s: %w", method, target, err)
	}
	return ret.Result, nil
}

// TimelockEntry returns a queued timelock entry. A bare proposal ID refers to
// the entry of that proposal.
func (c *Client) TimelockEntry(
	ctx context.Context,
	id string,
) (*TimelockEntryResponse, error) {
	var ret TimelockEntryResponse
	if err := c.do(ctx, http.MethodGet, "/v1/timelock/"+id, nil, &ret); err != nil {
		return nil, fmt.Errorf("getting timelock entry %s: %w", id, err)
	}
	return &ret, nil
}

func proposalPath(id uint64, action string) string {
	path := "/v1/proposals/" + strconv.FormatUint(id, 10)
	if action != "" {
		path += "/" + action
	}
	return path
}

// do sends a request with an optional JSON body and decodes the JSON
// response into out
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	in any,
	out any,
) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	if resp == nil || resp.Body == nil {
		return errors.New("nil response from server")
	}
	defer resp.Body.Close()
	reader := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(reader, 4096))
		clientErr := &ClientError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(bodyBytes)),
		}
		var errResp ErrorResponse
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error.Code != "" {
			clientErr.Code = errResp.Error.Code
			clientErr.Message = errResp.Error.Message
			clientErr.RequestID = errResp.RequestID
		}
		return clientErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
