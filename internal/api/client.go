// Package api is the REST client for the companion backend. Calls are
// single-shot: no retries, no caching, no backoff. Every request
// carries a bearer token (when a session exists) and an X-Request-ID
// that also tags the local log line for the call.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"chiefkit/internal/logging"
	"chiefkit/internal/types"
)

// TokenSource supplies the current bearer token. The session package
// implements it; an empty token sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for one-shot CLI calls.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// Client issues authenticated requests against the backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	// Advisor answers wait on an LLM behind the backend, so they get
	// their own client with a longer timeout.
	advisorClient *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	AdvisorTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the given backend.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        15 * time.Second,
		AdvisorTimeout: 90 * time.Second,
	}
}

// NewClient creates a client with default config.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return NewClientWithConfig(DefaultConfig(baseURL), tokens)
}

// NewClientWithConfig creates a client with custom config.
func NewClientWithConfig(config Config, tokens TokenSource) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.AdvisorTimeout <= 0 {
		config.AdvisorTimeout = 90 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		tokens:        tokens,
		httpClient:    &http.Client{Timeout: config.Timeout},
		advisorClient: &http.Client{Timeout: config.AdvisorTimeout},
	}
}

// BaseURL returns the backend root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// do issues one request and decodes the JSON response into out (when
// out is non-nil). Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rlog := logging.WithRequestID(logging.CategoryAPI, requestID)
	rlog.Debug("%s %s", method, path)
	start := time.Now()

	resp, err := hc.Do(req)
	if err != nil {
		rlog.Error("%s %s transport failure: %v", method, path, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		rlog.Error("%s %s read failure: %v", method, path, err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	rlog.Debug("%s %s -> %d in %v", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: requestID}
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(respBody, &envelope); jsonErr == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = truncateBody(respBody)
		}
		rlog.Warn("%s %s failed: %v", method, path, apiErr)
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, c.httpClient, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, c.httpClient, http.MethodPost, path, in, out)
}

func (c *Client) put(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, c.httpClient, http.MethodPut, path, in, out)
}

func (c *Client) patch(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, c.httpClient, http.MethodPatch, path, in, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, c.httpClient, http.MethodDelete, path, nil, nil)
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "(empty response body)"
	}
	return s
}

// =============================================================================
// HEALTH AND AUTH
// =============================================================================

// Health probes the backend. Used by the boot sequence to decide
// whether to fall back to the demo service.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*types.LoginResult, error) {
	var result types.LoginResult
	if err := c.post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me returns the account behind the current token.
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.get(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Impersonate swaps to a token for the given user. Admin only; the
// caller keeps the original token for switch-back.
func (c *Client) Impersonate(ctx context.Context, userID string) (*types.LoginResult, error) {
	var result types.LoginResult
	if err := c.post(ctx, "/admin/impersonate/"+userID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopImpersonation tells the backend the impersonated session ended.
func (c *Client) StopImpersonation(ctx context.Context) error {
	return c.post(ctx, "/admin/impersonate/stop", nil, nil)
}
