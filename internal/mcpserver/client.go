package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the scream API.
type Config struct {
	APIURL       string // Base URL, e.g. "http://localhost:8080"
	OwnerAddress string // Default owner address for status and balance tools
}

// ScreamClient is a pure HTTP client for the scream API.
type ScreamClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewScreamClient creates a new client for the scream API.
func NewScreamClient(cfg Config) *ScreamClient {
	return &ScreamClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *ScreamClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetStatus returns the protection status for an owner.
func (c *ScreamClient) GetStatus(ctx context.Context, owner string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/protection/"+owner, nil, nil)
}

// Trigger fires the panic cascade.
func (c *ScreamClient) Trigger(ctx context.Context, owner, secret, aggressor string) (json.RawMessage, error) {
	body := map[string]string{
		"owner":     owner,
		"secret":    secret,
		"aggressor": aggressor,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/panic", nil, body)
}

// GetBalance returns the ledger balance for an address.
func (c *ScreamClient) GetBalance(ctx context.Context, address string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/balances/"+address, nil, nil)
}

// ListAggressors lists flagged aggressor addresses.
func (c *ScreamClient) ListAggressors(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/registry/aggressors", q, nil)
}

// GetAggressor looks up a single address in the aggressor registry.
func (c *ScreamClient) GetAggressor(ctx context.Context, address string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/registry/aggressors/"+address, nil, nil)
}

// GetCompromised looks up an owner in the compromised registry.
func (c *ScreamClient) GetCompromised(ctx context.Context, owner string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/registry/compromised/"+owner, nil, nil)
}

// InitiateRecovery starts the recovery process for an owner.
func (c *ScreamClient) InitiateRecovery(ctx context.Context, owner string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/protection/"+owner+"/recovery", nil, nil)
}

// ApproveRecovery records a contact's recovery approval.
func (c *ScreamClient) ApproveRecovery(ctx context.Context, owner, contact string) (json.RawMessage, error) {
	body := map[string]string{"contact": contact}
	return c.doRequest(ctx, http.MethodPost, "/v1/protection/"+owner+"/recovery/approve", nil, body)
}
