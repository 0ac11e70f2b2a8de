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
	"strings"
	"time"

	"github.com/rcollins22/rugchekr/internal/analysis"
)

// Config holds the configuration for reaching the HTTP API.
type Config struct {
	APIURL    string // Base URL, e.g. "http://localhost:8080"
	ClientID  string // sent as X-Client-ID; selects saved preferences
	OpenAIKey string // optional explanation key, sent as X-OpenAI-Key
}

// Client is a thin HTTP client for the analysis API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new API client. Analyses can take the server's full
// deadline, so the timeout is generous.
func NewClient(cfg Config) *Client {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request and decodes a successful body into out.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.ClientID != "" {
		req.Header.Set("X-Client-ID", c.cfg.ClientID)
	}
	if c.cfg.OpenAIKey != "" {
		req.Header.Set("X-OpenAI-Key", c.cfg.OpenAIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Analyze runs (or fetches from cache) an analysis of addr.
func (c *Client) Analyze(ctx context.Context, addr string, fresh bool) (*analysis.ContractAnalysis, error) {
	var q url.Values
	if fresh {
		q = url.Values{"fresh": {"true"}}
	}
	var resp struct {
		Analysis *analysis.ContractAnalysis `json:"analysis"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/analyze/"+url.PathEscape(addr), q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Analysis == nil {
		return nil, fmt.Errorf("empty analysis in response")
	}
	return resp.Analysis, nil
}

// Explain returns the explanation text and the record it explains.
func (c *Client) Explain(ctx context.Context, addr string) (string, *analysis.ContractAnalysis, error) {
	var resp struct {
		Explanation string                     `json:"explanation"`
		Analysis    *analysis.ContractAnalysis `json:"analysis"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/v1/explain/"+url.PathEscape(addr), nil, nil, &resp); err != nil {
		return "", nil, err
	}
	return resp.Explanation, resp.Analysis, nil
}

// Recent lists recent analyses, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]*analysis.ContractAnalysis, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Analyses []*analysis.ContractAnalysis `json:"analyses"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/analyses", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Analyses, nil
}

// Get fetches a stored analysis by ID.
func (c *Client) Get(ctx context.Context, id string) (*analysis.ContractAnalysis, error) {
	var resp struct {
		Analysis *analysis.ContractAnalysis `json:"analysis"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Analysis == nil {
		return nil, fmt.Errorf("empty analysis in response")
	}
	return resp.Analysis, nil
}
