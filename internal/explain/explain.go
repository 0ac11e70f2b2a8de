// Package explain produces plain-language explanations of an analysis
// using an OpenAI-compatible chat-completions API. It is an optional
// collaborator: nothing in the analysis path depends on it, and a missing
// credential simply means it is never called.
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rcollins22/rugchekr/internal/analysis"
	"github.com/rcollins22/rugchekr/internal/retry"
)

var (
	ErrMissingCredential = errors.New("explain: API key is required")
	ErrAuthentication    = errors.New("explain: API key rejected")
	ErrQuota             = errors.New("explain: quota or rate limit exceeded")
	ErrUpstream          = errors.New("explain: upstream error")
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	// NoExplanation is returned when the model answers with no content.
	NoExplanation = "No explanation available"

	maxErrorBody = 64 << 10
)

// Config selects the endpoint and sampling parameters.
type Config struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client calls the chat-completions endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	policy retry.Policy
}

// NewClient creates a client. Zero Config fields take their defaults.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		policy: retry.Policy{Attempts: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Explain asks the model to explain a. apiKey must be non-empty.
func (c *Client) Explain(ctx context.Context, a *analysis.ContractAnalysis, apiKey string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingCredential
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt(a)}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("explain: encode request: %w", err)
	}

	var out string
	err = retry.Do(ctx, c.policy, func() error {
		text, err := c.once(ctx, body, apiKey)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *Client) once(ctx context.Context, body []byte, apiKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("explain: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("explain: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*16))
	if err != nil {
		return "", fmt.Errorf("explain: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classify(resp.StatusCode, raw)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", retry.Permanent(fmt.Errorf("%w: decode response: %v", ErrUpstream, err))
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return NoExplanation, nil
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// classify maps an error response to a sentinel. Only 5xx is retried.
func classify(status int, raw []byte) error {
	var ae apiError
	_ = json.Unmarshal(raw, &ae)
	msg := ae.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.Permanent(fmt.Errorf("%w: %s", ErrAuthentication, msg))
	case status == http.StatusTooManyRequests || ae.Error.Code == "insufficient_quota":
		return retry.Permanent(fmt.Errorf("%w: %s", ErrQuota, msg))
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, status, msg)
	default:
		return retry.Permanent(fmt.Errorf("%w: status %d: %s", ErrUpstream, status, msg))
	}
}
