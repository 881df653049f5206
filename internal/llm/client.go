// Package llm provides a minimal client for OpenAI-compatible chat
// completion endpoints. The mermaid generator uses it to draft diagram DSL
// from free-form prose; every failure is mapped onto the shared transient
// and permanent error types so callers can decide whether to fall through
// to a deterministic path.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	diagramerrors "github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/httpclient"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
)

const (
	defaultTimeout          = 20 * time.Second
	defaultCompletionTokens = 1024
	defaultPromptBudget     = 6000
	maxResponseBytes        = 4 << 20
	maxLoggedBodyBytes      = 512
)

var (
	errNotConfigured = errors.New("llm endpoint not configured")
	errEmptyResponse = errors.New("llm returned no content")
)

// Config holds connection settings for one OpenAI-compatible endpoint.
type Config struct {
	// Endpoint is the API base URL, e.g. https://api.openai.com/v1.
	// An empty endpoint disables the client.
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	// PromptBudget caps the prompt length in tokens; longer prompts are
	// truncated before sending.
	PromptBudget int
	// CompletionTokens is the max_tokens sent with each request.
	CompletionTokens int
}

// Client calls POST {endpoint}/chat/completions with a single-turn user
// message. The underlying transport carries a circuit breaker so a dead
// endpoint stops being dialed after repeated failures.
type Client struct {
	cfg    Config
	http   *http.Client
	logger logging.Logger
}

// New builds a client. A zero-valued Endpoint yields a disabled client;
// Complete then fails permanently and the caller's fallback takes over
// without waiting on the network.
func New(cfg Config, logger logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PromptBudget <= 0 {
		cfg.PromptBudget = defaultPromptBudget
	}
	if cfg.CompletionTokens <= 0 {
		cfg.CompletionTokens = defaultCompletionTokens
	}
	return &Client{
		cfg:    cfg,
		http:   httpclient.NewWithCircuitBreaker(cfg.Timeout, logger, "llm"),
		logger: logging.OrNop(logger),
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && strings.TrimSpace(c.cfg.Endpoint) != ""
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message and returns the assistant
// text. Transport failures, 5xx and 429 map to transient errors; other
// non-2xx statuses map to permanent errors.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", diagramerrors.NewPermanentError(errNotConfigured, "llm endpoint not configured")
	}
	prompt = TruncateToTokens(prompt, c.cfg.PromptBudget)

	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.CompletionTokens,
		"stream":      false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", diagramerrors.NewPermanentError(fmt.Errorf("marshal request: %w", err), "llm request could not be encoded")
	}

	endpoint := strings.TrimRight(c.cfg.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", diagramerrors.NewPermanentError(fmt.Errorf("build request: %w", err), "llm request could not be built")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("llm request failed: endpoint=%s err=%v", endpoint, err)
		return "", diagramerrors.NewTransientError(err, "llm request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return "", diagramerrors.NewTransientError(fmt.Errorf("read response: %w", err), "llm response could not be read")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("llm status %d: %s", resp.StatusCode, truncateForLog(respBody))
		return "", mapStatusError(resp.StatusCode, resp.Header, respBody)
	}

	var decoded completionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", diagramerrors.NewTransientError(fmt.Errorf("decode response: %w", err), "llm returned malformed JSON")
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		msg := decoded.Error.Message
		if decoded.Error.Type != "" {
			msg = decoded.Error.Type + ": " + msg
		}
		return "", mapStatusError(resp.StatusCode, resp.Header, []byte(msg))
	}
	if len(decoded.Choices) == 0 {
		return "", diagramerrors.NewTransientError(errEmptyResponse, "llm returned no choices")
	}

	content := decoded.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", diagramerrors.NewTransientError(errEmptyResponse, "llm returned empty content")
	}

	c.logger.Debug("llm completion: model=%s tokens=%d/%d elapsed=%s",
		c.cfg.Model, decoded.Usage.PromptTokens, decoded.Usage.CompletionTokens, time.Since(start).Round(time.Millisecond))
	return content, nil
}

func mapStatusError(status int, header http.Header, body []byte) error {
	err := fmt.Errorf("llm status %d: %s", status, truncateForLog(body))
	if diagramerrors.IsTransientHTTPStatus(status) {
		return diagramerrors.NewTransientStatusError(err, status, parseRetryAfter(header))
	}
	return diagramerrors.NewPermanentStatusError(err, status)
}

// parseRetryAfter reads the delay-seconds form of Retry-After. The HTTP-date
// form is rare on completion APIs and is ignored.
func parseRetryAfter(header http.Header) int {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func truncateForLog(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxLoggedBodyBytes {
		return s[:maxLoggedBodyBytes] + "..."
	}
	return s
}
