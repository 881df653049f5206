package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	diagramerrors "github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/httpclient"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
)

const (
	defaultAttemptTimeout = 5 * time.Second
	maxErrorBodyBytes     = 4 * 1024
)

// Config describes the object store target. Public=false disables uploads
// entirely; responses then carry the artifact inline.
type Config struct {
	BaseURL string
	Bucket  string
	Public  bool

	// Timeout bounds a single PUT attempt.
	Timeout time.Duration
	// Retry covers transient failures across attempts.
	Retry diagramerrors.RetryConfig
}

// DefaultRetryConfig is the upload retry shape: 3 attempts, 200 ms base,
// exponential with ±25% jitter.
func DefaultRetryConfig() diagramerrors.RetryConfig {
	return diagramerrors.RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.25,
	}
}

// Client PUTs artifacts to an S3-style HTTP object store. A 2xx response
// means the request URL itself is the public URL.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  logging.Logger
	metrics *observability.Metrics
}

func New(cfg Config, logger logging.Logger, metrics *observability.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAttemptTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	logger = logging.OrNop(logger)
	return &Client{
		cfg:     cfg,
		http:    httpclient.NewWithCircuitBreaker(cfg.Timeout, logger, "object-store"),
		logger:  logger,
		metrics: metrics,
	}
}

// Enabled reports whether uploads should be attempted.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Public && c.cfg.BaseURL != "" && c.cfg.Bucket != ""
}

// Upload PUTs the artifact payload and returns its public URL. Transient
// failures are retried per the configured policy; 4xx responses stop
// immediately.
func (c *Client) Upload(ctx context.Context, art artifact.Artifact, sessionID string) (string, error) {
	if !c.Enabled() {
		return "", diagramerrors.NewPermanentError(nil, "object store uploads are disabled")
	}
	if art == nil || len(art.Payload()) == 0 {
		return "", diagramerrors.NewPermanentError(nil, "nothing to upload")
	}

	target := fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		strings.Trim(c.cfg.Bucket, "/"),
		ObjectKey(sessionID, art))

	attempt := 0
	url, err := diagramerrors.RetryWithResultAndLog(ctx, c.cfg.Retry, func(ctx context.Context) (string, error) {
		attempt++
		if attempt > 1 {
			c.metrics.UploadRetried(ctx)
		}
		return c.putOnce(ctx, target, art)
	}, c.logger)
	if err != nil {
		c.logger.Warn("upload to %s failed after %d attempt(s): %v", target, attempt, err)
		return "", err
	}

	c.logger.Debug("uploaded %d bytes to %s", art.Size(), url)
	return url, nil
}

func (c *Client) putOnce(ctx context.Context, target string, art artifact.Artifact) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(art.Payload()))
	if err != nil {
		return "", diagramerrors.NewPermanentError(err, "build upload request")
	}
	req.Header.Set("Content-Type", art.ContentType())
	req.ContentLength = int64(art.Size())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", diagramerrors.NewTransientError(err, "object store request failed")
	}
	defer resp.Body.Close()
	_, _ = httpclient.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return target, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", diagramerrors.NewTransientStatusError(
			fmt.Errorf("object store returned %d", resp.StatusCode), resp.StatusCode, 0)
	default:
		return "", diagramerrors.NewPermanentStatusError(
			fmt.Errorf("object store returned %d", resp.StatusCode), resp.StatusCode)
	}
}
