package mermaid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/subprocess"
)

const (
	// DefaultRenderTimeout bounds one CLI invocation.
	DefaultRenderTimeout = 15 * time.Second
	// DefaultMaxConcurrentRenders caps parallel CLI processes; the CLI
	// spawns a headless browser, so each run is heavy.
	DefaultMaxConcurrentRenders = 4

	maxRenderedBytes = 8 << 20
)

// RendererConfig describes the external CLI. An empty Path disables
// rendering and documents pass through as raw DSL.
type RendererConfig struct {
	Path          string
	Args          []string
	Timeout       time.Duration
	MaxConcurrent int
}

// Renderer lifts Mermaid DSL to SVG through an external CLI that reads the
// document on stdin and writes SVG to stdout.
type Renderer struct {
	cfg    RendererConfig
	sem    *semaphore.Weighted
	logger logging.Logger
}

// NewRenderer builds a renderer around cfg.
func NewRenderer(cfg RendererConfig, logger logging.Logger) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRenderTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentRenders
	}
	return &Renderer{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: logging.OrNop(logger),
	}
}

// Enabled reports whether a CLI path is configured.
func (r *Renderer) Enabled() bool {
	return r != nil && strings.TrimSpace(r.cfg.Path) != ""
}

// Render fills doc.RenderedSVG from the CLI. A timed-out or failed run is
// retried once; after the second failure doc is left unrendered and the
// client receives the raw DSL, which is the documented contract. An
// unconfigured CLI is not an error. The returned error is non-nil only
// when ctx itself is done.
func (r *Renderer) Render(ctx context.Context, doc *artifact.Mermaid) error {
	if !r.Enabled() || doc == nil || doc.DSL == "" {
		return nil
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		svg, err := r.renderOnce(ctx, doc.DSL)
		if err == nil {
			doc.RenderedSVG = svg
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		r.logger.Warn("mermaid render attempt %d/2 failed: %v", attempt, err)
	}
	r.logger.Warn("mermaid render gave up, delivering raw DSL: %v", lastErr)
	return nil
}

func (r *Renderer) renderOnce(ctx context.Context, dsl string) (string, error) {
	stdout, err := subprocess.Run(ctx, subprocess.Config{
		Command:    r.cfg.Path,
		Args:       r.cfg.Args,
		InheritEnv: true,
		Timeout:    r.cfg.Timeout,
	}, []byte(dsl), maxRenderedBytes)
	if err != nil {
		return "", err
	}
	svg := strings.TrimSpace(string(stdout))
	if !strings.Contains(svg, "<svg") {
		return "", fmt.Errorf("renderer wrote no svg (%d bytes)", len(svg))
	}
	return svg, nil
}
