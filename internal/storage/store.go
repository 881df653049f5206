// Package storage persists finished artifacts to the object store. The
// service treats uploads as best effort: a failed or disabled upload leaves
// the artifact inline in the response, it never fails the request.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
)

// Uploader persists one artifact and returns its public URL.
type Uploader interface {
	// Enabled reports whether uploads should be attempted at all.
	Enabled() bool
	// Upload writes the artifact payload and returns the URL clients can
	// fetch it from.
	Upload(ctx context.Context, art artifact.Artifact, sessionID string) (string, error)
}

// ObjectKey builds the store key for an artifact. Every upload gets a fresh
// UUID, so keys never collide across repeated requests.
func ObjectKey(sessionID string, art artifact.Artifact) string {
	return fmt.Sprintf("diagrams/%s/%s.%s", sessionID, uuid.NewString(), artifact.Ext(art))
}

// NewUploader selects the store implementation from the configured URL.
// A file:// URL selects the local filesystem store used in development;
// anything else speaks HTTP to an object store.
func NewUploader(cfg Config, logger logging.Logger, metrics *observability.Metrics) (Uploader, error) {
	if cfg.BaseURL == "" || !cfg.Public {
		return New(cfg, logger, metrics), nil
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse object store url: %w", err)
	}
	if u.Scheme == "file" {
		dir := u.Path
		if u.Host != "" {
			dir = u.Host + dir
		}
		return NewLocalStore(strings.TrimSuffix(dir, "/"), cfg.Bucket)
	}
	return New(cfg, logger, metrics), nil
}
