package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
)

// LocalStore implements Uploader against the local filesystem. It backs
// development and tests where no object store is reachable; the returned
// URLs use the file:// scheme.
type LocalStore struct {
	baseDir string
	bucket  string
}

// NewLocalStore creates a store rooted at baseDir. The bucket becomes the
// first path segment under it, mirroring the HTTP store layout.
func NewLocalStore(baseDir, bucket string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "data/diagrams"
	}
	if bucket == "" {
		bucket = "diagrams"
	}
	if err := os.MkdirAll(filepath.Join(baseDir, bucket), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir, bucket: bucket}, nil
}

func (s *LocalStore) Enabled() bool {
	return s != nil
}

// Upload writes the payload under {baseDir}/{bucket}/{key} atomically: a
// temp file first, then a rename, so readers never observe partial files.
func (s *LocalStore) Upload(ctx context.Context, art artifact.Artifact, sessionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if art == nil || len(art.Payload()) == 0 {
		return "", fmt.Errorf("nothing to upload")
	}

	key := ObjectKey(sessionID, art)
	path := filepath.Join(s.baseDir, s.bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure store dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(art.Payload()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize object: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
