package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
)

const (
	// DefaultMaxBytes bounds total cached artifact bytes.
	DefaultMaxBytes = 256 << 20
	// DefaultTTL expires entries lazily on Get.
	DefaultTTL = time.Hour
	// DefaultMaxEntries bounds entry count independently of bytes.
	DefaultMaxEntries = 4096

	// entryOverhead approximates per-entry bookkeeping for the byte
	// ceiling so thousands of tiny artifacts still count.
	entryOverhead = 512
)

// Entry is an immutable finished artifact plus its upload location, if
// any. PublicURL is empty for inline-only results. Method names the
// strategy that produced the artifact so later hits can report it.
type Entry struct {
	Artifact  artifact.Artifact
	PublicURL string
	Method    string
	CreatedAt time.Time
}

func (e *Entry) size() int64 {
	if e == nil || e.Artifact == nil {
		return entryOverhead
	}
	return int64(e.Artifact.Size()) + int64(len(e.PublicURL)) + entryOverhead
}

// Config tunes the store. Zero values take the defaults above.
type Config struct {
	MaxEntries int
	MaxBytes   int64
	TTL        time.Duration
	Metrics    *observability.Metrics
}

// Cache is a byte-bounded LRU of immutable entries with lazy TTL
// enforcement. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *Entry]
	bytes   int64

	maxBytes int64
	ttl      time.Duration
	metrics  *observability.Metrics
	flight   Group
}

// New builds a Cache. The eviction callback keeps the byte count in sync
// for both capacity and byte-ceiling evictions.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cache{
		maxBytes: cfg.MaxBytes,
		ttl:      cfg.TTL,
		metrics:  cfg.Metrics,
	}
	store, err := lru.NewWithEvict[string, *Entry](cfg.MaxEntries, func(_ string, e *Entry) {
		c.bytes -= e.size()
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.entries = store
	return c, nil
}

// Get returns the live entry for key. Expired entries are removed and
// reported as misses.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool) {
	c.mu.Lock()
	entry, ok := c.entries.Get(key)
	if ok && time.Since(entry.CreatedAt) > c.ttl {
		c.entries.Remove(key)
		c.mu.Unlock()
		c.metrics.CacheEviction(ctx, "ttl")
		c.metrics.CacheMiss(ctx)
		return nil, false
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.CacheMiss(ctx)
		return nil, false
	}
	c.metrics.CacheHit(ctx)
	return entry, true
}

// Put stores an entry unless the key already exists; entries are
// immutable and later writes for the same key are ignored. Returns true
// when the entry was stored.
func (c *Cache) Put(ctx context.Context, key string, entry *Entry) bool {
	if entry == nil {
		return false
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	c.mu.Lock()
	if _, exists := c.entries.Peek(key); exists {
		c.mu.Unlock()
		return false
	}
	evictions := 0
	if c.entries.Add(key, entry) {
		evictions++
	}
	c.bytes += entry.size()
	for c.bytes > c.maxBytes && c.entries.Len() > 0 {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			break
		}
		evictions++
	}
	c.mu.Unlock()

	for i := 0; i < evictions; i++ {
		c.metrics.CacheEviction(ctx, "size")
	}
	return true
}

// GetOrCompute returns the cached entry for key, or computes it exactly
// once across concurrent callers. hit is true whenever this caller did
// not run fn itself (a direct hit or a coalesced wait). Failed
// computations are never cached.
func (c *Cache) GetOrCompute(ctx context.Context, key string, fn func(ctx context.Context) (*Entry, error)) (entry *Entry, hit bool, err error) {
	if entry, ok := c.Get(ctx, key); ok {
		return entry, true, nil
	}
	entry, shared, err := c.flight.Do(ctx, key, func(runCtx context.Context) (*Entry, error) {
		// A racing writer may have landed between the miss and the
		// single-flight admission.
		if entry, ok := c.Get(runCtx, key); ok {
			return entry, nil
		}
		computed, err := fn(runCtx)
		if err != nil {
			return nil, err
		}
		c.Put(runCtx, key, computed)
		return computed, nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, shared, nil
}

// Len returns the live entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Bytes returns the accounted artifact bytes.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Purge drops everything; used by tests and shutdown.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.bytes = 0
}
