package rest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrCacheKeyNotFound     = errors.New("key not found")
	ErrCacheEntryExpired    = errors.New("entry expired")
	ErrCacheDisabled        = errors.New("cache disabled")
	ErrNATSConfigRequired   = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType = errors.New("unsupported cache type")
)

// Cache defaults.
const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 1000
)

// CacheType represents the type of cache backend.
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS represents NATS KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone represents no caching.
	CacheTypeNone CacheType = "none"
)

// CacheEntry is one cached response body.
type CacheEntry struct {
	Data      []byte      `json:"data"`
	Header    http.Header `json:"header,omitempty"`
	ETag      string      `json:"etag,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry time.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Cache is a response cache backend. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// CacheOptions are shared by every backend.
type CacheOptions struct {
	// TTL is how long a GET response stays cached.
	TTL time.Duration
	// MaxSize bounds the number of entries of the memory backend.
	MaxSize int
}

// DefaultCacheOptions returns the default options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		TTL:     DefaultCacheTTL,
		MaxSize: DefaultCacheSize,
	}
}

// CacheConfig configures the cache backend.
type CacheConfig struct {
	// Type is the cache backend type
	Type CacheType

	// NATS KV cache configuration
	NATS *NATSKVConfig

	// Common options applied to any backend. If nil, DefaultCacheOptions() is used.
	Options *CacheOptions
}

// NewCacheFromConfig creates a cache backend from configuration.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = &CacheConfig{Type: CacheTypeMemory}
	}

	options := config.Options
	if options == nil {
		options = DefaultCacheOptions()
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCache(options.MaxSize), nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		cache, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		return cache, nil

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// MemoryCache is an in-process cache bounded by entry count. When full, the
// entry closest to expiry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get returns the entry stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheKeyNotFound, key)
	}

	if entry.Expired() {
		return nil, fmt.Errorf("%w: %s", ErrCacheEntryExpired, key)
	}

	return entry, nil
}

// Set stores entry under key.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry

	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)

	return nil
}

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Cleanup drops expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) evictLocked() {
	var (
		victim string
		oldest time.Time
	)

	for key, entry := range c.entries {
		if victim == "" || entry.ExpiresAt.Before(oldest) {
			victim = key
			oldest = entry.ExpiresAt
		}
	}

	delete(c.entries, victim)
}

// NoOpCache is a cache that does nothing (no caching).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always returns an error (nothing cached).
func (c *NoOpCache) Get(context.Context, string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

// Set does nothing.
func (c *NoOpCache) Set(context.Context, string, *CacheEntry) error {
	return nil
}

// Delete does nothing.
func (c *NoOpCache) Delete(context.Context, string) error {
	return nil
}

// Clear does nothing.
func (c *NoOpCache) Clear(context.Context) error {
	return nil
}

// Has always returns false.
func (c *NoOpCache) Has(context.Context, string) bool {
	return false
}

// CacheStats counts cache traffic.
type CacheStats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// ResponseCache caches successful GET responses in a Cache backend. The key
// covers method, URL and query.
type ResponseCache struct {
	backend Cache
	options *CacheOptions

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewResponseCache wraps backend. A nil options uses DefaultCacheOptions.
func NewResponseCache(backend Cache, options *CacheOptions) *ResponseCache {
	if options == nil {
		options = DefaultCacheOptions()
	}

	return &ResponseCache{
		backend: backend,
		options: options,
	}
}

// Key returns the cache key of a call. Query parameters and headers are
// sorted so that equal argument sets share one key.
func (c *ResponseCache) Key(call *Call) string {
	key := string(call.Method) + ":" + call.URL

	if len(call.Args.Query) > 0 {
		key += "?" + joinSorted(call.Args.Query, "&", url.QueryEscape)
	}

	if len(call.Headers) > 0 {
		key += "#" + joinSorted(call.Headers, "&", http.CanonicalHeaderKey)
	}

	return key
}

func joinSorted(values map[string][]string, sep string, escape func(string) string) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, escape(name)+"="+url.QueryEscape(strings.Join(values[name], ",")))
	}

	return strings.Join(parts, sep)
}

// Cacheable reports whether call may be served from or stored in the cache.
func (c *ResponseCache) Cacheable(call *Call) bool {
	return call.Method == MethodGet && !call.NoCache && len(call.Args.Files) == 0
}

// Lookup returns the cached response for call, if any.
func (c *ResponseCache) Lookup(ctx context.Context, call *Call) (*Response, bool) {
	if !c.Cacheable(call) {
		return nil, false
	}

	entry, err := c.backend.Get(ctx, c.Key(call))
	if err != nil {
		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	return &Response{
		StatusCode: http.StatusOK,
		Header:     entry.Header.Clone(),
		URL:        call.URL,
		Body:       entry.Data,
	}, true
}

// Store saves a successful response.
func (c *ResponseCache) Store(ctx context.Context, call *Call, resp *Response) error {
	if !c.Cacheable(call) || resp.StatusCode != http.StatusOK {
		return nil
	}

	entry := &CacheEntry{
		Data:      resp.Body,
		Header:    resp.Header.Clone(),
		ETag:      resp.Header.Get("ETag"),
		ExpiresAt: time.Now().Add(c.options.TTL),
	}

	err := c.backend.Set(ctx, c.Key(call), entry)
	if err != nil {
		return fmt.Errorf("caching %s: %w", call.URL, err)
	}

	c.sets.Add(1)

	return nil
}

// Stats returns a snapshot of the counters.
func (c *ResponseCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
}

// hashKey maps an arbitrary cache key onto a fixed-length hex digest, which
// fits the NATS KV key alphabet.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}
