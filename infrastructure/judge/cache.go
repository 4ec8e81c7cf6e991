package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/verdictlabs/verdict/internal/ports"
)

// CacheStats reports the state of the judgment cache.
type CacheStats struct {
	// Size is the number of live entries.
	Size int `json:"size"`

	// Hits and Misses count lookups since the client was constructed.
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`

	// HitRate is Hits / (Hits + Misses), zero when no lookups occurred.
	HitRate float64 `json:"hit_rate"`
}

// cacheKey derives a stable key from every request-defining field, so two
// calls collide exactly when provider, model, prompts, and sampling
// parameters all match.
func cacheKey(provider, model, system, prompt string, temperature float64, maxTokens int) string {
	h := sha256.New()
	// Length-prefix each field so concatenation cannot alias
	// ("ab"+"c" vs "a"+"bc").
	for _, field := range []string{
		provider,
		model,
		system,
		prompt,
		strconv.FormatFloat(temperature, 'g', -1, 64),
		strconv.Itoa(maxTokens),
	} {
		fmt.Fprintf(h, "%d:", len(field))
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ ports.CacheStore = (*MemoryCache)(nil)

// MemoryCache is the default in-memory TTL cache backing judgment
// caching. Expired entries are dropped lazily on read and swept
// opportunistically on write. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value     any
	expiresAt time.Time
}

func (e memoryCacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

// Get returns the live value for key. Expired entries are removed
// and reported as absent.
func (c *MemoryCache) Get(_ context.Context, key string) (any, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since the read.
		if current, ok := c.entries[key]; ok && current.expired(time.Now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores value under key. A zero expiration means the entry never
// expires.
func (c *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{value: value, expiresAt: expiresAt}
	c.sweepLocked()
	c.mu.Unlock()
	return nil
}

// Delete removes key; missing keys are not an error.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryCacheEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, entry := range c.entries {
		if !entry.expired(now) {
			n++
		}
	}
	return n, nil
}

// sweepLocked drops expired entries once the map has grown past a
// threshold. Called with the write lock held.
func (c *MemoryCache) sweepLocked() {
	const sweepThreshold = 1024
	if len(c.entries) < sweepThreshold {
		return
	}
	now := time.Now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

// redactKey shortens cache keys for log lines.
func redactKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12] + "..."
}
