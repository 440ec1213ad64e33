package cache

import (
	"sync"
	"time"

	"github.com/papermake/papermake/pkg/digest"
)

// MutableTagTTL is the cache lifetime for a mutable tag's resolved digest
// (spec §4.11). Immutable tags are cached forever once observed.
const MutableTagTTL = 5 * time.Second

// TagKey identifies a cached tag resolution by (namespace?, name, tag).
type TagKey struct {
	Namespace string
	Name      string
	Tag       string
}

type tagEntry struct {
	digest    digest.Digest
	immutable bool
	expiresAt time.Time
}

// TagCache caches tag→digest resolutions. Mutable tags expire after
// MutableTagTTL; immutable tags, once inserted, never expire. Negative
// results (TemplateNotFound) are never cached, per spec §4.11.
type TagCache struct {
	mu      sync.RWMutex
	entries map[TagKey]tagEntry
	now     func() time.Time
}

// NewTagCache builds an empty TagCache.
func NewTagCache() *TagCache {
	return &TagCache{entries: make(map[TagKey]tagEntry), now: time.Now}
}

// Get returns the cached digest for key, if present and not expired.
func (c *TagCache) Get(key TagKey) (digest.Digest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return digest.Digest{}, false
	}
	if !e.immutable && c.now().After(e.expiresAt) {
		return digest.Digest{}, false
	}
	return e.digest, true
}

// Put caches key → d. immutable controls whether the entry ever expires.
func (c *TagCache) Put(key TagKey, d digest.Digest, immutable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tagEntry{digest: d, immutable: immutable, expiresAt: c.now().Add(MutableTagTTL)}
}

// Invalidate drops any cached resolution for key, used after a successful
// publish moves a mutable tag so stale readers don't wait out the TTL.
func (c *TagCache) Invalidate(key TagKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
