// Package cache implements the three bounded, process-local caches of
// spec §4.11: a manifest LRU, a tag-resolution TTL cache, and a
// single-flight-coalesced warmed-compiler-state LRU. The LRU primitive is
// github.com/hashicorp/golang-lru, already pulled into the retrieved
// corpus by the teacher's pkg/cafs.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/metrics"
)

// DefaultManifestCacheSize is the default capacity from spec §4.11.
const DefaultManifestCacheSize = 1024

// ManifestCache holds decoded manifests, keyed by manifest digest. Entries
// are immutable once inserted: a manifest digest never changes meaning.
type ManifestCache struct {
	lru *lru.Cache
}

// NewManifestCache builds a ManifestCache with the given capacity, or
// DefaultManifestCacheSize if size <= 0.
func NewManifestCache(size int) *ManifestCache {
	if size <= 0 {
		size = DefaultManifestCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		// only returns an error for size <= 0, already guarded above.
		panic(err)
	}
	return &ManifestCache{lru: c}
}

// Get returns the cached manifest for d, if present.
func (c *ManifestCache) Get(ctx context.Context, d digest.Digest) (manifest.Manifest, bool) {
	v, ok := c.lru.Get(d)
	metrics.RecordCacheLookup(ctx, "manifest", ok)
	if !ok {
		return manifest.Manifest{}, false
	}
	return v.(manifest.Manifest), true
}

// Put inserts m under d. A manifest digest is never reassigned, so Put
// never needs to invalidate an existing entry.
func (c *ManifestCache) Put(d digest.Digest, m manifest.Manifest) {
	c.lru.Add(d, m)
}

// Len reports the number of cached manifests.
func (c *ManifestCache) Len() int { return c.lru.Len() }
