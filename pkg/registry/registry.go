// Package registry implements reference resolution (spec §4.5) and
// publish (spec §4.6) on top of pkg/storage's BlobStore.
package registry

import (
	"context"
	"errors"

	"github.com/papermake/papermake/pkg/cache"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/errs"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/metrics"
	"github.com/papermake/papermake/pkg/reference"
	"github.com/papermake/papermake/pkg/storage"
	"go.uber.org/zap"
)

// Resolver resolves a Reference to the manifest digest it names, per
// spec §4.5.
type Resolver struct {
	store storage.RefStore
	tags  *cache.TagCache
}

// NewResolver builds a Resolver over store, optionally sharing tc with
// other resolvers/registries. tc may be nil, in which case the resolver
// caches into its own private TagCache.
func NewResolver(store storage.RefStore, tc *cache.TagCache) *Resolver {
	if tc == nil {
		tc = cache.NewTagCache()
	}
	return &Resolver{store: store, tags: tc}
}

// Resolve implements spec §4.5's algorithm.
func (r *Resolver) Resolve(ctx context.Context, ref reference.Reference) (digest.Digest, error) {
	if ref.Tag == nil && ref.Digest != nil {
		return *ref.Digest, nil
	}

	key := tagKey(ref)
	if d, ok := r.tags.Get(key); ok {
		if ref.Digest != nil && !ref.Digest.Equal(d) {
			return digest.Digest{}, errs.Newf(errs.HashMismatch, "reference digest does not match resolved tag %q", ref.RefKey())
		}
		return d, nil
	}

	d, err := r.store.GetRef(ctx, ref.RefKey())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return digest.Digest{}, errs.Newf(errs.TemplateNotFound, "no such tag %q", ref.RefKey())
		}
		return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "resolving tag %q: %v", ref.RefKey(), err).Wrap(err)
	}

	if ref.Digest != nil && !ref.Digest.Equal(d) {
		return digest.Digest{}, errs.Newf(errs.HashMismatch, "reference digest does not match resolved tag %q", ref.RefKey())
	}

	immutable := reference.IsImmutableTag(*ref.Tag)
	r.tags.Put(key, d, immutable)
	return d, nil
}

func tagKey(ref reference.Reference) cache.TagKey {
	var ns, tag string
	if ref.Namespace != nil {
		ns = *ref.Namespace
	}
	if ref.Tag != nil {
		tag = *ref.Tag
	} else {
		tag = reference.DefaultTag
	}
	return cache.TagKey{Namespace: ns, Name: ref.Name, Tag: tag}
}

// PublishRequest carries the inputs to Registry.Publish, per spec §6.
type PublishRequest struct {
	Namespace  *string
	Name       string
	Tag        string
	Files      map[string][]byte
	Entrypoint string
	Metadata   manifest.TemplateMetadata
}

// Registry implements publish on top of a BlobStore.
type Registry struct {
	store storage.BlobStore
	tags  *cache.TagCache
	l     *zap.Logger
}

// NewRegistry builds a Registry over store. tc may be nil to disable tag
// cache invalidation on publish (a resolver with its own cache will simply
// serve the old value until its TTL expires).
func NewRegistry(store storage.BlobStore, tc *cache.TagCache, l *zap.Logger) *Registry {
	if l == nil {
		l = zap.NewNop()
	}
	return &Registry{store: store, tags: tc, l: l}
}

// Publish implements the six-step algorithm of spec §4.6.
func (r *Registry) Publish(ctx context.Context, req PublishRequest) (digest.Digest, error) {
	files := make(map[string]digest.Digest, len(req.Files))
	var totalBytes int64
	for path, data := range req.Files {
		if err := manifest.ValidatePath(path); err != nil {
			return digest.Digest{}, err
		}
		d := digest.Of(data)
		if _, err := r.store.PutIfAbsent(ctx, digest.BlobKey(d), data); err != nil {
			return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "storing blob for %q: %v", path, err).Wrap(err)
		}
		files[path] = d
		totalBytes += int64(len(data))
	}
	metrics.RecordPublish(ctx, int64(len(files)), totalBytes)

	m := manifest.Manifest{Entrypoint: req.Entrypoint, Files: files, Metadata: req.Metadata}
	if err := manifest.Validate(m); err != nil {
		return digest.Digest{}, err
	}

	canonical, err := manifest.Encode(m)
	if err != nil {
		return digest.Digest{}, err
	}
	manifestDigest := digest.Of(canonical)

	if _, err := r.store.PutIfAbsent(ctx, digest.ManifestKey(manifestDigest), canonical); err != nil {
		return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "storing manifest: %v", err).Wrap(err)
	}

	ref, err := reference.Parse(refText(req.Namespace, req.Name, req.Tag))
	if err != nil {
		return digest.Digest{}, err
	}
	refKey := ref.RefKey()
	immutable := reference.IsImmutableTag(req.Tag)

	if immutable {
		current, err := r.store.GetRef(ctx, refKey)
		switch {
		case err == nil && !current.Equal(manifestDigest):
			return digest.Digest{}, errs.Newf(errs.ImmutableTagExists, "tag %q is already pinned to a different manifest", refKey)
		case err == nil:
			// idempotent republish of the same content under the same
			// immutable tag.
			return manifestDigest, nil
		case !errors.Is(err, storage.ErrNotFound):
			return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "checking tag %q: %v", refKey, err).Wrap(err)
		}

		outcome, err := r.store.CASRef(ctx, refKey, nil, manifestDigest)
		if err != nil {
			return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "claiming tag %q: %v", refKey, err).Wrap(err)
		}
		if outcome == storage.Conflict {
			return digest.Digest{}, errs.Newf(errs.TagUpdateConflict, "tag %q was claimed concurrently", refKey)
		}
		r.invalidate(ref)
		return manifestDigest, nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		current, err := r.store.GetRef(ctx, refKey)
		var expected *digest.Digest
		switch {
		case err == nil:
			expected = &current
		case errors.Is(err, storage.ErrNotFound):
			expected = nil
		default:
			return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "checking tag %q: %v", refKey, err).Wrap(err)
		}

		outcome, err := r.store.CASRef(ctx, refKey, expected, manifestDigest)
		if err != nil {
			return digest.Digest{}, errs.Newf(errs.StorageUnavailable, "updating tag %q: %v", refKey, err).Wrap(err)
		}
		if outcome != storage.Conflict {
			r.invalidate(ref)
			return manifestDigest, nil
		}
		r.l.Debug("tag update conflicted, retrying", zap.String("ref", refKey), zap.Int("attempt", attempt))
	}
	return digest.Digest{}, errs.Newf(errs.TagUpdateConflict, "tag %q could not be claimed after retry", refKey)
}

func (r *Registry) invalidate(ref reference.Reference) {
	if r.tags == nil {
		return
	}
	r.tags.Invalidate(tagKey(ref))
}

func refText(ns *string, name, tag string) string {
	if ns != nil {
		return *ns + "/" + name + ":" + tag
	}
	return name + ":" + tag
}
