// Package vfs presents a manifest's files to the render engine as if they
// were a directory rooted at the entrypoint's parent, per spec §4.7. It is
// an in-process capability object handed directly to the compiler binding
// in pkg/engine, not an OS-level mount — unlike the teacher's pkg/fuse,
// which mounts a real FUSE filesystem; that integration point doesn't fit
// a render pipeline that never shells out to a separate process.
package vfs

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/papermake/papermake/internal/fontset"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/errs"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/storage"
)

// FS resolves logical paths against a single manifest's files, fetching
// blobs from store and memoizing them for the lifetime of one render.
type FS struct {
	m        manifest.Manifest
	store    storage.Store
	root     string
	mu       sync.Mutex
	memo     map[string][]byte
}

// New builds an FS rooted at the parent directory of the manifest's
// entrypoint.
func New(m manifest.Manifest, store storage.Store) *FS {
	return &FS{
		m:     m,
		store: store,
		root:  path.Dir(m.Entrypoint),
		memo:  make(map[string][]byte),
	}
}

// resolve normalizes p relative to the FS root and rejects escapes.
func (f *FS) resolve(p string) (string, error) {
	if strings.HasPrefix(p, "/") {
		return "", errs.Newf(errs.InvalidData, "path %q must not be absolute", p)
	}
	joined := p
	if f.root != "." && f.root != "" {
		joined = path.Join(f.root, p)
	}
	clean := path.Clean(joined)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errs.Newf(errs.InvalidData, "path %q escapes the template root", p)
	}
	return clean, nil
}

// Exists reports whether path resolves to a file entry in the manifest, or
// failing that, to a font in the process-wide fallback set (spec §4.7).
func (f *FS) Exists(p string) bool {
	clean, err := f.resolve(p)
	if err != nil {
		return false
	}
	if _, ok := f.m.Files[clean]; ok {
		return true
	}
	_, ok := fontFallback(clean)
	return ok
}

// Read returns the bytes of path, fetching the backing blob on first
// access and memoizing it for subsequent reads within this render. Paths
// absent from the manifest fall back to the process-wide font set (spec
// §4.7) before failing as a missing file.
func (f *FS) Read(ctx context.Context, p string) ([]byte, error) {
	clean, err := f.resolve(p)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if cached, ok := f.memo[clean]; ok {
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	d, ok := f.m.Files[clean]
	if !ok {
		if data, ok := fontFallback(clean); ok {
			return data, nil
		}
		path := clean
		return nil, errs.NewCompileFailed(errs.MissingFile, []errs.Diagnostic{
			{Message: "referenced path not found in manifest or the font set", Path: &path},
		})
	}

	data, err := f.store.Get(ctx, digest.BlobKey(d))
	if err != nil {
		return nil, errs.Newf(errs.Corrupt, "manifest references missing blob for %q: %v", p, err).Wrap(err)
	}
	if !digest.Of(data).Equal(d) {
		return nil, errs.Newf(errs.Corrupt, "blob for %q does not match its digest", p)
	}

	f.mu.Lock()
	f.memo[clean] = data
	f.mu.Unlock()
	return data, nil
}

// fontFallback looks up a path not present in the manifest against the
// process-wide font set, matching on the path's base name with and without
// its extension (a compiler typically asks for "Inter-Regular.ttf" while
// the font set names entries "Inter-Regular").
func fontFallback(clean string) ([]byte, bool) {
	base := path.Base(clean)
	if f, ok := fontset.Get(base); ok {
		return f.Data, true
	}
	if ext := path.Ext(base); ext != "" {
		if f, ok := fontset.Get(strings.TrimSuffix(base, ext)); ok {
			return f.Data, true
		}
	}
	return nil, false
}
