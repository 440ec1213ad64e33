// Copyright © 2018 One Concern

// Package storage declares the abstract byte-blob interface that the rest
// of papermake's core is built on, plus the small ref namespace used to
// give tags a mutable, CAS-protected pointer. Concrete backends (localfs,
// sthree, gcs) live in sub-packages.
package storage

import (
	"context"
	"errors"

	"github.com/papermake/papermake/pkg/digest"
)

// Outcome distinguishes the successful results of a PutIfAbsent (Created,
// AlreadyExists) and of a CASRef (Updated, Conflict).
type Outcome int

const (
	// Created indicates this call performed the write.
	Created Outcome = iota
	// AlreadyExists indicates the key (or ref value) was already present
	// and unchanged; the call was a no-op.
	AlreadyExists
	// Updated indicates a CASRef call moved the ref to the new value.
	Updated
	// Conflict indicates a CASRef call's expected value didn't match the
	// ref's current value.
	Conflict
)

// Sentinel errors returned by implementations of Store and RefStore.
//
// These are kept separate from pkg/errs' Kind taxonomy on purpose: storage
// backends don't know about papermake's domain vocabulary, and callers
// (pkg/registry, pkg/render) are responsible for translating a sentinel
// into the right errs.Kind for their context (e.g. a missing ref is
// TemplateNotFound at the registry layer, but a missing blob referenced by
// a manifest is Corrupt at the render layer).
var (
	ErrNotFound     = errors.New("storage: key not found")
	ErrUnavailable  = errors.New("storage: backend unavailable")
	ErrCorrupt      = errors.New("storage: content does not match its key")
	ErrNotSupported = errors.New("storage: operation not supported by this backend")
)

// Store is the abstract byte-addressable blob store. Implementations are
// assumed to be simple, content-addressed key/value backends: local disk,
// S3, GCS, ...
type Store interface {
	String() string

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Get fetches the bytes stored under key. Returns ErrNotFound if
	// absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// PutIfAbsent stores data under key iff key is not already present.
	// It is idempotent for repeated calls with the same (key, data): the
	// second call returns AlreadyExists without error, never a conflict.
	// Callers are responsible for key integrity — PutIfAbsent does not
	// verify that key is the hash of data.
	PutIfAbsent(ctx context.Context, key string, data []byte) (Outcome, error)
}

// RefStore is the small mutable-pointer namespace backing tags. A ref maps
// a textual key (e.g. "refs/acme/invoice/latest") to a digest, with
// atomic compare-and-swap semantics so concurrent publishes can't race.
type RefStore interface {
	// GetRef returns the digest currently stored at refKey, or
	// ErrNotFound.
	GetRef(ctx context.Context, refKey string) (digest.Digest, error)

	// CASRef atomically sets refKey to newValue iff its current value
	// equals expected (nil expected means "must not currently exist").
	// Returns Updated on success, Conflict if the current value didn't
	// match expected.
	CASRef(ctx context.Context, refKey string, expected *digest.Digest, newValue digest.Digest) (Outcome, error)
}

// BlobStore is the common shape concrete backends implement: both a blob
// Store and its ref namespace, since in every backend we ship the two
// share credentials and connection state.
type BlobStore interface {
	Store
	RefStore
}
