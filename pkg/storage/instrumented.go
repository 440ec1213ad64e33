// Copyright © 2018 One Concern

package storage

import (
	"context"
	"time"

	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/metrics"
	"go.uber.org/zap"
)

// Instrument wraps a BlobStore with structured logging of every call. The
// teacher's equivalent (pkg/storage.Instrument) pairs an opentracing.Tracer
// with an internal log.Factory; papermake has no tracing collaborator in
// scope, so this wraps with zap directly, matching the rest of the ambient
// logging stack (pkg/dlogger).
func Instrument(logger *zap.Logger, store BlobStore) BlobStore {
	return &instrumentedStore{store: store, l: logger.With(zap.String("store", store.String()))}
}

type instrumentedStore struct {
	store BlobStore
	l     *zap.Logger
}

func (i *instrumentedStore) String() string { return i.store.String() }

func (i *instrumentedStore) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	found, err := i.store.Exists(ctx, key)
	metrics.RecordStorageOp(ctx, i.store.String(), start)
	i.l.Debug("exists", zap.String("key", key), zap.Bool("found", found), zap.Error(err))
	return found, err
}

func (i *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	b, err := i.store.Get(ctx, key)
	metrics.RecordStorageOp(ctx, i.store.String(), start)
	i.l.Debug("get", zap.String("key", key), zap.Int("bytes", len(b)), zap.Error(err))
	return b, err
}

func (i *instrumentedStore) PutIfAbsent(ctx context.Context, key string, data []byte) (Outcome, error) {
	start := time.Now()
	outcome, err := i.store.PutIfAbsent(ctx, key, data)
	metrics.RecordStorageOp(ctx, i.store.String(), start)
	i.l.Debug("put_if_absent", zap.String("key", key), zap.Int("bytes", len(data)), zap.Error(err))
	return outcome, err
}

func (i *instrumentedStore) GetRef(ctx context.Context, refKey string) (digest.Digest, error) {
	start := time.Now()
	d, err := i.store.GetRef(ctx, refKey)
	metrics.RecordStorageOp(ctx, i.store.String(), start)
	i.l.Debug("get_ref", zap.String("ref", refKey), zap.String("digest", d.String()), zap.Error(err))
	return d, err
}

func (i *instrumentedStore) CASRef(ctx context.Context, refKey string, expected *digest.Digest, newValue digest.Digest) (Outcome, error) {
	start := time.Now()
	outcome, err := i.store.CASRef(ctx, refKey, expected, newValue)
	metrics.RecordStorageOp(ctx, i.store.String(), start)
	i.l.Debug("cas_ref", zap.String("ref", refKey), zap.String("new", newValue.String()), zap.Error(err))
	return outcome, err
}
