package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
	"github.com/papermake/papermake/pkg/digest"
)

// Retrying wraps a BlobStore so that ErrUnavailable is retried with bounded
// exponential backoff before being surfaced, per spec §7 ("StorageUnavailable
// is retried inside the adapter with exponential backoff (bounded), then
// surfaced"). Grounded on github.com/jpillora/backoff, the retry library
// already pulled into the example pack by dolthub-dolt.
func Retrying(store BlobStore, attempts int) BlobStore {
	if attempts <= 0 {
		attempts = 1
	}
	return &retryingStore{store: store, attempts: attempts}
}

type retryingStore struct {
	store    BlobStore
	attempts int
}

func (r *retryingStore) String() string { return r.store.String() }

func (r *retryingStore) newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    20 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

func retry(ctx context.Context, attempts int, b *backoff.Backoff, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return err
}

func (r *retryingStore) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	b := r.newBackoff()
	err := retry(ctx, r.attempts, b, func() (err error) {
		found, err = r.store.Exists(ctx, key)
		return err
	})
	return found, err
}

func (r *retryingStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	b := r.newBackoff()
	err := retry(ctx, r.attempts, b, func() (err error) {
		data, err = r.store.Get(ctx, key)
		return err
	})
	return data, err
}

func (r *retryingStore) PutIfAbsent(ctx context.Context, key string, data []byte) (Outcome, error) {
	var outcome Outcome
	b := r.newBackoff()
	err := retry(ctx, r.attempts, b, func() (err error) {
		outcome, err = r.store.PutIfAbsent(ctx, key, data)
		return err
	})
	return outcome, err
}

func (r *retryingStore) GetRef(ctx context.Context, refKey string) (digest.Digest, error) {
	var d digest.Digest
	b := r.newBackoff()
	err := retry(ctx, r.attempts, b, func() (err error) {
		d, err = r.store.GetRef(ctx, refKey)
		return err
	})
	return d, err
}

func (r *retryingStore) CASRef(ctx context.Context, refKey string, expected *digest.Digest, newValue digest.Digest) (Outcome, error) {
	var outcome Outcome
	b := r.newBackoff()
	err := retry(ctx, r.attempts, b, func() (err error) {
		outcome, err = r.store.CASRef(ctx, refKey, expected, newValue)
		return err
	})
	return outcome, err
}
