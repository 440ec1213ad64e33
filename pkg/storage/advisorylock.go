package storage

import (
	"sync"

	"github.com/papermake/papermake/pkg/digest"
)

// KeyLocker hands out a per-key mutex, letting a backend that lacks a
// native compare-and-swap primitive simulate one: lock the ref key, read
// the current value, compare, write, unlock. Scoped to this process, per
// spec §4.2 ("the adapter simulates it with an advisory lock scoped to the
// ref key").
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyLocker returns an empty, ready-to-use KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the advisory lock for key is held, returning an unlock
// function the caller must invoke exactly once.
func (l *KeyLocker) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// SimulateCAS performs a read-compare-write CAS against a backend that
// only offers unconditional get/put, serialized by an advisory per-key
// lock. get and put close over the caller's backend-specific I/O.
func SimulateCAS(
	locker *KeyLocker,
	refKey string,
	expected *digest.Digest,
	newValue digest.Digest,
	get func() (digest.Digest, bool, error),
	put func(digest.Digest) error,
) (Outcome, error) {
	unlock := locker.Lock(refKey)
	defer unlock()

	current, found, err := get()
	if err != nil {
		return 0, err
	}
	switch {
	case expected == nil && found:
		return Conflict, nil
	case expected != nil && !found:
		return Conflict, nil
	case expected != nil && found && !expected.Equal(current):
		return Conflict, nil
	}
	if err := put(newValue); err != nil {
		return 0, err
	}
	return Updated, nil
}
