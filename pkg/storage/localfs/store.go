// Copyright © 2018 One Concern

// Package localfs implements storage.BlobStore over an afero filesystem,
// adapted from the teacher's pkg/storage/localfs. Writes land in a staging
// area and are renamed into place so a concurrent reader never observes a
// partially written blob, exactly as the teacher's localFSAtomic does; refs
// get the same treatment plus an advisory per-key lock to simulate CAS,
// since plain afero has no atomic compare-and-swap primitive.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/storage"
	"github.com/spf13/afero"
)

func nextSeq(seq *int64) int64 {
	return atomic.AddInt64(seq, 1)
}

const stagingDir = ".papermake-stage"

// New creates a local filesystem backed BlobStore rooted at fs. A nil fs
// defaults to the OS filesystem rooted at .papermake/objects.
func New(fs afero.Fs) storage.BlobStore {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".papermake", "objects"))
	}
	return &localFS{fs: fs, locker: storage.NewKeyLocker(), stageSeq: new(int64)}
}

type localFS struct {
	fs       afero.Fs
	locker   *storage.KeyLocker
	stageSeq *int64
}

func (l *localFS) String() string {
	const name = "localfs"
	if bp, ok := l.fs.(*afero.BasePathFs); ok {
		if pp, err := bp.RealPath(""); err == nil {
			return name + "@" + pp
		}
	}
	return name
}

func (l *localFS) Exists(_ context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Get(_ context.Context, key string) ([]byte, error) {
	f, err := l.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer f.Close()
	return ioutil.ReadAll(f)
}

func (l *localFS) PutIfAbsent(ctx context.Context, key string, data []byte) (storage.Outcome, error) {
	if found, err := l.Exists(ctx, key); err != nil {
		return 0, err
	} else if found {
		return storage.AlreadyExists, nil
	}

	stageKey := filepath.Join(stagingDir, key+"."+l.nextStageSuffix())
	if err := l.writeFile(stageKey, data); err != nil {
		return 0, err
	}
	if dir := filepath.Dir(key); dir != "" {
		if err := l.fs.MkdirAll(dir, 0o700); err != nil {
			return 0, fmt.Errorf("%w: ensuring directories for %q: %v", storage.ErrUnavailable, key, err)
		}
	}
	if err := l.fs.Rename(stageKey, key); err != nil {
		// another writer won the race; since put_if_absent is content-keyed
		// and idempotent, losing the rename to an identical write is success.
		if found, _ := l.Exists(ctx, key); found {
			return storage.AlreadyExists, nil
		}
		return 0, fmt.Errorf("%w: renaming stage for %q: %v", storage.ErrUnavailable, key, err)
	}
	return storage.Created, nil
}

func (l *localFS) writeFile(key string, data []byte) error {
	if dir := filepath.Dir(key); dir != "" {
		if err := l.fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("%w: ensuring directories for %q: %v", storage.ErrUnavailable, key, err)
		}
	}
	f, err := l.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: creating %q: %v", storage.ErrUnavailable, key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing %q: %v", storage.ErrUnavailable, key, err)
	}
	return f.Close()
}

func (l *localFS) nextStageSuffix() string {
	return strconv.Itoa(os.Getpid()) + "-" + strconv.FormatInt(nextSeq(l.stageSeq), 10)
}

func (l *localFS) GetRef(ctx context.Context, refKey string) (digest.Digest, error) {
	b, err := l.Get(ctx, refKey)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.Parse(strings.TrimSpace(string(b)))
}

func (l *localFS) CASRef(ctx context.Context, refKey string, expected *digest.Digest, newValue digest.Digest) (storage.Outcome, error) {
	return storage.SimulateCAS(
		l.locker,
		refKey,
		expected,
		newValue,
		func() (digest.Digest, bool, error) {
			d, err := l.GetRef(ctx, refKey)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return digest.Digest{}, false, nil
				}
				return digest.Digest{}, false, err
			}
			return d, true, nil
		},
		func(d digest.Digest) error {
			stageKey := filepath.Join(stagingDir, refKey+"."+l.nextStageSuffix())
			if err := l.writeFile(stageKey, []byte(d.String())); err != nil {
				return err
			}
			if err := l.fs.MkdirAll(filepath.Dir(refKey), 0o700); err != nil {
				return fmt.Errorf("%w: ensuring directories for %q: %v", storage.ErrUnavailable, refKey, err)
			}
			if err := l.fs.Rename(stageKey, refKey); err != nil {
				return fmt.Errorf("%w: renaming stage for %q: %v", storage.ErrUnavailable, refKey, err)
			}
			return nil
		},
	)
}
