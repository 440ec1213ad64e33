// Package gcs implements storage.BlobStore over Google Cloud Storage,
// adapted from the teacher's pkg/storage/gcs. Unlike sthree, GCS has a
// real conditional-write primitive (Object.If), so PutIfAbsent and CASRef
// use native preconditions instead of storage.SimulateCAS.
package gcs

import (
	"context"
	"errors"
	"io/ioutil"
	"strings"

	gcsStorage "cloud.google.com/go/storage"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Option configures a New store.
type Option func(*gcsStore)

// Logger attaches a logger for diagnostic output.
func Logger(logger *zap.Logger) Option {
	return func(g *gcsStore) {
		if logger != nil {
			g.l = logger
		}
	}
}

// ClientOptions passes through options to the underlying GCS client.
func ClientOptions(opts ...option.ClientOption) Option {
	return func(g *gcsStore) { g.clientOpts = opts }
}

type gcsStore struct {
	client     *gcsStorage.Client
	bucket     string
	l          *zap.Logger
	clientOpts []option.ClientOption
}

// New builds a GCS-backed BlobStore.
func New(ctx context.Context, bucket string, opts ...Option) (storage.BlobStore, error) {
	g := &gcsStore{bucket: bucket, l: zap.NewNop()}
	for _, apply := range opts {
		apply(g)
	}
	client, err := gcsStorage.NewClient(ctx, g.clientOpts...)
	if err != nil {
		return nil, err
	}
	g.client = client
	return g, nil
}

func (g *gcsStore) String() string { return "gcs://" + g.bucket }

func (g *gcsStore) object(key string) *gcsStorage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(key)
}

func (g *gcsStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcsStorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, toSentinel(err)
	}
	return true, nil
}

func (g *gcsStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcsStorage.ErrObjectNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, toSentinel(err)
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

func (g *gcsStore) PutIfAbsent(ctx context.Context, key string, data []byte) (storage.Outcome, error) {
	w := g.object(key).If(gcsStorage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return 0, toSentinel(err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return storage.AlreadyExists, nil
		}
		return 0, toSentinel(err)
	}
	return storage.Created, nil
}

func (g *gcsStore) GetRef(ctx context.Context, refKey string) (digest.Digest, error) {
	b, err := g.Get(ctx, refKey)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.Parse(strings.TrimSpace(string(b)))
}

func (g *gcsStore) CASRef(ctx context.Context, refKey string, expected *digest.Digest, newValue digest.Digest) (storage.Outcome, error) {
	obj := g.object(refKey)
	attrs, err := obj.Attrs(ctx)
	exists := err == nil
	if err != nil && !errors.Is(err, gcsStorage.ErrObjectNotExist) {
		return 0, toSentinel(err)
	}

	var cond gcsStorage.Conditions
	switch {
	case expected == nil && !exists:
		cond = gcsStorage.Conditions{DoesNotExist: true}
	case expected == nil && exists:
		return storage.Conflict, nil
	case expected != nil && !exists:
		return storage.Conflict, nil
	default:
		current, perr := digest.Parse(strings.TrimSpace(readAttrContent(ctx, obj)))
		if perr != nil {
			return 0, perr
		}
		if !current.Equal(*expected) {
			return storage.Conflict, nil
		}
		cond = gcsStorage.Conditions{GenerationMatch: attrs.Generation}
	}

	w := obj.If(cond).NewWriter(ctx)
	if _, err := w.Write([]byte(newValue.String())); err != nil {
		_ = w.Close()
		return 0, toSentinel(err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return storage.Conflict, nil
		}
		return 0, toSentinel(err)
	}
	return storage.Updated, nil
}

func readAttrContent(ctx context.Context, obj *gcsStorage.ObjectHandle) string {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return ""
	}
	defer r.Close()
	b, _ := ioutil.ReadAll(r)
	return string(b)
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 412
	}
	return false
}

func toSentinel(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 404:
			return storage.ErrNotFound
		case 401, 403, 429, 500, 502, 503:
			return storage.ErrUnavailable
		}
	}
	return err
}
