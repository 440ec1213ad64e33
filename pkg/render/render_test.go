package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/papermake/papermake/pkg/cache"
	"github.com/papermake/papermake/pkg/engine"
	"github.com/papermake/papermake/pkg/errs"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/recordsink"
	"github.com/papermake/papermake/pkg/registry"
	"github.com/papermake/papermake/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventualTimeout = time.Second
	testEventualTick    = time.Millisecond
)

type collectingWriter struct {
	mu      sync.Mutex
	records []recordsink.Record
}

func (w *collectingWriter) Write(_ context.Context, r recordsink.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, r)
	return nil
}

func (w *collectingWriter) last() recordsink.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records[len(w.records)-1]
}

func (w *collectingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// newFixture publishes a template named "invoice:latest" with a
// single file and returns the pipeline wired against the same store, plus
// the collecting sink writer so tests can inspect emitted records.
func newFixture(t *testing.T, eng engine.Engine) (*Pipeline, *collectingWriter) {
	t.Helper()
	store := localfs.New(afero.NewMemMapFs())
	tc := cache.NewTagCache()
	reg := registry.NewRegistry(store, tc, nil)
	res := registry.NewResolver(store, tc)

	_, err := reg.Publish(context.Background(), registry.PublishRequest{
		Name:       "invoice",
		Tag:        "latest",
		Entrypoint: "main.typ",
		Files:      map[string][]byte{"main.typ": []byte("hello {{name}}")},
		Metadata:   manifest.TemplateMetadata{Name: "invoice", Author: "acme"},
	})
	require.NoError(t, err)

	w := &collectingWriter{}
	sink := recordsink.New(w)
	t.Cleanup(sink.Close)

	p := New(res, store, eng, RecordSink(sink))
	return p, w
}

func TestRenderFullPipelineSucceeds(t *testing.T) {
	p, w := newFixture(t, &engine.Mock{})

	result, err := p.Render(context.Background(), Request{
		ReferenceText: "invoice:latest",
		Data:          []byte(`{"name":"acme"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RenderID)
	assert.False(t, result.PDFDigest.Zero())
	assert.Greater(t, result.PDFSize, int64(0))

	require.Eventually(t, func() bool { return w.count() == 1 }, testEventualTimeout, testEventualTick)
	rec := w.last()
	assert.True(t, rec.Success)
	assert.NotNil(t, rec.ManifestDigest)
	assert.NotNil(t, rec.PDFDigest)
	assert.True(t, rec.PDFDigest.Equal(result.PDFDigest))
	assert.Equal(t, "invoice:latest", rec.TemplateRef)
}

func TestRenderMalformedReferenceIsRejectedWithNilManifestDigest(t *testing.T) {
	p, w := newFixture(t, &engine.Mock{})

	_, err := p.Render(context.Background(), Request{
		ReferenceText: "Not A Valid Name!!",
		Data:          []byte(`{}`),
	})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidReference, errs.KindOf(err))

	require.Eventually(t, func() bool { return w.count() == 1 }, testEventualTimeout, testEventualTick)
	rec := w.last()
	assert.False(t, rec.Success)
	assert.Nil(t, rec.ManifestDigest)
	assert.Equal(t, string(errs.InvalidReference), rec.ErrorKind)
}

func TestRenderUnresolvableTagIsRejected(t *testing.T) {
	p, w := newFixture(t, &engine.Mock{})

	_, err := p.Render(context.Background(), Request{
		ReferenceText: "ghost:latest",
		Data:          []byte(`{}`),
	})
	require.Error(t, err)
	assert.Equal(t, errs.TemplateNotFound, errs.KindOf(err))

	require.Eventually(t, func() bool { return w.count() == 1 }, testEventualTimeout, testEventualTick)
	rec := w.last()
	assert.False(t, rec.Success)
	assert.Nil(t, rec.ManifestDigest)
}

func TestRenderEmptyOutputIsFailedWithSubKind(t *testing.T) {
	p, w := newFixture(t, &engine.Mock{EmptyOutput: true})

	_, err := p.Render(context.Background(), Request{
		ReferenceText: "invoice:latest",
		Data:          []byte(`{}`),
	})
	require.Error(t, err)
	assert.Equal(t, errs.CompileFailed, errs.KindOf(err))

	var perr *errs.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, errs.EmptyOutput, perr.SubKind())

	require.Eventually(t, func() bool { return w.count() == 1 }, testEventualTimeout, testEventualTick)
	rec := w.last()
	assert.False(t, rec.Success)
	assert.NotNil(t, rec.ManifestDigest)
	assert.Nil(t, rec.PDFDigest)
}

func TestRenderEngineFailureIsFailed(t *testing.T) {
	boom := errs.Newf(errs.CompileFailed, "boom")
	p, w := newFixture(t, &engine.Mock{Fail: boom})

	_, err := p.Render(context.Background(), Request{
		ReferenceText: "invoice:latest",
		Data:          []byte(`{}`),
	})
	require.Error(t, err)
	assert.Equal(t, errs.CompileFailed, errs.KindOf(err))

	require.Eventually(t, func() bool { return w.count() == 1 }, testEventualTimeout, testEventualTick)
	rec := w.last()
	assert.False(t, rec.Success)
	assert.NotNil(t, rec.ManifestDigest)
}

func TestRenderIsDeterministicForSameInput(t *testing.T) {
	p, _ := newFixture(t, &engine.Mock{})

	r1, err := p.Render(context.Background(), Request{ReferenceText: "invoice:latest", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)
	r2, err := p.Render(context.Background(), Request{ReferenceText: "invoice:latest", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)

	assert.True(t, r1.PDFDigest.Equal(r2.PDFDigest))
}

// TestRenderFingerprintReuseHitsTheWarmedCache exercises spec.md's S5
// scenario: rendering the same (manifest, data) fingerprint twice should
// reuse the warmed manifest state on the second render rather than
// rebuilding it from scratch.
func TestRenderFingerprintReuseHitsTheWarmedCache(t *testing.T) {
	p, _ := newFixture(t, &engine.Mock{})
	req := Request{ReferenceText: "invoice:latest", Data: []byte(`{"a":1}`)}

	r1, err := p.Render(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 0, p.warmed.Hits())
	assert.EqualValues(t, 1, p.warmed.Misses())

	r2, err := p.Render(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.warmed.Hits())
	assert.EqualValues(t, 1, p.warmed.Misses())

	assert.True(t, r1.PDFDigest.Equal(r2.PDFDigest))
}

func TestRenderWithAdmissionLimitStillSucceeds(t *testing.T) {
	store := localfs.New(afero.NewMemMapFs())
	tc := cache.NewTagCache()
	reg := registry.NewRegistry(store, tc, nil)
	res := registry.NewResolver(store, tc)
	_, err := reg.Publish(context.Background(), registry.PublishRequest{
		Name:       "invoice",
		Tag:        "latest",
		Entrypoint: "main.typ",
		Files:      map[string][]byte{"main.typ": []byte("hello")},
		Metadata:   manifest.TemplateMetadata{Name: "invoice", Author: "acme"},
	})
	require.NoError(t, err)

	p := New(res, store, &engine.Mock{}, AdmissionLimit(1))
	result, err := p.Render(context.Background(), Request{ReferenceText: "invoice:latest", Data: []byte(`{}`)})
	require.NoError(t, err)
	assert.False(t, result.PDFDigest.Zero())
}
