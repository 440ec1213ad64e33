// Package render implements the render pipeline state machine of spec
// §4.9: Received → Resolving → Compiling → Storing → Recorded, with
// Rejected/Failed terminal error states.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/papermake/papermake/pkg/cache"
	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/engine"
	"github.com/papermake/papermake/pkg/errs"
	"github.com/papermake/papermake/pkg/manifest"
	"github.com/papermake/papermake/pkg/metrics"
	"github.com/papermake/papermake/pkg/recordsink"
	"github.com/papermake/papermake/pkg/reference"
	"github.com/papermake/papermake/pkg/storage"
	"github.com/papermake/papermake/pkg/vfs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// State is one of the render pipeline's named states (spec §4.9).
type State string

const (
	Received  State = "Received"
	Resolving State = "Resolving"
	Compiling State = "Compiling"
	Storing   State = "Storing"
	Recorded  State = "Recorded"
	Rejected  State = "Rejected"
	Failed    State = "Failed"
)

// Resolver is the subset of pkg/registry.Resolver the pipeline depends on.
type Resolver interface {
	Resolve(ctx context.Context, ref reference.Reference) (digest.Digest, error)
}

// Request carries the inputs to Pipeline.Render, per spec §6.
type Request struct {
	ReferenceText string
	Data          []byte
	Deadline      *time.Time
}

// Result carries the outputs of a successful render, per spec §6.
type Result struct {
	RenderID   string
	PDFDigest  digest.Digest
	PDFSize    int64
	DurationMS int64
}

// Pipeline wires together reference resolution, manifest/blob storage, the
// compiler binding, and the caches and admission limiter of spec §4.11/§5.
type Pipeline struct {
	resolver  Resolver
	store     storage.BlobStore
	engine    engine.Engine
	manifests *cache.ManifestCache
	warmed    *cache.WarmedCache
	sink      *recordsink.Sink
	admission *semaphore.Weighted
	l         *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// Logger attaches a logger; defaults to a no-op logger.
func Logger(l *zap.Logger) Option { return func(p *Pipeline) { p.l = l } }

// ManifestCache overrides the default manifest cache.
func ManifestCache(c *cache.ManifestCache) Option { return func(p *Pipeline) { p.manifests = c } }

// WarmedCache overrides the default warmed-state cache.
func WarmedCache(c *cache.WarmedCache) Option { return func(p *Pipeline) { p.warmed = c } }

// AdmissionLimit caps concurrent compilations, per spec §5. A limit <= 0
// disables admission control.
func AdmissionLimit(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.admission = semaphore.NewWeighted(n)
		}
	}
}

// RecordSink attaches a sink for render records; defaults to a discarding
// no-op sink.
func RecordSink(s *recordsink.Sink) Option { return func(p *Pipeline) { p.sink = s } }

// New builds a Pipeline.
func New(resolver Resolver, store storage.BlobStore, eng engine.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:  resolver,
		store:     store,
		engine:    eng,
		manifests: cache.NewManifestCache(0),
		warmed:    cache.NewWarmedCache(0),
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

// warmedArtifact is the opaque value stored in the warmed-state cache:
// nothing the engine needs more than the decoded manifest itself, since
// the mock/real engine binding recompiles per data digest. It exists as a
// named type so cache hits are observable in tests.
type warmedArtifact struct {
	manifest manifest.Manifest
}

// renderMeta accumulates the details the final render record needs beyond
// Result, since some of them (the manifest digest, the data digest) are
// known well before the render either succeeds or fails.
type renderMeta struct {
	state          State
	manifestDigest *digest.Digest
	dataDigest     *digest.Digest
}

// Render implements spec §4.9's pipeline end to end and always emits
// exactly one render record, regardless of outcome.
func (p *Pipeline) Render(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	renderID := uuid.New().String()
	meta := renderMeta{state: Received}

	result, err := p.render(ctx, renderID, req, &meta)
	result.DurationMS = time.Since(start).Milliseconds()

	p.emitRecord(renderID, req, start, result, err, meta)
	metrics.RecordRender(ctx, start, string(meta.state))
	return result, err
}

func (p *Pipeline) render(ctx context.Context, renderID string, req Request, meta *renderMeta) (Result, error) {
	if deadline := req.Deadline; deadline != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, *deadline)
		defer cancel()
	}

	meta.state = Resolving
	ref, err := reference.Parse(req.ReferenceText)
	if err != nil {
		meta.state = Rejected
		return Result{}, err
	}

	manifestDigest, err := p.resolver.Resolve(ctx, ref)
	if err != nil {
		meta.state = Rejected
		return Result{}, err
	}
	meta.manifestDigest = &manifestDigest

	m, err := p.loadManifest(ctx, manifestDigest)
	if err != nil {
		meta.state = Failed
		return Result{}, err
	}

	canonicalData, err := manifest.Canonicalize(req.Data)
	if err != nil {
		meta.state = Rejected
		return Result{}, err
	}
	dataDigest := digest.Of(canonicalData)
	meta.dataDigest = &dataDigest

	meta.state = Compiling
	pdf, err := p.compile(ctx, manifestDigest, m, canonicalData)
	if err != nil {
		meta.state = Failed
		return Result{}, err
	}
	if len(pdf) == 0 {
		meta.state = Failed
		return Result{}, errs.NewCompileFailed(errs.EmptyOutput, nil)
	}

	meta.state = Storing
	pdfDigest := digest.Of(pdf)
	if _, err := p.store.PutIfAbsent(ctx, digest.BlobKey(pdfDigest), pdf); err != nil {
		meta.state = Failed
		return Result{}, errs.Newf(errs.StorageUnavailable, "storing pdf: %v", err).Wrap(err)
	}

	meta.state = Recorded
	return Result{RenderID: renderID, PDFDigest: pdfDigest, PDFSize: int64(len(pdf))}, nil
}

func (p *Pipeline) loadManifest(ctx context.Context, d digest.Digest) (manifest.Manifest, error) {
	if m, ok := p.manifests.Get(ctx, d); ok {
		return m, nil
	}

	raw, err := p.store.Get(ctx, digest.ManifestKey(d))
	if err != nil {
		return manifest.Manifest{}, errs.Newf(errs.Corrupt, "loading manifest %s: %v", d, err).Wrap(err)
	}
	if !digest.Of(raw).Equal(d) {
		return manifest.Manifest{}, errs.Newf(errs.Corrupt, "manifest %s does not match its digest", d)
	}

	m, err := manifest.Decode(raw)
	if err != nil {
		return manifest.Manifest{}, err
	}
	p.manifests.Put(d, m)
	return m, nil
}

func (p *Pipeline) compile(ctx context.Context, manifestDigest digest.Digest, m manifest.Manifest, canonicalData []byte) (pdf []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.warmed.Evict(manifestDigest)
			pdf, err = nil, errs.NewCompileFailed(errs.InternalError, []errs.Diagnostic{{Message: fmt.Sprint(rec)}})
		}
	}()

	if p.admission != nil {
		if err := p.admission.Acquire(ctx, 1); err != nil {
			return nil, errs.Newf(errs.Timeout, "admission wait: %v", err).Wrap(err)
		}
		defer p.admission.Release(1)
	}

	v, err := p.warmed.GetOrBuild(ctx, manifestDigest, func() (interface{}, error) {
		return warmedArtifact{manifest: m}, nil
	})
	if err != nil {
		return nil, err
	}
	warm := v.(warmedArtifact)

	fs := vfs.New(warm.manifest, p.store)
	result, err := p.engine.Compile(ctx, engine.CompileRequest{
		Files:      fs,
		Entrypoint: warm.manifest.Entrypoint,
		DataJSON:   canonicalData,
	})
	if err != nil {
		return nil, err
	}
	return result.PDF, nil
}

func (p *Pipeline) emitRecord(renderID string, req Request, start time.Time, result Result, err error, meta renderMeta) {
	if p.sink == nil {
		return
	}

	rec := recordsink.Record{
		RenderID:       renderID,
		Timestamp:      start,
		TemplateRef:    req.ReferenceText,
		ManifestDigest: meta.manifestDigest,
		Success:        err == nil,
		DurationMS:     result.DurationMS,
	}
	if meta.dataDigest != nil {
		rec.DataDigest = *meta.dataDigest
	}
	if err != nil {
		rec.ErrorKind = string(errs.KindOf(err))
		rec.ErrorMessage = err.Error()
	}
	if !result.PDFDigest.Zero() {
		d := result.PDFDigest
		rec.PDFDigest = &d
		size := result.PDFSize
		rec.PDFSizeBytes = &size
	}
	p.sink.Enqueue(rec)
}
