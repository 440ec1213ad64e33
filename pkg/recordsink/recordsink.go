// Package recordsink implements the append-only render-record audit log of
// spec §3 and §4.10: a bounded queue drained by a dedicated writer
// goroutine, with a bounded retry queue for writes that fail. Grounded on
// the teacher's pkg/cafs.fsWriter, which throttles concurrent flushes with
// a buffered "permit" channel and a background sync.WaitGroup; here the
// buffered channel is the record queue itself rather than a concurrency
// limiter.
package recordsink

import (
	"context"
	"sync"
	"time"

	"github.com/papermake/papermake/pkg/digest"
	"go.uber.org/zap"
)

// Record is the append-only render-record tuple of spec §3.
type Record struct {
	RenderID      string
	Timestamp     time.Time
	TemplateRef   string
	ManifestDigest *digest.Digest
	DataDigest    digest.Digest
	PDFDigest     *digest.Digest
	Success       bool
	DurationMS    int64
	PDFSizeBytes  *int64
	ErrorKind     string
	ErrorMessage  string
}

// Writer persists a single record. Implementations MUST NOT mutate or
// delete previously written records; the sink assumes append-only storage.
type Writer interface {
	Write(ctx context.Context, r Record) error
}

const (
	// DefaultQueueSize bounds the primary record queue.
	DefaultQueueSize = 1024
	// DefaultRetryLimit bounds how many times a failed write is retried
	// before the sink gives up and raises an operator-visible alert.
	DefaultRetryLimit = 5
	// DefaultRetryQueueSize bounds the number of records awaiting retry
	// concurrently.
	DefaultRetryQueueSize = 256
)

// AlertFunc is called when a record exhausts its retries, or the retry
// queue itself is saturated. It must not block.
type AlertFunc func(r Record, err error)

// Sink is the bounded-queue, background-writer render record sink of
// spec §4.10. Enqueue never blocks the caller beyond trying to push into
// the bounded primary queue; when that queue is full, the record moves
// straight to the retry path, so a render always returns successfully
// from the caller's perspective even under sink backpressure.
type Sink struct {
	writer     Writer
	logger     *zap.Logger
	queue      chan Record
	retryQueue chan retryItem
	retryLimit int
	alert      AlertFunc

	wg     sync.WaitGroup
	stopCh chan struct{}
}

type retryItem struct {
	record  Record
	attempt int
}

// Option configures a Sink.
type Option func(*Sink)

// QueueSize overrides DefaultQueueSize.
func QueueSize(n int) Option { return func(s *Sink) { s.queue = make(chan Record, n) } }

// RetryQueueSize overrides DefaultRetryQueueSize.
func RetryQueueSize(n int) Option {
	return func(s *Sink) { s.retryQueue = make(chan retryItem, n) }
}

// RetryLimit overrides DefaultRetryLimit.
func RetryLimit(n int) Option { return func(s *Sink) { s.retryLimit = n } }

// Logger attaches a logger; defaults to a no-op logger.
func Logger(l *zap.Logger) Option { return func(s *Sink) { s.logger = l } }

// Alert registers a callback invoked when a record's retries are
// exhausted.
func Alert(fn AlertFunc) Option { return func(s *Sink) { s.alert = fn } }

// New builds a Sink and starts its background writer goroutine. Callers
// must call Close to drain and stop it.
func New(writer Writer, opts ...Option) *Sink {
	s := &Sink{
		writer:     writer,
		logger:     zap.NewNop(),
		queue:      make(chan Record, DefaultQueueSize),
		retryQueue: make(chan retryItem, DefaultRetryQueueSize),
		retryLimit: DefaultRetryLimit,
		stopCh:     make(chan struct{}),
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.alert == nil {
		s.alert = func(r Record, err error) {
			s.logger.Error("render record dropped after exhausting retries",
				zap.String("render_id", r.RenderID), zap.Error(err))
		}
	}

	s.wg.Add(2)
	go s.runWriter()
	go s.runRetries()
	return s
}

// Enqueue submits r for durable storage. It returns immediately; r is
// never lost from the caller's perspective — a saturated primary queue
// routes r straight into the retry path instead of blocking.
func (s *Sink) Enqueue(r Record) {
	select {
	case s.queue <- r:
	default:
		s.logger.Warn("record queue saturated, routing straight to retry", zap.String("render_id", r.RenderID))
		s.scheduleRetry(retryItem{record: r})
	}
}

func (s *Sink) scheduleRetry(item retryItem) {
	select {
	case s.retryQueue <- item:
	default:
		s.alert(item.record, errFullRetryQueue)
	}
}

func (s *Sink) runWriter() {
	defer s.wg.Done()
	for {
		select {
		case r := <-s.queue:
			s.write(r, 0)
		case <-s.stopCh:
			s.drainQueue()
			return
		}
	}
}

func (s *Sink) drainQueue() {
	for {
		select {
		case r := <-s.queue:
			s.write(r, 0)
		default:
			return
		}
	}
}

func (s *Sink) write(r Record, attempt int) {
	if err := s.writer.Write(context.Background(), r); err != nil {
		s.logger.Warn("render record write failed", zap.String("render_id", r.RenderID), zap.Error(err))
		s.scheduleRetry(retryItem{record: r, attempt: attempt + 1})
	}
}

func (s *Sink) runRetries() {
	defer s.wg.Done()
	for {
		select {
		case item := <-s.retryQueue:
			if item.attempt >= s.retryLimit {
				s.alert(item.record, errRetriesExhausted)
				continue
			}
			if err := s.writer.Write(context.Background(), item.record); err != nil {
				s.scheduleRetry(retryItem{record: item.record, attempt: item.attempt + 1})
			}
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the background goroutines after draining the primary queue.
// Items still in the retry queue when Close is called are abandoned; call
// Close only during an orderly shutdown.
func (s *Sink) Close() {
	close(s.stopCh)
	s.wg.Wait()
}

var (
	errFullRetryQueue   = sinkError("retry queue saturated")
	errRetriesExhausted = sinkError("retry limit exhausted")
)

type sinkError string

func (e sinkError) Error() string { return string(e) }

// NewLoggingSink is a convenience constructor used by cmd/papermaked when
// no durable sink backend is configured: it logs records at Info level
// instead of persisting them.
func NewLoggingSink(l *zap.Logger) *Sink {
	return New(loggingWriter{l: l}, Logger(l))
}

type loggingWriter struct{ l *zap.Logger }

func (w loggingWriter) Write(_ context.Context, r Record) error {
	w.l.Info("render record",
		zap.String("render_id", r.RenderID),
		zap.String("template_ref", r.TemplateRef),
		zap.Bool("success", r.Success),
		zap.Int64("duration_ms", r.DurationMS),
	)
	return nil
}
