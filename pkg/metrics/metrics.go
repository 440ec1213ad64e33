// Package metrics defines the opencensus measures and views papermake
// exports for its render pipeline and registry. The teacher's pkg/metrics
// builds measures dynamically from struct tags over an influxdb exporter;
// papermake has a small, fixed set of measures, so they are declared
// directly and exported through whatever view.Exporter the caller
// registers (stackdriver, prometheus, or the opencensus stats stdout
// exporter). Recording with no exporter registered, as the tests do, is a
// no-op.
package metrics

import (
	"context"
	"time"

	"github.com/docker/go-units"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	// KB is 1024 bytes, kept for readable bucket boundaries below.
	KB = units.KiB
	// MB is 1024 KB.
	MB = units.MiB
)

var (
	KeyStage  = tag.MustNewKey("stage")
	KeyResult = tag.MustNewKey("result")
	KeyKind   = tag.MustNewKey("kind")

	RenderCount = stats.Int64("papermake/render_count", "renders completed", stats.UnitDimensionless)
	RenderLatency = stats.Float64("papermake/render_latency_ms", "end-to-end render latency", stats.UnitMilliseconds)
	RenderFailures = stats.Int64("papermake/render_failures", "renders that ended Rejected or Failed", stats.UnitDimensionless)

	CacheHits   = stats.Int64("papermake/cache_hits", "cache lookups that found an entry", stats.UnitDimensionless)
	CacheMisses = stats.Int64("papermake/cache_misses", "cache lookups that found no entry", stats.UnitDimensionless)

	PublishBytes = stats.Int64("papermake/publish_bytes", "bytes ingested by a publish", stats.UnitBytes)
	PublishFiles = stats.Int64("papermake/publish_files", "files ingested by a publish", stats.UnitDimensionless)

	StorageLatency = stats.Float64("papermake/storage_latency_ms", "blob store round-trip latency", stats.UnitMilliseconds)
)

func durationBuckets() *view.Aggregation {
	return view.Distribution(
		10, 50, 100, 300, 500, 700, 900,
		1000, 1500, 2000, 3000, 5000, 7000, 9000,
		10000, 30000, 60000,
	)
}

func bytesBuckets() *view.Aggregation {
	return view.Distribution(
		1*KB, 10*KB, 100*KB,
		1*MB, 5*MB, 10*MB, 50*MB, 100*MB,
	)
}

// Views returns the opencensus views papermake registers at startup.
// Callers pass the result to view.Register once an exporter is attached.
func Views() []*view.View {
	return []*view.View{
		{Name: "papermake/render_count", Measure: RenderCount, Aggregation: view.Count(), TagKeys: []tag.Key{KeyResult}},
		{Name: "papermake/render_latency", Measure: RenderLatency, Aggregation: durationBuckets(), TagKeys: []tag.Key{KeyStage}},
		{Name: "papermake/render_failures", Measure: RenderFailures, Aggregation: view.Count(), TagKeys: []tag.Key{KeyResult}},
		{Name: "papermake/cache_hits", Measure: CacheHits, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind}},
		{Name: "papermake/cache_misses", Measure: CacheMisses, Aggregation: view.Count(), TagKeys: []tag.Key{KeyKind}},
		{Name: "papermake/publish_bytes", Measure: PublishBytes, Aggregation: bytesBuckets()},
		{Name: "papermake/publish_files", Measure: PublishFiles, Aggregation: view.Sum()},
		{Name: "papermake/storage_latency", Measure: StorageLatency, Aggregation: durationBuckets(), TagKeys: []tag.Key{KeyKind}},
	}
}

// Register registers all papermake views with opencensus. Safe to call once
// at process startup after an exporter has been attached with
// view.RegisterExporter.
func Register() error {
	return view.Register(Views()...)
}

// RecordRender records the outcome and latency of a single render.
func RecordRender(ctx context.Context, start time.Time, result string) {
	ctx, _ = tag.New(ctx, tag.Insert(KeyResult, result))
	stats.Record(ctx, RenderCount.M(1), RenderLatency.M(float64(time.Since(start).Milliseconds())))
	if result != "Recorded" {
		stats.Record(ctx, RenderFailures.M(1))
	}
}

// RecordCacheLookup records whether a lookup against kind (e.g. "manifest",
// "tag", "warmed") hit or missed.
func RecordCacheLookup(ctx context.Context, kind string, hit bool) {
	ctx, _ = tag.New(ctx, tag.Insert(KeyKind, kind))
	if hit {
		stats.Record(ctx, CacheHits.M(1))
		return
	}
	stats.Record(ctx, CacheMisses.M(1))
}

// RecordPublish records the size of an ingested template publish.
func RecordPublish(ctx context.Context, files int64, bytes int64) {
	stats.Record(ctx, PublishFiles.M(files), PublishBytes.M(bytes))
}

// RecordStorageOp records the latency of a blob store round trip, tagged
// with kind; storage.Instrument passes the store's String() form (e.g.
// "localfs", "s3://bucket", "gcs://bucket").
func RecordStorageOp(ctx context.Context, kind string, start time.Time) {
	ctx, _ = tag.New(ctx, tag.Insert(KeyKind, kind))
	stats.Record(ctx, StorageLatency.M(float64(time.Since(start).Milliseconds())))
}
