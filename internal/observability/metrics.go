package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricDocumentsTotal   = "i5validator.documents.total"
	metricFindingsTotal    = "i5validator.findings.total"
	metricBytesTotal       = "i5validator.input.bytes"
	metricDocumentDuration = "i5validator.document.duration.seconds"
	metricFailuresTotal    = "i5validator.failures.total"
	metricInflight         = "i5validator.inflight.documents"

	attrMode        = "mode"
	attrCompression = "compression"
	attrVerdict     = "verdict"

	verdictValid   = "valid"
	verdictInvalid = "invalid"
)

// durationBucketBoundaries covers small fragments up to multi-gigabyte corpus files.
var durationBucketBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// DocumentStats describes one finished document.
type DocumentStats struct {
	Mode        string
	Compression string
	Bytes       int64
	Findings    int
	Duration    time.Duration
	Valid       bool
}

// RunMetrics holds the instruments recorded by the batch runner. A nil
// *RunMetrics records nothing.
type RunMetrics struct {
	documents metric.Int64Counter
	findings  metric.Int64Counter
	bytes     metric.Int64Counter
	duration  metric.Float64Histogram
	failures  metric.Int64Counter
	inflight  metric.Int64UpDownCounter
}

// NewRunMetrics creates the run instruments from mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	documents, err := mt.Int64Counter(metricDocumentsTotal,
		metric.WithDescription("Documents validated, by verdict"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDocumentsTotal, err)
	}

	findings, err := mt.Int64Counter(metricFindingsTotal,
		metric.WithDescription("Diagnostics reported by the parser"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFindingsTotal, err)
	}

	bytes, err := mt.Int64Counter(metricBytesTotal,
		metric.WithDescription("Size of the input files as stored on disk"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricDocumentDuration,
		metric.WithDescription("Time spent validating one document"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDocumentDuration, err)
	}

	failures, err := mt.Int64Counter(metricFailuresTotal,
		metric.WithDescription("Documents whose validation ended in an I/O or configuration failure"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFailuresTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflight,
		metric.WithDescription("Documents currently being validated"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflight, err)
	}

	return &RunMetrics{
		documents: documents,
		findings:  findings,
		bytes:     bytes,
		duration:  duration,
		failures:  failures,
		inflight:  inflight,
	}, nil
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *RunMetrics) TrackInflight(ctx context.Context) func() {
	if rm == nil {
		return func() {}
	}
	rm.inflight.Add(ctx, 1)
	return func() {
		rm.inflight.Add(ctx, -1)
	}
}

// RecordDocument records a document that finished validating.
func (rm *RunMetrics) RecordDocument(ctx context.Context, s DocumentStats) {
	if rm == nil {
		return
	}
	verdict := verdictValid
	if !s.Valid {
		verdict = verdictInvalid
	}
	common := []attribute.KeyValue{
		attribute.String(attrMode, s.Mode),
		attribute.String(attrCompression, s.Compression),
	}
	rm.documents.Add(ctx, 1, metric.WithAttributes(append(common, attribute.String(attrVerdict, verdict))...))
	rm.findings.Add(ctx, int64(s.Findings), metric.WithAttributes(common...))
	rm.bytes.Add(ctx, s.Bytes, metric.WithAttributes(common...))
	rm.duration.Record(ctx, s.Duration.Seconds(), metric.WithAttributes(common...))
}

// RecordFailure records a document whose validation returned an error.
func (rm *RunMetrics) RecordFailure(ctx context.Context, mode string) {
	if rm == nil {
		return
	}
	rm.failures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMode, mode)))
}
