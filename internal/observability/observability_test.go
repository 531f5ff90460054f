package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacoelho/i5validator/internal/observability"
)

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.Config{
		Output:         &buf,
		ServiceName:    "i5validator",
		ServiceVersion: "1.2.3",
		LogJSON:        true,
	})

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "Validating a.xml")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "i5validator", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "Validating a.xml", record["msg"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.Config{Output: &buf, ServiceName: "svc", LogJSON: true})
	logger.WithGroup("doc").Info("no span", slog.String("name", "a.xml"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, hasTrace := record["trace_id"]
	assert.False(t, hasTrace)
	_, hasVersion := record["version"]
	assert.False(t, hasVersion)
	assert.Equal(t, "svc", record["service"])
	assert.Equal(t, map[string]any{"name": "a.xml"}, record["doc"])
}

func TestNewLoggerTextLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.Config{Output: &buf, ServiceName: "svc", LogLevel: slog.LevelWarn})
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=WARN msg=shown service=svc")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
	}
	for _, tt := range tests {
		got, err := observability.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := observability.ParseLevel("loud")
	require.Error(t, err)
}

func TestInitSpansCarryIntoLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	providers, err := observability.Init(observability.Config{Output: &buf, LogJSON: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	ctx, span := providers.Tracer.Start(context.Background(), "validate document")
	providers.Logger.InfoContext(ctx, "inside span")
	span.End()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, "i5validator", record["service"])
}

func TestRunMetricsWrittenToTextfile(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.Config{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	metrics, err := observability.NewRunMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	done := metrics.TrackInflight(ctx)
	metrics.RecordDocument(ctx, observability.DocumentStats{
		Mode:        "sax",
		Compression: "gzip",
		Bytes:       2048,
		Findings:    3,
		Duration:    40 * time.Millisecond,
		Valid:       true,
	})
	metrics.RecordDocument(ctx, observability.DocumentStats{Mode: "sax", Compression: "none", Valid: false})
	metrics.RecordFailure(ctx, "sax")
	done()

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, observability.WriteMetrics(path, providers.Registry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "i5validator_documents")
	assert.Contains(t, text, `verdict="valid"`)
	assert.Contains(t, text, `verdict="invalid"`)
	assert.Contains(t, text, `compression="gzip"`)
	assert.Contains(t, text, "i5validator_failures")
}

func TestNilRunMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *observability.RunMetrics
	ctx := context.Background()
	metrics.TrackInflight(ctx)()
	metrics.RecordDocument(ctx, observability.DocumentStats{})
	metrics.RecordFailure(ctx, "dom")
}

func TestWriteMetricsNilRegistry(t *testing.T) {
	t.Parallel()

	require.Error(t, observability.WriteMetrics(filepath.Join(t.TempDir(), "x.prom"), nil))
}
