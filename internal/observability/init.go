// Package observability sets up logging, tracing and run metrics.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jacoelho/i5validator"

// Config selects the logger output and service metadata.
type Config struct {
	// Output receives log records; nil means os.Stderr.
	Output         io.Writer
	ServiceName    string
	ServiceVersion string
	LogLevel       slog.Level
	LogJSON        bool
}

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer starts one span per validated document.
	Tracer trace.Tracer

	// Meter creates the run metric instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Registry collects the exported metrics for the textfile writer.
	Registry *prometheus.Registry

	// Shutdown flushes pending telemetry. Must be called before exit.
	Shutdown func(ctx context.Context) error
}

// Init builds the logger, a tracer provider and a meter provider exporting
// to a private Prometheus registry.
func Init(cfg Config) (Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "i5validator"
	}

	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return Providers{}, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return Providers{
		Tracer:   tp.Tracer(instrumentationName),
		Meter:    mp.Meter(instrumentationName),
		Logger:   NewLogger(cfg),
		Registry: registry,
		Shutdown: func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
	}, nil
}

// NewLogger returns a text or JSON logger wrapped in a TracingHandler.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(out, opts)
	}
	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.ServiceVersion))
}

func buildResource(cfg Config) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	res, err := resource.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	return res, nil
}

// WriteMetrics writes the registry in the Prometheus text format to path.
func WriteMetrics(path string, registry *prometheus.Registry) error {
	if registry == nil {
		return errors.New("write metrics: nil registry")
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
