// Package runner validates a batch of input files, sequentially or in
// parallel, and writes the aggregate report at the end.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/i5validator"
	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/compression"
	"github.com/jacoelho/i5validator/internal/observability"
)

// Validator is the part of i5validator.Validator the runner drives.
type Validator interface {
	ValidateDocument(r io.Reader, name string, mode i5validator.Mode) (i5validator.Result, error)
	WriteReport(path string) error
}

// Options configures a run.
type Options struct {
	// Tracer starts one span per document; nil disables spans.
	Tracer trace.Tracer
	// ReportPath is where the aggregate report is written when KeepRecord is set.
	ReportPath string
	// Files are validated in this order unless Parallel is set.
	Files []string
	// Jobs limits the parallel workers; zero or less means GOMAXPROCS.
	Jobs int
	// Compression applies to files whose extension names no known format.
	Compression compression.Kind
	Mode        i5validator.Mode
	Parallel    bool
	KeepRecord  bool
}

// FileResult is the outcome of one input file.
type FileResult struct {
	Name        string
	Size        int64
	Findings    int
	Duration    time.Duration
	Compression compression.Kind
	Valid       bool
	done        bool
}

// Runner validates the files of one batch.
type Runner struct {
	validator Validator
	logger    *slog.Logger
	metrics   *observability.RunMetrics
	tracer    trace.Tracer
	results   []FileResult
	opts      Options
}

// New returns a runner for opts. A nil logger discards log output and nil
// metrics record nothing.
func New(v Validator, opts Options, logger *slog.Logger, metrics *observability.RunMetrics) (*Runner, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil validator", xerrors.ErrConfiguration)
	}
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("%w: no input files", xerrors.ErrConfiguration)
	}
	if opts.KeepRecord && opts.ReportPath == "" {
		return nil, fmt.Errorf("%w: empty report path", xerrors.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Runner{
		validator: v,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}, nil
}

// Run validates every file and, when records are kept, writes the report.
// Per-document verdicts never fail the run; the first I/O or configuration
// error stops the scheduling of further files and is returned.
func (r *Runner) Run(ctx context.Context) error {
	r.results = make([]FileResult, len(r.opts.Files))

	var err error
	if r.opts.Parallel {
		err = r.runParallel(ctx)
	} else {
		err = r.runSequential(ctx)
	}
	if err != nil {
		return err
	}

	if r.opts.KeepRecord {
		if err := r.validator.WriteReport(r.opts.ReportPath); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func (r *Runner) runSequential(ctx context.Context) error {
	for i, name := range r.opts.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.validateFile(ctx, i, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context) error {
	jobs := r.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(r.opts.Files)))

	for i, name := range r.opts.Files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return r.validateFile(gctx, i, name)
		})
	}
	return g.Wait()
}

// validateFile writes only r.results[i].
func (r *Runner) validateFile(ctx context.Context, i int, name string) (err error) {
	ctx, span := r.tracer.Start(ctx, "validate document", trace.WithAttributes(
		attribute.String("document", name),
		attribute.String("mode", r.opts.Mode.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			r.metrics.RecordFailure(ctx, r.opts.Mode.String())
		}
		span.End()
	}()
	defer r.metrics.TrackInflight(ctx)()

	kind := compression.FromName(name, r.opts.Compression)
	r.logger.InfoContext(ctx, "Validating "+name, slog.String("compression", kind.String()))

	f, err := os.Open(name)
	if err != nil {
		return xerrors.Wrapf(xerrors.ErrIO, err, "open %s", name)
	}
	defer f.Close()

	var size int64
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}

	stream, err := compression.NewReader(f, kind)
	if err != nil {
		return xerrors.Wrapf(xerrors.ErrIO, err, "open %s", name)
	}
	defer stream.Close()

	start := time.Now()
	res, err := r.validator.ValidateDocument(stream, name, r.opts.Mode)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	verdict := "Document %s validated"
	if !res.Valid {
		verdict = "Document %s did not validate"
	}
	r.logger.InfoContext(ctx, fmt.Sprintf(verdict, name),
		slog.Int("findings", res.Findings),
		slog.String("size", humanize.Bytes(uint64(max(size, 0)))),
	)

	r.results[i] = FileResult{
		Name:        name,
		Size:        size,
		Findings:    res.Findings,
		Duration:    elapsed,
		Compression: kind,
		Valid:       res.Valid,
		done:        true,
	}
	r.metrics.RecordDocument(ctx, observability.DocumentStats{
		Mode:        r.opts.Mode.String(),
		Compression: kind.String(),
		Bytes:       size,
		Findings:    res.Findings,
		Duration:    elapsed,
		Valid:       res.Valid,
	})
	return nil
}

// Results returns the outcomes of the files that finished validating, in
// input order. It must not be called while Run is in progress.
func (r *Runner) Results() []FileResult {
	out := make([]FileResult, 0, len(r.results))
	for _, res := range r.results {
		if res.done {
			out = append(out, res)
		}
	}
	return out
}
