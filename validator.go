// Package i5validator validates XML documents against the document type
// definition they declare and collects the findings per document.
package i5validator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/collect"
	"github.com/jacoelho/i5validator/internal/validation"
	"github.com/jacoelho/i5validator/internal/xmlstream"
	"github.com/jacoelho/i5validator/internal/xmltree"
	"github.com/jacoelho/i5validator/report"
)

// Mode selects how a document is parsed.
type Mode uint8

const (
	// ModeSAX validates events as they are read.
	ModeSAX Mode = iota
	// ModeDOM builds the whole document tree first and validates it afterwards.
	ModeDOM
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSAX:
		return "sax"
	case ModeDOM:
		return "dom"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Result is the outcome of validating one document.
type Result struct {
	// Report holds the normalized findings when records are kept.
	Report report.Document
	// Findings counts every diagnostic, whether or not records are kept.
	Findings int
	// Valid is false when a fatal error aborted parsing.
	Valid bool
}

// Validator validates documents and gathers their findings into an
// aggregate report. It is safe for concurrent use.
type Validator struct {
	aggregate *report.Aggregate
	pool      *xmltree.DocumentPool
	opts      resolvedOptions
}

// New returns a validator configured by opts.
func New(opts Options) (*Validator, error) {
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("new validator: %w", err)
	}
	return &Validator{
		aggregate: report.NewAggregate(),
		pool:      xmltree.NewDocumentPool(),
		opts:      resolved,
	}, nil
}

// ValidateSAX validates a document while streaming it.
func (v *Validator) ValidateSAX(r io.Reader, name string) (bool, error) {
	res, err := v.ValidateDocument(r, name, ModeSAX)
	return res.Valid, err
}

// ValidateDOM validates a document after building its tree.
func (v *Validator) ValidateDOM(r io.Reader, name string) (bool, error) {
	res, err := v.ValidateDocument(r, name, ModeDOM)
	return res.Valid, err
}

// ValidateDocument validates the document read from r and identified by
// name. Validity errors and warnings are reported to the collecting handler
// and never fail the call; a fatal error makes the result invalid. Failures
// to read the document or its external DTD are returned as errors matching
// errors.ErrIO. When records are kept, the findings of a valid document are
// added to the aggregate report under name.
func (v *Validator) ValidateDocument(r io.Reader, name string, mode Mode) (Result, error) {
	if v == nil {
		return Result{}, fmt.Errorf("%w: nil validator", xerrors.ErrConfiguration)
	}
	if r == nil {
		return Result{}, fmt.Errorf("%w: nil reader for %q", xerrors.ErrConfiguration, name)
	}
	if name == "" {
		return Result{}, fmt.Errorf("%w: empty document name", xerrors.ErrConfiguration)
	}

	h := collect.NewHandler(name, v.opts.keepRecord, v.opts.logger)
	engine := validation.New(h)
	reader := xmlstream.NewReader(r, name, xmlstream.Options{
		Resolver: v.opts.resolver,
		Handler:  h,
		XInclude: v.opts.xinclude,
	})
	v.opts.logger.Debug("parsing document", slog.String("document", name), slog.String("mode", mode.String()))

	var err error
	switch mode {
	case ModeDOM:
		err = v.runDOM(reader, engine)
	default:
		err = runSAX(reader, engine)
	}
	if closeErr := reader.Close(); err == nil && closeErr != nil {
		err = xerrors.Wrapf(xerrors.ErrIO, closeErr, "close included documents of %s", name)
	}

	res := Result{Valid: true}
	if err != nil {
		f, ok := xerrors.AsFinding(err)
		if !ok || !f.Fatal() {
			return Result{}, fmt.Errorf("validate %s: %w", name, err)
		}
		xerrors.Dispatch(h, *f)
		res.Valid = false
	}
	res.Findings = h.Events()
	res.Report = h.Report()
	if res.Valid && v.opts.keepRecord {
		v.aggregate.Put(name, res.Report)
	}
	return res, nil
}

func runSAX(reader *xmlstream.Reader, engine *validation.Engine) error {
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			engine.EndDocument()
			return nil
		}
		if err != nil {
			return err
		}
		engine.Handle(ev)
	}
}

func (v *Validator) runDOM(reader *xmlstream.Reader, engine *validation.Engine) error {
	doc := v.pool.Acquire()
	defer v.pool.Release(doc)
	if err := xmltree.Parse(reader, doc); err != nil {
		return err
	}
	var walkErr error
	doc.Walk(func(ev xmlstream.Event, id xmltree.NodeID) {
		if ev.Kind != xmlstream.EventStartElement {
			engine.Handle(ev)
			return
		}
		if err := doc.SetAttrs(id, engine.StartElement(ev)); err != nil && walkErr == nil {
			walkErr = err
		}
	})
	if walkErr != nil {
		return walkErr
	}
	engine.EndDocument()
	return nil
}

// Report returns the aggregate of kept records.
func (v *Validator) Report() *report.Aggregate {
	return v.aggregate
}

// WriteReport writes the aggregate report to path as JSON.
func (v *Validator) WriteReport(path string) error {
	return report.WriteFile(path, v.aggregate, v.opts.logger)
}
