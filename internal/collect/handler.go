package collect

import (
	"fmt"
	"log/slog"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/report"
)

// Handler collects the diagnostics of one document. It is not safe for
// concurrent use; the parser drives it sequentially.
type Handler struct {
	logger     *slog.Logger
	doc        report.Document
	name       string
	events     int
	keepRecord bool
}

var _ xerrors.Handler = (*Handler)(nil)

// NewHandler returns a handler for the named document. When keepRecord is
// false findings are only logged.
func NewHandler(name string, keepRecord bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{name: name, keepRecord: keepRecord, logger: logger}
	h.Reset()
	return h
}

// Reset discards everything collected so far.
func (h *Handler) Reset() {
	h.doc = report.NewDocument()
	h.events = 0
}

// Report returns the per-document map.
func (h *Handler) Report() report.Document {
	return h.doc
}

// Events returns the number of diagnostics received since the last Reset.
func (h *Handler) Events() int {
	return h.events
}

// Warning implements errors.Handler.
func (h *Handler) Warning(f xerrors.Finding) { h.add(xerrors.SeverityWarning, f) }

// Error implements errors.Handler.
func (h *Handler) Error(f xerrors.Finding) { h.add(xerrors.SeverityError, f) }

// FatalError implements errors.Handler.
func (h *Handler) FatalError(f xerrors.Finding) { h.add(xerrors.SeverityFatal, f) }

// add records f with the severity of the callback that delivered it.
func (h *Handler) add(severity xerrors.Severity, f xerrors.Finding) {
	f.Severity = severity
	h.events++
	message := Normalize(f.Message)
	if message == "" {
		message = report.UnspecifiedMessage
	}
	if h.keepRecord {
		h.doc.Add(message, f.Line, f.Column)
	}
	h.logger.Error(fmt.Sprintf("%s at %d:%d ERROR %s", h.name, f.Line, f.Column, message),
		slog.String("document", h.name),
		slog.Int("line", f.Line),
		slog.Int("column", f.Column),
		slog.String("severity", f.Severity.String()),
	)
}
