package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Severity classifies a parser diagnostic.
type Severity uint8

const (
	// SeverityWarning is a diagnostic that never affects the verdict.
	SeverityWarning Severity = iota
	// SeverityError is a recoverable validity error.
	SeverityError
	// SeverityFatal is a well-formedness or DTD syntax error that aborts parsing.
	SeverityFatal
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// Sentinel kinds for failures that are propagated to the caller instead of
// being reported as findings.
var (
	// ErrConfiguration indicates the validator could not be set up.
	ErrConfiguration = errors.New("parser configuration")
	// ErrIO indicates a failure reading a document or one of its external resources.
	ErrIO = errors.New("i/o failure")
)

// Finding is a single positioned diagnostic emitted while parsing a document.
// Line and Column are 1-based; -1 means the position is unknown.
//
//nolint:errname // domain term, mirrors parser diagnostics.
type Finding struct {
	Message  string
	SystemID string
	Line     int
	Column   int
	Severity Severity
}

// NewFinding builds a finding at the given position.
func NewFinding(severity Severity, systemID string, line, column int, msg string) Finding {
	return Finding{Severity: severity, SystemID: systemID, Line: line, Column: column, Message: msg}
}

// NewFindingf formats a message and builds a finding.
func NewFindingf(severity Severity, systemID string, line, column int, format string, args ...any) Finding {
	return NewFinding(severity, systemID, line, column, fmt.Sprintf(format, args...))
}

// Error formats the finding with its position.
func (f *Finding) Error() string {
	if f == nil {
		return "finding <nil>"
	}
	var b strings.Builder
	if f.SystemID != "" {
		b.WriteString(f.SystemID)
		b.WriteByte(':')
	}
	if f.Line >= 0 {
		b.WriteString(fmt.Sprintf("%d:%d: ", f.Line, f.Column))
	} else if f.SystemID != "" {
		b.WriteByte(' ')
	}
	b.WriteString(f.Severity.String())
	b.WriteString(": ")
	b.WriteString(f.Message)
	return b.String()
}

// Fatal reports whether the finding aborts parsing.
func (f *Finding) Fatal() bool {
	return f != nil && f.Severity == SeverityFatal
}

// AsFinding extracts a finding from an error chain.
func AsFinding(err error) (*Finding, bool) {
	if err == nil {
		return nil, false
	}
	var f *Finding
	if errors.As(err, &f) && f != nil {
		return f, true
	}
	return nil, false
}

// Handler receives diagnostics from the parser in emission order.
// Implementations must return normally so parsing can continue where possible.
type Handler interface {
	Warning(Finding)
	Error(Finding)
	FatalError(Finding)
}

// Dispatch routes a finding to the handler method matching its severity.
func Dispatch(h Handler, f Finding) {
	if h == nil {
		return
	}
	switch f.Severity {
	case SeverityWarning:
		h.Warning(f)
	case SeverityFatal:
		h.FatalError(f)
	default:
		h.Error(f)
	}
}

// Recorder is a Handler that keeps every finding it receives.
type Recorder struct {
	Findings []Finding
}

// Warning implements Handler.
func (r *Recorder) Warning(f Finding) { r.Findings = append(r.Findings, f) }

// Error implements Handler.
func (r *Recorder) Error(f Finding) { r.Findings = append(r.Findings, f) }

// FatalError implements Handler.
func (r *Recorder) FatalError(f Finding) { r.Findings = append(r.Findings, f) }

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	out := make([]string, len(r.Findings))
	for i := range r.Findings {
		out[i] = r.Findings[i].Message
	}
	return out
}

// Wrapf wraps err with a sentinel kind and context.
func Wrapf(kind, err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", kind, fmt.Sprintf(format, args...), err)
}
