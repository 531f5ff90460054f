// Package xmlstream reads XML documents as a stream of namespace-resolved
// events, loading the document type definition and performing XInclude
// along the way.
package xmlstream

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/dtd"
	"github.com/jacoelho/i5validator/internal/source"
)

// EventKind identifies the kind of streaming XML event.
type EventKind int

const (
	EventStartElement EventKind = iota
	EventEndElement
	EventCharData
	EventDoctype
)

// String returns a short label for the kind.
func (k EventKind) String() string {
	switch k {
	case EventStartElement:
		return "start"
	case EventEndElement:
		return "end"
	case EventCharData:
		return "chardata"
	case EventDoctype:
		return "doctype"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

const readerBufferSize = 256 * 1024

// Name is an element or attribute name. Raw is the qualified name as
// written in the document; DTD declarations are matched against it.
type Name struct {
	Space string
	Local string
	Raw   string
}

// Attr is an attribute of a start element.
type Attr struct {
	Name  Name
	Value string
}

// Event is a single streaming XML event. Line and Column locate the end of
// the markup that produced it.
type Event struct {
	DTD      *dtd.DTD
	Name     Name
	SystemID string
	Text     string
	Attrs    []Attr
	Doctype  dtd.Doctype
	Kind     EventKind
	Line     int
	Column   int
}

// Options configures a Reader.
type Options struct {
	// Resolver opens external DTD subsets, entities and included documents.
	Resolver source.Resolver
	// Handler receives findings raised while loading the DTD.
	Handler xerrors.Handler
	// XInclude enables processing of xi:include elements.
	XInclude bool
}

// Reader produces events from an XML document. Fatal well-formedness
// problems are returned from Next as *errors.Finding values; failures of the
// underlying stream are returned wrapped in errors.ErrIO.
type Reader struct {
	opts      Options
	dec       *xml.Decoder
	rec       *recorder
	include   *inclusion
	entities  *entityScope
	expansion *expansion
	systemID  string
	// fragment names the markup entity whose replacement text this reader
	// parses; it is empty for a document reader.
	fragment    string
	ns          bindings
	stack       []Name
	chain       []string
	entityChain []string
	queue       []Event
	pending     []segment

	collecting int
	sawRoot    bool
	rootDone   bool
	sawDoctype bool
}

// NewReader returns a reader for the document r identified by systemID.
func NewReader(r io.Reader, systemID string, opts Options) *Reader {
	rec := &recorder{r: bufio.NewReaderSize(source.NewDocumentReader(r), readerBufferSize), on: true}
	dec := xml.NewDecoder(rec)
	dec.Strict = true
	dec.CharsetReader = source.CharsetReader
	return &Reader{
		opts:     opts,
		dec:      dec,
		rec:      rec,
		systemID: systemID,
	}
}

// SystemID returns the system identifier of the document.
func (r *Reader) SystemID() string {
	return r.systemID
}

// Close releases documents opened for XInclude. It does not close the
// reader's own input.
func (r *Reader) Close() error {
	var err error
	if r.expansion != nil {
		err = r.expansion.reader.Close()
		r.expansion = nil
	}
	if r.include != nil {
		if cerr := r.include.close(); err == nil {
			err = cerr
		}
		r.include = nil
	}
	return err
}

// Next returns the next event, or io.EOF after the end of the document.
func (r *Reader) Next() (Event, error) {
	for {
		if r.expansion != nil {
			ev, ok, err := r.nextExpanded()
			if err != nil {
				return Event{}, err
			}
			if ok {
				return ev, nil
			}
			continue
		}
		if len(r.pending) > 0 {
			ev, ok, err := r.nextPending()
			if err != nil {
				return Event{}, err
			}
			if ok {
				return ev, nil
			}
			continue
		}
		if len(r.queue) > 0 {
			ev := r.queue[0]
			r.queue = r.queue[1:]
			if ev.Kind == EventCharData {
				var ok bool
				if ev, ok = r.expandText(ev); !ok {
					continue
				}
			}
			return ev, nil
		}
		if r.include != nil {
			ev, err := r.include.reader.Next()
			if err != nil {
				closeErr := r.include.close()
				r.include = nil
				if errors.Is(err, io.EOF) {
					if closeErr != nil {
						return Event{}, xerrors.Wrapf(xerrors.ErrIO, closeErr, "close %s", r.systemID)
					}
					continue
				}
				return Event{}, err
			}
			if ev.Kind == EventDoctype {
				continue
			}
			return ev, nil
		}
		ev, ok, err := r.read()
		if err != nil {
			return Event{}, err
		}
		if ok {
			return ev, nil
		}
	}
}

// read consumes one token and reports whether it produced an event.
func (r *Reader) read() (Event, bool, error) {
	startOffset := r.dec.InputOffset()
	startLine, startColumn := r.dec.InputPos()
	tok, err := r.dec.RawToken()
	if err != nil {
		return Event{}, false, r.tokenError(err)
	}
	line, column := r.dec.InputPos()

	switch t := tok.(type) {
	case xml.StartElement:
		return r.start(t, line, column)
	case xml.EndElement:
		ev, err := r.end(t, line, column)
		return ev, err == nil, err
	case xml.CharData:
		return r.charData(t, line, column)
	case xml.Directive:
		return r.directive(t, startOffset, startLine, startColumn, line, column)
	case xml.ProcInst:
		if strings.EqualFold(t.Target, "xml") && startOffset > 0 {
			return Event{}, false, r.fatal(line, column, `The processing instruction target matching "[xX][mM][lL]" is not allowed.`)
		}
	}
	return Event{}, false, nil
}

func (r *Reader) start(t xml.StartElement, line, column int) (Event, bool, error) {
	raw := rawName(t.Name)
	if r.rootDone {
		return Event{}, false, r.fatal(line, column, "The markup in the document following the root element must be well-formed.")
	}
	if !r.sawRoot {
		r.sawRoot = true
		r.rec.stop()
	}

	if emptyPrefix := r.ns.enter(t.Attr); emptyPrefix != "" {
		return Event{}, false, r.fatal(line, column, `The value of the attribute "xmlns:%s" is invalid. Prefixed namespace bindings may not be empty.`, emptyPrefix)
	}

	space, ok := r.ns.resolve(t.Name.Space)
	if !ok {
		return Event{}, false, r.fatal(line, column, `The prefix "%s" for element "%s" is not bound.`, t.Name.Space, raw)
	}
	name := Name{Space: space, Local: t.Name.Local, Raw: raw}

	attrs := make([]Attr, 0, len(t.Attr))
	seenRaw := make(map[string]bool, len(t.Attr))
	seenExpanded := make(map[Name]bool, len(t.Attr))
	for _, a := range t.Attr {
		araw := rawName(a.Name)
		if seenRaw[araw] {
			return Event{}, false, r.fatal(line, column, `Attribute "%s" was already specified for element "%s".`, araw, raw)
		}
		seenRaw[araw] = true

		var aspace string
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns", a.Name.Space == "xmlns":
			aspace = XMLNSNamespace
		case a.Name.Space != "":
			s, ok := r.ns.resolve(a.Name.Space)
			if !ok {
				return Event{}, false, r.fatal(line, column, `The prefix "%s" for attribute "%s" associated with an element type "%s" is not bound.`, a.Name.Space, araw, raw)
			}
			aspace = s
			key := Name{Space: s, Local: a.Name.Local}
			if seenExpanded[key] {
				return Event{}, false, r.fatal(line, column, `Attribute "%s" bound to namespace "%s" was already specified for element "%s".`, a.Name.Local, s, raw)
			}
			seenExpanded[key] = true
		}
		if r.entities.referencesMarkup(a.Value) {
			return Event{}, false, r.fatal(line, column, `The value of attribute "%s" associated with an element type "%s" must not contain the '<' character.`, araw, raw)
		}
		attrs = append(attrs, Attr{Name: Name{Space: aspace, Local: a.Name.Local, Raw: araw}, Value: a.Value})
	}

	r.stack = append(r.stack, name)
	ev := Event{Kind: EventStartElement, Name: name, Attrs: attrs, Line: line, Column: column, SystemID: r.systemID}
	if r.opts.XInclude && r.collecting == 0 && isXInclude(name, "include") {
		return r.xinclude(ev)
	}
	return ev, true, nil
}

func (r *Reader) end(t xml.EndElement, line, column int) (Event, error) {
	raw := rawName(t.Name)
	if len(r.stack) == 0 {
		if r.fragment != "" {
			return Event{}, r.fatal(line, column, `The end-tag "</%s>" must start and end within the same entity "%s".`, raw, r.fragment)
		}
		return Event{}, r.fatal(line, column, "The markup in the document following the root element must be well-formed.")
	}
	top := r.stack[len(r.stack)-1]
	if raw != top.Raw {
		return Event{}, r.fatal(line, column, `The element type "%s" must be terminated by the matching end-tag "</%s>".`, top.Raw, top.Raw)
	}
	r.stack = r.stack[:len(r.stack)-1]
	r.ns.leave()
	if len(r.stack) == 0 && r.fragment == "" {
		r.rootDone = true
	}
	return Event{Kind: EventEndElement, Name: top, Line: line, Column: column, SystemID: r.systemID}, nil
}

func (r *Reader) charData(t xml.CharData, line, column int) (Event, bool, error) {
	if len(r.stack) == 0 && r.fragment == "" {
		if isBlank(t) {
			return Event{}, false, nil
		}
		if r.rootDone {
			return Event{}, false, r.fatal(line, column, "Content is not allowed in trailing section.")
		}
		return Event{}, false, r.fatal(line, column, "Content is not allowed in prolog.")
	}
	ev := Event{Kind: EventCharData, Text: string(t), Line: line, Column: column, SystemID: r.systemID}
	if r.collecting > 0 {
		return ev, true, nil
	}
	ev, ok := r.expandText(ev)
	return ev, ok, nil
}

func (r *Reader) directive(t xml.Directive, startOffset int64, startLine, startColumn, line, column int) (Event, bool, error) {
	body := string(t)
	if !strings.HasPrefix(body, "DOCTYPE") {
		return Event{}, false, r.fatal(line, column, "The markup in the document preceding the root element must be well-formed.")
	}
	if r.sawRoot {
		return Event{}, false, r.fatal(line, column, "The document type declaration must appear before the first element in the document.")
	}
	if r.sawDoctype {
		return Event{}, false, r.fatal(line, column, "Only one document type declaration is allowed.")
	}
	r.sawDoctype = true
	if raw, ok := r.rec.slice(startOffset, r.dec.InputOffset()); ok && strings.HasPrefix(raw, "<!DOCTYPE") && strings.HasSuffix(raw, ">") {
		body = raw[2 : len(raw)-1]
	}

	dt, err := dtd.ParseDoctype(body, dtd.Position{SystemID: r.systemID, Line: startLine, Column: startColumn})
	if err != nil {
		return Event{}, false, err
	}
	d, err := dtd.Load(dt, r.systemID, r.opts.Resolver, r.opts.Handler)
	if err != nil {
		return Event{}, false, err
	}
	r.entities = newEntityScope(d.GeneralEntities(r.opts.Resolver, r.opts.Handler))
	r.dec.Entity = r.entities.decoder
	return Event{Kind: EventDoctype, Doctype: dt, DTD: d, Line: line, Column: column, SystemID: r.systemID}, true, nil
}

var undeclaredEntity = regexp.MustCompile(`^invalid character entity &([^#;][^;]*);$`)

func (r *Reader) tokenError(err error) error {
	if r.rec.err != nil {
		return xerrors.Wrapf(xerrors.ErrIO, r.rec.err, "read %s", r.systemID)
	}
	line, column := r.dec.InputPos()
	if errors.Is(err, io.EOF) {
		switch {
		case len(r.stack) > 0 && r.fragment != "":
			return r.fatal(line, column, `The element type "%s" must be terminated within the same entity "%s".`, r.stack[len(r.stack)-1].Raw, r.fragment)
		case len(r.stack) > 0:
			return r.fatal(line, column, "XML document structures must start and end within the same entity.")
		case !r.sawRoot:
			return r.fatal(line, column, "Premature end of file.")
		}
		return io.EOF
	}
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		msg := se.Msg
		switch {
		case msg == "unexpected EOF":
			msg = "XML document structures must start and end within the same entity."
		case undeclaredEntity.MatchString(msg):
			msg = fmt.Sprintf(`The entity "%s" was referenced, but not declared.`, undeclaredEntity.FindStringSubmatch(msg)[1])
		}
		return r.fatal(se.Line, column, "%s", msg)
	}
	return r.fatal(line, column, "%s", err.Error())
}

func (r *Reader) fatal(line, column int, format string, args ...any) error {
	f := xerrors.NewFindingf(xerrors.SeverityFatal, r.systemID, line, column, format, args...)
	return &f
}

func isBlank(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

// recorder feeds the decoder byte by byte and keeps the prolog so that the
// document type declaration can be re-read verbatim. It also remembers the
// first read failure, which distinguishes I/O errors from syntax errors.
type recorder struct {
	r   *bufio.Reader
	err error
	buf []byte
	on  bool
}

func (r *recorder) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		r.note(err)
		return b, err
	}
	if r.on {
		r.buf = append(r.buf, b)
	}
	return b, nil
}

func (r *recorder) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if r.on {
		r.buf = append(r.buf, p[:n]...)
	}
	r.note(err)
	return n, err
}

func (r *recorder) note(err error) {
	if err != nil && !errors.Is(err, io.EOF) && r.err == nil {
		r.err = err
	}
}

func (r *recorder) stop() {
	r.on = false
	r.buf = nil
}

func (r *recorder) slice(from, to int64) (string, bool) {
	if !r.on || from < 0 || to > int64(len(r.buf)) || from >= to {
		return "", false
	}
	return string(r.buf[from:to]), true
}
