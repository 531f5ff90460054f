// Package validation checks a stream of XML events against the document
// type definition the document declares.
package validation

import (
	"slices"
	"strings"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/contentmodel"
	"github.com/jacoelho/i5validator/internal/dtd"
	"github.com/jacoelho/i5validator/internal/xmlstream"
)

type frame struct {
	decl    *dtd.ElementDecl
	matcher contentmodel.Matcher
	name    string
	// inText is set while a run of character data has already been reported.
	inText bool
}

type idref struct {
	value    string
	systemID string
	line     int
	column   int
}

// Engine reports validity findings for the events of one document. A
// document without a document type declaration is not checked.
type Engine struct {
	handler  xerrors.Handler
	dtd      *dtd.DTD
	automata map[string]*contentmodel.Automaton
	ids      map[string]bool
	stack    []*frame
	idrefs   []idref
	rootSeen bool
}

// New returns an engine that reports findings to h.
func New(h xerrors.Handler) *Engine {
	return &Engine{
		handler:  h,
		automata: make(map[string]*contentmodel.Automaton),
		ids:      make(map[string]bool),
	}
}

// Active reports whether a DTD has been declared.
func (e *Engine) Active() bool {
	return e.dtd != nil
}

// Handle routes an event to the matching method. Attribute defaults are not
// returned; use StartElement directly to obtain them.
func (e *Engine) Handle(ev xmlstream.Event) {
	switch ev.Kind {
	case xmlstream.EventDoctype:
		e.Doctype(ev)
	case xmlstream.EventStartElement:
		e.StartElement(ev)
	case xmlstream.EventEndElement:
		e.EndElement(ev)
	case xmlstream.EventCharData:
		e.CharData(ev)
	}
}

// Doctype activates validation against the DTD carried by ev.
func (e *Engine) Doctype(ev xmlstream.Event) {
	if ev.DTD == nil {
		return
	}
	e.dtd = ev.DTD
	for _, name := range sortedKeys(e.dtd.Entities) {
		ent := e.dtd.Entities[name]
		if ent.Unparsed() {
			if _, ok := e.dtd.Notations[ent.Notation]; !ok {
				e.report(ent.Pos.SystemID, ent.Pos.Line, ent.Pos.Column,
					`notation "%s" of unparsed entity "%s" is not declared`, ent.Notation, ent.Name)
			}
		}
	}
	for _, name := range sortedKeys(e.dtd.Elements) {
		for _, a := range e.dtd.Elements[name].Attributes {
			if a.Type != dtd.AttrNOTATION {
				continue
			}
			for _, v := range a.Values {
				if _, ok := e.dtd.Notations[v]; !ok {
					e.report(a.Pos.SystemID, a.Pos.Line, a.Pos.Column,
						`notation "%s" of attribute "%s" is not declared`, v, a.Name)
				}
			}
		}
	}
}

// StartElement checks an element against its parent's content model and
// its attributes against the attribute-list declarations. It returns the
// attributes with values normalized and declared defaults added.
func (e *Engine) StartElement(ev xmlstream.Event) []xmlstream.Attr {
	if e.dtd == nil {
		return ev.Attrs
	}
	name := ev.Name.Raw
	decl, declared := e.dtd.Element(name)

	if !e.rootSeen {
		e.rootSeen = true
		if name != e.dtd.Name {
			e.errorf(ev, `document element "%s" does not match DOCTYPE name "%s"`, name, e.dtd.Name)
		}
	}

	if len(e.stack) > 0 {
		e.checkChild(ev, e.stack[len(e.stack)-1], name, declared)
	} else if !declared {
		e.errorf(ev, `element "%s" not allowed anywhere; no declaration for element type "%s"`, name, name)
	}

	f := &frame{name: name}
	attrs := ev.Attrs
	if declared {
		f.decl = decl
		if decl.Content == dtd.ContentChildren {
			f.matcher = e.automaton(ev, decl).NewMatcher()
		}
		attrs = e.checkAttributes(ev, decl)
	}
	e.stack = append(e.stack, f)
	return attrs
}

func (e *Engine) checkChild(ev xmlstream.Event, parent *frame, name string, declared bool) {
	parent.inText = false
	if parent.decl == nil {
		if !declared {
			e.errorf(ev, `element "%s" not allowed anywhere; no declaration for element type "%s"`, name, name)
		}
		return
	}

	var allowed bool
	var expected expectation
	switch parent.decl.Content {
	case dtd.ContentAny:
		allowed = true
	case dtd.ContentEmpty:
		expected = expectation{endTag: true}
	case dtd.ContentMixed:
		allowed = slices.Contains(parent.decl.Mixed, name)
		expected = expectation{endTag: true, text: true, elements: parent.decl.Mixed}
	case dtd.ContentChildren:
		expected = expectation{endTag: parent.matcher.Accepting(), elements: parent.matcher.Expected()}
		if declared {
			allowed = parent.matcher.Feed(name)
		}
	}

	switch {
	case !declared:
		e.errorf(ev, `element "%s" not allowed anywhere; expected %s`, name, expected)
	case !allowed:
		e.errorf(ev, `element "%s" not allowed here; expected %s`, name, expected)
	}
}

// CharData checks character data against the content type of the current
// element. Each run of text is reported at most once.
func (e *Engine) CharData(ev xmlstream.Event) {
	if e.dtd == nil || len(e.stack) == 0 {
		return
	}
	f := e.stack[len(e.stack)-1]
	if f.decl == nil || f.inText {
		return
	}
	switch f.decl.Content {
	case dtd.ContentEmpty:
		if ev.Text == "" {
			return
		}
		f.inText = true
		e.errorf(ev, `text not allowed here; expected the element end-tag`)
	case dtd.ContentChildren:
		if isWhitespace(ev.Text) {
			return
		}
		f.inText = true
		x := expectation{endTag: f.matcher.Accepting(), elements: f.matcher.Expected()}
		e.errorf(ev, `text not allowed here; expected %s`, x)
	}
}

// EndElement checks that the content of the closed element is complete.
func (e *Engine) EndElement(ev xmlstream.Event) {
	if e.dtd == nil || len(e.stack) == 0 {
		return
	}
	f := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	if len(e.stack) > 0 {
		e.stack[len(e.stack)-1].inText = false
	}
	if f.decl == nil || f.decl.Content != dtd.ContentChildren || f.matcher.Accepting() {
		return
	}
	expected := f.matcher.Expected()
	if len(expected) == 1 {
		e.errorf(ev, `element "%s" incomplete; missing required element "%s"`, f.name, expected[0])
		return
	}
	e.errorf(ev, `element "%s" incomplete; expected element %s`, f.name, alternatives(expected))
}

// EndDocument reports IDREF values that name no ID in the document.
func (e *Engine) EndDocument() {
	for _, ref := range e.idrefs {
		if !e.ids[ref.value] {
			e.report(ref.systemID, ref.line, ref.column, `reference to non-existent ID "%s"`, ref.value)
		}
	}
	e.idrefs = nil
}

// automaton compiles the content model of decl on first use. A
// non-deterministic model is reported once, as a warning.
func (e *Engine) automaton(ev xmlstream.Event, decl *dtd.ElementDecl) *contentmodel.Automaton {
	a, ok := e.automata[decl.Name]
	if !ok {
		a = contentmodel.Compile(decl.Model)
		e.automata[decl.Name] = a
		if name, ambiguous := a.Ambiguous(); ambiguous {
			xerrors.Dispatch(e.handler, xerrors.NewFindingf(xerrors.SeverityWarning, ev.SystemID, ev.Line, ev.Column,
				`content model of element "%s" is not deterministic; element "%s" matches more than one particle`, decl.Name, name))
		}
	}
	return a
}

func (e *Engine) errorf(ev xmlstream.Event, format string, args ...any) {
	e.report(ev.SystemID, ev.Line, ev.Column, format, args...)
}

func (e *Engine) report(systemID string, line, column int, format string, args ...any) {
	xerrors.Dispatch(e.handler, xerrors.NewFindingf(xerrors.SeverityError, systemID, line, column, format, args...))
}

func isWhitespace(s string) bool {
	return strings.Trim(s, " \t\r\n") == ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
