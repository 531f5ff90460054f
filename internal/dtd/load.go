package dtd

import (
	"strings"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/source"
)

// Doctype is a parsed document type declaration.
type Doctype struct {
	Name           string
	PublicID       string
	SystemID       string
	InternalSubset string
	// Pos is the position of the "<!DOCTYPE" markup.
	Pos Position
	// SubsetPos is the position of the first character of the internal subset.
	SubsetPos Position
}

// HasExternalSubset reports whether the declaration names an external subset.
func (d Doctype) HasExternalSubset() bool {
	return d.SystemID != ""
}

// ParseDoctype parses the body of a <!DOCTYPE ...> declaration: the text
// between "<!" and the closing ">". start is the position of the "<".
func ParseDoctype(body string, start Position) (Doctype, error) {
	dt := Doctype{Pos: start}
	p := newParser(New(""), nil, nil)
	p.s = newScanner(&frame{
		text:     body,
		systemID: start.SystemID,
		line:     start.Line,
		col:      start.Column + 2,
		file:     true,
	})
	if !p.s.hasPrefix("DOCTYPE") {
		return dt, p.fatalf("The document type declaration must begin with \"<!DOCTYPE\".")
	}
	p.s.advance(len("DOCTYPE"))
	if !isSpace(p.s.peek()) {
		return dt, p.fatalf(`White space is required after "<!DOCTYPE" in the document type declaration.`)
	}
	p.skipBlanks()
	dt.Name = p.s.name()
	if dt.Name == "" {
		return dt, p.fatalf(`The root element type must appear after "<!DOCTYPE" in the document type declaration.`)
	}
	p.skipBlanks()
	if p.s.hasPrefix("SYSTEM") || p.s.hasPrefix("PUBLIC") {
		publicID, systemID, err := p.externalID(true)
		if err != nil {
			return dt, err
		}
		dt.PublicID = publicID
		dt.SystemID = systemID
		p.skipBlanks()
	}
	if p.s.peek() == '[' {
		p.s.advance(1)
		f := p.s.top()
		rest := f.text[f.pos:]
		end := strings.LastIndexByte(rest, ']')
		if end < 0 {
			return dt, p.fatalf(`The internal subset of the document type declaration must end with "]".`)
		}
		dt.SubsetPos = p.s.position()
		dt.InternalSubset = rest[:end]
		p.s.advance(end + 1)
		p.skipBlanks()
	}
	if !p.s.atEnd() {
		return dt, p.fatalf(`The document type declaration for root element type "%s" must end with '>'.`, dt.Name)
	}
	return dt, nil
}

func (p *parser) skipBlanks() {
	for isSpace(p.s.peek()) {
		p.s.advance(1)
	}
}

// Load reads the internal subset of dt and then its external subset, so
// declarations in the internal subset take precedence. baseSystemID is the
// system identifier of the document. Syntax errors are returned as fatal
// findings; failing to obtain the external subset is an I/O error. Validity
// problems in the declarations are reported to h.
func Load(dt Doctype, baseSystemID string, resolver source.Resolver, h xerrors.Handler) (*DTD, error) {
	d := New(dt.Name)
	d.PublicID = dt.PublicID
	d.SystemID = dt.SystemID
	p := newParser(d, resolver, h)

	if dt.InternalSubset != "" {
		pos := dt.SubsetPos
		if pos.Line == 0 {
			pos = Position{SystemID: baseSystemID, Line: 1, Column: 1}
		}
		err := p.parseSubset(&frame{
			text:     dt.InternalSubset,
			systemID: baseSystemID,
			line:     pos.Line,
			col:      pos.Column,
			file:     true,
		})
		if err != nil {
			return nil, err
		}
	}

	if dt.HasExternalSubset() {
		text, id, err := p.load(source.ResolveRequest{
			BaseSystemID: baseSystemID,
			SystemID:     dt.SystemID,
			PublicID:     dt.PublicID,
			Kind:         source.ResolveDTD,
		})
		if err != nil {
			return nil, err
		}
		if err := p.parseSubset(&frame{text: text, systemID: id, line: 1, col: 1, file: true}); err != nil {
			return nil, err
		}
	}
	return d, nil
}
