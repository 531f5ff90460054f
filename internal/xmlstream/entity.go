package xmlstream

import (
	"errors"
	"io"
	"maps"
	"slices"
	"strings"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/dtd"
)

// A reference to an entity whose replacement text contains markup reaches
// the reader as markupOpen + name + markupClose inside character data or an
// attribute value. Both are private use characters, which never occur in
// names.
const (
	markupOpen  = "\uE000"
	markupClose = "\uE001"
)

// entityScope is shared by a document reader and the readers it opens over
// markup entities.
type entityScope struct {
	// decoder is the entity map handed to encoding/xml.
	decoder map[string]string
	// markup holds the replacement text of each markup entity.
	markup map[string]string
}

func newEntityScope(table dtd.EntityTable) *entityScope {
	decoder := make(map[string]string, len(table.Text)+len(table.Markup))
	maps.Copy(decoder, table.Text)
	for name := range table.Markup {
		decoder[name] = markupOpen + name + markupClose
	}
	return &entityScope{decoder: decoder, markup: table.Markup}
}

// segment is a run of character data or a markup entity reference.
type segment struct {
	text   string
	entity string
	line   int
	column int
}

// split cuts text at its markup entity references. It reports false when
// text references none.
func (s *entityScope) split(text string, line, column int) ([]segment, bool) {
	if s == nil || len(s.markup) == 0 || !strings.Contains(text, markupOpen) {
		return nil, false
	}
	var out []segment
	var plain strings.Builder
	found := false
	for text != "" {
		name, before, after, ok := s.nextRef(text)
		if !ok {
			plain.WriteString(text)
			break
		}
		found = true
		plain.WriteString(before)
		if plain.Len() > 0 {
			out = append(out, segment{text: plain.String(), line: line, column: column})
			plain.Reset()
		}
		out = append(out, segment{entity: name, line: line, column: column})
		text = after
	}
	if plain.Len() > 0 {
		out = append(out, segment{text: plain.String(), line: line, column: column})
	}
	return out, found
}

// nextRef finds the first markup entity reference in text.
func (s *entityScope) nextRef(text string) (name, before, after string, ok bool) {
	offset := 0
	for {
		i := strings.Index(text[offset:], markupOpen)
		if i < 0 {
			return "", "", "", false
		}
		start := offset + i
		rest := text[start+len(markupOpen):]
		j := strings.Index(rest, markupClose)
		if j < 0 {
			return "", "", "", false
		}
		if _, known := s.markup[rest[:j]]; known {
			return rest[:j], text[:start], rest[j+len(markupClose):], true
		}
		offset = start + len(markupOpen)
	}
}

// referencesMarkup reports whether an attribute value contains a markup
// entity reference.
func (s *entityScope) referencesMarkup(value string) bool {
	if s == nil || len(s.markup) == 0 {
		return false
	}
	_, _, _, ok := s.nextRef(value)
	return ok
}

// expansion is a reader over the replacement text of one markup entity.
// Its events are reported at the position of the reference.
type expansion struct {
	reader *Reader
	line   int
	column int
}

// openEntity starts parsing the replacement text of the markup entity name
// as content of the current element.
func (r *Reader) openEntity(seg segment) error {
	if slices.Contains(r.entityChain, seg.entity) {
		return r.fatal(seg.line, seg.column, `Recursive entity reference "%s". (Reference path: %s)`,
			seg.entity, strings.Join(append(slices.Clone(r.entityChain), seg.entity), " -> "))
	}
	nested := NewReader(strings.NewReader(r.entities.markup[seg.entity]), r.systemID, r.opts)
	nested.fragment = seg.entity
	nested.sawRoot = true
	nested.rec.stop()
	nested.entities = r.entities
	nested.dec.Entity = r.entities.decoder
	nested.ns = bindings{list: slices.Clone(r.ns.list)}
	nested.chain = r.chain
	nested.entityChain = append(slices.Clone(r.entityChain), seg.entity)
	r.expansion = &expansion{reader: nested, line: seg.line, column: seg.column}
	return nil
}

// nextExpanded returns the next event of the open entity expansion. It
// reports false once the expansion is exhausted.
func (r *Reader) nextExpanded() (Event, bool, error) {
	x := r.expansion
	ev, err := x.reader.Next()
	if err != nil {
		closeErr := x.reader.Close()
		r.expansion = nil
		if errors.Is(err, io.EOF) {
			if closeErr != nil {
				return Event{}, false, xerrors.Wrapf(xerrors.ErrIO, closeErr, "close %s", r.systemID)
			}
			return Event{}, false, nil
		}
		if f, ok := xerrors.AsFinding(err); ok && f.SystemID == r.systemID {
			f.Line, f.Column = x.line, x.column
		}
		return Event{}, false, err
	}
	if ev.SystemID == r.systemID {
		ev.Line, ev.Column = x.line, x.column
	}
	return ev, true, nil
}

// expandText queues the segments of a character data event that references
// markup entities. It returns the event itself when it references none.
func (r *Reader) expandText(ev Event) (Event, bool) {
	segs, ok := r.entities.split(ev.Text, ev.Line, ev.Column)
	if !ok {
		return ev, true
	}
	r.pending = append(segs, r.pending...)
	return Event{}, false
}

// nextPending consumes one queued segment.
func (r *Reader) nextPending() (Event, bool, error) {
	seg := r.pending[0]
	r.pending = r.pending[1:]
	if seg.entity != "" {
		return Event{}, false, r.openEntity(seg)
	}
	return Event{Kind: EventCharData, Text: seg.text, Line: seg.line, Column: seg.column, SystemID: r.systemID}, true, nil
}
