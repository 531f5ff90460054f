package xmltree

import (
	"slices"

	"github.com/jacoelho/i5validator/internal/xmlstream"
)

// Walk replays the document as the event sequence it was built from: the
// doctype first, then start, character data and end events in document
// order. For start events id is the element; for character data it is the
// text node; for the doctype it is InvalidNode. Attributes passed to fn are
// a copy and may be retained.
func (d *Document) Walk(fn func(ev xmlstream.Event, id NodeID)) {
	if d == nil {
		return
	}
	if d.doctype != nil {
		fn(*d.doctype, InvalidNode)
	}
	if d.root != InvalidNode {
		d.walk(d.root, fn)
	}
}

func (d *Document) walk(id NodeID, fn func(ev xmlstream.Event, id NodeID)) {
	n := &d.nodes[id]
	if n.kind == TextNode {
		fn(xmlstream.Event{
			Kind:     xmlstream.EventCharData,
			Text:     n.text,
			SystemID: n.systemID,
			Line:     n.line,
			Column:   n.column,
		}, id)
		return
	}
	fn(xmlstream.Event{
		Kind:     xmlstream.EventStartElement,
		Name:     n.name,
		Attrs:    slices.Clone(d.Attrs(id)),
		SystemID: n.systemID,
		Line:     n.line,
		Column:   n.column,
	}, id)
	for _, child := range d.Children(id) {
		d.walk(child, fn)
	}
	fn(xmlstream.Event{
		Kind:     xmlstream.EventEndElement,
		Name:     n.name,
		SystemID: n.systemID,
		Line:     n.endLine,
		Column:   n.endColumn,
	}, id)
}
