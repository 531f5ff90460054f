package xmltree

import (
	"errors"
	"fmt"
	"io"

	"fortio.org/safecast"

	"github.com/jacoelho/i5validator/internal/xmlstream"
)

// openElement is an element whose children are still being collected in
// Document.scratch starting at mark.
type openElement struct {
	id   NodeID
	mark int
}

// Parse reads every event from r into doc. Adjacent character data is
// merged into one text node. Parse stops at the first error returned by r.
func Parse(r *xmlstream.Reader, doc *Document) error {
	doc.reset()
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := doc.add(ev); err != nil {
			return err
		}
	}
	if doc.root == InvalidNode {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (d *Document) add(ev xmlstream.Event) error {
	switch ev.Kind {
	case xmlstream.EventDoctype:
		stored := ev
		d.doctype = &stored
	case xmlstream.EventStartElement:
		attrOff, err := index(len(d.attrs))
		if err != nil {
			return err
		}
		attrLen, err := index(len(ev.Attrs))
		if err != nil {
			return err
		}
		id, err := d.appendNode(node{
			kind:     ElementNode,
			name:     ev.Name,
			systemID: ev.SystemID,
			line:     ev.Line,
			column:   ev.Column,
			attrOff:  attrOff,
			attrLen:  attrLen,
		})
		if err != nil {
			return err
		}
		d.attrs = append(d.attrs, ev.Attrs...)
		if d.root == InvalidNode {
			d.root = id
		}
		d.open = append(d.open, openElement{id: id, mark: len(d.scratch)})
	case xmlstream.EventEndElement:
		if len(d.open) == 0 {
			return nil
		}
		top := d.open[len(d.open)-1]
		d.open = d.open[:len(d.open)-1]
		childOff, err := index(len(d.children))
		if err != nil {
			return err
		}
		childLen, err := index(len(d.scratch) - top.mark)
		if err != nil {
			return err
		}
		n := &d.nodes[top.id]
		n.endLine, n.endColumn = ev.Line, ev.Column
		n.childOff = childOff
		n.childLen = childLen
		d.children = append(d.children, d.scratch[top.mark:]...)
		d.scratch = d.scratch[:top.mark]
	case xmlstream.EventCharData:
		if len(d.open) == 0 {
			return nil
		}
		top := d.open[len(d.open)-1]
		if last := len(d.scratch) - 1; last >= top.mark && d.nodes[d.scratch[last]].kind == TextNode {
			d.nodes[d.scratch[last]].text += ev.Text
			return nil
		}
		_, err := d.appendNode(node{
			kind:     TextNode,
			text:     ev.Text,
			systemID: ev.SystemID,
			line:     ev.Line,
			column:   ev.Column,
		})
		return err
	}
	return nil
}

func (d *Document) appendNode(n node) (NodeID, error) {
	raw, err := index(len(d.nodes))
	if err != nil {
		return InvalidNode, err
	}
	id := NodeID(raw)
	n.parent = InvalidNode
	if len(d.open) > 0 {
		n.parent = d.open[len(d.open)-1].id
		d.scratch = append(d.scratch, id)
	}
	d.nodes = append(d.nodes, n)
	return id, nil
}

func index(n int) (int32, error) {
	v, err := safecast.Conv[int32](n)
	if err != nil {
		return 0, fmt.Errorf("document tree too large: %w", err)
	}
	return v, nil
}
