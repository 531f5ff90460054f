// Package xmltree materializes a document read by xmlstream into a compact
// arena so that it can be walked after parsing completes.
package xmltree

import (
	"strings"

	"github.com/jacoelho/i5validator/internal/dtd"
	"github.com/jacoelho/i5validator/internal/xmlstream"
)

// NodeID indexes a node of a Document.
type NodeID int32

// InvalidNode is returned where no node exists.
const InvalidNode NodeID = -1

// NodeKind distinguishes element and text nodes.
type NodeKind uint8

const (
	ElementNode NodeKind = iota + 1
	TextNode
)

type node struct {
	name      xmlstream.Name
	text      string
	systemID  string
	line      int
	column    int
	endLine   int
	endColumn int
	parent    NodeID
	attrOff   int32
	attrLen   int32
	childOff  int32
	childLen  int32
	kind      NodeKind
}

// Document is an element tree stored in flat slices. Node, attribute and
// child slices are reused when the document comes from a DocumentPool.
type Document struct {
	doctype  *xmlstream.Event
	nodes    []node
	attrs    []xmlstream.Attr
	children []NodeID
	scratch  []NodeID
	open     []openElement
	root     NodeID
}

func (d *Document) reset() {
	d.doctype = nil
	d.nodes = d.nodes[:0]
	d.attrs = d.attrs[:0]
	d.children = d.children[:0]
	d.scratch = d.scratch[:0]
	d.open = d.open[:0]
	d.root = InvalidNode
}

func (d *Document) valid(id NodeID) bool {
	return d != nil && id >= 0 && int(id) < len(d.nodes)
}

// Root returns the document element.
func (d *Document) Root() NodeID {
	if d == nil {
		return InvalidNode
	}
	return d.root
}

// Len returns the number of nodes.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.nodes)
}

// Doctype returns the document type declaration, if the document had one.
func (d *Document) Doctype() (dtd.Doctype, *dtd.DTD, bool) {
	if d == nil || d.doctype == nil {
		return dtd.Doctype{}, nil, false
	}
	return d.doctype.Doctype, d.doctype.DTD, true
}

// Kind returns the kind of node id, or zero for an invalid node.
func (d *Document) Kind(id NodeID) NodeKind {
	if !d.valid(id) {
		return 0
	}
	return d.nodes[id].kind
}

// Name returns the element name of id.
func (d *Document) Name(id NodeID) xmlstream.Name {
	if !d.valid(id) {
		return xmlstream.Name{}
	}
	return d.nodes[id].name
}

// NamespaceURI returns the namespace of element id.
func (d *Document) NamespaceURI(id NodeID) string {
	return d.Name(id).Space
}

// Position returns the location of the start tag of id.
func (d *Document) Position(id NodeID) (line, column int) {
	if !d.valid(id) {
		return -1, -1
	}
	return d.nodes[id].line, d.nodes[id].column
}

// Parent returns the parent element of id.
func (d *Document) Parent(id NodeID) NodeID {
	if !d.valid(id) {
		return InvalidNode
	}
	return d.nodes[id].parent
}

// Children returns the element and text children of id in document order.
// The slice aliases the document and must not be modified.
func (d *Document) Children(id NodeID) []NodeID {
	if !d.valid(id) {
		return nil
	}
	n := d.nodes[id]
	return d.children[n.childOff : n.childOff+n.childLen]
}

// Attrs returns the attributes of element id. The slice aliases the document.
func (d *Document) Attrs(id NodeID) []xmlstream.Attr {
	if !d.valid(id) {
		return nil
	}
	n := d.nodes[id]
	return d.attrs[n.attrOff : n.attrOff+n.attrLen]
}

// SetAttrs replaces the attributes of element id.
func (d *Document) SetAttrs(id NodeID, attrs []xmlstream.Attr) error {
	if !d.valid(id) {
		return nil
	}
	count, err := index(len(attrs))
	if err != nil {
		return err
	}
	n := &d.nodes[id]
	if count <= n.attrLen {
		copy(d.attrs[n.attrOff:], attrs)
		n.attrLen = count
		return nil
	}
	off, err := index(len(d.attrs))
	if err != nil {
		return err
	}
	n.attrOff, n.attrLen = off, count
	d.attrs = append(d.attrs, attrs...)
	return nil
}

// GetAttribute returns the value of the attribute with the given qualified name.
func (d *Document) GetAttribute(id NodeID, name string) string {
	v, _ := d.lookup(id, func(a xmlstream.Attr) bool { return a.Name.Raw == name })
	return v
}

// HasAttribute reports whether element id carries the named attribute.
func (d *Document) HasAttribute(id NodeID, name string) bool {
	_, ok := d.lookup(id, func(a xmlstream.Attr) bool { return a.Name.Raw == name })
	return ok
}

// GetAttributeNS returns the value of the attribute {ns}local.
func (d *Document) GetAttributeNS(id NodeID, ns, local string) string {
	v, _ := d.lookup(id, func(a xmlstream.Attr) bool { return a.Name.Space == ns && a.Name.Local == local })
	return v
}

// HasAttributeNS reports whether element id carries the attribute {ns}local.
func (d *Document) HasAttributeNS(id NodeID, ns, local string) bool {
	_, ok := d.lookup(id, func(a xmlstream.Attr) bool { return a.Name.Space == ns && a.Name.Local == local })
	return ok
}

func (d *Document) lookup(id NodeID, match func(xmlstream.Attr) bool) (string, bool) {
	for _, a := range d.Attrs(id) {
		if match(a) {
			return a.Value, true
		}
	}
	return "", false
}

// Text returns the character data of text node id.
func (d *Document) Text(id NodeID) string {
	if !d.valid(id) {
		return ""
	}
	return d.nodes[id].text
}

// TextContent returns the concatenated text of the subtree rooted at id.
func (d *Document) TextContent(id NodeID) string {
	var sb strings.Builder
	d.collectText(id, &sb)
	return sb.String()
}

func (d *Document) collectText(id NodeID, sb *strings.Builder) {
	if d.Kind(id) == TextNode {
		sb.WriteString(d.nodes[id].text)
		return
	}
	for _, child := range d.Children(id) {
		d.collectText(child, sb)
	}
}
