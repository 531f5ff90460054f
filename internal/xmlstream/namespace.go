package xmlstream

import (
	"encoding/xml"
)

// Common XML namespaces.
const (
	XMLNamespace      = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace    = "http://www.w3.org/2000/xmlns/"
	XIncludeNamespace = "http://www.w3.org/2001/XInclude"
)

// binding maps a prefix to a namespace name; the default namespace uses the
// empty prefix.
type binding struct {
	prefix string
	uri    string
}

// bindings is the in-scope namespace declarations of the open elements.
// marks holds, per open element, the length of list before its own
// declarations were added.
type bindings struct {
	list  []binding
	marks []int
}

// enter opens the scope of a start tag. It returns the prefix of an empty
// prefixed declaration, which is an error; the scope is not opened then.
func (b *bindings) enter(attrs []xml.Attr) string {
	mark := len(b.list)
	for _, attr := range attrs {
		switch {
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			b.list = append(b.list, binding{uri: attr.Value})
		case attr.Name.Space == "xmlns":
			if attr.Name.Local == "xml" || attr.Name.Local == "xmlns" {
				continue
			}
			if attr.Value == "" {
				b.list = b.list[:mark]
				return attr.Name.Local
			}
			b.list = append(b.list, binding{prefix: attr.Name.Local, uri: attr.Value})
		}
	}
	b.marks = append(b.marks, mark)
	return ""
}

// leave closes the innermost scope.
func (b *bindings) leave() {
	if len(b.marks) == 0 {
		return
	}
	last := len(b.marks) - 1
	b.list = b.list[:b.marks[last]]
	b.marks = b.marks[:last]
}

// resolve returns the namespace bound to prefix. The empty prefix is always
// bound, to no namespace when nothing was declared.
func (b *bindings) resolve(prefix string) (string, bool) {
	if prefix == "xml" {
		return XMLNamespace, true
	}
	for i := len(b.list) - 1; i >= 0; i-- {
		if b.list[i].prefix == prefix {
			return b.list[i].uri, true
		}
	}
	return "", prefix == ""
}

func rawName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
