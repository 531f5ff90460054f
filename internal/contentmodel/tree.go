package contentmodel

type nodeKind uint8

const (
	nodeEmpty nodeKind = iota
	nodeLeaf
	nodeSeq
	nodeAlt
	nodeRepeat
)

// node is a syntax tree node of the Glushkov construction. Its first and
// last position sets are computed when the node is built; they are shared
// with children and must not be modified.
type node struct {
	left     *node
	right    *node
	first    posSet
	last     posSet
	kind     nodeKind
	nullable bool
	loops    bool
}

// emptyGroup matches only the empty sequence.
func emptyGroup(size int) *node {
	set := newPosSet(size)
	return &node{kind: nodeEmpty, first: set, last: set, nullable: true}
}

// leaf is one position: an element name occurrence, or the end marker.
func leaf(pos, size int) *node {
	set := newPosSet(size)
	set.add(pos)
	return &node{kind: nodeLeaf, first: set, last: set}
}

func seq(left, right *node) *node {
	n := &node{kind: nodeSeq, left: left, right: right, nullable: left.nullable && right.nullable}
	n.first = left.first
	if left.nullable {
		n.first = left.first.union(right.first)
	}
	n.last = right.last
	if right.nullable {
		n.last = right.last.union(left.last)
	}
	return n
}

func alt(left, right *node) *node {
	return &node{
		kind:     nodeAlt,
		left:     left,
		right:    right,
		first:    left.first.union(right.first),
		last:     left.last.union(right.last),
		nullable: left.nullable || right.nullable,
	}
}

// repeat applies an occurrence indicator: ? is optional, + loops and * does both.
func repeat(child *node, optional, loops bool) *node {
	return &node{
		kind:     nodeRepeat,
		left:     child,
		first:    child.first,
		last:     child.last,
		nullable: optional || child.nullable,
		loops:    loops,
	}
}
