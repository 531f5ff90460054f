// Package contentmodel compiles DTD element content models into
// deterministic automata using Glushkov construction followed by subset
// construction.
package contentmodel

import (
	"github.com/jacoelho/i5validator/internal/dtd"
)

type builder struct {
	index     map[string]int
	symbols   []string
	followPos []posSet
	// posSymbol maps a position to its symbol index; the end marker has -1.
	posSymbol []int
	size      int
	endPos    int
}

// Compile builds the automaton of an element content model.
func Compile(model *dtd.Particle) *Automaton {
	size := countLeaves(model) + 1
	b := &builder{
		index:     make(map[string]int),
		size:      size,
		endPos:    size - 1,
		posSymbol: make([]int, size),
		followPos: make([]posSet, size),
	}
	b.posSymbol[b.endPos] = -1
	for i := range b.followPos {
		b.followPos[i] = newPosSet(size)
	}

	content := emptyGroup(size)
	if model != nil {
		var next int
		content = b.buildNode(model, &next)
	}
	root := seq(content, leaf(b.endPos, size))
	b.computeFollowPos(root)
	a := b.construct(root)
	a.ambiguous, a.hasAmbiguity = b.findAmbiguity(root)
	return a
}

func countLeaves(p *dtd.Particle) int {
	if p == nil {
		return 0
	}
	if p.Kind == dtd.ParticleName {
		return 1
	}
	n := 0
	for _, c := range p.Children {
		n += countLeaves(c)
	}
	return n
}

func (b *builder) buildNode(p *dtd.Particle, next *int) *node {
	var n *node
	switch p.Kind {
	case dtd.ParticleName:
		pos := *next
		*next++
		b.posSymbol[pos] = b.intern(p.Name)
		n = leaf(pos, b.size)
	case dtd.ParticleSeq, dtd.ParticleChoice:
		for _, c := range p.Children {
			child := b.buildNode(c, next)
			switch {
			case n == nil:
				n = child
			case p.Kind == dtd.ParticleSeq:
				n = seq(n, child)
			default:
				n = alt(n, child)
			}
		}
	}
	if n == nil {
		return emptyGroup(b.size)
	}
	switch p.Occurs {
	case dtd.Optional:
		return repeat(n, true, false)
	case dtd.ZeroOrMore:
		return repeat(n, true, true)
	case dtd.OneOrMore:
		return repeat(n, false, true)
	default:
		return n
	}
}

func (b *builder) intern(name string) int {
	if idx, ok := b.index[name]; ok {
		return idx
	}
	idx := len(b.symbols)
	b.index[name] = idx
	b.symbols = append(b.symbols, name)
	return idx
}

// construct performs subset construction over position sets. State 0 is
// the first set of root.
func (b *builder) construct(root *node) *Automaton {
	a := &Automaton{symbols: b.symbols, index: b.index}
	stateIDs := make(map[string]int)
	var pending []posSet

	addState := func(set posSet) int {
		key := set.fingerprint()
		if id, ok := stateIDs[key]; ok {
			return id
		}
		id := len(a.accepting)
		stateIDs[key] = id
		a.accepting = append(a.accepting, set.has(b.endPos))
		a.transitions = append(a.transitions, b.newRow()...)
		pending = append(pending, set)
		return id
	}
	addState(root.first)

	for id := 0; id < len(pending); id++ {
		cur := pending[id]
		for symIdx := range b.symbols {
			target := newPosSet(b.size)
			for pos := range cur.all() {
				if b.posSymbol[pos] == symIdx {
					target.merge(b.followPos[pos])
				}
			}
			if target.isEmpty() {
				continue
			}
			a.setTransition(id, symIdx, addState(target))
		}
	}
	return a
}

func (b *builder) newRow() []int {
	row := make([]int, len(b.symbols))
	for i := range row {
		row[i] = -1
	}
	return row
}
