package contentmodel

import (
	"iter"
	"math/bits"
	"slices"
	"strconv"
)

// posSet is a set of positions of one content model, one bit per position.
type posSet []uint64

func newPosSet(size int) posSet {
	return make(posSet, (size+63)/64)
}

func (s posSet) add(pos int)      { s[pos>>6] |= 1 << uint(pos&63) }
func (s posSet) has(pos int) bool { return s[pos>>6]&(1<<uint(pos&63)) != 0 }

// merge adds every position of o to s.
func (s posSet) merge(o posSet) {
	for i := range min(len(s), len(o)) {
		s[i] |= o[i]
	}
}

// union returns a new set holding the positions of s and o.
func (s posSet) union(o posSet) posSet {
	out := slices.Clone(s)
	out.merge(o)
	return out
}

func (s posSet) isEmpty() bool {
	return !slices.ContainsFunc(s, func(w uint64) bool { return w != 0 })
}

// all yields the positions in increasing order.
func (s posSet) all() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i, w := range s {
			for w != 0 {
				bit := bits.TrailingZeros64(w)
				if !yield(i<<6 | bit) {
					return
				}
				w &^= 1 << uint(bit)
			}
		}
	}
}

// fingerprint identifies the set among the states of one automaton.
func (s posSet) fingerprint() string {
	buf := make([]byte, 0, len(s)*17)
	for _, w := range s {
		buf = strconv.AppendUint(buf, w, 16)
		buf = append(buf, '.')
	}
	return string(buf)
}
