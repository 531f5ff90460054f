package contentmodel

// computeFollowPos fills followPos for every position below n. In a
// sequence, the last positions of the left side are followed by the first
// positions of the right side; in a loop, the last positions of the body
// are followed by its first positions.
func (b *builder) computeFollowPos(n *node) {
	switch n.kind {
	case nodeSeq:
		b.computeFollowPos(n.left)
		b.computeFollowPos(n.right)
		for pos := range n.left.last.all() {
			b.followPos[pos].merge(n.right.first)
		}
	case nodeAlt:
		b.computeFollowPos(n.left)
		b.computeFollowPos(n.right)
	case nodeRepeat:
		b.computeFollowPos(n.left)
		if n.loops {
			for pos := range n.left.last.all() {
				b.followPos[pos].merge(n.left.first)
			}
		}
	}
}
