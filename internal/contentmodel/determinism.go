package contentmodel

// findAmbiguity returns the name of an element that two positions reachable
// from the same point can match, which makes the content model
// non-deterministic.
func (b *builder) findAmbiguity(root *node) (string, bool) {
	if name, ok := b.sharedSymbol(root.first); ok {
		return name, true
	}
	for _, follow := range b.followPos {
		if name, ok := b.sharedSymbol(follow); ok {
			return name, true
		}
	}
	return "", false
}

// sharedSymbol reports the first element name matched by two positions of set.
func (b *builder) sharedSymbol(set posSet) (string, bool) {
	seen := make(map[int]struct{})
	for pos := range set.all() {
		sym := b.posSymbol[pos]
		if sym < 0 {
			continue
		}
		if _, dup := seen[sym]; dup {
			return b.symbols[sym], true
		}
		seen[sym] = struct{}{}
	}
	return "", false
}
