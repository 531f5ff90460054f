package xmltree

import (
	"sync"
	"sync/atomic"
)

const (
	maxPooledNodeEntries    = 1 << 16
	maxPooledAttrEntries    = 1 << 16
	maxPooledChildEntries   = 1 << 16
	maxPooledScratchEntries = 1 << 12
)

// PoolStats counts pool traffic.
type PoolStats struct {
	Acquires uint64
	Releases uint64
}

// DocumentPool recycles documents between parses. The zero value is ready
// to use and a nil pool allocates a fresh document on every Acquire.
type DocumentPool struct {
	pool     sync.Pool
	acquires atomic.Uint64
	releases atomic.Uint64
}

// NewDocumentPool returns an empty pool.
func NewDocumentPool() *DocumentPool {
	return &DocumentPool{}
}

// Acquire returns an empty document.
func (p *DocumentPool) Acquire() *Document {
	if p == nil {
		return &Document{root: InvalidNode}
	}
	p.acquires.Add(1)
	if doc, ok := p.pool.Get().(*Document); ok && doc != nil {
		doc.reset()
		return doc
	}
	return &Document{root: InvalidNode}
}

// Release returns doc to the pool. Buffers above the pooled limits are dropped.
func (p *DocumentPool) Release(doc *Document) {
	if p == nil || doc == nil {
		return
	}
	p.releases.Add(1)
	doc.reset()
	if cap(doc.nodes) > maxPooledNodeEntries {
		doc.nodes = nil
	}
	if cap(doc.attrs) > maxPooledAttrEntries {
		doc.attrs = nil
	}
	if cap(doc.children) > maxPooledChildEntries {
		doc.children = nil
	}
	if cap(doc.scratch) > maxPooledScratchEntries {
		doc.scratch = nil
	}
	if cap(doc.open) > maxPooledScratchEntries {
		doc.open = nil
	}
	p.pool.Put(doc)
}

// Stats returns the number of Acquire and Release calls so far.
func (p *DocumentPool) Stats() PoolStats {
	if p == nil {
		return PoolStats{}
	}
	return PoolStats{Acquires: p.acquires.Load(), Releases: p.releases.Load()}
}
