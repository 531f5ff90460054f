package xmltree

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/i5validator/internal/xmlstream"
)

func TestPoolZeroValueAndNil(t *testing.T) {
	t.Parallel()

	var zero DocumentPool
	doc := zero.Acquire()
	require.NotNil(t, doc)
	zero.Release(doc)
	assert.Equal(t, PoolStats{Acquires: 1, Releases: 1}, zero.Stats())

	var nilPool *DocumentPool
	doc = nilPool.Acquire()
	require.NotNil(t, doc)
	assert.Equal(t, InvalidNode, doc.Root())
	nilPool.Release(doc)
	assert.Equal(t, PoolStats{}, nilPool.Stats())
}

func TestReleasedDocumentComesBackEmpty(t *testing.T) {
	t.Parallel()

	pool := NewDocumentPool()
	doc := pool.Acquire()
	r := xmlstream.NewReader(strings.NewReader(`<idsCorpus><idsDoc n="1"/><idsDoc n="2"/></idsCorpus>`), "corpus.xml", xmlstream.Options{})
	require.NoError(t, Parse(r, doc))
	require.Equal(t, 3, doc.Len())
	pool.Release(doc)

	reused := pool.Acquire()
	t.Cleanup(func() { pool.Release(reused) })
	assert.Zero(t, reused.Len())
	assert.Equal(t, InvalidNode, reused.Root())
	_, _, ok := reused.Doctype()
	assert.False(t, ok)
}

func TestReleaseDropsOversizedBuffers(t *testing.T) {
	t.Parallel()

	pool := NewDocumentPool()
	doc := pool.Acquire()
	doc.nodes = make([]node, 0, maxPooledNodeEntries+1)
	doc.attrs = make([]xmlstream.Attr, 0, maxPooledAttrEntries+1)
	doc.children = make([]NodeID, 0, maxPooledChildEntries+1)
	doc.scratch = make([]NodeID, 0, maxPooledScratchEntries+1)
	doc.open = make([]openElement, 0, maxPooledScratchEntries+1)
	pool.Release(doc)

	reused := pool.Acquire()
	t.Cleanup(func() { pool.Release(reused) })
	assert.LessOrEqual(t, cap(reused.nodes), maxPooledNodeEntries)
	assert.LessOrEqual(t, cap(reused.attrs), maxPooledAttrEntries)
	assert.LessOrEqual(t, cap(reused.children), maxPooledChildEntries)
	assert.LessOrEqual(t, cap(reused.scratch), maxPooledScratchEntries)
	assert.LessOrEqual(t, cap(reused.open), maxPooledScratchEntries)
}

func TestPoolConcurrentParses(t *testing.T) {
	t.Parallel()

	pool := NewDocumentPool()
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			doc := pool.Acquire()
			defer pool.Release(doc)
			r := xmlstream.NewReader(strings.NewReader(`<text><body><p>a</p><p>b</p></body></text>`), "text.xml", xmlstream.Options{})
			if err := Parse(r, doc); err != nil {
				t.Errorf("Parse() error = %v", err)
				return
			}
			if got := doc.TextContent(doc.Root()); got != "ab" {
				t.Errorf("TextContent() = %q, want ab", got)
			}
		})
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, uint64(16), stats.Acquires)
	assert.Equal(t, uint64(16), stats.Releases)
}

func BenchmarkParsePooled(b *testing.B) {
	src := strings.Repeat(`<idsDoc type="text"><p>corpus text</p></idsDoc>`, 256)
	src = "<idsCorpus>" + src + "</idsCorpus>"
	pool := NewDocumentPool()
	for b.Loop() {
		doc := pool.Acquire()
		r := xmlstream.NewReader(strings.NewReader(src), "bench.xml", xmlstream.Options{})
		if err := Parse(r, doc); err != nil {
			b.Fatal(err)
		}
		pool.Release(doc)
	}
}
