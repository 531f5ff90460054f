package contentmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/i5validator/internal/dtd"
)

func elem(n string, o dtd.Occurs) *dtd.Particle {
	return &dtd.Particle{Kind: dtd.ParticleName, Name: n, Occurs: o}
}

func seqOf(o dtd.Occurs, children ...*dtd.Particle) *dtd.Particle {
	return &dtd.Particle{Kind: dtd.ParticleSeq, Children: children, Occurs: o}
}

func choiceOf(o dtd.Occurs, children ...*dtd.Particle) *dtd.Particle {
	return &dtd.Particle{Kind: dtd.ParticleChoice, Children: children, Occurs: o}
}

func accepts(a *Automaton, children ...string) bool {
	m := a.NewMatcher()
	for _, c := range children {
		if !m.Feed(c) {
			return false
		}
	}
	return m.Accepting()
}

func TestCompileAcceptsContentModels(t *testing.T) {
	// (head, (p | list)*, tail?)
	model := seqOf(dtd.Once,
		elem("head", dtd.Once),
		choiceOf(dtd.ZeroOrMore, elem("p", dtd.Once), elem("list", dtd.Once)),
		elem("tail", dtd.Optional),
	)
	a := Compile(model)

	tests := []struct {
		name     string
		children []string
		want     bool
	}{
		{name: "head only", children: []string{"head"}, want: true},
		{name: "interleaved body", children: []string{"head", "p", "list", "p", "tail"}, want: true},
		{name: "missing head", children: []string{"p"}, want: false},
		{name: "empty", children: nil, want: false},
		{name: "tail twice", children: []string{"head", "tail", "tail"}, want: false},
		{name: "body after tail", children: []string{"head", "tail", "p"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accepts(a, tt.children...))
		})
	}
}

func TestOneOrMoreGroup(t *testing.T) {
	// (a, b?)+
	a := Compile(seqOf(dtd.OneOrMore, elem("a", dtd.Once), elem("b", dtd.Optional)))
	assert.False(t, accepts(a))
	assert.True(t, accepts(a, "a"))
	assert.True(t, accepts(a, "a", "a", "b", "a"))
	assert.False(t, accepts(a, "b"))
	assert.False(t, accepts(a, "a", "b", "b"))
}

func TestNondeterministicModelsStillMatch(t *testing.T) {
	// (a, b) | (a, c)
	a := Compile(choiceOf(dtd.Once,
		seqOf(dtd.Once, elem("a", dtd.Once), elem("b", dtd.Once)),
		seqOf(dtd.Once, elem("a", dtd.Once), elem("c", dtd.Once)),
	))
	assert.True(t, accepts(a, "a", "b"))
	assert.True(t, accepts(a, "a", "c"))
	assert.False(t, accepts(a, "a"))
}

func TestExpectedAndMentions(t *testing.T) {
	a := Compile(seqOf(dtd.Once,
		elem("title", dtd.Once),
		choiceOf(dtd.OneOrMore, elem("p", dtd.Once), elem("lg", dtd.Once)),
	))
	m := a.NewMatcher()
	assert.Equal(t, []string{"title"}, m.Expected())
	assert.False(t, m.Accepting())

	require.False(t, m.Feed("p"))
	assert.Equal(t, []string{"title"}, m.Expected(), "a rejected child leaves the state unchanged")
	assert.True(t, m.Mentions("p"))
	assert.False(t, m.Mentions("div"))

	require.True(t, m.Feed("title"))
	assert.Equal(t, []string{"p", "lg"}, m.Expected())
	require.True(t, m.Feed("lg"))
	assert.True(t, m.Accepting())
}

func TestEmptyModel(t *testing.T) {
	a := Compile(nil)
	assert.True(t, accepts(a))
	assert.False(t, accepts(a, "x"))
	assert.Equal(t, 1, a.States())
}

func TestLargeChoiceSpansWords(t *testing.T) {
	children := make([]*dtd.Particle, 100)
	names := make([]string, 100)
	for i := range children {
		names[i] = "e" + string(rune('A'+i%26)) + string(rune('a'+i/26))
		children[i] = elem(names[i], dtd.Once)
	}
	a := Compile(choiceOf(dtd.ZeroOrMore, children...))
	assert.True(t, accepts(a, names...))
	assert.Len(t, a.Expected(0), 100)
}

func TestAmbiguousContentModels(t *testing.T) {
	tests := []struct {
		name  string
		model *dtd.Particle
		want  string
	}{
		{name: "choice of same name", model: choiceOf(dtd.Once, elem("a", dtd.Once), elem("a", dtd.Once)), want: "a"},
		{name: "optional then required", model: seqOf(dtd.Once, elem("a", dtd.Optional), elem("a", dtd.Once)), want: "a"},
		{name: "repeat then same", model: seqOf(dtd.Once, elem("p", dtd.ZeroOrMore), elem("p", dtd.Once)), want: "p"},
		{name: "shared prefix", model: choiceOf(dtd.Once,
			seqOf(dtd.Once, elem("head", dtd.Once), elem("p", dtd.Once)),
			seqOf(dtd.Once, elem("head", dtd.Once), elem("list", dtd.Once)),
		), want: "head"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compile(tt.model).Ambiguous()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeterministicContentModels(t *testing.T) {
	models := []*dtd.Particle{
		seqOf(dtd.Once, elem("head", dtd.Once), choiceOf(dtd.ZeroOrMore, elem("p", dtd.Once), elem("list", dtd.Once)), elem("tail", dtd.Optional)),
		seqOf(dtd.Once, elem("a", dtd.Once), elem("a", dtd.Once)),
		elem("p", dtd.OneOrMore),
		nil,
	}
	for _, m := range models {
		_, ok := Compile(m).Ambiguous()
		assert.False(t, ok)
	}
}
