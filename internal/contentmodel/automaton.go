package contentmodel

// Automaton is a deterministic automaton over child element names.
// State 0 is the initial state.
type Automaton struct {
	index        map[string]int
	ambiguous    string
	symbols      []string
	transitions  []int
	accepting    []bool
	hasAmbiguity bool
}

func (a *Automaton) transitionIndex(state, symbol int) int {
	return state*len(a.symbols) + symbol
}

func (a *Automaton) setTransition(state, symbol, next int) {
	a.transitions[a.transitionIndex(state, symbol)] = next
}

// States returns the number of states.
func (a *Automaton) States() int {
	return len(a.accepting)
}

// Next returns the state reached from state on name, or -1.
func (a *Automaton) Next(state int, name string) int {
	sym, ok := a.index[name]
	if !ok {
		return -1
	}
	return a.transitions[a.transitionIndex(state, sym)]
}

// Accepting reports whether the content may end in state.
func (a *Automaton) Accepting(state int) bool {
	return a.accepting[state]
}

// Ambiguous returns an element name the content model can match at more
// than one position from the same state. XML requires deterministic
// content models; the automaton still accepts the same language.
func (a *Automaton) Ambiguous() (string, bool) {
	return a.ambiguous, a.hasAmbiguity
}

// Mentions reports whether name occurs anywhere in the content model.
func (a *Automaton) Mentions(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Expected lists the names allowed next in state, in the order they first
// appear in the content model.
func (a *Automaton) Expected(state int) []string {
	var out []string
	for sym, name := range a.symbols {
		if a.transitions[a.transitionIndex(state, sym)] >= 0 {
			out = append(out, name)
		}
	}
	return out
}

// Matcher tracks the position of one element's children in an automaton.
type Matcher struct {
	automaton *Automaton
	state     int
}

// NewMatcher returns a matcher in the initial state.
func (a *Automaton) NewMatcher() Matcher {
	return Matcher{automaton: a}
}

// Feed advances over one child element. A child that is not allowed leaves
// the state unchanged so that later siblings are still checked.
func (m *Matcher) Feed(name string) bool {
	next := m.automaton.Next(m.state, name)
	if next < 0 {
		return false
	}
	m.state = next
	return true
}

// Accepting reports whether the children seen so far are complete.
func (m *Matcher) Accepting() bool {
	return m.automaton.Accepting(m.state)
}

// Expected lists the names allowed next.
func (m *Matcher) Expected() []string {
	return m.automaton.Expected(m.state)
}

// Mentions reports whether name occurs anywhere in the content model.
func (m *Matcher) Mentions(name string) bool {
	return m.automaton.Mentions(name)
}
