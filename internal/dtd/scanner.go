package dtd

import (
	"strings"
	"unicode/utf8"
)

// frame is one input being scanned: a DTD file, the internal subset, or the
// replacement text of a parameter entity.
type frame struct {
	text     string
	systemID string
	entity   string
	pos      int
	line     int
	col      int
	// file is set when positions inside the frame are meaningful to users.
	file bool
}

type scanner struct {
	frames []*frame
	// onPop is called for every parameter entity frame that ends.
	onPop func(entity string)
}

func newScanner(f *frame) *scanner {
	return &scanner{frames: []*frame{f}}
}

func (s *scanner) top() *frame {
	return s.frames[len(s.frames)-1]
}

func (s *scanner) push(f *frame) {
	s.frames = append(s.frames, f)
}

// popExhausted drops finished entity frames and reports whether any were
// dropped. The bottom frame is never dropped.
func (s *scanner) popExhausted() bool {
	popped := false
	for len(s.frames) > 1 {
		f := s.top()
		if f.pos < len(f.text) {
			break
		}
		s.frames = s.frames[:len(s.frames)-1]
		if s.onPop != nil && f.entity != "" {
			s.onPop(f.entity)
		}
		popped = true
	}
	return popped
}

func (s *scanner) atEnd() bool {
	s.popExhausted()
	f := s.top()
	return len(s.frames) == 1 && f.pos >= len(f.text)
}

// peek returns the next byte of the current frame, or 0 at its end.
func (s *scanner) peek() byte {
	f := s.top()
	if f.pos >= len(f.text) {
		return 0
	}
	return f.text[f.pos]
}

func (s *scanner) peekAt(n int) byte {
	f := s.top()
	if f.pos+n >= len(f.text) {
		return 0
	}
	return f.text[f.pos+n]
}

func (s *scanner) hasPrefix(p string) bool {
	f := s.top()
	return strings.HasPrefix(f.text[f.pos:], p)
}

func (s *scanner) advance(n int) {
	f := s.top()
	end := min(f.pos+n, len(f.text))
	for i := f.pos; i < end; i++ {
		c := f.text[i]
		switch {
		case c == '\n':
			f.line++
			f.col = 1
		case c&0xC0 != 0x80:
			f.col++
		}
	}
	f.pos = end
}

// until consumes input up to and including delim within the current frame
// and returns the text before it.
func (s *scanner) until(delim string) (string, bool) {
	f := s.top()
	idx := strings.Index(f.text[f.pos:], delim)
	if idx < 0 {
		return "", false
	}
	out := f.text[f.pos : f.pos+idx]
	s.advance(idx + len(delim))
	return out, true
}

// name consumes an XML name from the current frame.
func (s *scanner) name() string {
	f := s.top()
	rest := f.text[f.pos:]
	n := nameLen(rest, true)
	if n == 0 {
		return ""
	}
	s.advance(n)
	return rest[:n]
}

// nmtoken consumes a name token from the current frame.
func (s *scanner) nmtoken() string {
	f := s.top()
	rest := f.text[f.pos:]
	n := nameLen(rest, false)
	if n == 0 {
		return ""
	}
	s.advance(n)
	return rest[:n]
}

// position returns the innermost position that belongs to a file.
func (s *scanner) position() Position {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.file {
			return Position{SystemID: f.systemID, Line: f.line, Column: f.col}
		}
	}
	f := s.frames[0]
	return Position{SystemID: f.systemID, Line: f.line, Column: f.col}
}

// systemID returns the system identifier of the innermost external input.
func (s *scanner) systemID() string {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].systemID != "" {
			return s.frames[i].systemID
		}
	}
	return ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func nameLen(s string, requireStart bool) int {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if i == 0 && requireStart {
			if !IsNameStart(r) {
				return 0
			}
		} else if !IsNameChar(r) {
			break
		}
		i += size
	}
	return i
}

// IsNameStart reports whether r may start an XML name.
func IsNameStart(r rune) bool {
	switch {
	case r == ':' || r == '_':
		return true
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 0xC0 && r <= 0xD6, r >= 0xD8 && r <= 0xF6, r >= 0xF8 && r <= 0x2FF:
		return true
	case r >= 0x370 && r <= 0x37D, r >= 0x37F && r <= 0x1FFF:
		return true
	case r >= 0x200C && r <= 0x200D, r >= 0x2070 && r <= 0x218F:
		return true
	case r >= 0x2C00 && r <= 0x2FEF, r >= 0x3001 && r <= 0xD7FF:
		return true
	case r >= 0xF900 && r <= 0xFDCF, r >= 0xFDF0 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0xEFFFF:
		return true
	}
	return false
}

// IsNameChar reports whether r may appear after the first character of an
// XML name.
func IsNameChar(r rune) bool {
	if IsNameStart(r) {
		return true
	}
	switch {
	case r == '-' || r == '.' || r == 0xB7:
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 0x300 && r <= 0x36F, r >= 0x203F && r <= 0x2040:
		return true
	}
	return false
}

// IsName reports whether s is an XML name.
func IsName(s string) bool {
	return s != "" && nameLen(s, true) == len(s)
}

// IsNmtoken reports whether s is an XML name token.
func IsNmtoken(s string) bool {
	return s != "" && nameLen(s, false) == len(s)
}
