package validation

import (
	"fmt"
	"strings"
)

// expectation describes what may come next in an element's content.
type expectation struct {
	elements []string
	endTag   bool
	text     bool
}

func (x expectation) String() string {
	var parts []string
	if x.endTag {
		parts = append(parts, "the element end-tag")
	}
	if x.text {
		parts = append(parts, "text")
	}
	if len(x.elements) > 0 {
		parts = append(parts, "element "+alternatives(x.elements))
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, " or ")
}

// alternatives renders ["a", "b", "c"] as `"a", "b" or "c"`.
func alternatives(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	if len(quoted) == 1 {
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
}
