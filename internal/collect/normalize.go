// Package collect turns parser diagnostics into per-document report entries.
package collect

import "regexp"

// notAnywhere matches the "element X not allowed anywhere; expected ..." family.
// RE2 has no lookahead, so the trailing punctuation is matched and dropped.
var notAnywhere = regexp.MustCompile(`^(.*?not allowed anywhere)\p{P}`)

// Normalize strips the trailing context from "not allowed anywhere"
// diagnostics. Any other message is returned unchanged.
func Normalize(msg string) string {
	m := notAnywhere.FindStringSubmatchIndex(msg)
	if m == nil {
		return msg
	}
	return msg[m[2]:m[3]]
}
