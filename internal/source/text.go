package source

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var encodingDecl = regexp.MustCompile(`encoding\s*=\s*["']([A-Za-z][A-Za-z0-9._-]*)["']`)

// NewDocumentReader strips a UTF-8 byte order mark and transcodes BOM-marked
// UTF-16 input to UTF-8. Other input passes through unchanged.
func NewDocumentReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
}

// CharsetReader returns a UTF-8 reader for input declared in the named
// charset. UTF-8 and UTF-16 input has already been normalized by
// NewDocumentReader and passes through.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	if isUnicodeLabel(label) {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// ReadText reads an external DTD subset. The leading text declaration is
// honoured for the charset and blanked out so that line and column numbers
// stay those of the file.
func ReadText(r io.Reader) (string, error) {
	return readText(r, true)
}

// ReadEntity reads an external parsed entity or included text. The leading
// text declaration is honoured for the charset and removed.
func ReadEntity(r io.Reader) (string, error) {
	return readText(r, false)
}

func readText(r io.Reader, keepPositions bool) (string, error) {
	data, err := io.ReadAll(NewDocumentReader(r))
	if err != nil {
		return "", err
	}
	if len(data) < 5 || string(data[:5]) != "<?xml" {
		return string(data), nil
	}
	end := strings.Index(string(data), "?>")
	if end < 0 {
		return string(data), nil
	}
	decl := string(data[:end+2])
	rest := data[end+2:]
	if m := encodingDecl.FindStringSubmatch(decl); m != nil && !isUnicodeLabel(m[1]) {
		dec, err := CharsetReader(m[1], strings.NewReader(string(rest)))
		if err != nil {
			return "", err
		}
		rest, err = io.ReadAll(dec)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", m[1], err)
		}
	}
	if !keepPositions {
		return string(rest), nil
	}
	return blank(decl) + string(rest), nil
}

func isUnicodeLabel(label string) bool {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "utf-16", "utf-16le", "utf-16be", "utf16":
		return true
	}
	return false
}

func blank(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return r
		}
		return ' '
	}, s)
}
