// Package compression selects and opens decompressors for input files.
package compression

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Kind identifies a compression format.
type Kind uint8

const (
	None Kind = iota
	Bzip2
	Gzip
	Xz
	Lz4
)

var kindNames = [...]string{
	None:  "none",
	Bzip2: "bzip2",
	Gzip:  "gzip",
	Xz:    "xz",
	Lz4:   "lz4",
}

// Names returns the accepted kind names in declaration order.
func Names() []string {
	out := make([]string, len(kindNames))
	copy(out, kindNames[:])
	return out
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Set parses a kind name; it lets Kind serve as a command-line flag value.
func (k *Kind) Set(value string) error {
	parsed, err := Parse(value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Type names the flag value type in usage output.
func (k *Kind) Type() string {
	return "compression"
}

// Parse returns the kind with the given name.
func Parse(value string) (Kind, error) {
	for i, name := range kindNames {
		if value == name {
			return Kind(i), nil
		}
	}
	return None, fmt.Errorf("unknown compression %q (valid: %s)", value, strings.Join(kindNames[:], ", "))
}

// FromName maps the final extension of name to a kind. Matching is
// case-sensitive; unrecognized extensions yield fallback.
func FromName(name string, fallback Kind) Kind {
	switch strings.TrimPrefix(filepath.Ext(name), ".") {
	case "xz":
		return Xz
	case "bz2", "bzip2":
		return Bzip2
	case "gz", "gzip":
		return Gzip
	case "lz4":
		return Lz4
	default:
		return fallback
	}
}

// NewReader wraps r with the decompressor for kind. Closing the returned
// reader releases the decompressor only; r stays owned by the caller.
func NewReader(r io.Reader, kind Kind) (io.ReadCloser, error) {
	switch kind {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(bufio.NewReader(r))), nil
	case Xz:
		zr, err := xz.NewReader(bufio.NewReader(r))
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		return io.NopCloser(zr), nil
	case Lz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", kind)
	}
}
