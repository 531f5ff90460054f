package xmlstream

import (
	"errors"
	"fmt"
	"io"
	"slices"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/source"
)

type inclusion struct {
	reader *Reader
	closer io.Closer
}

func (i *inclusion) close() error {
	err := i.reader.Close()
	if cerr := i.closer.Close(); err == nil {
		err = cerr
	}
	return err
}

func isXInclude(n Name, local string) bool {
	return n.Space == XIncludeNamespace && n.Local == local
}

func attrValue(ev Event, local string) (string, bool) {
	for _, a := range ev.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// xinclude replaces an xi:include element by the resource it names, or by
// the children of its xi:fallback when the resource cannot be read.
func (r *Reader) xinclude(start Event) (Event, bool, error) {
	fallback, hasFallback, err := r.includeContent()
	if err != nil {
		return Event{}, false, err
	}

	href, _ := attrValue(start, "href")
	parse, ok := attrValue(start, "parse")
	if !ok {
		parse = "xml"
	}
	if parse != "xml" && parse != "text" {
		return Event{}, false, r.fatal(start.Line, start.Column, `Invalid value for 'parse' attribute on 'include' element: '%s'.`, parse)
	}
	xpointer, _ := attrValue(start, "xpointer")
	if href == "" && xpointer == "" {
		return Event{}, false, r.fatal(start.Line, start.Column, "The 'href' attribute of an 'include' element is required when no 'xpointer' attribute is present.")
	}

	failed := func(cause error) (Event, bool, error) {
		if !hasFallback {
			return Event{}, false, r.fatal(start.Line, start.Column,
				`An 'include' failed, and no 'fallback' element was found (href='%s'): %v.`, href, cause)
		}
		xerrors.Dispatch(r.opts.Handler, xerrors.NewFindingf(xerrors.SeverityWarning, r.systemID, start.Line, start.Column,
			`Include operation failed, reverting to fallback (href='%s'): %v.`, href, cause))
		r.queue = append(r.queue, fallback...)
		return Event{}, false, nil
	}

	if xpointer != "" {
		return failed(errors.New("xpointer is not supported"))
	}
	if r.opts.Resolver == nil {
		return failed(errors.New("no resolver configured"))
	}
	rc, id, err := r.opts.Resolver.Resolve(source.ResolveRequest{
		BaseSystemID: r.systemID,
		SystemID:     href,
		Kind:         source.ResolveInclude,
	})
	if err != nil {
		return failed(err)
	}

	if parse == "text" {
		text, err := readIncludedText(rc, start)
		_ = rc.Close()
		if err != nil {
			return failed(err)
		}
		if text == "" {
			return Event{}, false, nil
		}
		return Event{Kind: EventCharData, Text: text, Line: start.Line, Column: start.Column, SystemID: r.systemID}, true, nil
	}

	if id == r.systemID || slices.Contains(r.chain, id) {
		_ = rc.Close()
		return Event{}, false, r.fatal(start.Line, start.Column, `Recursive include detected. Document '%s' was already processed.`, id)
	}
	nested := NewReader(rc, id, r.opts)
	nested.chain = append(slices.Clone(r.chain), r.systemID)
	r.include = &inclusion{reader: nested, closer: rc}
	return Event{}, false, nil
}

// includeContent consumes the content of an xi:include element and returns
// the events inside its xi:fallback child.
func (r *Reader) includeContent() ([]Event, bool, error) {
	r.collecting++
	defer func() { r.collecting-- }()

	var fallback []Event
	inFallback, hasFallback := false, false
	depth := 1
	for depth > 0 {
		ev, ok, err := r.read()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		switch ev.Kind {
		case EventStartElement:
			depth++
			if depth == 2 && isXInclude(ev.Name, "fallback") {
				if hasFallback {
					return nil, false, r.fatal(ev.Line, ev.Column, "The 'include' element must not have more than one 'fallback' child.")
				}
				inFallback, hasFallback = true, true
				continue
			}
		case EventEndElement:
			depth--
			if depth == 1 && inFallback {
				inFallback = false
				continue
			}
		}
		if inFallback {
			fallback = append(fallback, ev)
		}
	}
	return fallback, hasFallback, nil
}

func readIncludedText(rc io.Reader, start Event) (string, error) {
	in := source.NewDocumentReader(rc)
	if enc, ok := attrValue(start, "encoding"); ok && enc != "" {
		dec, err := source.CharsetReader(enc, in)
		if err != nil {
			return "", err
		}
		in = dec
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read included text: %w", err)
	}
	return string(data), nil
}
