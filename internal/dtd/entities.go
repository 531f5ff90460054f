package dtd

import (
	"slices"
	"strings"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/source"
)

// EntityTable holds the parsed general entities of a DTD in the form the
// tokenizer consumes.
type EntityTable struct {
	// Text maps an entity whose replacement text is character data only to
	// its fully expanded value.
	Text map[string]string
	// Markup maps an entity whose replacement text contains markup, directly
	// or through another entity, to that replacement text. It must be parsed
	// as content where the entity is referenced.
	Markup map[string]string
}

// GeneralEntities expands every parsed general entity. External entities
// are loaded through resolver; an entity that cannot be loaded is left out
// and reported as a warning, so a reference to it fails as an undeclared
// entity. Recursive entities are reported as errors and left out as well.
func (d *DTD) GeneralEntities(resolver source.Resolver, h xerrors.Handler) EntityTable {
	e := &expander{
		dtd:      d,
		resolver: resolver,
		handler:  h,
		done:     make(map[string]string, len(d.Entities)),
		failed:   make(map[string]bool),
		open:     make(map[string]bool),
	}
	for _, name := range sortedKeys(d.Entities) {
		ent := d.Entities[name]
		if ent.Unparsed() {
			continue
		}
		e.expand(ent)
	}

	table := EntityTable{Text: make(map[string]string, len(e.done)), Markup: make(map[string]string)}
	markup := make(map[string]bool, len(e.done))
	for _, name := range sortedKeys(e.done) {
		if e.hasMarkup(name, markup) {
			table.Markup[name] = d.Entities[name].Value
			continue
		}
		table.Text[name] = e.done[name]
	}
	return table
}

// EntityMap returns the fully expanded value of every parsed general
// entity whose replacement text is character data only.
func (d *DTD) EntityMap(resolver source.Resolver, h xerrors.Handler) map[string]string {
	return d.GeneralEntities(resolver, h).Text
}

type expander struct {
	dtd      *DTD
	resolver source.Resolver
	handler  xerrors.Handler
	done     map[string]string
	failed   map[string]bool
	open     map[string]bool
}

func (e *expander) expand(ent *EntityDecl) (string, bool) {
	if v, ok := e.done[ent.Name]; ok {
		return v, true
	}
	if e.failed[ent.Name] {
		return "", false
	}
	if e.open[ent.Name] {
		return "", false
	}
	text, ok := e.replacementText(ent)
	if !ok {
		e.failed[ent.Name] = true
		return "", false
	}
	e.open[ent.Name] = true
	defer delete(e.open, ent.Name)

	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] != '&' {
			b.WriteByte(text[i])
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == '#' {
			if r, n, ok := charRef(text[i:]); ok {
				b.WriteRune(r)
				i += n
				continue
			}
		}
		n := nameLen(text[i+1:], true)
		if n == 0 || i+1+n >= len(text) || text[i+1+n] != ';' {
			b.WriteByte('&')
			i++
			continue
		}
		name := text[i+1 : i+1+n]
		ref := text[i : i+n+2]
		i += n + 2
		if v, ok := predefinedEntities[name]; ok {
			b.WriteString(v)
			continue
		}
		inner, declared := e.dtd.Entities[name]
		if !declared || inner.Unparsed() {
			b.WriteString(ref)
			continue
		}
		if e.open[name] {
			xerrors.Dispatch(e.handler, xerrors.NewFindingf(xerrors.SeverityError,
				ent.Pos.SystemID, ent.Pos.Line, ent.Pos.Column, `recursive entity reference "%s"`, name))
			e.failed[ent.Name] = true
			return "", false
		}
		v, ok := e.expand(inner)
		if !ok {
			b.WriteString(ref)
			continue
		}
		b.WriteString(v)
	}
	e.done[ent.Name] = b.String()
	return e.done[ent.Name], true
}

// hasMarkup reports whether the replacement text of the expanded entity
// name contains a tag or references an entity that does. memo caches the
// answer per name; recursive entities never reach done, so the walk ends.
func (e *expander) hasMarkup(name string, memo map[string]bool) bool {
	if v, ok := memo[name]; ok {
		return v
	}
	memo[name] = false
	text := e.dtd.Entities[name].Value
	found := strings.Contains(text, "<")
	for i := 0; !found && i < len(text); i++ {
		if text[i] != '&' || (i+1 < len(text) && text[i+1] == '#') {
			continue
		}
		n := nameLen(text[i+1:], true)
		if n == 0 || i+1+n >= len(text) || text[i+1+n] != ';' {
			continue
		}
		ref := text[i+1 : i+1+n]
		if _, ok := e.done[ref]; ok && ref != name {
			found = e.hasMarkup(ref, memo)
		}
		i += n + 1
	}
	memo[name] = found
	return found
}

func (e *expander) replacementText(ent *EntityDecl) (string, bool) {
	if !ent.External || ent.loaded {
		return ent.Value, true
	}
	if e.resolver == nil {
		return "", false
	}
	rc, id, err := e.resolver.Resolve(source.ResolveRequest{
		BaseSystemID: ent.BaseSystemID,
		SystemID:     ent.SystemID,
		PublicID:     ent.PublicID,
		Kind:         source.ResolveGeneralEntity,
	})
	if err == nil {
		defer rc.Close()
		ent.Value, err = source.ReadEntity(rc)
	}
	if err != nil {
		xerrors.Dispatch(e.handler, xerrors.NewFindingf(xerrors.SeverityWarning,
			ent.Pos.SystemID, ent.Pos.Line, ent.Pos.Column, `external entity "%s" could not be loaded: %v`, ent.Name, err))
		return "", false
	}
	ent.resolved = id
	ent.loaded = true
	return ent.Value, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
