package dtd

import (
	"fmt"
	"strconv"
	"strings"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/source"
)

const maxEntityDepth = 64

type parser struct {
	dtd      *DTD
	s        *scanner
	resolver source.Resolver
	handler  xerrors.Handler
	openPE   map[string]bool
	openGE   map[string]bool
	include  int
}

func newParser(d *DTD, resolver source.Resolver, h xerrors.Handler) *parser {
	return &parser{
		dtd:      d,
		resolver: resolver,
		handler:  h,
		openPE:   make(map[string]bool),
		openGE:   make(map[string]bool),
	}
}

// parseSubset reads markup declarations from f until the input ends.
func (p *parser) parseSubset(f *frame) error {
	p.s = newScanner(f)
	p.s.onPop = func(name string) { delete(p.openPE, name) }
	p.include = 0
	for {
		if _, err := p.skipSpace(); err != nil {
			return err
		}
		if p.s.atEnd() {
			break
		}
		var err error
		switch {
		case p.s.hasPrefix("<!--"):
			err = p.skipComment()
		case p.s.hasPrefix("<?"):
			err = p.skipPI()
		case p.s.hasPrefix("<!["):
			err = p.conditionalSection()
		case p.s.hasPrefix("]]>"):
			if p.include == 0 {
				return p.fatalf(`The character sequence "]]>" must not appear outside a conditional section.`)
			}
			p.include--
			p.s.advance(3)
		case p.s.hasPrefix("<!ELEMENT"):
			p.s.advance(len("<!ELEMENT"))
			err = p.elementDecl()
		case p.s.hasPrefix("<!ATTLIST"):
			p.s.advance(len("<!ATTLIST"))
			err = p.attlistDecl()
		case p.s.hasPrefix("<!ENTITY"):
			p.s.advance(len("<!ENTITY"))
			err = p.entityDecl()
		case p.s.hasPrefix("<!NOTATION"):
			p.s.advance(len("<!NOTATION"))
			err = p.notationDecl()
		default:
			return p.fatalf("The markup declarations contained or pointed to by the document type declaration must be well-formed.")
		}
		if err != nil {
			return err
		}
	}
	if p.include > 0 {
		return p.fatalf("The included conditional section must end with \"]]>\".")
	}
	return nil
}

func (p *parser) fatalf(format string, args ...any) error {
	pos := p.s.position()
	f := xerrors.NewFindingf(xerrors.SeverityFatal, pos.SystemID, pos.Line, pos.Column, format, args...)
	return &f
}

func (p *parser) errorf(format string, args ...any) {
	pos := p.s.position()
	xerrors.Dispatch(p.handler, xerrors.NewFindingf(xerrors.SeverityError, pos.SystemID, pos.Line, pos.Column, format, args...))
}

func (p *parser) warnf(format string, args ...any) {
	pos := p.s.position()
	xerrors.Dispatch(p.handler, xerrors.NewFindingf(xerrors.SeverityWarning, pos.SystemID, pos.Line, pos.Column, format, args...))
}

// skipSpace consumes white space and expands parameter entity references.
// Entity boundaries count as white space.
func (p *parser) skipSpace() (bool, error) {
	skipped := false
	for {
		if p.s.popExhausted() {
			skipped = true
		}
		c := p.s.peek()
		switch {
		case c == 0:
			return skipped, nil
		case isSpace(c):
			p.s.advance(1)
			skipped = true
		case c == '%' && nameLen(p.s.top().text[p.s.top().pos+1:], true) > 0:
			if err := p.expandPE(); err != nil {
				return skipped, err
			}
			skipped = true
		default:
			return skipped, nil
		}
	}
}

func (p *parser) requireSpace(after string) error {
	ok, err := p.skipSpace()
	if err != nil {
		return err
	}
	if !ok {
		return p.fatalf("White space is required after %s.", after)
	}
	return nil
}

func (p *parser) expect(c byte, context string) error {
	if p.s.peek() != c {
		return p.fatalf("The declaration for %s must end with '%c'.", context, c)
	}
	p.s.advance(1)
	return nil
}

func (p *parser) expandPE() error {
	p.s.advance(1)
	name := p.s.name()
	if p.s.peek() != ';' {
		return p.fatalf(`The parameter entity reference "%%%s;" must end with the ';' delimiter.`, name)
	}
	p.s.advance(1)
	ent, text, err := p.parameterText(name)
	if err != nil || ent == nil {
		return err
	}
	if len(p.s.frames) > maxEntityDepth {
		return p.fatalf(`The parameter entity "%s" is nested too deeply.`, name)
	}
	p.openPE[name] = true
	f := &frame{text: text, entity: name, line: 1, col: 1}
	if ent.External {
		f.systemID = ent.resolved
		f.file = true
	}
	p.s.push(f)
	return nil
}

// parameterText returns the replacement text of a parameter entity, loading
// external entities on first use. A nil entity means the reference was
// reported and should be ignored.
func (p *parser) parameterText(name string) (*EntityDecl, string, error) {
	ent, ok := p.dtd.ParameterEntities[name]
	if !ok {
		p.errorf(`The entity "%%%s;" was referenced, but not declared.`, name)
		return nil, "", nil
	}
	if p.openPE[name] {
		return nil, "", p.fatalf(`Recursive entity reference "%%%s;".`, name)
	}
	if ent.External && !ent.loaded {
		text, id, err := p.load(source.ResolveRequest{
			BaseSystemID: ent.BaseSystemID,
			SystemID:     ent.SystemID,
			PublicID:     ent.PublicID,
			Kind:         source.ResolveParameterEntity,
		})
		if err != nil {
			return nil, "", err
		}
		ent.Value = text
		ent.resolved = id
		ent.loaded = true
	}
	return ent, ent.Value, nil
}

func (p *parser) load(req source.ResolveRequest) (string, string, error) {
	if p.resolver == nil {
		return "", "", fmt.Errorf("%w: no resolver for %s %q", xerrors.ErrConfiguration, req.Kind, req.SystemID)
	}
	rc, id, err := p.resolver.Resolve(req)
	if err != nil {
		return "", "", xerrors.Wrapf(xerrors.ErrIO, err, "resolve %s %q", req.Kind, req.SystemID)
	}
	defer rc.Close()
	text, err := source.ReadText(rc)
	if err != nil {
		return "", "", xerrors.Wrapf(xerrors.ErrIO, err, "read %s %q", req.Kind, id)
	}
	return text, id, nil
}

func (p *parser) skipComment() error {
	p.s.advance(len("<!--"))
	body, ok := p.s.until("-->")
	if !ok {
		return p.fatalf("The comment must end with \"-->\".")
	}
	if strings.Contains(body, "--") {
		return p.fatalf(`The string "--" is not permitted within comments.`)
	}
	return nil
}

func (p *parser) skipPI() error {
	p.s.advance(len("<?"))
	target := p.s.name()
	if target == "" {
		return p.fatalf("The processing instruction must begin with the name of the target.")
	}
	if strings.EqualFold(target, "xml") {
		return p.fatalf(`The processing instruction target matching "[xX][mM][lL]" is not allowed.`)
	}
	if _, ok := p.s.until("?>"); !ok {
		return p.fatalf(`The processing instruction must end with "?>".`)
	}
	return nil
}

func (p *parser) conditionalSection() error {
	p.s.advance(len("<!["))
	if _, err := p.skipSpace(); err != nil {
		return err
	}
	keyword := p.s.name()
	if _, err := p.skipSpace(); err != nil {
		return err
	}
	if p.s.peek() != '[' {
		return p.fatalf("The conditional section must begin with '[' after the keyword.")
	}
	p.s.advance(1)
	switch keyword {
	case "INCLUDE":
		p.include++
		return nil
	case "IGNORE":
		return p.ignoreSection()
	default:
		return p.fatalf("The keyword in a conditional section must be either INCLUDE or IGNORE.")
	}
}

func (p *parser) ignoreSection() error {
	f := p.s.top()
	depth := 1
	for f.pos < len(f.text) {
		switch {
		case strings.HasPrefix(f.text[f.pos:], "<!["):
			depth++
			p.s.advance(3)
		case strings.HasPrefix(f.text[f.pos:], "]]>"):
			depth--
			p.s.advance(3)
			if depth == 0 {
				return nil
			}
		default:
			p.s.advance(1)
		}
	}
	return p.fatalf("The ignored conditional section must end with \"]]>\".")
}

func (p *parser) elementDecl() error {
	pos := p.s.position()
	if err := p.requireSpace(`"<!ELEMENT" in the element type declaration`); err != nil {
		return err
	}
	name := p.s.name()
	if name == "" {
		return p.fatalf("The element type is required in the element type declaration.")
	}
	if err := p.requireSpace(fmt.Sprintf(`the element type "%s" in the element type declaration`, name)); err != nil {
		return err
	}

	decl := &ElementDecl{Name: name, Pos: pos, Declared: true}
	switch {
	case p.s.hasPrefix("EMPTY"):
		p.s.advance(len("EMPTY"))
		decl.Content = ContentEmpty
	case p.s.hasPrefix("ANY"):
		p.s.advance(len("ANY"))
		decl.Content = ContentAny
	case p.s.peek() == '(':
		p.s.advance(1)
		if _, err := p.skipSpace(); err != nil {
			return err
		}
		if p.s.hasPrefix("#PCDATA") {
			p.s.advance(len("#PCDATA"))
			names, err := p.mixedContent(name)
			if err != nil {
				return err
			}
			decl.Content = ContentMixed
			decl.Mixed = names
		} else {
			model, err := p.group(name)
			if err != nil {
				return err
			}
			decl.Content = ContentChildren
			decl.Model = model
		}
	default:
		return p.fatalf(`The content specification must be specified for element type "%s".`, name)
	}

	if _, err := p.skipSpace(); err != nil {
		return err
	}
	if err := p.expect('>', fmt.Sprintf(`element type "%s"`, name)); err != nil {
		return err
	}

	existing := p.dtd.elementEntry(name)
	if existing.Declared {
		p.errorf(`element type "%s" declared more than once`, name)
		return nil
	}
	existing.Declared = true
	existing.Pos = decl.Pos
	existing.Content = decl.Content
	existing.Model = decl.Model
	existing.Mixed = decl.Mixed
	return nil
}

func (p *parser) mixedContent(element string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for {
		if _, err := p.skipSpace(); err != nil {
			return nil, err
		}
		switch p.s.peek() {
		case ')':
			p.s.advance(1)
			if p.s.peek() == '*' {
				p.s.advance(1)
			} else if len(names) > 0 {
				return nil, p.fatalf(`The mixed content model "%s" must end with ")*" when the types of child elements are constrained.`, element)
			}
			return names, nil
		case '|':
			p.s.advance(1)
			if _, err := p.skipSpace(); err != nil {
				return nil, err
			}
			n := p.s.name()
			if n == "" {
				return nil, p.fatalf(`An element type is required in the declaration of element type "%s".`, element)
			}
			if seen[n] {
				p.errorf(`duplicate element type "%s" in mixed content model of element type "%s"`, n, element)
				continue
			}
			seen[n] = true
			names = append(names, n)
		default:
			return nil, p.fatalf(`The mixed content model of element type "%s" must contain "|" or ")" after an element type.`, element)
		}
	}
}

// group parses a choice or sequence whose opening parenthesis has been read.
func (p *parser) group(element string) (*Particle, error) {
	var children []*Particle
	var sep byte
	for {
		if _, err := p.skipSpace(); err != nil {
			return nil, err
		}
		cp, err := p.contentParticle(element)
		if err != nil {
			return nil, err
		}
		children = append(children, cp)
		if _, err := p.skipSpace(); err != nil {
			return nil, err
		}
		c := p.s.peek()
		if c == ')' {
			p.s.advance(1)
			break
		}
		if c != ',' && c != '|' {
			return nil, p.fatalf(`The content model of element type "%s" requires ',', '|' or ')'.`, element)
		}
		if sep != 0 && sep != c {
			return nil, p.fatalf(`The content model of element type "%s" mixes ',' and '|' in one group.`, element)
		}
		sep = c
		p.s.advance(1)
	}
	kind := ParticleSeq
	if sep == '|' {
		kind = ParticleChoice
	}
	return &Particle{Kind: kind, Children: children, Occurs: p.occurs()}, nil
}

func (p *parser) contentParticle(element string) (*Particle, error) {
	if p.s.peek() == '(' {
		p.s.advance(1)
		return p.group(element)
	}
	name := p.s.name()
	if name == "" {
		if p.s.hasPrefix("#PCDATA") {
			return nil, p.fatalf(`"#PCDATA" must be the first item of the content model of element type "%s".`, element)
		}
		return nil, p.fatalf(`An element type is required in the declaration of element type "%s".`, element)
	}
	return &Particle{Kind: ParticleName, Name: name, Occurs: p.occurs()}, nil
}

func (p *parser) occurs() Occurs {
	p.s.popExhausted()
	switch p.s.peek() {
	case '?':
		p.s.advance(1)
		return Optional
	case '*':
		p.s.advance(1)
		return ZeroOrMore
	case '+':
		p.s.advance(1)
		return OneOrMore
	default:
		return Once
	}
}

var attributeTypeKeywords = map[string]AttributeType{
	"CDATA":    AttrCDATA,
	"ID":       AttrID,
	"IDREF":    AttrIDREF,
	"IDREFS":   AttrIDREFS,
	"ENTITY":   AttrENTITY,
	"ENTITIES": AttrENTITIES,
	"NMTOKEN":  AttrNMTOKEN,
	"NMTOKENS": AttrNMTOKENS,
	"NOTATION": AttrNOTATION,
}

func (p *parser) attlistDecl() error {
	if err := p.requireSpace(`"<!ATTLIST" in the attribute-list declaration`); err != nil {
		return err
	}
	element := p.s.name()
	if element == "" {
		return p.fatalf("The element type is required in the attribute-list declaration.")
	}
	owner := p.dtd.elementEntry(element)
	for {
		spaced, err := p.skipSpace()
		if err != nil {
			return err
		}
		if p.s.peek() == '>' {
			p.s.advance(1)
			return nil
		}
		if !spaced {
			return p.fatalf(`White space is required before the attribute name in the attribute-list declaration for element "%s".`, element)
		}
		attr, err := p.attributeDef(element)
		if err != nil {
			return err
		}
		if attr.Type == AttrID && attr.HasDefault() {
			p.errorf(`ID attribute "%s" of element type "%s" must be declared #IMPLIED or #REQUIRED`, attr.Name, element)
		}
		owner.addAttribute(attr)
	}
}

func (p *parser) attributeDef(element string) (*AttributeDecl, error) {
	attr := &AttributeDecl{Element: element, Pos: p.s.position()}
	attr.Name = p.s.name()
	if attr.Name == "" {
		return nil, p.fatalf(`The attribute name is required in the attribute-list declaration for element "%s".`, element)
	}
	if err := p.requireSpace(fmt.Sprintf(`the attribute name "%s"`, attr.Name)); err != nil {
		return nil, err
	}

	if p.s.peek() == '(' {
		values, err := p.enumeration(attr.Name, false)
		if err != nil {
			return nil, err
		}
		attr.Type = AttrEnumeration
		attr.Values = values
	} else {
		kw := p.s.name()
		t, ok := attributeTypeKeywords[kw]
		if !ok {
			return nil, p.fatalf(`The attribute type is required in the declaration of attribute "%s" for element "%s".`, attr.Name, element)
		}
		attr.Type = t
		if t == AttrNOTATION {
			if err := p.requireSpace(`"NOTATION"`); err != nil {
				return nil, err
			}
			values, err := p.enumeration(attr.Name, true)
			if err != nil {
				return nil, err
			}
			attr.Values = values
		}
	}

	if err := p.requireSpace(fmt.Sprintf(`the attribute type of "%s"`, attr.Name)); err != nil {
		return nil, err
	}

	if p.s.peek() == '#' {
		p.s.advance(1)
		switch p.s.name() {
		case "REQUIRED":
			attr.Default = DefaultRequired
			return attr, nil
		case "IMPLIED":
			attr.Default = DefaultImplied
			return attr, nil
		case "FIXED":
			attr.Default = DefaultFixed
			if err := p.requireSpace(`"#FIXED"`); err != nil {
				return nil, err
			}
		default:
			return nil, p.fatalf(`The attribute default of "%s" must be "#REQUIRED", "#IMPLIED" or "#FIXED".`, attr.Name)
		}
	} else {
		attr.Default = DefaultValue
	}

	lit, err := p.literal(fmt.Sprintf(`the default value of attribute "%s"`, attr.Name))
	if err != nil {
		return nil, err
	}
	value, err := p.attributeValue(lit)
	if err != nil {
		return nil, err
	}
	attr.Value = NormalizeValue(attr.Type, value)
	return attr, nil
}

func (p *parser) enumeration(attr string, notation bool) ([]string, error) {
	if p.s.peek() != '(' {
		return nil, p.fatalf(`'(' is required in the declaration of attribute "%s".`, attr)
	}
	p.s.advance(1)
	var values []string
	for {
		if _, err := p.skipSpace(); err != nil {
			return nil, err
		}
		var tok string
		if notation {
			tok = p.s.name()
		} else {
			tok = p.s.nmtoken()
		}
		if tok == "" {
			return nil, p.fatalf(`A name token is required in the enumerated type of attribute "%s".`, attr)
		}
		values = append(values, tok)
		if _, err := p.skipSpace(); err != nil {
			return nil, err
		}
		switch p.s.peek() {
		case '|':
			p.s.advance(1)
		case ')':
			p.s.advance(1)
			return values, nil
		default:
			return nil, p.fatalf(`The enumerated type of attribute "%s" must end with ')'.`, attr)
		}
	}
}

// literal reads a quoted literal from the current input.
func (p *parser) literal(context string) (string, error) {
	q := p.s.peek()
	if q != '"' && q != '\'' {
		return "", p.fatalf("A quoted string is required for %s.", context)
	}
	p.s.advance(1)
	body, ok := p.s.until(string(q))
	if !ok {
		return "", p.fatalf("The quoted string for %s must be terminated.", context)
	}
	return body, nil
}

func (p *parser) externalID(publicRequiresSystem bool) (publicID, systemID string, err error) {
	switch {
	case p.s.hasPrefix("SYSTEM"):
		p.s.advance(len("SYSTEM"))
		if err := p.requireSpace(`"SYSTEM"`); err != nil {
			return "", "", err
		}
		systemID, err = p.literal("the system identifier")
		return "", systemID, err
	case p.s.hasPrefix("PUBLIC"):
		p.s.advance(len("PUBLIC"))
		if err := p.requireSpace(`"PUBLIC"`); err != nil {
			return "", "", err
		}
		publicID, err = p.literal("the public identifier")
		if err != nil {
			return "", "", err
		}
		spaced, err := p.skipSpace()
		if err != nil {
			return "", "", err
		}
		q := p.s.peek()
		if q != '"' && q != '\'' {
			if publicRequiresSystem {
				return "", "", p.fatalf("The system identifier is required after the public identifier.")
			}
			return normalizePublicID(publicID), "", nil
		}
		if !spaced {
			return "", "", p.fatalf("White space is required between the public and system identifiers.")
		}
		systemID, err = p.literal("the system identifier")
		return normalizePublicID(publicID), systemID, err
	default:
		return "", "", p.fatalf(`"SYSTEM" or "PUBLIC" is required.`)
	}
}

func normalizePublicID(id string) string {
	return strings.Join(strings.Fields(id), " ")
}

func (p *parser) entityDecl() error {
	pos := p.s.position()
	if err := p.requireSpace(`"<!ENTITY" in the entity declaration`); err != nil {
		return err
	}
	ent := &EntityDecl{Pos: pos}
	if p.s.peek() == '%' {
		p.s.advance(1)
		if err := p.requireSpace(`'%' in the parameter entity declaration`); err != nil {
			return err
		}
		ent.Parameter = true
	}
	ent.Name = p.s.name()
	if ent.Name == "" {
		return p.fatalf("The entity name is required in the entity declaration.")
	}
	if err := p.requireSpace(fmt.Sprintf(`the entity name "%s" in the entity declaration`, ent.Name)); err != nil {
		return err
	}

	if q := p.s.peek(); q == '"' || q == '\'' {
		lit, err := p.literal(fmt.Sprintf(`the value of entity "%s"`, ent.Name))
		if err != nil {
			return err
		}
		var b strings.Builder
		if err := p.appendEntityValue(&b, lit, 0); err != nil {
			return err
		}
		ent.Value = b.String()
		ent.loaded = true
	} else {
		publicID, systemID, err := p.externalID(true)
		if err != nil {
			return err
		}
		ent.External = true
		ent.PublicID = publicID
		ent.SystemID = systemID
		ent.BaseSystemID = p.s.systemID()
		spaced, err := p.skipSpace()
		if err != nil {
			return err
		}
		if p.s.hasPrefix("NDATA") {
			if ent.Parameter {
				return p.fatalf(`The parameter entity "%s" must not be an unparsed entity.`, ent.Name)
			}
			if !spaced {
				return p.fatalf(`White space is required before "NDATA" in the declaration of entity "%s".`, ent.Name)
			}
			p.s.advance(len("NDATA"))
			if err := p.requireSpace(`"NDATA"`); err != nil {
				return err
			}
			ent.Notation = p.s.name()
			if ent.Notation == "" {
				return p.fatalf(`The notation name is required after "NDATA" in the declaration of entity "%s".`, ent.Name)
			}
		}
	}

	if _, err := p.skipSpace(); err != nil {
		return err
	}
	if err := p.expect('>', fmt.Sprintf(`entity "%s"`, ent.Name)); err != nil {
		return err
	}

	table := p.dtd.Entities
	if ent.Parameter {
		table = p.dtd.ParameterEntities
	} else if isPredefinedEntity(ent.Name) {
		return nil
	}
	if _, exists := table[ent.Name]; exists {
		p.warnf(`entity "%s" declared more than once; the first declaration is binding`, ent.Name)
		return nil
	}
	table[ent.Name] = ent
	return nil
}

// appendEntityValue expands parameter entity and character references in an
// entity value literal. General entity references are kept as written.
func (p *parser) appendEntityValue(b *strings.Builder, s string, depth int) error {
	if depth > maxEntityDepth {
		return p.fatalf("Parameter entities are nested too deeply in an entity value.")
	}
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			n := nameLen(s[i+1:], true)
			if n == 0 || i+1+n >= len(s) || s[i+1+n] != ';' {
				return p.fatalf(`The parameter entity reference in an entity value must be of the form "%%name;".`)
			}
			name := s[i+1 : i+1+n]
			ent, text, err := p.parameterText(name)
			if err != nil {
				return err
			}
			if ent != nil {
				p.openPE[name] = true
				err = p.appendEntityValue(b, text, depth+1)
				delete(p.openPE, name)
				if err != nil {
					return err
				}
			}
			i += n + 2
		case '&':
			if i+1 < len(s) && s[i+1] == '#' {
				r, n, ok := charRef(s[i:])
				if !ok {
					return p.fatalf("The character reference must end with the ';' delimiter.")
				}
				b.WriteRune(r)
				i += n
				continue
			}
			b.WriteByte('&')
			i++
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return nil
}

// attributeValue expands references in an attribute default literal and
// replaces white space characters by spaces.
func (p *parser) attributeValue(lit string) (string, error) {
	var b strings.Builder
	if err := p.appendAttributeValue(&b, lit, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (p *parser) appendAttributeValue(b *strings.Builder, s string, depth int) error {
	if depth > maxEntityDepth {
		return p.fatalf("Entities are nested too deeply in an attribute value.")
	}
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '<':
			return p.fatalf(`The value of an attribute must not contain the '<' character.`)
		case c == '&' && i+1 < len(s) && s[i+1] == '#':
			r, n, ok := charRef(s[i:])
			if !ok {
				return p.fatalf("The character reference must end with the ';' delimiter.")
			}
			b.WriteRune(r)
			i += n
		case c == '&':
			n := nameLen(s[i+1:], true)
			if n == 0 || i+1+n >= len(s) || s[i+1+n] != ';' {
				return p.fatalf(`The entity name must immediately follow the '&' in the entity reference.`)
			}
			name := s[i+1 : i+1+n]
			i += n + 2
			if v, ok := predefinedEntities[name]; ok {
				b.WriteString(v)
				continue
			}
			ent, ok := p.dtd.Entities[name]
			if !ok {
				return p.fatalf(`The entity "%s" was referenced, but not declared.`, name)
			}
			if ent.External {
				return p.fatalf(`The external entity reference "&%s;" is not permitted in an attribute value.`, name)
			}
			if p.openGE[name] {
				return p.fatalf(`Recursive entity reference "%s".`, name)
			}
			p.openGE[name] = true
			err := p.appendAttributeValue(b, ent.Value, depth+1)
			delete(p.openGE, name)
			if err != nil {
				return err
			}
		case isSpace(c):
			b.WriteByte(' ')
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return nil
}

func (p *parser) notationDecl() error {
	pos := p.s.position()
	if err := p.requireSpace(`"<!NOTATION" in the notation declaration`); err != nil {
		return err
	}
	name := p.s.name()
	if name == "" {
		return p.fatalf("The notation name is required in the notation declaration.")
	}
	if err := p.requireSpace(fmt.Sprintf(`the notation name "%s" in the notation declaration`, name)); err != nil {
		return err
	}
	publicID, systemID, err := p.externalID(false)
	if err != nil {
		return err
	}
	if _, err := p.skipSpace(); err != nil {
		return err
	}
	if err := p.expect('>', fmt.Sprintf(`notation "%s"`, name)); err != nil {
		return err
	}
	if _, exists := p.dtd.Notations[name]; exists {
		p.errorf(`notation "%s" declared more than once`, name)
		return nil
	}
	p.dtd.Notations[name] = &NotationDecl{Name: name, PublicID: publicID, SystemID: systemID, Pos: pos}
	return nil
}

var predefinedEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": `"`,
}

func isPredefinedEntity(name string) bool {
	_, ok := predefinedEntities[name]
	return ok
}

// charRef decodes a character reference at the start of s and returns the
// character and the length of the reference.
func charRef(s string) (rune, int, bool) {
	end := strings.IndexByte(s, ';')
	if end < 3 || !strings.HasPrefix(s, "&#") {
		return 0, 0, false
	}
	digits := s[2:end]
	base := 10
	if digits[0] == 'x' {
		digits = digits[1:]
		base = 16
	}
	n, err := strconv.ParseUint(digits, base, 32)
	if err != nil || !isXMLChar(rune(n)) {
		return 0, 0, false
	}
	return rune(n), end + 1, true
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// NormalizeValue applies attribute-value normalization for the declared
// type: values of all types but CDATA have leading and trailing spaces
// removed and inner runs of spaces collapsed.
func NormalizeValue(t AttributeType, v string) string {
	if t == AttrCDATA {
		return v
	}
	v = strings.Trim(v, " ")
	if !strings.Contains(v, "  ") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	prevSpace := false
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
