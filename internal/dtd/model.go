// Package dtd models document type definitions and parses their declarations.
package dtd

import (
	"strings"
)

// ContentType classifies an element type declaration.
type ContentType uint8

const (
	ContentEmpty ContentType = iota
	ContentAny
	ContentMixed
	ContentChildren
)

// Occurs is a content particle occurrence indicator.
type Occurs uint8

const (
	Once Occurs = iota
	Optional
	ZeroOrMore
	OneOrMore
)

// String returns the DTD indicator character.
func (o Occurs) String() string {
	switch o {
	case Optional:
		return "?"
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	default:
		return ""
	}
}

// ParticleKind identifies a content particle.
type ParticleKind uint8

const (
	ParticleName ParticleKind = iota
	ParticleSeq
	ParticleChoice
)

// Particle is a node of an element content model.
type Particle struct {
	Name     string
	Children []*Particle
	Kind     ParticleKind
	Occurs   Occurs
}

// String renders the particle in DTD syntax.
func (p *Particle) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p *Particle) write(b *strings.Builder) {
	switch p.Kind {
	case ParticleName:
		b.WriteString(p.Name)
	default:
		sep := ","
		if p.Kind == ParticleChoice {
			sep = "|"
		}
		b.WriteByte('(')
		for i, c := range p.Children {
			if i > 0 {
				b.WriteString(sep)
			}
			c.write(b)
		}
		b.WriteByte(')')
	}
	b.WriteString(p.Occurs.String())
}

// Position locates a declaration or diagnostic.
type Position struct {
	SystemID string
	Line     int
	Column   int
}

// ElementDecl is an element type declaration together with its attribute
// list declarations.
type ElementDecl struct {
	Model      *Particle
	attrByName map[string]*AttributeDecl
	Name       string
	Mixed      []string
	Attributes []*AttributeDecl
	Pos        Position
	Content    ContentType
	// Declared is false for element types that only appear in an ATTLIST.
	Declared bool
}

// Attribute returns the declaration of the named attribute.
func (e *ElementDecl) Attribute(name string) (*AttributeDecl, bool) {
	a, ok := e.attrByName[name]
	return a, ok
}

// ContentString renders the content model in DTD syntax.
func (e *ElementDecl) ContentString() string {
	switch e.Content {
	case ContentEmpty:
		return "EMPTY"
	case ContentAny:
		return "ANY"
	case ContentMixed:
		if len(e.Mixed) == 0 {
			return "(#PCDATA)"
		}
		return "(#PCDATA|" + strings.Join(e.Mixed, "|") + ")*"
	default:
		return e.Model.String()
	}
}

func (e *ElementDecl) addAttribute(a *AttributeDecl) bool {
	if e.attrByName == nil {
		e.attrByName = make(map[string]*AttributeDecl)
	}
	if _, exists := e.attrByName[a.Name]; exists {
		return false
	}
	e.attrByName[a.Name] = a
	e.Attributes = append(e.Attributes, a)
	return true
}

// AttributeType is the declared type of an attribute.
type AttributeType uint8

const (
	AttrCDATA AttributeType = iota
	AttrID
	AttrIDREF
	AttrIDREFS
	AttrENTITY
	AttrENTITIES
	AttrNMTOKEN
	AttrNMTOKENS
	AttrNOTATION
	AttrEnumeration
)

var attributeTypeNames = [...]string{
	AttrCDATA:       "CDATA",
	AttrID:          "ID",
	AttrIDREF:       "IDREF",
	AttrIDREFS:      "IDREFS",
	AttrENTITY:      "ENTITY",
	AttrENTITIES:    "ENTITIES",
	AttrNMTOKEN:     "NMTOKEN",
	AttrNMTOKENS:    "NMTOKENS",
	AttrNOTATION:    "NOTATION",
	AttrEnumeration: "enumeration",
}

// String returns the DTD keyword for the type.
func (t AttributeType) String() string {
	if int(t) < len(attributeTypeNames) {
		return attributeTypeNames[t]
	}
	return "unknown"
}

// DefaultKind is the default declaration of an attribute.
type DefaultKind uint8

const (
	DefaultValue DefaultKind = iota
	DefaultRequired
	DefaultImplied
	DefaultFixed
)

// AttributeDecl is one attribute definition of an ATTLIST declaration.
type AttributeDecl struct {
	Element string
	Name    string
	// Value is the normalized default or fixed value.
	Value string
	// Values lists the allowed tokens of enumerated and NOTATION types.
	Values  []string
	Pos     Position
	Type    AttributeType
	Default DefaultKind
}

// HasDefault reports whether the declaration supplies a value when the
// attribute is absent.
func (a *AttributeDecl) HasDefault() bool {
	return a.Default == DefaultValue || a.Default == DefaultFixed
}

// EntityDecl is a general or parameter entity declaration.
type EntityDecl struct {
	Name string
	// Value is the literal replacement text of internal entities, with
	// parameter entity and character references already expanded.
	Value        string
	PublicID     string
	SystemID     string
	BaseSystemID string
	Notation     string
	Pos          Position
	Parameter    bool
	External     bool

	resolved string
	loaded   bool
}

// ResolvedSystemID returns the system identifier an external entity was
// loaded from, or its declared system identifier before loading.
func (e *EntityDecl) ResolvedSystemID() string {
	if e.resolved != "" {
		return e.resolved
	}
	return e.SystemID
}

// Unparsed reports whether the entity is an unparsed (NDATA) entity.
func (e *EntityDecl) Unparsed() bool {
	return e.Notation != ""
}

// NotationDecl is a notation declaration.
type NotationDecl struct {
	Name     string
	PublicID string
	SystemID string
	Pos      Position
}

// DTD holds the declarations of a document type definition.
type DTD struct {
	Elements          map[string]*ElementDecl
	Entities          map[string]*EntityDecl
	ParameterEntities map[string]*EntityDecl
	Notations         map[string]*NotationDecl
	Name              string
	PublicID          string
	SystemID          string
}

// New returns an empty DTD for the given document type name.
func New(name string) *DTD {
	return &DTD{
		Name:              name,
		Elements:          make(map[string]*ElementDecl),
		Entities:          make(map[string]*EntityDecl),
		ParameterEntities: make(map[string]*EntityDecl),
		Notations:         make(map[string]*NotationDecl),
	}
}

// Element returns the declaration of the named element type. Element types
// that only appear in ATTLIST declarations are not returned.
func (d *DTD) Element(name string) (*ElementDecl, bool) {
	e, ok := d.Elements[name]
	if !ok || !e.Declared {
		return nil, false
	}
	return e, true
}

// Attributes returns the attribute declarations of the named element type,
// whether or not the element type itself is declared.
func (d *DTD) Attributes(name string) []*AttributeDecl {
	if e, ok := d.Elements[name]; ok {
		return e.Attributes
	}
	return nil
}

func (d *DTD) elementEntry(name string) *ElementDecl {
	e, ok := d.Elements[name]
	if !ok {
		e = &ElementDecl{Name: name}
		d.Elements[name] = e
	}
	return e
}
