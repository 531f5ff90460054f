package validation

import (
	"strings"

	"github.com/jacoelho/i5validator/internal/dtd"
	"github.com/jacoelho/i5validator/internal/xmlstream"
)

var whitespaceReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func (e *Engine) checkAttributes(ev xmlstream.Event, decl *dtd.ElementDecl) []xmlstream.Attr {
	out := make([]xmlstream.Attr, 0, len(ev.Attrs)+len(decl.Attributes))
	present := make(map[string]bool, len(ev.Attrs))

	for _, a := range ev.Attrs {
		name := a.Name.Raw
		present[name] = true
		ad, ok := decl.Attribute(name)
		if !ok {
			e.undeclaredAttribute(ev, decl, name)
			out = append(out, a)
			continue
		}
		a.Value = dtd.NormalizeValue(ad.Type, whitespaceReplacer.Replace(a.Value))
		e.checkValue(ev, ad, a.Value)
		out = append(out, a)
	}

	for _, ad := range decl.Attributes {
		if present[ad.Name] {
			continue
		}
		switch {
		case ad.Default == dtd.DefaultRequired:
			e.errorf(ev, `element "%s" missing required attribute "%s"`, decl.Name, ad.Name)
		case ad.HasDefault():
			out = append(out, xmlstream.Attr{Name: defaultedName(ad.Name), Value: ad.Value})
		}
	}
	return out
}

func defaultedName(raw string) xmlstream.Name {
	name := xmlstream.Name{Local: raw, Raw: raw}
	switch {
	case raw == "xmlns":
		name.Space = xmlstream.XMLNSNamespace
	case strings.HasPrefix(raw, "xmlns:"):
		name.Space = xmlstream.XMLNSNamespace
		name.Local = raw[len("xmlns:"):]
	case strings.HasPrefix(raw, "xml:"):
		name.Space = xmlstream.XMLNamespace
		name.Local = raw[len("xml:"):]
	}
	return name
}

func (e *Engine) undeclaredAttribute(ev xmlstream.Event, decl *dtd.ElementDecl, name string) {
	if len(decl.Attributes) == 0 {
		e.errorf(ev, `found attribute "%s", but no attributes allowed here`, name)
		return
	}
	names := make([]string, len(decl.Attributes))
	for i, a := range decl.Attributes {
		names[i] = a.Name
	}
	e.errorf(ev, `attribute "%s" not allowed here; expected attribute %s`, name, alternatives(names))
}

func (e *Engine) checkValue(ev xmlstream.Event, ad *dtd.AttributeDecl, value string) {
	if ad.Default == dtd.DefaultFixed && value != ad.Value {
		e.errorf(ev, `value of attribute "%s" is invalid; must be equal to "%s"`, ad.Name, ad.Value)
		return
	}

	switch ad.Type {
	case dtd.AttrID:
		if !dtd.IsName(value) {
			e.invalid(ev, ad, "must be an XML name")
			return
		}
		if e.ids[value] {
			e.errorf(ev, `ID "%s" has already been defined`, value)
			return
		}
		e.ids[value] = true
	case dtd.AttrIDREF:
		if !dtd.IsName(value) {
			e.invalid(ev, ad, "must be an XML name")
			return
		}
		e.addRef(ev, value)
	case dtd.AttrIDREFS:
		tokens := strings.Fields(value)
		if len(tokens) == 0 {
			e.invalid(ev, ad, "must be a list of XML names")
			return
		}
		for _, tok := range tokens {
			if !dtd.IsName(tok) {
				e.invalid(ev, ad, "must be a list of XML names")
				return
			}
		}
		for _, tok := range tokens {
			e.addRef(ev, tok)
		}
	case dtd.AttrENTITY:
		e.checkEntity(ev, ad, value)
	case dtd.AttrENTITIES:
		tokens := strings.Fields(value)
		if len(tokens) == 0 {
			e.invalid(ev, ad, "must be a list of unparsed entity names")
			return
		}
		for _, tok := range tokens {
			e.checkEntity(ev, ad, tok)
		}
	case dtd.AttrNMTOKEN:
		if !dtd.IsNmtoken(value) {
			e.invalid(ev, ad, "must be an XML name token")
		}
	case dtd.AttrNMTOKENS:
		tokens := strings.Fields(value)
		if len(tokens) == 0 {
			e.invalid(ev, ad, "must be a list of XML name tokens")
			return
		}
		for _, tok := range tokens {
			if !dtd.IsNmtoken(tok) {
				e.invalid(ev, ad, "must be a list of XML name tokens")
				return
			}
		}
	case dtd.AttrEnumeration, dtd.AttrNOTATION:
		for _, v := range ad.Values {
			if v == value {
				return
			}
		}
		e.invalid(ev, ad, "must be equal to "+alternatives(ad.Values))
	}
}

func (e *Engine) checkEntity(ev xmlstream.Event, ad *dtd.AttributeDecl, value string) {
	if !dtd.IsName(value) {
		e.invalid(ev, ad, "must be an XML name")
		return
	}
	ent, ok := e.dtd.Entities[value]
	if !ok || !ent.Unparsed() {
		e.errorf(ev, `value of attribute "%s" is invalid; "%s" is not the name of an unparsed entity`, ad.Name, value)
	}
}

func (e *Engine) invalid(ev xmlstream.Event, ad *dtd.AttributeDecl, reason string) {
	e.errorf(ev, `value of attribute "%s" is invalid; %s`, ad.Name, reason)
}

func (e *Engine) addRef(ev xmlstream.Event, value string) {
	e.idrefs = append(e.idrefs, idref{value: value, systemID: ev.SystemID, line: ev.Line, column: ev.Column})
}
