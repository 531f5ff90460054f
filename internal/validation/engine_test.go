package validation

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/jacoelho/i5validator/errors"
	"github.com/jacoelho/i5validator/internal/xmlstream"
)

// run streams doc through the engine and returns every finding raised.
func run(t *testing.T, doc string) []xerrors.Finding {
	t.Helper()
	var rec xerrors.Recorder
	r := xmlstream.NewReader(strings.NewReader(doc), "doc.xml", xmlstream.Options{Handler: &rec})
	e := New(&rec)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		e.Handle(ev)
	}
	e.EndDocument()
	return rec.Findings
}

func messages(findings []xerrors.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Message
	}
	return out
}

const corpusDTD = `<!DOCTYPE corpus [
<!ELEMENT corpus (header, text+)>
<!ATTLIST corpus version CDATA #FIXED "1.0">
<!ELEMENT header (title, note?)>
<!ELEMENT title (#PCDATA)>
<!ELEMENT note (#PCDATA|hi)*>
<!ELEMENT hi (#PCDATA)>
<!ELEMENT text (p|pb)*>
<!ATTLIST text
  id    ID      #REQUIRED
  ref   IDREF   #IMPLIED
  lang  (de|en) "de"
  type  NMTOKEN #IMPLIED>
<!ELEMENT p (#PCDATA)>
<!ELEMENT pb EMPTY>
]>
`

func TestEngineValidDocument(t *testing.T) {
	doc := corpusDTD + `<corpus version="1.0">
  <header><title>T</title><note>a <hi>b</hi></note></header>
  <text id="t1"><p>x</p><pb/></text>
  <text id="t2" ref="t1" lang="en"/>
</corpus>`
	assert.Empty(t, messages(run(t, doc)))
}

func TestEngineWithoutDoctypeIsNotChecked(t *testing.T) {
	var rec xerrors.Recorder
	e := New(&rec)
	r := xmlstream.NewReader(strings.NewReader(`<anything><goes/></anything>`), "doc.xml", xmlstream.Options{})
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		e.Handle(ev)
	}
	e.EndDocument()
	assert.False(t, e.Active())
	assert.Empty(t, rec.Findings)
}

func TestEngineContentErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "undeclared element",
			body: `<corpus><header><title/><bogus/></header><text id="a"/></corpus>`,
			want: []string{`element "bogus" not allowed anywhere; expected the element end-tag or element "note"`},
		},
		{
			name: "element out of order",
			body: `<corpus><text id="a"/><header><title/></header></corpus>`,
			want: []string{
				`element "text" not allowed here; expected element "header"`,
				`element "corpus" incomplete; missing required element "text"`,
			},
		},
		{
			name: "incomplete content",
			body: `<corpus><header/><text id="a"/></corpus>`,
			want: []string{`element "header" incomplete; missing required element "title"`},
		},
		{
			name: "text in element content",
			body: `<corpus>oops<header><title/></header><text id="a"/></corpus>`,
			want: []string{`text not allowed here; expected element "header"`},
		},
		{
			name: "element in mixed content",
			body: `<corpus><header><title/><note><p/></note></header><text id="a"/></corpus>`,
			want: []string{`element "p" not allowed here; expected the element end-tag or text or element "hi"`},
		},
		{
			name: "content in EMPTY",
			body: `<corpus><header><title/></header><text id="a"><pb>x</pb></text></corpus>`,
			want: []string{`text not allowed here; expected the element end-tag`},
		},
		{
			name: "wrong root",
			body: `<header><title/></header>`,
			want: []string{`document element "header" does not match DOCTYPE name "corpus"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messages(run(t, corpusDTD+tt.body)))
		})
	}
}

func TestEngineAttributeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "missing required",
			body: `<text/>`,
			want: []string{`element "text" missing required attribute "id"`},
		},
		{
			name: "undeclared attribute",
			body: `<text id="a" colour="red"/>`,
			want: []string{`attribute "colour" not allowed here; expected attribute "id", "ref", "lang" or "type"`},
		},
		{
			name: "no attributes declared",
			body: `<text id="a"><p n="1"/></text>`,
			want: []string{`found attribute "n", but no attributes allowed here`},
		},
		{
			name: "enumeration",
			body: `<text id="a" lang="fr"/>`,
			want: []string{`value of attribute "lang" is invalid; must be equal to "de" or "en"`},
		},
		{
			name: "nmtoken",
			body: `<text id="a" type="two words"/>`,
			want: []string{`value of attribute "type" is invalid; must be an XML name token`},
		},
		{
			name: "invalid id",
			body: `<text id="1a"/>`,
			want: []string{`value of attribute "id" is invalid; must be an XML name`},
		},
		{
			name: "dangling idref",
			body: `<text id="a" ref="missing"/>`,
			want: []string{`reference to non-existent ID "missing"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dtd := `<!DOCTYPE text [
<!ELEMENT text (p)*>
<!ATTLIST text id ID #REQUIRED ref IDREF #IMPLIED lang (de|en) "de" type NMTOKEN #IMPLIED>
<!ELEMENT p EMPTY>
]>`
			assert.Equal(t, tt.want, messages(run(t, dtd+tt.body)))
		})
	}
}

func TestEngineFixedAttribute(t *testing.T) {
	got := messages(run(t, corpusDTD+`<corpus version="2.0"><header><title/></header><text id="a"/></corpus>`))
	assert.Equal(t, []string{`value of attribute "version" is invalid; must be equal to "1.0"`}, got)
}

func TestEngineDuplicateID(t *testing.T) {
	doc := corpusDTD + `<corpus>
<header><title/></header>
<text id="same"/>
<text id="same"/>
</corpus>`
	findings := run(t, doc)
	require.Len(t, findings, 1)
	assert.Equal(t, `ID "same" has already been defined`, findings[0].Message)
	assert.Equal(t, 20, findings[0].Line)
	assert.Equal(t, xerrors.SeverityError, findings[0].Severity)
}

func TestEngineForwardIDREF(t *testing.T) {
	doc := corpusDTD + `<corpus><header><title/></header><text id="a" ref="b"/><text id="b"/></corpus>`
	assert.Empty(t, run(t, doc))
}

func TestEngineDanglingIDREFPosition(t *testing.T) {
	doc := corpusDTD + "<corpus><header><title/></header>\n<text id=\"a\" ref=\"zz\"/></corpus>"
	findings := run(t, doc)
	require.Len(t, findings, 1)
	assert.Equal(t, `reference to non-existent ID "zz"`, findings[0].Message)
	assert.Equal(t, 18, findings[0].Line)
}

func TestEngineAppliesDefaults(t *testing.T) {
	var rec xerrors.Recorder
	r := xmlstream.NewReader(strings.NewReader(corpusDTD+`<corpus><header><title/></header><text id="  t1 "/></corpus>`), "doc.xml", xmlstream.Options{Handler: &rec})
	e := New(&rec)
	var textAttrs []xmlstream.Attr
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		switch ev.Kind {
		case xmlstream.EventStartElement:
			attrs := e.StartElement(ev)
			if ev.Name.Raw == "text" {
				textAttrs = attrs
			}
		default:
			e.Handle(ev)
		}
	}
	e.EndDocument()
	assert.Empty(t, rec.Findings)
	assert.Equal(t, []xmlstream.Attr{
		{Name: xmlstream.Name{Local: "id", Raw: "id"}, Value: "t1"},
		{Name: xmlstream.Name{Local: "lang", Raw: "lang"}, Value: "de"},
	}, textAttrs)
}

func TestEngineUnparsedEntities(t *testing.T) {
	dtd := `<!DOCTYPE r [
<!ELEMENT r EMPTY>
<!ATTLIST r img ENTITY #IMPLIED fmt NOTATION (png|gif) #IMPLIED>
<!NOTATION png SYSTEM "image/png">
<!ENTITY logo SYSTEM "logo.png" NDATA png>
<!ENTITY text "plain">
<!ENTITY broken SYSTEM "x.bin" NDATA bin>
]>`
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "valid",
			body: `<r img="logo" fmt="png"/>`,
			want: []string{
				`notation "bin" of unparsed entity "broken" is not declared`,
				`notation "gif" of attribute "fmt" is not declared`,
			},
		},
		{
			name: "parsed entity",
			body: `<r img="text"/>`,
			want: []string{
				`notation "bin" of unparsed entity "broken" is not declared`,
				`notation "gif" of attribute "fmt" is not declared`,
				`value of attribute "img" is invalid; "text" is not the name of an unparsed entity`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messages(run(t, dtd+tt.body)))
		})
	}
}

func TestEngineUndeclaredRoot(t *testing.T) {
	doc := `<!DOCTYPE r [<!ELEMENT other EMPTY>]><r><x/></r>`
	assert.Equal(t, []string{
		`element "r" not allowed anywhere; no declaration for element type "r"`,
		`element "x" not allowed anywhere; no declaration for element type "x"`,
	}, messages(run(t, doc)))
}

func TestEngineDuplicateElementDeclaration(t *testing.T) {
	doc := `<!DOCTYPE r [<!ELEMENT r EMPTY><!ELEMENT r ANY>]><r/>`
	assert.Equal(t, []string{`element type "r" declared more than once`}, messages(run(t, doc)))
}

func TestEngineNonDeterministicModelWarnsOnce(t *testing.T) {
	doc := `<!DOCTYPE r [
<!ELEMENT r (s, s)>
<!ELEMENT s (a?, a)>
<!ELEMENT a EMPTY>
]>
<r><s><a/></s>
<s><a/></s></r>`
	findings := run(t, doc)
	require.Len(t, findings, 1)
	assert.Equal(t, xerrors.SeverityWarning, findings[0].Severity)
	assert.Equal(t, `content model of element "s" is not deterministic; element "a" matches more than one particle`, findings[0].Message)
	assert.Equal(t, 6, findings[0].Line)
}
