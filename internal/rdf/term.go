package rdf

import (
	"fmt"
	"strings"
)

// Well-known datatypes that collapse into a plain literal.
const (
	XSDString     = "http://www.w3.org/2001/XMLSchema#string"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// TermKind tags the variant held by a Term.
type TermKind uint8

const (
	IRI TermKind = iota + 1
	Literal
	BlankNode
)

func (k TermKind) String() string {
	switch k {
	case IRI:
		return "uri"
	case Literal:
		return "literal"
	case BlankNode:
		return "bnode"
	default:
		return "unknown"
	}
}

// Term is a single RDF term. Lang and Datatype are only meaningful for
// literals. Terms are comparable and can be used as map keys.
type Term struct {
	Kind     TermKind
	Value    string
	Lang     string
	Datatype string
}

// NewIRI returns an IRI term.
func NewIRI(v string) Term {
	return Term{Kind: IRI, Value: v}
}

// NewBlankNode returns a blank node term. A leading "_:" is stripped.
func NewBlankNode(label string) Term {
	return Term{Kind: BlankNode, Value: strings.TrimPrefix(label, "_:")}
}

// NewLiteral returns a literal term. xsd:string and rdf:langString are
// folded away so the same literal compares equal regardless of which
// producer (store binding or JSON-LD expansion) built it.
func NewLiteral(value, lang, datatype string) Term {
	lang = strings.ToLower(lang)
	if datatype == XSDString {
		datatype = ""
	}
	if lang != "" {
		datatype = ""
	}
	if datatype == RDFLangString {
		datatype = ""
	}
	return Term{Kind: Literal, Value: value, Lang: lang, Datatype: datatype}
}

// Valid reports whether the term is well formed.
func (t Term) Valid() bool {
	switch t.Kind {
	case IRI:
		return t.Value != "" && !strings.ContainsAny(t.Value, "<>\"{}|^`\\ \n\r\t")
	case BlankNode:
		return t.Value != "" && !strings.ContainsAny(t.Value, " \n\r\t.")
	case Literal:
		return true
	default:
		return false
	}
}

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case IRI:
		return "<" + t.Value + ">"
	case BlankNode:
		return "_:" + t.Value
	case Literal:
		var b strings.Builder
		b.WriteByte('"')
		b.WriteString(escapeLiteral(t.Value))
		b.WriteByte('"')
		if t.Lang != "" {
			b.WriteByte('@')
			b.WriteString(t.Lang)
		} else if t.Datatype != "" {
			b.WriteString("^^<")
			b.WriteString(t.Datatype)
			b.WriteByte('>')
		}
		return b.String()
	default:
		return fmt.Sprintf("?invalid(%q)", t.Value)
	}
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
