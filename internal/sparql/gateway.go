// Package sparql is the boundary to the external triple store: the Gateway
// contract the versioning core consumes, the SPARQL JSON results model, the
// statements the core issues, and an HTTP implementation for Fuseki.
package sparql

import (
	"context"
	"fmt"

	"github.com/glaciation-heu/timegraph/internal/rdf"
)

// Gateway executes reads, writes and compaction against a triple store.
// Implementations give no transactional guarantees across calls.
type Gateway interface {
	Select(ctx context.Context, query string) (*Results, error)
	Update(ctx context.Context, statement string) error
	Compact(ctx context.Context) error
}

// MultiStatementer is implemented by gateways that accept several update
// operations separated by ';' in one request.
type MultiStatementer interface {
	MultiStatement() bool
}

// SupportsMultiStatement reports whether gw advertises multi-statement updates.
func SupportsMultiStatement(gw Gateway) bool {
	ms, ok := gw.(MultiStatementer)
	return ok && ms.MultiStatement()
}

// Results is the application/sparql-results+json document.
type Results struct {
	Head    Head     `json:"head"`
	Results Bindings `json:"results"`
}

type Head struct {
	Vars []string `json:"vars"`
}

type Bindings struct {
	Bindings []Binding `json:"bindings"`
}

// Binding maps variable names to values for one solution.
type Binding map[string]Value

// Value is one bound RDF term as the store reports it.
type Value struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Empty returns a result set with no variables and no solutions.
func Empty() *Results {
	return &Results{Head: Head{Vars: []string{}}, Results: Bindings{Bindings: []Binding{}}}
}

// Term converts the dynamic binding shape into the tagged rdf.Term variant.
func (v Value) Term() (rdf.Term, error) {
	switch v.Type {
	case "uri":
		return rdf.NewIRI(v.Value), nil
	case "literal", "typed-literal":
		return rdf.NewLiteral(v.Value, v.Lang, v.Datatype), nil
	case "bnode":
		return rdf.NewBlankNode(v.Value), nil
	default:
		return rdf.Term{}, fmt.Errorf("unknown binding type %q", v.Type)
	}
}

// ValueOf is the inverse of Value.Term.
func ValueOf(t rdf.Term) Value {
	switch t.Kind {
	case rdf.IRI:
		return Value{Type: "uri", Value: t.Value}
	case rdf.BlankNode:
		return Value{Type: "bnode", Value: t.Value}
	default:
		return Value{Type: "literal", Value: t.Value, Lang: t.Lang, Datatype: t.Datatype}
	}
}

// Column returns the string values bound to variable in every solution that
// binds it.
func (r *Results) Column(variable string) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Results.Bindings))
	for _, b := range r.Results.Bindings {
		if v, ok := b[variable]; ok {
			out = append(out, v.Value)
		}
	}
	return out
}

// Triples collects the ?s ?p ?o solutions of r into a set.
func (r *Results) Triples() (rdf.TripleSet, error) {
	set := make(rdf.TripleSet)
	if r == nil {
		return set, nil
	}
	for i, b := range r.Results.Bindings {
		var terms [3]rdf.Term
		for j, name := range [3]string{"s", "p", "o"} {
			v, ok := b[name]
			if !ok {
				return nil, fmt.Errorf("solution %d: variable ?%s unbound", i, name)
			}
			t, err := v.Term()
			if err != nil {
				return nil, fmt.Errorf("solution %d: ?%s: %w", i, name, err)
			}
			terms[j] = t
		}
		set.Add(rdf.NewTriple(terms[0], terms[1], terms[2]))
	}
	return set, nil
}
