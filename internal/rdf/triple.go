package rdf

import (
	"net/url"
	"sort"
	"strings"
)

// Triple is a single (subject, predicate, object) statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewTriple returns a triple from its three terms.
func NewTriple(s, p, o Term) Triple {
	return Triple{Subject: s, Predicate: p, Object: o}
}

// Valid reports whether the triple can be written to a store: IRI or blank
// node subject, IRI predicate, any valid object.
func (t Triple) Valid() bool {
	if t.Subject.Kind == Literal || !t.Subject.Valid() {
		return false
	}
	if t.Predicate.Kind != IRI || !t.Predicate.Valid() {
		return false
	}
	return t.Object.Valid()
}

// String renders the triple as one N-Triples line without the newline.
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// TripleSet is an unordered collection of unique triples.
type TripleSet map[Triple]struct{}

// NewTripleSet returns a set holding the given triples.
func NewTripleSet(triples ...Triple) TripleSet {
	s := make(TripleSet, len(triples))
	for _, t := range triples {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts t, reporting whether it was not already present.
func (s TripleSet) Add(t Triple) bool {
	if _, ok := s[t]; ok {
		return false
	}
	s[t] = struct{}{}
	return true
}

// Has reports whether t is in the set.
func (s TripleSet) Has(t Triple) bool {
	_, ok := s[t]
	return ok
}

func (s TripleSet) Len() int { return len(s) }

func (s TripleSet) IsEmpty() bool { return len(s) == 0 }

// Equal reports whether both sets hold exactly the same triples.
func (s TripleSet) Equal(o TripleSet) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if _, ok := o[t]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the triples ordered by their N-Triples rendering.
func (s TripleSet) Sorted() []Triple {
	out := make([]Triple, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Difference returns the triples in a that are absent from b.
func Difference(a, b TripleSet) TripleSet {
	out := make(TripleSet)
	for t := range a {
		if _, ok := b[t]; !ok {
			out[t] = struct{}{}
		}
	}
	return out
}

// Union returns the triples in a or b.
func Union(a, b TripleSet) TripleSet {
	out := make(TripleSet, len(a)+len(b))
	for t := range a {
		out[t] = struct{}{}
	}
	for t := range b {
		out[t] = struct{}{}
	}
	return out
}

// Intersect returns the triples in both a and b.
func Intersect(a, b TripleSet) TripleSet {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	out := make(TripleSet)
	for t := range small {
		if _, ok := large[t]; ok {
			out[t] = struct{}{}
		}
	}
	return out
}

// Skolemize replaces every blank node of set with an IRI under base, so the
// triples survive a round trip through a store that relabels blank nodes.
// Sets without blank nodes are returned unchanged.
func Skolemize(set TripleSet, base string) TripleSet {
	has := false
	for t := range set {
		if t.Subject.Kind == BlankNode || t.Object.Kind == BlankNode {
			has = true
			break
		}
	}
	if !has {
		return set
	}

	skolem := func(term Term) Term {
		if term.Kind != BlankNode {
			return term
		}
		return NewIRI(base + url.PathEscape(term.Value))
	}
	out := make(TripleSet, len(set))
	for t := range set {
		out.Add(NewTriple(skolem(t.Subject), t.Predicate, skolem(t.Object)))
	}
	return out
}

// InsertStatement renders a bulk INSERT DATA statement placing every triple
// of set inside GRAPH <graph>. An empty set is an *EmptyGraphError: nothing
// to write is a condition the caller reports, not a silent no-op.
func InsertStatement(graph string, set TripleSet) (string, error) {
	if set.IsEmpty() {
		return "", &EmptyGraphError{Graph: graph}
	}

	var b strings.Builder
	b.WriteString("INSERT DATA {\n  GRAPH <")
	b.WriteString(graph)
	b.WriteString("> {\n")
	for _, t := range set.Sorted() {
		b.WriteString("    ")
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	b.WriteString("  }\n}")
	return b.String(), nil
}
