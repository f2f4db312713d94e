package rdf

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tr(s, p, o string) Triple {
	return NewTriple(NewIRI(s), NewIRI(p), NewLiteral(o, "", ""))
}

func TestTripleSetDeduplicates(t *testing.T) {
	s := NewTripleSet(tr("a", "b", "c"), tr("a", "b", "c"), tr("d", "e", "f"))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Add(tr("a", "b", "c")))
	assert.True(t, s.Add(tr("x", "y", "z")))
	assert.Equal(t, 3, s.Len())
}

func TestDifferenceOfSelfIsEmpty(t *testing.T) {
	a := NewTripleSet(tr("a", "b", "c"), tr("d", "e", "f"))
	assert.True(t, Difference(a, a).IsEmpty())
}

func TestDifferenceReconstructsUnion(t *testing.T) {
	a := NewTripleSet(tr("a", "b", "c"), tr("d", "e", "f"), tr("g", "h", "i"))
	b := NewTripleSet(tr("d", "e", "f"), tr("j", "k", "l"))

	onlyA := Difference(a, b)
	onlyB := Difference(b, a)
	both := Intersect(a, b)

	assert.Equal(t, 2, onlyA.Len())
	assert.Equal(t, 1, onlyB.Len())
	assert.Equal(t, 1, both.Len())

	rebuilt := Union(Union(onlyA, onlyB), both)
	assert.True(t, rebuilt.Equal(Union(a, b)))
}

func TestLiteralNormalization(t *testing.T) {
	plain := NewLiteral("hello", "", "")
	typed := NewLiteral("hello", "", XSDString)
	assert.Equal(t, plain, typed)

	lang := NewLiteral("hallo", "DE", RDFLangString)
	assert.Equal(t, "de", lang.Lang)
	assert.Empty(t, lang.Datatype)

	num := NewLiteral("42", "", "http://www.w3.org/2001/XMLSchema#integer")
	assert.NotEqual(t, NewLiteral("42", "", ""), num)
}

func TestTermString(t *testing.T) {
	cases := []struct {
		term Term
		want string
	}{
		{NewIRI("http://ex.org/a"), "<http://ex.org/a>"},
		{NewBlankNode("_:b0"), "_:b0"},
		{NewLiteral("plain", "", ""), `"plain"`},
		{NewLiteral("bonjour", "fr", ""), `"bonjour"@fr`},
		{NewLiteral("1", "", "http://www.w3.org/2001/XMLSchema#int"), `"1"^^<http://www.w3.org/2001/XMLSchema#int>`},
		{NewLiteral("say \"hi\"\nnow\\", "", ""), `"say \"hi\"\nnow\\"`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.term.String())
	}
}

func TestInsertStatement(t *testing.T) {
	s := NewTripleSet(tr("http://ex.org/b", "http://ex.org/p", "2"), tr("http://ex.org/a", "http://ex.org/p", "1"))

	stmt, err := InsertStatement("urn:g/timestamp:1/base", s)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stmt, "INSERT DATA {"))
	assert.Contains(t, stmt, "GRAPH <urn:g/timestamp:1/base> {")
	first := strings.Index(stmt, "<http://ex.org/a>")
	second := strings.Index(stmt, "<http://ex.org/b>")
	assert.True(t, first > 0 && first < second, "triples are rendered in sorted order")
	assert.Equal(t, strings.Count(stmt, "{"), strings.Count(stmt, "}"))
}

func TestInsertStatementEmpty(t *testing.T) {
	_, err := InsertStatement("timestamp:1/base", NewTripleSet())
	require.Error(t, err)

	var empty *EmptyGraphError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "timestamp:1/base", empty.Graph)
}

func TestTripleValid(t *testing.T) {
	assert.True(t, tr("a", "b", "c").Valid())
	assert.False(t, NewTriple(NewLiteral("a", "", ""), NewIRI("b"), NewIRI("c")).Valid())
	assert.False(t, NewTriple(NewIRI("a"), NewBlankNode("b"), NewIRI("c")).Valid())
	assert.False(t, NewTriple(NewIRI("has space"), NewIRI("b"), NewIRI("c")).Valid())
}

func TestSkolemize(t *testing.T) {
	plain := NewTripleSet(NewTriple(NewIRI("urn:s"), NewIRI("urn:p"), NewIRI("urn:o")))
	assert.Equal(t, plain, Skolemize(plain, "urn:g/"))

	in := NewTripleSet(
		NewTriple(NewBlankNode("b0"), NewIRI("urn:p"), NewBlankNode("b 1")),
		NewTriple(NewIRI("urn:s"), NewIRI("urn:p"), NewLiteral("x", "", "")),
	)
	out := Skolemize(in, "urn:g/.well-known/genid/")
	assert.Equal(t, 2, out.Len())
	assert.True(t, out.Has(NewTriple(NewIRI("urn:g/.well-known/genid/b0"), NewIRI("urn:p"), NewIRI("urn:g/.well-known/genid/b%201"))))
	for tr := range out {
		assert.True(t, tr.Valid())
	}
	assert.True(t, in.Has(NewTriple(NewBlankNode("b0"), NewIRI("urn:p"), NewBlankNode("b 1"))), "input left untouched")
}
