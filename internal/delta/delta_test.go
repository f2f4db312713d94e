package delta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/rdf"
)

func iri(s, p, o string) rdf.Triple {
	return rdf.NewTriple(rdf.NewIRI(s), rdf.NewIRI(p), rdf.NewIRI(o))
}

func TestComputeAddOnly(t *testing.T) {
	prev := rdf.NewTripleSet(iri("a", "b", "c"))
	next := rdf.NewTripleSet(iri("a", "b", "c"), iri("d", "e", "f"))

	d := Compute(next, prev)
	assert.True(t, d.Added.Equal(rdf.NewTripleSet(iri("d", "e", "f"))))
	assert.True(t, d.Removed.IsEmpty())
	assert.False(t, d.Empty())
}

func TestComputeIdentical(t *testing.T) {
	s := rdf.NewTripleSet(iri("a", "b", "c"))
	assert.True(t, Compute(s, s).Empty())
}

func TestPlanSkipsEmptyRoles(t *testing.T) {
	prev := rdf.NewTripleSet(iri("a", "b", "c"))
	next := rdf.NewTripleSet(iri("a", "b", "c"), iri("d", "e", "f"))

	p, err := Plan(next, Compute(next, prev), "urn:c", 42)
	require.NoError(t, err)

	require.NotNil(t, p.Added)
	assert.Nil(t, p.Removed)
	assert.Equal(t, graphname.Name("urn:c/timestamp:42/added"), p.Added.Graph)
	assert.Equal(t, 1, p.Added.Triples)
	assert.Equal(t, graphname.Name("urn:c/timestamp:42/temp"), p.Temp.Graph)
	assert.Equal(t, 2, p.Temp.Triples)
	assert.Contains(t, p.Temp.Statement, "GRAPH <urn:c/timestamp:42/temp>")

	writes := p.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, graphname.RoleAdded, writes[0].Role)
	assert.Equal(t, graphname.RoleTemp, writes[1].Role)
}

func TestPlanBothSides(t *testing.T) {
	prev := rdf.NewTripleSet(iri("a", "b", "c"), iri("x", "y", "z"))
	next := rdf.NewTripleSet(iri("a", "b", "c"), iri("d", "e", "f"))

	p, err := Plan(next, Compute(next, prev), "", 7)
	require.NoError(t, err)
	require.NotNil(t, p.Added)
	require.NotNil(t, p.Removed)
	assert.Contains(t, p.Removed.Statement, "<x> <y> <z> .")
	assert.Len(t, p.Writes(), 3)
}

func TestPlanEmptySnapshot(t *testing.T) {
	prev := rdf.NewTripleSet(iri("a", "b", "c"))
	_, err := Plan(rdf.NewTripleSet(), Compute(rdf.NewTripleSet(), prev), "", 7)

	var empty *rdf.EmptyGraphError
	assert.True(t, errors.As(err, &empty))
}

func TestBasePayload(t *testing.T) {
	w, err := BasePayload(rdf.NewTripleSet(iri("a", "b", "c")), "", 1)
	require.NoError(t, err)
	assert.Equal(t, graphname.Name("timestamp:1/base"), w.Graph)
	assert.Equal(t, graphname.RoleBase, w.Role)

	_, err = BasePayload(rdf.NewTripleSet(), "", 1)
	assert.Error(t, err)
}
