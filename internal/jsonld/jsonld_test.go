package jsonld

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glaciation-heu/timegraph/internal/rdf"
)

const vehicle = `{
  "@context": {
    "ns1": "http://example.org/ns1#",
    "schema": "http://schema.org/"
  },
  "@id": "urn:ngsi-ld:Vehicle:5FSQC8LARN",
  "@type": "schema:Vehicle",
  "ns1:driverSeatLocation": {"@value": "Right", "@type": "schema:steeringPosition"},
  "ns1:name": {"@value": "Van", "@language": "EN"},
  "ns1:speed": 42
}`

func TestDecodeVehicle(t *testing.T) {
	p := NewParser(time.Second)
	doc, err := p.Decode(strings.NewReader(vehicle))
	require.NoError(t, err)

	assert.Equal(t, "urn:ngsi-ld:Vehicle:5FSQC8LARN", doc.Prefix)
	assert.Equal(t, 4, doc.Triples.Len())

	subj := rdf.NewIRI("urn:ngsi-ld:Vehicle:5FSQC8LARN")
	assert.True(t, doc.Triples.Has(rdf.NewTriple(subj,
		rdf.NewIRI("http://example.org/ns1#driverSeatLocation"),
		rdf.NewLiteral("Right", "", "http://schema.org/steeringPosition"))))
	assert.True(t, doc.Triples.Has(rdf.NewTriple(subj,
		rdf.NewIRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"),
		rdf.NewIRI("http://schema.org/Vehicle"))))
	assert.True(t, doc.Triples.Has(rdf.NewTriple(subj,
		rdf.NewIRI("http://example.org/ns1#name"),
		rdf.NewLiteral("Van", "en", ""))), "language tags are lowercased")
}

func TestParseGraphWithoutID(t *testing.T) {
	p := NewParser(time.Second)
	doc, err := p.Parse(map[string]any{
		"@context": map[string]any{"ex": "http://example.org/"},
		"@graph": []any{
			map[string]any{"@id": "ex:a", "ex:p": map[string]any{"@id": "ex:b"}},
			map[string]any{"ex:q": "anonymous"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, doc.Prefix)
	assert.Equal(t, 2, doc.Triples.Len())

	var blank bool
	for tr := range doc.Triples {
		if tr.Subject.Kind == rdf.BlankNode {
			blank = true
		}
	}
	assert.True(t, blank, "a node without @id becomes a blank node")
}

func TestParseEmptyDocument(t *testing.T) {
	doc, err := NewParser(time.Second).Parse(map[string]any{})
	require.NoError(t, err)
	assert.True(t, doc.Triples.IsEmpty())
}

func TestParseRejectsScalars(t *testing.T) {
	_, err := NewParser(time.Second).Parse("not a document")
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = NewParser(time.Second).Decode(strings.NewReader("{"))
	assert.Error(t, err)
}
