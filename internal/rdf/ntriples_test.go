package rdf

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNTriples(t *testing.T) {
	doc := `# a comment
<http://ex.org/s> <http://ex.org/p> <http://ex.org/o> .
_:b1 <http://ex.org/name> "Alice"@en .

<http://ex.org/s> <http://ex.org/age> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://ex.org/s> <http://ex.org/p> <http://ex.org/o> .
`
	set, err := ParseNTriples(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	assert.True(t, set.Has(NewTriple(NewBlankNode("b1"), NewIRI("http://ex.org/name"), NewLiteral("Alice", "en", ""))))
	assert.True(t, set.Has(NewTriple(
		NewIRI("http://ex.org/s"),
		NewIRI("http://ex.org/age"),
		NewLiteral("42", "", "http://www.w3.org/2001/XMLSchema#integer"),
	)))
}

func TestParseRoundTripsRendering(t *testing.T) {
	original := NewTripleSet(
		NewTriple(NewIRI("urn:a"), NewIRI("urn:p"), NewLiteral("line1\nline2 \"quoted\" \\ tab\t", "", "")),
		NewTriple(NewIRI("urn:a"), NewIRI("urn:p"), NewLiteral("ünïcödé", "de-ch", "")),
		NewTriple(NewBlankNode("x"), NewIRI("urn:p"), NewIRI("urn:b")),
	)

	var b strings.Builder
	for _, tp := range original.Sorted() {
		b.WriteString(tp.String())
		b.WriteByte('\n')
	}

	parsed, err := ParseNTriples(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(original))
}

func TestParseUnicodeEscape(t *testing.T) {
	term, err := ParseTerm(`"caf\u00e9"`)
	require.NoError(t, err)
	assert.Equal(t, "café", term.Value)
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		`<urn:s> <urn:p> <urn:o>`,
		`<urn:s> <urn:p> "unterminated .`,
		`"lit" <urn:p> <urn:o> .`,
		`<urn:s> <urn:p> <urn:o> . extra`,
		`<urn:s <urn:p> <urn:o> .`,
	}
	for _, line := range bad {
		_, err := ParseTriple(line)
		assert.Error(t, err, line)
	}

	_, err := ParseNTriples(strings.NewReader("<urn:s> <urn:p> <urn:o> .\nbroken\n"))
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.Line)
}
