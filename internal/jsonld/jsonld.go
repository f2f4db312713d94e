// Package jsonld turns an inbound JSON-LD document into the triple set of one
// snapshot.
package jsonld

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/piprate/json-gold/ld"

	"github.com/glaciation-heu/timegraph/internal/rdf"
)

// ErrNotObject is returned for a document that is not a JSON object or array.
var ErrNotObject = errors.New("json-ld document must be an object or an array")

// Document is a parsed snapshot. Prefix is the document's top-level @id, or
// empty when there is none.
type Document struct {
	Prefix  string
	Triples rdf.TripleSet
}

// Parser converts JSON-LD to triples. Remote contexts are fetched once and
// cached for the life of the Parser.
type Parser struct {
	proc   *ld.JsonLdProcessor
	loader ld.DocumentLoader
}

// NewParser creates a Parser fetching remote contexts with a client bounded
// by timeout.
func NewParser(timeout time.Duration) *Parser {
	client := &http.Client{Timeout: timeout}
	return &Parser{
		proc:   ld.NewJsonLdProcessor(),
		loader: ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(client)),
	}
}

// Decode reads and parses one JSON-LD document.
func (p *Parser) Decode(r io.Reader) (*Document, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json-ld: %w", err)
	}
	return p.Parse(doc)
}

// Parse converts an already decoded document. All graphs of the resulting
// dataset fold into one triple set.
func (p *Parser) Parse(doc any) (*Document, error) {
	out := &Document{Triples: rdf.NewTripleSet()}
	switch d := doc.(type) {
	case map[string]any:
		if id, ok := d["@id"].(string); ok {
			out.Prefix = strings.TrimSpace(id)
		}
	case []any:
	default:
		return nil, ErrNotObject
	}

	opts := ld.NewJsonLdOptions("")
	opts.DocumentLoader = p.loader
	res, err := p.proc.ToRDF(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("expand json-ld: %w", err)
	}
	ds, ok := res.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("expand json-ld: unexpected result %T", res)
	}

	for _, quads := range ds.Graphs {
		for _, q := range quads {
			t := rdf.NewTriple(term(q.Subject), term(q.Predicate), term(q.Object))
			if !t.Valid() {
				return nil, fmt.Errorf("json-ld produced an invalid triple: %s", t)
			}
			out.Triples.Add(t)
		}
	}
	return out, nil
}

func term(n ld.Node) rdf.Term {
	switch v := n.(type) {
	case *ld.IRI:
		return rdf.NewIRI(v.Value)
	case *ld.BlankNode:
		return rdf.NewBlankNode(v.Attribute)
	case *ld.Literal:
		return rdf.NewLiteral(v.Value, v.Language, v.Datatype)
	}
	return rdf.Term{}
}
