package rdf

import "fmt"

// EmptyGraphError is returned when a graph would be written with zero triples.
type EmptyGraphError struct {
	Graph string
}

func (e *EmptyGraphError) Error() string {
	if e.Graph == "" {
		return "empty graph: no triples to write"
	}
	return fmt.Sprintf("empty graph <%s>: no triples to write", e.Graph)
}

// SyntaxError reports an N-Triples parse failure.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ntriples line %d: %s", e.Line, e.Msg)
	}
	return "ntriples: " + e.Msg
}
