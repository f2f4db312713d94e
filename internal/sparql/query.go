package sparql

import (
	"strconv"
	"strings"

	"github.com/glaciation-heu/timegraph/internal/graphname"
)

// GraphVar is the variable the graph listing query binds.
const GraphVar = "graphURI"

// ListGraphsQuery selects every timestamped graph rooted at prefix. An empty
// prefix selects all timestamped graphs in the dataset regardless of prefix.
func ListGraphsQuery(prefix string) string {
	filter := `CONTAINS(STR(?` + GraphVar + `), ` + strconv.Quote(graphname.Marker) + `)`
	if p := graphname.NormalizePrefix(prefix); p != "" {
		filter = `STRSTARTS(STR(?` + GraphVar + `), ` + strconv.Quote(p+graphname.Marker) + `)`
	}
	return "SELECT DISTINCT ?" + GraphVar + " WHERE {\n" +
		"  GRAPH ?" + GraphVar + " { ?s ?p ?o }\n" +
		"  FILTER(" + filter + ")\n" +
		"}"
}

// GraphTriplesQuery selects every triple of the named graph as ?s ?p ?o.
func GraphTriplesQuery(name graphname.Name) string {
	return "SELECT ?s ?p ?o WHERE {\n  GRAPH " + name.IRI() + " { ?s ?p ?o }\n}"
}

// DropGraphStatement drops one graph. SILENT keeps a concurrent drop of the
// same graph from failing the request.
func DropGraphStatement(name graphname.Name) string {
	return "DROP SILENT GRAPH " + name.IRI()
}

// JoinStatements combines update operations into one multi-statement request.
func JoinStatements(stmts []string) string {
	return strings.Join(stmts, " ;\n")
}
