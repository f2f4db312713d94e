// Package memstore is an in-process triple store that understands the
// statements timegraph itself issues: INSERT DATA into one named graph,
// DROP GRAPH, the timestamped graph listing and whole-graph reads. It backs
// the "memory" store backend and the tests.
package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/glaciation-heu/timegraph/internal/rdf"
	"github.com/glaciation-heu/timegraph/internal/sparql"
)

var (
	insertRe    = regexp.MustCompile(`(?s)^INSERT\s+DATA\s*\{\s*GRAPH\s*<([^>]+)>\s*\{(.*)\}\s*\}$`)
	dropRe      = regexp.MustCompile(`(?i)^(?:DROP|CLEAR)\s+(?:SILENT\s+)?GRAPH\s*<([^>]+)>$`)
	listRe      = regexp.MustCompile(`(?s)SELECT\s+DISTINCT\s+\?(\w+)\s+WHERE\s*\{\s*GRAPH\s+\?\w+\s*\{\s*\?s\s+\?p\s+\?o\s*\}\s*FILTER\((STRSTARTS|CONTAINS)\(STR\(\?\w+\),\s*("(?:[^"\\]|\\.)*")\)\)`)
	readGraphRe = regexp.MustCompile(`(?s)SELECT\s+\?s\s+\?p\s+\?o\s+WHERE\s*\{\s*GRAPH\s*<([^>]+)>\s*\{\s*\?s\s+\?p\s+\?o\s*\}\s*\}`)
	askRe       = regexp.MustCompile(`(?is)^ASK\s*\{\s*\}$`)
)

// FaultFunc may fail an operation before it is applied. op is "select",
// "update" or "compact"; statement is empty for compaction.
type FaultFunc func(op, statement string) error

// Store is a goroutine-safe in-memory Gateway.
type Store struct {
	mu       sync.RWMutex
	graphs   map[string]rdf.TripleSet
	updates  []string
	compacts int
	multi    bool
	fault    FaultFunc
}

// New returns an empty store that accepts multi-statement updates.
func New() *Store {
	return &Store{graphs: make(map[string]rdf.TripleSet), multi: true}
}

// SetMultiStatement toggles whether the store advertises multi-statement support.
func (s *Store) SetMultiStatement(on bool) {
	s.mu.Lock()
	s.multi = on
	s.mu.Unlock()
}

// MultiStatement implements sparql.MultiStatementer.
func (s *Store) MultiStatement() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.multi
}

// SetFault installs a fault injector; nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

func (s *Store) checkFault(op, statement string) error {
	s.mu.RLock()
	f := s.fault
	s.mu.RUnlock()
	if f == nil {
		return nil
	}
	return f(op, statement)
}

// Select answers the graph listing, whole-graph reads and the empty ASK.
func (s *Store) Select(ctx context.Context, query string) (*sparql.Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, &sparql.StoreError{Op: "select", Statement: query, Err: err}
	}
	if err := s.checkFault("select", query); err != nil {
		return nil, &sparql.StoreError{Op: "select", Statement: query, Err: err}
	}

	q := strings.TrimSpace(query)
	switch {
	case listRe.MatchString(q):
		m := listRe.FindStringSubmatch(q)
		needle, err := strconv.Unquote(m[3])
		if err != nil {
			return nil, &sparql.StoreError{Op: "select", Statement: query, Err: err}
		}
		return s.listGraphs(m[1], m[2] == "STRSTARTS", needle), nil
	case readGraphRe.MatchString(q):
		m := readGraphRe.FindStringSubmatch(q)
		return s.readGraph(m[1]), nil
	case askRe.MatchString(q):
		return &sparql.Results{Head: sparql.Head{Vars: []string{}}}, nil
	default:
		return nil, &sparql.StoreError{Op: "select", Statement: query, Err: fmt.Errorf("memstore: unsupported query")}
	}
}

func (s *Store) listGraphs(variable string, prefixMatch bool, needle string) *sparql.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.graphs))
	for g, set := range s.graphs {
		if set.IsEmpty() {
			continue
		}
		if prefixMatch && strings.HasPrefix(g, needle) || !prefixMatch && strings.Contains(g, needle) {
			names = append(names, g)
		}
	}
	sort.Strings(names)

	res := &sparql.Results{Head: sparql.Head{Vars: []string{variable}}}
	for _, n := range names {
		res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{
			variable: {Type: "uri", Value: n},
		})
	}
	return res
}

func (s *Store) readGraph(name string) *sparql.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := &sparql.Results{Head: sparql.Head{Vars: []string{"s", "p", "o"}}}
	for _, t := range s.graphs[name].Sorted() {
		res.Results.Bindings = append(res.Results.Bindings, sparql.Binding{
			"s": sparql.ValueOf(t.Subject),
			"p": sparql.ValueOf(t.Predicate),
			"o": sparql.ValueOf(t.Object),
		})
	}
	return res
}

// Update applies one or more ';'-separated INSERT DATA / DROP GRAPH
// operations. Operations are applied in order; a failure leaves the earlier
// ones applied, as a remote store would.
func (s *Store) Update(ctx context.Context, statement string) error {
	if err := ctx.Err(); err != nil {
		return &sparql.StoreError{Op: "update", Statement: statement, Err: err}
	}
	if err := s.checkFault("update", statement); err != nil {
		return &sparql.StoreError{Op: "update", Statement: statement, Err: err}
	}

	ops := splitStatements(statement)
	s.mu.RLock()
	multi := s.multi
	s.mu.RUnlock()
	if len(ops) > 1 && !multi {
		return &sparql.StoreError{Op: "update", Statement: statement, Err: fmt.Errorf("memstore: multi-statement updates disabled")}
	}

	s.mu.Lock()
	s.updates = append(s.updates, statement)
	s.mu.Unlock()

	for _, op := range ops {
		if err := s.apply(op); err != nil {
			return &sparql.StoreError{Op: "update", Statement: op, Err: err}
		}
	}
	return nil
}

func (s *Store) apply(op string) error {
	op = strings.TrimSpace(op)
	if m := insertRe.FindStringSubmatch(op); m != nil {
		set, err := rdf.ParseNTriples(strings.NewReader(m[2]))
		if err != nil {
			return fmt.Errorf("memstore: insert <%s>: %w", m[1], err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		existing, ok := s.graphs[m[1]]
		if !ok {
			existing = make(rdf.TripleSet)
			s.graphs[m[1]] = existing
		}
		for t := range set {
			existing.Add(t)
		}
		return nil
	}
	if m := dropRe.FindStringSubmatch(op); m != nil {
		s.mu.Lock()
		delete(s.graphs, m[1])
		s.mu.Unlock()
		return nil
	}
	return fmt.Errorf("memstore: unsupported update %q", firstLine(op))
}

// Compact counts compaction requests.
func (s *Store) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &sparql.StoreError{Op: "compact", Err: err}
	}
	if err := s.checkFault("compact", ""); err != nil {
		return &sparql.StoreError{Op: "compact", Err: err}
	}
	s.mu.Lock()
	s.compacts++
	s.mu.Unlock()
	return nil
}

// Put replaces the content of a graph directly, bypassing SPARQL.
func (s *Store) Put(name string, set rdf.TripleSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(rdf.TripleSet, len(set))
	for t := range set {
		cp.Add(t)
	}
	s.graphs[name] = cp
}

// Graph returns a copy of a graph's triples.
func (s *Store) Graph(name string) rdf.TripleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(rdf.TripleSet, len(s.graphs[name]))
	for t := range s.graphs[name] {
		cp.Add(t)
	}
	return cp
}

// GraphNames returns every non-empty graph, sorted.
func (s *Store) GraphNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.graphs))
	for g, set := range s.graphs {
		if !set.IsEmpty() {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

// Updates returns every update request received, in order.
func (s *Store) Updates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.updates...)
}

// Compactions returns how many times Compact succeeded.
func (s *Store) Compactions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compacts
}

// splitStatements splits on the " ;\n" separator produced by
// sparql.JoinStatements. Insert bodies never contain it: N-Triples lines end
// in " .".
func splitStatements(stmt string) []string {
	parts := strings.Split(stmt, " ;\n")
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
