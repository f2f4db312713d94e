// Package delta computes the difference between two snapshots of a graph
// and prepares, without executing, the writes that persist it.
package delta

import (
	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/rdf"
)

// Delta is the change from one snapshot to the next.
type Delta struct {
	Added   rdf.TripleSet
	Removed rdf.TripleSet
}

// Compute returns added = next - prev and removed = prev - next.
func Compute(next, prev rdf.TripleSet) Delta {
	return Delta{
		Added:   rdf.Difference(next, prev),
		Removed: rdf.Difference(prev, next),
	}
}

// Empty reports that the two snapshots were identical.
func (d Delta) Empty() bool {
	return d.Added.IsEmpty() && d.Removed.IsEmpty()
}

// Write is one graph insert ready to be sent to the store.
type Write struct {
	Graph     graphname.Name
	Role      graphname.Role
	Statement string
	Triples   int
}

// Payloads are the candidate writes of a delta update. Added and Removed are
// nil when that side of the delta is empty: an empty role produces no graph.
type Payloads struct {
	Timestamp int64
	Added     *Write
	Removed   *Write
	Temp      Write
}

// Writes returns the non-nil payloads in the order they should be issued.
func (p *Payloads) Writes() []Write {
	var out []Write
	if p.Added != nil {
		out = append(out, *p.Added)
	}
	if p.Removed != nil {
		out = append(out, *p.Removed)
	}
	return append(out, p.Temp)
}

// Plan builds the /added, /removed and /temp inserts for prefix at ts. The
// temp graph holds the full next snapshot; an empty next snapshot is an
// *rdf.EmptyGraphError.
func Plan(next rdf.TripleSet, d Delta, prefix string, ts int64) (*Payloads, error) {
	p := &Payloads{Timestamp: ts}

	if !d.Added.IsEmpty() {
		w, err := build(d.Added, prefix, ts, graphname.RoleAdded)
		if err != nil {
			return nil, err
		}
		p.Added = &w
	}
	if !d.Removed.IsEmpty() {
		w, err := build(d.Removed, prefix, ts, graphname.RoleRemoved)
		if err != nil {
			return nil, err
		}
		p.Removed = &w
	}

	temp, err := build(next, prefix, ts, graphname.RoleTemp)
	if err != nil {
		return nil, err
	}
	p.Temp = temp
	return p, nil
}

// BasePayload builds the /base insert written when the timeline is empty.
func BasePayload(set rdf.TripleSet, prefix string, ts int64) (Write, error) {
	return build(set, prefix, ts, graphname.RoleBase)
}

func build(set rdf.TripleSet, prefix string, ts int64, role graphname.Role) (Write, error) {
	name := graphname.Make(prefix, ts, role)
	stmt, err := rdf.InsertStatement(string(name), set)
	if err != nil {
		return Write{}, err
	}
	return Write{Graph: name, Role: role, Statement: stmt, Triples: set.Len()}, nil
}
