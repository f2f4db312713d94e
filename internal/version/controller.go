// Package version applies inbound snapshots to the timestamped graph
// timeline: the first snapshot of a prefix becomes a /base graph, every later
// one becomes /added and /removed delta graphs plus a fresh /temp copy of the
// full state.
package version

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glaciation-heu/timegraph/internal/delta"
	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/rdf"
	"github.com/glaciation-heu/timegraph/internal/sparql"
)

// Mode says which branch an update took.
type Mode string

const (
	ModeBase  Mode = "base"
	ModeDelta Mode = "delta"
)

// ErrInvalidTriple marks an inbound triple that cannot be written.
var ErrInvalidTriple = errors.New("invalid triple")

// Update is one inbound snapshot.
type Update struct {
	Prefix  string
	Triples rdf.TripleSet
}

// Result describes what an update wrote. When Apply returns an error the
// Result still lists the graphs already written, for manual remediation.
type Result struct {
	Prefix    string           `json:"prefix"`
	Timestamp int64            `json:"timestamp"`
	Mode      Mode             `json:"mode"`
	Previous  graphname.Name   `json:"previous,omitempty"`
	Written   []graphname.Name `json:"written"`
	Dropped   []graphname.Name `json:"dropped,omitempty"`
	Triples   int              `json:"triples"`
	Added     int              `json:"added"`
	Removed   int              `json:"removed"`
	Unchanged bool             `json:"unchanged"`
}

// Controller runs updates against a store. It holds no timeline state: the
// store is resolved afresh on every call.
type Controller struct {
	gw      sparql.Gateway
	logger  logrus.FieldLogger
	now     func() time.Time
	timeout time.Duration
	locks   *prefixLocks
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used to stamp new graphs.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTimeout bounds every Apply call, including all of its store I/O.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithSerializedPrefixes runs updates to the same prefix one at a time.
// Without it two concurrent updates may read the same previous snapshot.
func WithSerializedPrefixes() Option {
	return func(c *Controller) { c.locks = newPrefixLocks() }
}

// New creates a Controller writing through gw.
func New(gw sparql.Gateway, logger logrus.FieldLogger, opts ...Option) *Controller {
	c := &Controller{
		gw:     gw,
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Serialized reports whether per-prefix serialization is enabled.
func (c *Controller) Serialized() bool { return c.locks != nil }

// Apply stores u as the next snapshot of its prefix.
func (c *Controller) Apply(ctx context.Context, u Update) (*Result, error) {
	prefix := graphname.NormalizePrefix(u.Prefix)
	if u.Triples.IsEmpty() {
		return nil, &rdf.EmptyGraphError{}
	}
	for t := range u.Triples {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTriple, t)
		}
	}

	if err := graphname.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	set := rdf.Skolemize(u.Triples, graphname.GenIDBase(prefix))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.locks != nil {
		unlock, err := c.locks.lock(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("wait for prefix %s: %w", prefix, err)
		}
		defer unlock()
	}

	tl, err := c.Timeline(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("resolve timeline: %w", err)
	}

	ts := c.now().UnixMilli()
	if n := len(tl); n > 0 && tl[n-1].Timestamp >= ts {
		// never reuse a timestamp of this prefix, even under clock skew
		ts = tl[n-1].Timestamp + 1
	}

	log := c.logger.WithFields(logrus.Fields{
		"action":    "graph_update",
		"prefix":    prefix,
		"timestamp": ts,
	})

	res := &Result{Prefix: prefix, Timestamp: ts, Triples: set.Len()}
	if tl.Empty() {
		res.Mode = ModeBase
		return res, c.writeBase(ctx, log, res, set)
	}
	res.Mode = ModeDelta
	return res, c.writeDelta(ctx, log, res, tl, set)
}

func (c *Controller) writeBase(ctx context.Context, log logrus.FieldLogger, res *Result, set rdf.TripleSet) error {
	w, err := delta.BasePayload(set, res.Prefix, res.Timestamp)
	if err != nil {
		return err
	}
	if err := c.exec(ctx, w.Graph, w.Statement); err != nil {
		log.WithError(err).WithField("graph", w.Graph).Error("base write failed")
		return err
	}
	res.Written = append(res.Written, w.Graph)
	log.WithField("graph", w.Graph).WithField("triples", w.Triples).Info("base snapshot written")
	return nil
}

func (c *Controller) writeDelta(ctx context.Context, log logrus.FieldLogger, res *Result, tl graphname.Timeline, next rdf.TripleSet) error {
	prev, ok := tl.Latest(graphname.RoleTemp)
	if !ok {
		prev, ok = tl.Latest(graphname.RoleBase)
	}
	if !ok {
		return &NoPreviousSnapshotError{Prefix: res.Prefix, Entries: len(tl)}
	}
	res.Previous = prev.Name

	prevSet, err := c.Snapshot(ctx, prev.Name)
	if err != nil {
		return fmt.Errorf("read previous snapshot: %w", err)
	}
	if prevSet.IsEmpty() {
		// listed a moment ago but gone now: dropped concurrently
		return &NoPreviousSnapshotError{Prefix: res.Prefix, Entries: len(tl), Graph: prev.Name}
	}

	d := delta.Compute(next, prevSet)
	res.Added, res.Removed = d.Added.Len(), d.Removed.Len()
	if d.Empty() {
		res.Unchanged = true
		res.Timestamp = prev.Timestamp
		log.WithField("previous", prev.Name).Info("no change since previous snapshot, nothing written")
		return nil
	}

	p, err := delta.Plan(next, d, res.Prefix, res.Timestamp)
	if err != nil {
		return err
	}

	// Delta graphs first, then the new temp, then retire older temps. A
	// failure at any point leaves the newest complete temp resolvable.
	for _, w := range p.Writes() {
		if err := c.exec(ctx, w.Graph, w.Statement); err != nil {
			log.WithError(err).WithField("graph", w.Graph).Error("delta write failed, earlier writes of this update remain")
			return err
		}
		res.Written = append(res.Written, w.Graph)
	}

	for _, old := range tl.WithRole(graphname.RoleTemp) {
		if err := c.exec(ctx, old.Name, sparql.DropGraphStatement(old.Name)); err != nil {
			log.WithError(err).WithField("graph", old.Name).Error("retiring previous temp failed")
			return err
		}
		res.Dropped = append(res.Dropped, old.Name)
	}

	log.WithFields(logrus.Fields{
		"previous": prev.Name,
		"added":    res.Added,
		"removed":  res.Removed,
	}).Info("delta snapshot written")
	return nil
}

// Timeline resolves the timeline of prefix from the store. Malformed graph
// names are logged and skipped.
func (c *Controller) Timeline(ctx context.Context, prefix string) (graphname.Timeline, error) {
	if err := graphname.ValidatePrefix(graphname.NormalizePrefix(prefix)); err != nil {
		return nil, err
	}
	res, err := c.gw.Select(ctx, sparql.ListGraphsQuery(prefix))
	if err != nil {
		return nil, err
	}
	tl, bad := graphname.BuildTimeline(res.Column(sparql.GraphVar))
	for _, e := range bad {
		c.logger.WithField("action", "resolve_timeline").WithError(e).Warn("skipping malformed graph name")
	}
	return tl.ForPrefix(prefix), nil
}

// Snapshot reads every triple of a graph.
func (c *Controller) Snapshot(ctx context.Context, name graphname.Name) (rdf.TripleSet, error) {
	res, err := c.gw.Select(ctx, sparql.GraphTriplesQuery(name))
	if err != nil {
		return nil, err
	}
	set, err := res.Triples()
	if err != nil {
		return nil, &sparql.StoreError{Op: "select", Graph: string(name), Err: err}
	}
	return set, nil
}

func (c *Controller) exec(ctx context.Context, graph graphname.Name, stmt string) error {
	err := c.gw.Update(ctx, stmt)
	if err == nil {
		return nil
	}
	var se *sparql.StoreError
	if errors.As(err, &se) {
		if se.Graph == "" {
			se.Graph = string(graph)
		}
		if se.Statement == "" {
			se.Statement = stmt
		}
		return se
	}
	return &sparql.StoreError{Op: "update", Graph: string(graph), Statement: stmt, Err: err}
}

// NoPreviousSnapshotError means the prefix has timeline entries but neither
// a /temp nor a /base graph to diff against.
type NoPreviousSnapshotError struct {
	Prefix  string
	Entries int
	Graph   graphname.Name
}

func (e *NoPreviousSnapshotError) Error() string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = "(root)"
	}
	if e.Graph != "" {
		return fmt.Sprintf("no previous snapshot for prefix %s: <%s> is listed but empty", prefix, e.Graph)
	}
	return fmt.Sprintf("no previous snapshot for prefix %s: %d timeline entries but no temp or base graph", prefix, e.Entries)
}
