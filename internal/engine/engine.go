// Package engine wires the version controller, the retention scheduler, the
// operation journal and the metrics into the operations the server and the
// CLI expose.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/glaciation-heu/timegraph/internal/config"
	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/jsonld"
	"github.com/glaciation-heu/timegraph/internal/metrics"
	"github.com/glaciation-heu/timegraph/internal/rdf"
	"github.com/glaciation-heu/timegraph/internal/retention"
	"github.com/glaciation-heu/timegraph/internal/sparql"
	"github.com/glaciation-heu/timegraph/internal/store"
	"github.com/glaciation-heu/timegraph/internal/version"
)

// ErrNoJournal is returned by the history operations when the journal is
// disabled.
var ErrNoJournal = errors.New("operation journal is disabled")

// DocumentError means an inbound document could not be parsed.
type DocumentError struct {
	Format string
	Err    error
}

func (e *DocumentError) Error() string { return "parse " + e.Format + " document: " + e.Err.Error() }

func (e *DocumentError) Unwrap() error { return e.Err }

// Pinger is implemented by gateways that can check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Engine orchestrates graph updates and retention.
type Engine struct {
	Gateway    sparql.Gateway
	Controller *version.Controller
	Sweeper    *retention.Sweeper
	Scheduler  *retention.Scheduler
	DB         *store.DB
	Metrics    *metrics.Metrics

	parser *jsonld.Parser
	logger logrus.FieldLogger
	cfg    config.Config
	now    func() time.Time
	cancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every update and sweep in db.
func WithJournal(db *store.DB) Option {
	return func(e *Engine) { e.DB = db }
}

// WithMetrics reports to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.Metrics = m }
}

// WithClock replaces the wall clock for graph timestamps and cutoffs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over gw configured by cfg.
func New(cfg config.Config, gw sparql.Gateway, logger logrus.FieldLogger, opts ...Option) *Engine {
	e := &Engine{
		Gateway: gw,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		parser:  jsonld.NewParser(cfg.Store.Timeout.Std()),
	}
	for _, o := range opts {
		o(e)
	}

	vopts := []version.Option{
		version.WithClock(e.now),
		version.WithTimeout(cfg.Concurrency.UpdateTimeout.Std()),
	}
	if cfg.Concurrency.SerializeUpdates {
		vopts = append(vopts, version.WithSerializedPrefixes())
	}
	e.Controller = version.New(gw, logger, vopts...)

	e.Sweeper = retention.NewSweeper(gw, logger,
		retention.WithBatching(cfg.Retention.Batch),
		retention.WithDropDelay(cfg.Retention.DropDelay.Std()),
		retention.WithSweepClock(e.now),
	)
	e.Scheduler = retention.NewScheduler(e.Sweeper, logger, retention.SchedulerConfig{
		Window:   cfg.Retention.Window.Std(),
		Interval: cfg.Retention.Interval.Std(),
		Timeout:  cfg.Retention.Timeout.Std(),
	})
	e.Scheduler.Observe(e.observeSweep)
	e.Scheduler.OnSkip(func() {
		if e.Metrics != nil {
			e.Metrics.SweepsSkippedTotal.Inc()
		}
	})
	return e
}

// Apply stores one snapshot and journals the outcome.
func (e *Engine) Apply(ctx context.Context, u version.Update) (*version.Result, error) {
	start := time.Now()
	res, err := e.Controller.Apply(ctx, u)
	elapsed := time.Since(start)

	e.observeUpdate(u, res, err, elapsed)
	return res, err
}

// ApplyDocument parses a JSON-LD document and stores it as the next snapshot
// of the prefix named by its @id.
func (e *Engine) ApplyDocument(ctx context.Context, doc any) (*version.Result, error) {
	d, err := e.parser.Parse(doc)
	if err != nil {
		return nil, &DocumentError{Format: "json-ld", Err: err}
	}
	return e.Apply(ctx, version.Update{Prefix: d.Prefix, Triples: d.Triples})
}

// ApplyJSONLD reads one JSON-LD document from r and applies it.
func (e *Engine) ApplyJSONLD(ctx context.Context, r io.Reader) (*version.Result, error) {
	d, err := e.parser.Decode(r)
	if err != nil {
		return nil, &DocumentError{Format: "json-ld", Err: err}
	}
	return e.Apply(ctx, version.Update{Prefix: d.Prefix, Triples: d.Triples})
}

// ApplyNTriples reads an N-Triples document from r and applies it under prefix.
func (e *Engine) ApplyNTriples(ctx context.Context, prefix string, r io.Reader) (*version.Result, error) {
	set, err := rdf.ParseNTriples(r)
	if err != nil {
		return nil, &DocumentError{Format: "n-triples", Err: err}
	}
	return e.Apply(ctx, version.Update{Prefix: prefix, Triples: set})
}

// Query validates and runs a read query against the store.
func (e *Engine) Query(ctx context.Context, q string) (*sparql.Results, error) {
	if err := sparql.ValidateQuery(q); err != nil {
		return nil, err
	}
	return e.Gateway.Select(ctx, q)
}

// Execute validates and runs an update statement against the store.
func (e *Engine) Execute(ctx context.Context, stmt string) error {
	if err := sparql.ValidateUpdate(stmt); err != nil {
		return err
	}
	return e.Gateway.Update(ctx, stmt)
}

// Timeline resolves the graph timeline of prefix.
func (e *Engine) Timeline(ctx context.Context, prefix string) (graphname.Timeline, error) {
	return e.Controller.Timeline(ctx, prefix)
}

// Sweep runs one retention sweep now. It fails with
// retention.ErrSweepInProgress while another sweep is running.
func (e *Engine) Sweep(ctx context.Context) (*retention.Report, error) {
	return e.Scheduler.RunNow(ctx)
}

// SweepWindow runs a one-off sweep with its own window, as the CLI does.
// With dryRun it only lists what would be dropped.
func (e *Engine) SweepWindow(ctx context.Context, window time.Duration, dryRun bool) (*retention.Report, error) {
	cutoff := retention.Cutoff(e.now(), window)
	if dryRun {
		tl, err := e.Sweeper.Expired(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("list expired graphs: %w", err)
		}
		return &retention.Report{Cutoff: cutoff, Expired: tl.Names()}, nil
	}
	r := e.Sweeper.Run(ctx, cutoff)
	e.recordSweep(r, store.TriggerCLI)
	return r, nil
}

// StartRetention starts the background scheduler when retention is enabled.
func (e *Engine) StartRetention(ctx context.Context) error {
	if !e.cfg.Retention.Enabled {
		e.logger.WithField("action", "retention_schedule").Info("retention disabled")
		return nil
	}
	ctx, e.cancel = context.WithCancel(ctx)
	return e.Scheduler.Start(ctx)
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.Scheduler.Stop()
	if e.cancel != nil {
		e.cancel()
	}
}

// Ping checks that the store answers, when the gateway supports it.
func (e *Engine) Ping(ctx context.Context) error {
	if p, ok := e.Gateway.(Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := e.Gateway.Select(ctx, "ASK { }")
	return err
}

// History returns journaled updates, newest first.
func (e *Engine) History(prefix string, limit int) ([]store.UpdateEntry, error) {
	if e.DB == nil {
		return nil, ErrNoJournal
	}
	if prefix != "" {
		prefix = graphname.NormalizePrefix(prefix)
	}
	return e.DB.ListUpdates(prefix, limit)
}

// Sweeps returns journaled sweeps, newest first.
func (e *Engine) Sweeps(limit int) ([]store.SweepEntry, error) {
	if e.DB == nil {
		return nil, ErrNoJournal
	}
	return e.DB.ListSweeps(limit)
}
