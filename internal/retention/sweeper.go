// Package retention drops timestamped graphs older than a retention window
// and asks the store to compact afterwards.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/sparql"
)

const (
	DefaultWindow    = 24 * time.Hour
	DefaultInterval  = 24 * time.Hour
	DefaultTimeout   = 10 * time.Minute
	DefaultDropDelay = 200 * time.Millisecond
	MinInterval      = time.Minute

	// DefaultCompactTimeout bounds the compaction request, which runs even
	// when the sweep's own deadline has passed.
	DefaultCompactTimeout = 5 * time.Minute
)

// Cutoff returns the epoch-millis boundary below which graphs expire.
func Cutoff(now time.Time, window time.Duration) int64 {
	return now.Add(-window).UnixMilli()
}

// Report summarizes one sweep. Err aggregates every drop and compaction
// failure; a listing failure is recorded in ListErr and the sweep goes on
// with nothing to drop.
type Report struct {
	Cutoff    int64            `json:"cutoff"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Listed    int              `json:"listed"`
	Skipped   int              `json:"skipped"`
	Expired   []graphname.Name `json:"expired"`
	Dropped   []graphname.Name `json:"dropped"`
	Failed    []graphname.Name `json:"failed,omitempty"`
	Batched   bool             `json:"batched"`
	Compacted bool             `json:"compacted"`
	ListErr   error            `json:"-"`
	Err       error            `json:"-"`
}

// Duration is End - Start.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// OK reports a sweep with no failures at all.
func (r *Report) OK() bool { return r.ListErr == nil && r.Err == nil }

// Sweeper runs retention sweeps against a gateway.
type Sweeper struct {
	gw        sparql.Gateway
	logger    logrus.FieldLogger
	batch     bool
	dropDelay time.Duration
	compact   time.Duration
	now       func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithBatching toggles combining all drops into one multi-statement update
// when the gateway supports it. On by default.
func WithBatching(on bool) SweeperOption {
	return func(s *Sweeper) { s.batch = on }
}

// WithDropDelay sets the pause between single-graph drops.
func WithDropDelay(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.dropDelay = d }
}

// WithCompactTimeout sets the bound of the compaction request.
func WithCompactTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.compact = d }
}

// WithSweepClock replaces the clock stamping reports and scheduled cutoffs.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a Sweeper.
func NewSweeper(gw sparql.Gateway, logger logrus.FieldLogger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		gw:        gw,
		logger:    logger.WithField("action", "retention_sweep"),
		batch:     true,
		dropDelay: DefaultDropDelay,
		compact:   DefaultCompactTimeout,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sweep drops every timestamped graph older than cutoff and returns the
// graphs it dropped. The error aggregates all failures.
func (s *Sweeper) Sweep(ctx context.Context, cutoff int64) ([]graphname.Name, error) {
	r := s.Run(ctx, cutoff)
	var result *multierror.Error
	if r.ListErr != nil {
		result = multierror.Append(result, r.ListErr)
	}
	if r.Err != nil {
		result = multierror.Append(result, r.Err)
	}
	return r.Dropped, result.ErrorOrNil()
}

// Run performs one sweep. It never stops early: a failed listing leaves
// nothing to drop, a failed drop does not keep the others from running, and
// compaction is requested in every case.
func (s *Sweeper) Run(ctx context.Context, cutoff int64) *Report {
	r := &Report{Cutoff: cutoff, Start: s.now()}
	log := s.logger.WithField("cutoff", cutoff)

	expired := s.expired(ctx, log, r)
	r.Expired = expired.Names()

	var errs *multierror.Error
	if len(expired) > 0 {
		if s.batch && sparql.SupportsMultiStatement(s.gw) {
			errs = s.dropBatch(ctx, log, r, expired)
		} else {
			errs = s.dropEach(ctx, log, r, expired)
		}
	}

	// compaction still runs when the sweep ran out of time during drops
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compact)
	defer cancel()
	if err := s.gw.Compact(cctx); err != nil {
		log.WithError(err).Error("compaction failed")
		errs = multierror.Append(errs, err)
	} else {
		r.Compacted = true
	}

	r.Err = errs.ErrorOrNil()
	r.End = s.now()

	log.WithFields(logrus.Fields{
		"listed":    r.Listed,
		"skipped":   r.Skipped,
		"dropped":   len(r.Dropped),
		"failed":    len(r.Failed),
		"compacted": r.Compacted,
	}).Info("sweep finished")
	return r
}

// Expired lists the graphs a sweep at cutoff would drop, without dropping
// anything. Unlike Run it reports a listing failure.
func (s *Sweeper) Expired(ctx context.Context, cutoff int64) (graphname.Timeline, error) {
	r := &Report{Cutoff: cutoff}
	tl := s.expired(ctx, s.logger.WithField("cutoff", cutoff), r)
	return tl, r.ListErr
}

func (s *Sweeper) expired(ctx context.Context, log logrus.FieldLogger, r *Report) graphname.Timeline {
	res, err := s.gw.Select(ctx, sparql.ListGraphsQuery(""))
	if err != nil {
		log.WithError(err).Error("listing graphs failed, continuing with an empty listing")
		r.ListErr = err
		return nil
	}
	names := res.Column(sparql.GraphVar)
	r.Listed = len(names)

	tl, bad := graphname.BuildTimeline(names)
	for _, e := range bad {
		log.WithError(e).Warn("skipping malformed graph name")
	}
	r.Skipped = len(bad)
	return tl.Before(r.Cutoff)
}

func (s *Sweeper) dropBatch(ctx context.Context, log logrus.FieldLogger, r *Report, expired graphname.Timeline) *multierror.Error {
	r.Batched = true
	stmts := make([]string, len(expired))
	for i, p := range expired {
		stmts[i] = sparql.DropGraphStatement(p.Name)
	}
	if err := s.gw.Update(ctx, sparql.JoinStatements(stmts)); err != nil {
		log.WithError(err).WithField("graphs", len(expired)).Error("batched drop failed")
		r.Failed = expired.Names()
		return multierror.Append(nil, err)
	}
	r.Dropped = expired.Names()
	return nil
}

func (s *Sweeper) dropEach(ctx context.Context, log logrus.FieldLogger, r *Report, expired graphname.Timeline) *multierror.Error {
	limit := rate.Inf
	if s.dropDelay > 0 {
		limit = rate.Every(s.dropDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var errs *multierror.Error
	for _, p := range expired {
		if err := limiter.Wait(ctx); err != nil {
			// context gone: record the rest as failed, compaction still runs
			errs = multierror.Append(errs, err)
			r.Failed = append(r.Failed, p.Name)
			continue
		}
		if err := s.gw.Update(ctx, sparql.DropGraphStatement(p.Name)); err != nil {
			log.WithError(err).WithField("graph", p.Name).Error("drop failed")
			errs = multierror.Append(errs, fmt.Errorf("drop %s: %w", p.Name, err))
			r.Failed = append(r.Failed, p.Name)
			continue
		}
		r.Dropped = append(r.Dropped, p.Name)
	}
	return errs
}
