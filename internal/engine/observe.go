package engine

import (
	"errors"
	"time"

	"github.com/glaciation-heu/timegraph/internal/graphname"
	"github.com/glaciation-heu/timegraph/internal/metrics"
	"github.com/glaciation-heu/timegraph/internal/rdf"
	"github.com/glaciation-heu/timegraph/internal/retention"
	"github.com/glaciation-heu/timegraph/internal/sparql"
	"github.com/glaciation-heu/timegraph/internal/store"
	"github.com/glaciation-heu/timegraph/internal/version"
)

func (e *Engine) observeUpdate(u version.Update, res *version.Result, err error, elapsed time.Duration) {
	status := updateStatus(res, err)

	if e.Metrics != nil {
		mode := ""
		if res != nil {
			mode = string(res.Mode)
		}
		e.Metrics.UpdatesTotal.WithLabelValues(mode, status).Inc()
		e.Metrics.UpdateDuration.Observe(elapsed.Seconds())
		if status == metrics.StatusOK && res.Mode == version.ModeDelta {
			e.Metrics.DeltaTriplesTotal.WithLabelValues(string(graphname.RoleAdded)).Add(float64(res.Added))
			e.Metrics.DeltaTriplesTotal.WithLabelValues(string(graphname.RoleRemoved)).Add(float64(res.Removed))
		}
	}

	// rejected inputs never reached the store and are not journaled
	if e.DB == nil || status == metrics.StatusRejected {
		return
	}
	entry := &store.UpdateEntry{
		Prefix:     graphname.NormalizePrefix(u.Prefix),
		Status:     status,
		Triples:    u.Triples.Len(),
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  e.now().UnixMilli(),
	}
	if status == metrics.StatusFailed {
		entry.Status = store.StatusFailed
		entry.Error = err.Error()
	}
	if res != nil {
		entry.Timestamp = res.Timestamp
		entry.Mode = string(res.Mode)
		entry.Previous = string(res.Previous)
		entry.Written = names(res.Written)
		entry.Dropped = names(res.Dropped)
		entry.Added = res.Added
		entry.Removed = res.Removed
	}
	if jerr := e.DB.RecordUpdate(entry); jerr != nil {
		e.logger.WithField("action", "journal_update").WithError(jerr).Error("journal write failed")
	}
}

func updateStatus(res *version.Result, err error) string {
	var (
		empty *rdf.EmptyGraphError
		inval *sparql.ValidationError
		doc   *DocumentError
		pfx   *graphname.InvalidPrefixError
	)
	switch {
	case err == nil && res != nil && res.Unchanged:
		return metrics.StatusUnchanged
	case err == nil:
		return metrics.StatusOK
	case errors.As(err, &empty), errors.As(err, &inval), errors.As(err, &doc), errors.As(err, &pfx),
		errors.Is(err, version.ErrInvalidTriple):
		return metrics.StatusRejected
	default:
		return metrics.StatusFailed
	}
}

func (e *Engine) observeSweep(r *retention.Report, scheduled bool) {
	trigger := store.TriggerManual
	if scheduled {
		trigger = store.TriggerSchedule
	}
	e.recordSweep(r, trigger)
}

func (e *Engine) recordSweep(r *retention.Report, trigger string) {
	if e.Metrics != nil {
		status := metrics.StatusOK
		if !r.OK() {
			status = metrics.StatusFailed
		}
		e.Metrics.SweepsTotal.WithLabelValues(status).Inc()
		e.Metrics.GraphsDroppedTotal.Add(float64(len(r.Dropped)))
		e.Metrics.SweepDuration.Observe(r.Duration().Seconds())
	}
	if e.DB == nil {
		return
	}
	entry := &store.SweepEntry{
		Trigger:   trigger,
		Cutoff:    r.Cutoff,
		Listed:    r.Listed,
		Skipped:   r.Skipped,
		Batched:   r.Batched,
		Compacted: r.Compacted,
		Dropped:   names(r.Dropped),
		Failed:    names(r.Failed),
		StartedAt: r.Start.UnixMilli(),
		EndedAt:   r.End.UnixMilli(),
	}
	if r.ListErr != nil {
		entry.ListError = r.ListErr.Error()
	}
	if r.Err != nil {
		entry.Error = r.Err.Error()
	}
	if err := e.DB.RecordSweep(entry); err != nil {
		e.logger.WithField("action", "journal_sweep").WithError(err).Error("journal write failed")
	}
}

func names(ns []graphname.Name) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}
