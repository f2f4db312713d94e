package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/glaciation-heu/timegraph/internal/config"
	"github.com/glaciation-heu/timegraph/internal/memstore"
	"github.com/glaciation-heu/timegraph/internal/metrics"
	"github.com/glaciation-heu/timegraph/internal/rdf"
	"github.com/glaciation-heu/timegraph/internal/retention"
	"github.com/glaciation-heu/timegraph/internal/store"
	"github.com/glaciation-heu/timegraph/internal/version"
)

const vehicleDoc = `{
  "@context": {"ns1": "http://example.org/ns1#"},
  "@id": "urn:ngsi-ld:Vehicle:5FSQC8LARN",
  "ns1:driverSeatLocation": "Right",
  "ns1:speed": 10
}`

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	eng   *Engine
	gw    *memstore.Store
	db    *store.DB
	m     *metrics.Metrics
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	cfg.Retention.DropDelay = 0

	clock := time.UnixMilli(1_700_000_000_000)
	f := &fixture{
		gw:    memstore.New(),
		db:    testDB(t),
		m:     metrics.New(prometheus.NewRegistry()),
		clock: &clock,
	}
	logger, _ := test.NewNullLogger()
	f.eng = New(cfg, f.gw, logger,
		WithJournal(f.db),
		WithMetrics(f.m),
		WithClock(func() time.Time { return *f.clock }),
	)
	return f
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func TestApplyJSONLDBaseThenDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.eng.ApplyJSONLD(ctx, strings.NewReader(vehicleDoc))
	if err != nil {
		t.Fatalf("ApplyJSONLD: %v", err)
	}
	if res.Mode != version.ModeBase {
		t.Errorf("Mode = %s, want base", res.Mode)
	}
	if res.Prefix != "urn:ngsi-ld:Vehicle:5FSQC8LARN/" {
		t.Errorf("Prefix = %q", res.Prefix)
	}

	f.advance(time.Minute)
	changed := strings.Replace(vehicleDoc, `"Right"`, `"Left"`, 1)
	res, err = f.eng.ApplyJSONLD(ctx, strings.NewReader(changed))
	if err != nil {
		t.Fatalf("ApplyJSONLD delta: %v", err)
	}
	if res.Mode != version.ModeDelta || res.Added != 1 || res.Removed != 1 {
		t.Errorf("delta = %s +%d -%d, want delta +1 -1", res.Mode, res.Added, res.Removed)
	}

	history, err := f.eng.History("urn:ngsi-ld:Vehicle:5FSQC8LARN", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(history))
	}
	if history[0].Mode != "delta" || history[0].Status != store.StatusOK {
		t.Errorf("newest entry = %s/%s, want delta/ok", history[0].Mode, history[0].Status)
	}
	if len(history[0].Written) != 3 {
		t.Errorf("Written = %v, want added, removed, temp", history[0].Written)
	}

	if got := testutil.ToFloat64(f.m.UpdatesTotal.WithLabelValues("delta", metrics.StatusOK)); got != 1 {
		t.Errorf("updates_total{delta,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.m.DeltaTriplesTotal.WithLabelValues("added")); got != 1 {
		t.Errorf("delta_triples_total{added} = %v, want 1", got)
	}
}

func TestApplyUnchangedIsJournaled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		f.advance(time.Second)
		if _, err := f.eng.ApplyJSONLD(ctx, strings.NewReader(vehicleDoc)); err != nil {
			t.Fatalf("ApplyJSONLD #%d: %v", i, err)
		}
	}

	n, err := f.db.CountUpdates(store.StatusUnchanged)
	if err != nil {
		t.Fatalf("CountUpdates: %v", err)
	}
	if n != 1 {
		t.Errorf("unchanged updates = %d, want 1", n)
	}
}

func TestApplyRejectsEmptyDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.ApplyDocument(context.Background(), map[string]any{"@id": "urn:x"})
	var empty *rdf.EmptyGraphError
	if !errors.As(err, &empty) {
		t.Fatalf("err = %v, want EmptyGraphError", err)
	}
	if len(f.gw.Updates()) != 0 {
		t.Error("empty document reached the store")
	}
	n, _ := f.db.CountUpdates("")
	if n != 0 {
		t.Errorf("rejected update journaled: %d rows", n)
	}
	if got := testutil.ToFloat64(f.m.UpdatesTotal.WithLabelValues("", metrics.StatusRejected)); got != 1 {
		t.Errorf("updates_total{rejected} = %v, want 1", got)
	}
}

func TestApplyMalformedDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.ApplyJSONLD(context.Background(), strings.NewReader("{not json"))
	var derr *DocumentError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want DocumentError", err)
	}
}

func TestApplyNTriples(t *testing.T) {
	f := newFixture(t)
	doc := "<urn:a> <urn:p> \"1\" .\n<urn:b> <urn:p> <urn:c> .\n"

	res, err := f.eng.ApplyNTriples(context.Background(), "urn:cluster", strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ApplyNTriples: %v", err)
	}
	if res.Triples != 2 {
		t.Errorf("Triples = %d, want 2", res.Triples)
	}
}

func TestFailedUpdateJournaledWithPartialWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.eng.ApplyJSONLD(ctx, strings.NewReader(vehicleDoc)); err != nil {
		t.Fatalf("base: %v", err)
	}

	f.gw.SetFault(func(op, stmt string) error {
		if strings.HasPrefix(stmt, "INSERT") && strings.Contains(stmt, "/temp>") {
			return errors.New("connection reset")
		}
		return nil
	})
	f.advance(time.Minute)
	changed := strings.Replace(vehicleDoc, `"Right"`, `"Left"`, 1)
	if _, err := f.eng.ApplyJSONLD(ctx, strings.NewReader(changed)); err == nil {
		t.Fatal("expected store error")
	}

	history, err := f.eng.History("", 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history[0].Status != store.StatusFailed {
		t.Errorf("Status = %s, want failed", history[0].Status)
	}
	if len(history[0].Written) != 2 {
		t.Errorf("Written = %v, want the two delta graphs", history[0].Written)
	}
	if !strings.Contains(history[0].Error, "/temp>") {
		t.Errorf("Error = %q, want the failing graph named", history[0].Error)
	}
}

func TestQueryAndExecuteValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.eng.Query(ctx, "DROP GRAPH <x>"); err == nil {
		t.Error("Query accepted an update")
	}
	if err := f.eng.Execute(ctx, "SELECT * WHERE { ?s ?p ?o"); err == nil {
		t.Error("Execute accepted a query")
	}
	if err := f.eng.Execute(ctx, "DROP SILENT GRAPH <urn:x/timestamp:1/base>"); err != nil {
		t.Errorf("Execute: %v", err)
	}
	if err := f.eng.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestSweepJournaled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.eng.ApplyJSONLD(ctx, strings.NewReader(vehicleDoc)); err != nil {
		t.Fatalf("ApplyJSONLD: %v", err)
	}

	f.advance(48 * time.Hour)
	dry, err := f.eng.SweepWindow(ctx, retention.DefaultWindow, true)
	if err != nil {
		t.Fatalf("SweepWindow dry run: %v", err)
	}
	if len(dry.Expired) != 1 || len(f.gw.GraphNames()) != 1 {
		t.Fatalf("dry run expired %v and left %v", dry.Expired, f.gw.GraphNames())
	}

	r, err := f.eng.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(r.Dropped) != 1 {
		t.Errorf("Dropped = %v, want the base graph", r.Dropped)
	}

	sweeps, err := f.eng.Sweeps(10)
	if err != nil {
		t.Fatalf("Sweeps: %v", err)
	}
	if len(sweeps) != 1 || sweeps[0].Trigger != store.TriggerManual {
		t.Fatalf("sweeps = %+v, want one manual sweep", sweeps)
	}
	if got := testutil.ToFloat64(f.m.GraphsDroppedTotal); got != 1 {
		t.Errorf("graphs_dropped_total = %v, want 1", got)
	}
}

func TestStartRetentionDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Retention.Enabled = false
	logger, _ := test.NewNullLogger()
	eng := New(cfg, memstore.New(), logger)

	if err := eng.StartRetention(context.Background()); err != nil {
		t.Fatalf("StartRetention: %v", err)
	}
	eng.Stop()

	if _, err := eng.History("", 10); !errors.Is(err, ErrNoJournal) {
		t.Errorf("History without journal = %v, want ErrNoJournal", err)
	}
}
