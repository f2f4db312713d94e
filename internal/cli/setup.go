package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/glaciation-heu/timegraph/internal/config"
	"github.com/glaciation-heu/timegraph/internal/engine"
	"github.com/glaciation-heu/timegraph/internal/memstore"
	"github.com/glaciation-heu/timegraph/internal/metrics"
	"github.com/glaciation-heu/timegraph/internal/sparql"
	"github.com/glaciation-heu/timegraph/internal/store"
)

// runtime bundles what a command needs to talk to the store.
type runtime struct {
	cfg    config.Config
	logger *logrus.Logger
	db     *store.DB
	eng    *engine.Engine
}

func (rt *runtime) Close() {
	rt.eng.Stop()
	if rt.db != nil {
		rt.db.Close()
	}
}

// setup loads the config and builds an engine over the configured store.
// m may be nil.
func setup(m *metrics.Metrics) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger}
	opts := []engine.Option{}
	if m != nil {
		opts = append(opts, engine.WithMetrics(m))
	}
	if cfg.Journal.Enabled {
		rt.db, err = openJournal(cfg.Journal)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithJournal(rt.db))
	}

	rt.eng = engine.New(cfg, newGateway(cfg), logger, opts...)
	return rt, nil
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// newGateway returns the configured store backend. A positive resolve TTL
// re-resolves the Fuseki host through DNS.
func newGateway(cfg config.Config) sparql.Gateway {
	if cfg.Store.Backend == "memory" {
		return memstore.New()
	}

	var resolver sparql.Resolver = sparql.StaticResolver(cfg.StoreURL())
	if ttl := cfg.Store.ResolveTTL.Std(); ttl > 0 {
		resolver = sparql.NewDNSResolver(cfg.Store.Scheme, cfg.Store.Host, cfg.Store.Port, ttl)
	}
	return sparql.NewFuseki(resolver, sparql.FusekiOptions{
		Dataset:  cfg.Store.Dataset,
		User:     cfg.Store.User,
		Password: cfg.Store.Password,
		Timeout:  cfg.Store.Timeout.Std(),
	})
}

func openJournal(cfg config.JournalConfig) (*store.DB, error) {
	path := cfg.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve journal path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return db, nil
}
