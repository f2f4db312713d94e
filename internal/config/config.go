package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all timegraph configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Retention   RetentionConfig   `yaml:"retention"`
	Journal     JournalConfig     `yaml:"journal"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type StoreConfig struct {
	Backend    string   `yaml:"backend"` // "fuseki" or "memory"
	Scheme     string   `yaml:"scheme"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"` // 0 omits the port from the URL
	Dataset    string   `yaml:"dataset"`
	User       string   `yaml:"user"`
	Password   string   `yaml:"password"`
	Timeout    Duration `yaml:"timeout"`
	ResolveTTL Duration `yaml:"resolve_ttl"` // 0 disables DNS re-resolution
}

type RetentionConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Window    Duration `yaml:"window"`
	Interval  Duration `yaml:"interval"`
	Timeout   Duration `yaml:"timeout"`
	Batch     bool     `yaml:"batch"`
	DropDelay Duration `yaml:"drop_delay"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // resolved at runtime via store.DefaultDBPath() when empty
}

type ConcurrencyConfig struct {
	SerializeUpdates bool     `yaml:"serialize_updates"`
	UpdateTimeout    Duration `yaml:"update_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Duration is a time.Duration read from YAML as a string like "24h".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Backend: "fuseki",
			Scheme:  "http",
			Host:    "localhost",
			Port:    3030,
			Dataset: "slice",
			Timeout: Duration(30 * time.Second),
		},
		Retention: RetentionConfig{
			Enabled:   true,
			Window:    Duration(24 * time.Hour),
			Interval:  Duration(24 * time.Hour),
			Timeout:   Duration(10 * time.Minute),
			Batch:     true,
			DropDelay: Duration(200 * time.Millisecond),
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Concurrency: ConcurrencyConfig{
			UpdateTimeout: Duration(time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies TIMEGRAPH_* environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup("TIMEGRAPH_" + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup("TIMEGRAPH_" + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("TIMEGRAPH_%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	dur := func(key string, dst *Duration) error {
		if v, ok := lookup("TIMEGRAPH_" + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("TIMEGRAPH_%s: %w", key, err)
			}
			*dst = Duration(d)
		}
		return nil
	}
	flag := func(key string, dst *bool) error {
		if v, ok := lookup("TIMEGRAPH_" + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("TIMEGRAPH_%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}

	str("SERVER_BIND", &c.Server.Bind)
	str("STORE_BACKEND", &c.Store.Backend)
	str("STORE_SCHEME", &c.Store.Scheme)
	str("STORE_HOST", &c.Store.Host)
	str("STORE_DATASET", &c.Store.Dataset)
	str("STORE_USER", &c.Store.User)
	str("STORE_PASSWORD", &c.Store.Password)
	str("JOURNAL_PATH", &c.Journal.Path)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(
		num("SERVER_PORT", &c.Server.Port),
		num("STORE_PORT", &c.Store.Port),
		dur("STORE_TIMEOUT", &c.Store.Timeout),
		dur("STORE_RESOLVE_TTL", &c.Store.ResolveTTL),
		flag("RETENTION_ENABLED", &c.Retention.Enabled),
		dur("RETENTION_WINDOW", &c.Retention.Window),
		dur("RETENTION_INTERVAL", &c.Retention.Interval),
		dur("RETENTION_TIMEOUT", &c.Retention.Timeout),
		flag("RETENTION_BATCH", &c.Retention.Batch),
		dur("RETENTION_DROP_DELAY", &c.Retention.DropDelay),
		flag("JOURNAL_ENABLED", &c.Journal.Enabled),
		flag("CONCURRENCY_SERIALIZE_UPDATES", &c.Concurrency.SerializeUpdates),
		dur("CONCURRENCY_UPDATE_TIMEOUT", &c.Concurrency.UpdateTimeout),
	)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Store.Backend != "fuseki" && c.Store.Backend != "memory":
		return fmt.Errorf("store.backend %q: want fuseki or memory", c.Store.Backend)
	case c.Store.Backend == "fuseki" && c.Store.Host == "":
		return errors.New("store.host is required for the fuseki backend")
	case c.Store.Backend == "fuseki" && c.Store.Dataset == "":
		return errors.New("store.dataset is required for the fuseki backend")
	case c.Store.Port < 0 || c.Store.Port > 65535:
		return fmt.Errorf("store.port %d out of range", c.Store.Port)
	case c.Store.Timeout < 0:
		return errors.New("store.timeout must not be negative")
	case c.Retention.Window <= 0:
		return errors.New("retention.window must be positive")
	case c.Retention.Enabled && c.Retention.Interval.Std() < time.Minute:
		return fmt.Errorf("retention.interval %s below the 1m minimum", c.Retention.Interval)
	case c.Retention.DropDelay < 0:
		return errors.New("retention.drop_delay must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// StoreURL returns the base URL of the Fuseki server, without the dataset.
func (c *Config) StoreURL() string {
	if c.Store.Port == 0 {
		return fmt.Sprintf("%s://%s", c.Store.Scheme, c.Store.Host)
	}
	return fmt.Sprintf("%s://%s:%d", c.Store.Scheme, c.Store.Host, c.Store.Port)
}
