package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:8080" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:8080", cfg.ListenAddr())
	}
	if cfg.StoreURL() != "http://localhost:3030" {
		t.Errorf("StoreURL = %q", cfg.StoreURL())
	}
	if cfg.Retention.Window.Std() != 24*time.Hour {
		t.Errorf("Retention.Window = %s, want 24h", cfg.Retention.Window)
	}
	if cfg.Concurrency.SerializeUpdates {
		t.Error("SerializeUpdates should default to false")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timegraph.yaml")
	data := `
server:
  port: 9000
store:
  host: fuseki.glaciation
  port: 0
  dataset: ds
  timeout: 5s
retention:
  window: 1h
  interval: 10m
  batch: false
concurrency:
  serialize_updates: true
log:
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Bind != "0.0.0.0" {
		t.Errorf("Server.Bind = %q, want default kept", cfg.Server.Bind)
	}
	if cfg.StoreURL() != "http://fuseki.glaciation" {
		t.Errorf("StoreURL = %q, want no port", cfg.StoreURL())
	}
	if cfg.Store.Timeout.Std() != 5*time.Second {
		t.Errorf("Store.Timeout = %s, want 5s", cfg.Store.Timeout)
	}
	if cfg.Retention.Interval.Std() != 10*time.Minute {
		t.Errorf("Retention.Interval = %s, want 10m", cfg.Retention.Interval)
	}
	if cfg.Retention.Batch {
		t.Error("Retention.Batch = true, want false")
	}
	if !cfg.Retention.Enabled {
		t.Error("Retention.Enabled lost its default")
	}
	if !cfg.Concurrency.SerializeUpdates {
		t.Error("SerializeUpdates = false, want true")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("retention:\n  window: a day\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"TIMEGRAPH_STORE_HOST":                    "10.0.0.7",
		"TIMEGRAPH_STORE_PORT":                    "3031",
		"TIMEGRAPH_RETENTION_WINDOW":              "48h",
		"TIMEGRAPH_CONCURRENCY_SERIALIZE_UPDATES": "true",
	}
	cfg := Default()
	if err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Store.Host != "10.0.0.7" || cfg.Store.Port != 3031 {
		t.Errorf("store = %s:%d", cfg.Store.Host, cfg.Store.Port)
	}
	if cfg.Retention.Window.Std() != 48*time.Hour {
		t.Errorf("Retention.Window = %s, want 48h", cfg.Retention.Window)
	}
	if !cfg.Concurrency.SerializeUpdates {
		t.Error("SerializeUpdates not overridden")
	}
}

func TestEnvOverrideErrors(t *testing.T) {
	env := map[string]string{
		"TIMEGRAPH_STORE_PORT":        "three",
		"TIMEGRAPH_RETENTION_ENABLED": "sometimes",
	}
	cfg := Default()
	if err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err == nil {
		t.Fatal("expected error for malformed overrides")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Store.Backend = "virtuoso" }},
		{"missing host", func(c *Config) { c.Store.Host = "" }},
		{"missing dataset", func(c *Config) { c.Store.Dataset = "" }},
		{"zero window", func(c *Config) { c.Retention.Window = 0 }},
		{"short interval", func(c *Config) { c.Retention.Interval = Duration(time.Second) }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}

	cfg := Default()
	cfg.Store.Backend = "memory"
	cfg.Store.Host = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory backend without host: %v", err)
	}
}
