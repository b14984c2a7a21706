package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERPER_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Search.SiteFilter != "site:linkedin.com/posts" {
		t.Errorf("unexpected site filter %q", cfg.Search.SiteFilter)
	}
	if cfg.Search.DomainMarker != "linkedin.com" {
		t.Errorf("unexpected domain marker %q", cfg.Search.DomainMarker)
	}
	if cfg.Fetch.Timeout != 15*time.Second {
		t.Errorf("expected 15s fetch timeout, got %s", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Fetch.Concurrency)
	}
	if cfg.Extract.MinContent != 80 || cfg.Extract.MaxContent != 2000 {
		t.Errorf("unexpected extract bounds %+v", cfg.Extract)
	}
	if cfg.Search.APIKey != "" {
		t.Errorf("expected no API key by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gleaner.yaml")
	content := `
search:
  max_results: 25
  dedupe: response
fetch:
  timeout: 5s
  concurrency: 3
  tls_profile: chrome
  proxies: ["http://10.0.0.1:3128"]
extract:
  opengraph: true
  selectors: [".feed-shared-update-v2__description", "article"]
storage:
  backend: sqlite
  dsn: gleaner.db
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.MaxResults != 25 || cfg.Search.Dedupe != "response" {
		t.Errorf("unexpected search config %+v", cfg.Search)
	}
	if cfg.Fetch.Timeout != 5*time.Second || cfg.Fetch.Concurrency != 3 || cfg.Fetch.TLSProfile != "chrome" {
		t.Errorf("unexpected fetch config %+v", cfg.Fetch)
	}
	if !cfg.Extract.OpenGraph || len(cfg.Extract.Selectors) != 2 {
		t.Errorf("unexpected extract config %+v", cfg.Extract)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DSN != "gleaner.db" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if lvl, _ := cfg.Log.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", lvl)
	}
	if len(cfg.Fetch.Proxies) != 1 || cfg.Fetch.Proxies[0] != "http://10.0.0.1:3128" {
		t.Errorf("unexpected proxies %v", cfg.Fetch.Proxies)
	}
	// Untouched keys keep their defaults.
	if cfg.Fetch.ProxyMaxFailures != 3 {
		t.Errorf("expected default proxy max failures, got %d", cfg.Fetch.ProxyMaxFailures)
	}
	if cfg.Fetch.MaxRedirects != 10 {
		t.Errorf("expected default max redirects, got %d", cfg.Fetch.MaxRedirects)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERPER_API_KEY", "from-serper-env")
	t.Setenv("GLEANER_FETCH_CONCURRENCY", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.APIKey != "from-serper-env" {
		t.Errorf("expected API key from SERPER_API_KEY, got %q", cfg.Search.APIKey)
	}
	if cfg.Fetch.Concurrency != 2 {
		t.Errorf("expected concurrency from env, got %d", cfg.Fetch.Concurrency)
	}

	t.Setenv("GLEANER_SEARCH_API_KEY", "from-prefixed-env")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.APIKey != "from-prefixed-env" {
		t.Errorf("expected prefixed variable to win, got %q", cfg.Search.APIKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Search:  SearchConfig{MaxResults: 10, Dedupe: "none"},
			Fetch:   FetchConfig{Concurrency: 8, TLSProfile: "go"},
			Storage: StorageConfig{Backend: "none"},
			Log:     LogConfig{Level: "info"},
		}
	}

	cases := map[string]func(c *Config){
		"negative max results": func(c *Config) { c.Search.MaxResults = -1 },
		"unknown dedupe":       func(c *Config) { c.Search.Dedupe = "sometimes" },
		"zero concurrency":     func(c *Config) { c.Fetch.Concurrency = 0 },
		"unknown tls profile":  func(c *Config) { c.Fetch.TLSProfile = "netscape" },
		"negative cooldown":    func(c *Config) { c.Fetch.ProxyCooldown = -time.Second },
		"negative redirects":   func(c *Config) { c.Fetch.MaxRedirects = -1 },
		"unknown backend":      func(c *Config) { c.Storage.Backend = "mongo" },
		"backend without dsn":  func(c *Config) { c.Storage.Backend = "csv" },
		"bad log level":        func(c *Config) { c.Log.Level = "loud" },
		"metrics port":         func(c *Config) { c.Metrics.Port = 70000 },
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline should validate: %v", err)
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", name)
			continue
		}
		if !strings.HasPrefix(err.Error(), "config: invalid") {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}
