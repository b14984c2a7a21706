package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FranksOps/gleaner/internal/fingerprint"
	"github.com/FranksOps/gleaner/internal/serp"
	"github.com/FranksOps/gleaner/pkg/proxy"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Extract ExtractConfig `mapstructure:"extract"`
	Storage StorageConfig `mapstructure:"storage"`
	Dedupe  DedupeConfig  `mapstructure:"dedupe"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type SearchConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Endpoint     string        `mapstructure:"endpoint"`
	SiteFilter   string        `mapstructure:"site_filter"`
	DomainMarker string        `mapstructure:"domain_marker"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// Dedupe is one of none, response or seen.
	Dedupe string `mapstructure:"dedupe"`
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	Concurrency  int           `mapstructure:"concurrency"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	TLSProfile   string        `mapstructure:"tls_profile"`
	// Proxies and the lines of ProxyFile form one rotation; empty means
	// direct connections.
	Proxies   []string `mapstructure:"proxies"`
	ProxyFile string   `mapstructure:"proxy_file"`
	// ProxyMaxFailures in a row bench a proxy for ProxyCooldown.
	ProxyMaxFailures int           `mapstructure:"proxy_max_failures"`
	ProxyCooldown    time.Duration `mapstructure:"proxy_cooldown"`
}

type ExtractConfig struct {
	MinContent int      `mapstructure:"min_content"`
	MaxContent int      `mapstructure:"max_content"`
	OpenGraph  bool     `mapstructure:"opengraph"`
	Selectors  []string `mapstructure:"selectors"`
}

type StorageConfig struct {
	// Backend is one of none, json, csv, sqlite or postgres.
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

type DedupeConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File enables a rotated JSON log in addition to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	// Port serves /metrics when positive.
	Port int `mapstructure:"port"`
}

// EnvPrefix prefixes every environment override, e.g. GLEANER_FETCH_TIMEOUT.
const EnvPrefix = "GLEANER"

// Load reads configuration from path, or from config.yaml in ./configs, .
// and $HOME/.gleaner when path is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".gleaner"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("search.api_key", EnvPrefix+"_SEARCH_API_KEY", "SERPER_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", serp.DefaultSerperEndpoint)
	v.SetDefault("search.site_filter", serp.DefaultSiteFilter)
	v.SetDefault("search.domain_marker", serp.DefaultDomainMarker)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.dedupe", "none")

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.concurrency", 8)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.max_body_bytes", 4<<20)
	v.SetDefault("fetch.tls_profile", string(fingerprint.ProfileGo))
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.proxy_max_failures", proxy.DefaultMaxFailures)
	v.SetDefault("fetch.proxy_cooldown", proxy.DefaultCooldown)

	v.SetDefault("extract.min_content", 80)
	v.SetDefault("extract.max_content", 2000)
	v.SetDefault("extract.opengraph", false)
	v.SetDefault("extract.selectors", []string{})

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("dedupe.redis_addr", "")
	v.SetDefault("dedupe.redis_password", "")
	v.SetDefault("dedupe.redis_db", 0)
	v.SetDefault("dedupe.key", "gleaner:seen")
	v.SetDefault("dedupe.ttl", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.port", 0)
}

// StorageBackends lists the accepted storage.backend values.
var StorageBackends = []string{"none", "json", "csv", "sqlite", "postgres"}

// Validate rejects values the rest of the program cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.max_results must not be negative, got %d", c.Search.MaxResults))
	}
	if c.Search.Timeout < 0 {
		errs = append(errs, fmt.Errorf("search.timeout must not be negative, got %s", c.Search.Timeout))
	}
	if _, err := serp.ParseDedupeMode(c.Search.Dedupe); err != nil {
		errs = append(errs, fmt.Errorf("search.dedupe: %w", err))
	}

	if c.Fetch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must not be negative, got %s", c.Fetch.Timeout))
	}
	if c.Fetch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency))
	}
	if c.Fetch.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_body_bytes must not be negative, got %d", c.Fetch.MaxBodyBytes))
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.TLSProfile); err != nil {
		errs = append(errs, fmt.Errorf("fetch.tls_profile: %w", err))
	}
	if c.Fetch.ProxyMaxFailures < 0 || c.Fetch.ProxyCooldown < 0 {
		errs = append(errs, fmt.Errorf("fetch proxy limits must not be negative"))
	}
	if c.Fetch.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("fetch max_redirects must not be negative, got %d", c.Fetch.MaxRedirects))
	}

	if c.Extract.MinContent < 0 || c.Extract.MaxContent < 0 {
		errs = append(errs, fmt.Errorf("extract lengths must not be negative"))
	}

	switch c.Storage.Backend {
	case "", "none":
	case "json", "csv", "sqlite", "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for backend %q", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be one of %s, got %q", strings.Join(StorageBackends, ", "), c.Storage.Backend))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SlogLevel parses Level; an empty level means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
