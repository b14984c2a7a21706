package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/FranksOps/gleaner/internal/config"
	"github.com/FranksOps/gleaner/internal/dedupe"
	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/extract"
	"github.com/FranksOps/gleaner/internal/fingerprint"
	"github.com/FranksOps/gleaner/internal/pipeline"
	"github.com/FranksOps/gleaner/internal/scraper"
	"github.com/FranksOps/gleaner/internal/serp"
	"github.com/FranksOps/gleaner/internal/storage"
	"github.com/FranksOps/gleaner/internal/storage/csvbackend"
	"github.com/FranksOps/gleaner/internal/storage/jsonbackend"
	"github.com/FranksOps/gleaner/internal/storage/postgres"
	"github.com/FranksOps/gleaner/internal/storage/sqlite"
	"github.com/FranksOps/gleaner/pkg/proxy"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newAgent builds the search agent. The closer releases the dedupe store.
func newAgent(ctx context.Context, cfg *config.Config, sink event.Sink, logger *slog.Logger) (*serp.Agent, io.Closer, error) {
	provider, err := serp.NewSerper(serp.SerperConfig{
		APIKey:   cfg.Search.APIKey,
		Endpoint: cfg.Search.Endpoint,
		Timeout:  cfg.Search.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	mode, err := serp.ParseDedupeMode(cfg.Search.Dedupe)
	if err != nil {
		return nil, nil, err
	}

	var seen dedupe.Store
	var closer io.Closer = nopCloser{}
	if mode == serp.DedupeSeen && cfg.Dedupe.RedisAddr != "" {
		r, err := dedupe.NewRedis(ctx, dedupe.RedisConfig{
			Addr:     cfg.Dedupe.RedisAddr,
			Password: cfg.Dedupe.RedisPassword,
			DB:       cfg.Dedupe.RedisDB,
			Key:      cfg.Dedupe.Key,
			TTL:      cfg.Dedupe.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		seen = r
		closer = r
	}

	agent := serp.NewAgent(provider, serp.Config{
		SiteFilter:   cfg.Search.SiteFilter,
		DomainMarker: cfg.Search.DomainMarker,
		Dedupe:       mode,
		Seen:         seen,
		Sink:         sink,
		Logger:       logger,
	})
	return agent, closer, nil
}

func newFetcher(cfg *config.Config, sink event.Sink, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.TLSProfile)
	if err != nil {
		return nil, err
	}
	transport, err := fingerprint.Transport(profile)
	if err != nil {
		return nil, err
	}

	pool := proxy.NewPool(proxy.Config{
		MaxFailures: cfg.Fetch.ProxyMaxFailures,
		Cooldown:    cfg.Fetch.ProxyCooldown,
	})
	if err := pool.Add(cfg.Fetch.Proxies...); err != nil {
		return nil, err
	}
	if cfg.Fetch.ProxyFile != "" {
		if err := pool.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, err
		}
	}
	if pool.Len() > 0 {
		if transport, err = proxy.NewTransport(pool, transport); err != nil {
			return nil, err
		}
		logger.Info("routing page requests through proxies", "count", pool.Len())
	}

	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		Concurrency:  cfg.Fetch.Concurrency,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Transport:    transport,
		Sink:         sink,
		Logger:       logger,
	})
}

func newExtractor(cfg config.ExtractConfig) *extract.Extractor {
	var strategies []extract.Strategy
	if len(cfg.Selectors) > 0 {
		strategies = append(strategies, extract.Selector{
			Selectors: cfg.Selectors,
			MinLen:    cfg.MinContent,
			MaxLen:    cfg.MaxContent,
		})
	}
	if cfg.OpenGraph {
		strategies = append(strategies, extract.OpenGraph{
			MinLen: cfg.MinContent,
			MaxLen: cfg.MaxContent,
		})
	}
	return extract.New(extract.Config{
		MinContent: cfg.MinContent,
		MaxContent: cfg.MaxContent,
		Strategies: strategies,
	})
}

func newScraper(cfg *config.Config, sink event.Sink, logger *slog.Logger) (*pipeline.Scraper, error) {
	fetcher, err := newFetcher(cfg, sink, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewScraper(fetcher, newExtractor(cfg.Extract), pipeline.ScraperConfig{
		Sink:   sink,
		Logger: logger,
	}), nil
}

// openBackend opens the configured storage. It returns nil for backend none.
func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "json":
		return jsonbackend.New(cfg.DSN)
	case "csv":
		return csvbackend.New(cfg.DSN)
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
