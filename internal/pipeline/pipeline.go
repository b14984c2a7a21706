package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/gleaner/internal/extract"
	"github.com/FranksOps/gleaner/internal/storage"
	"github.com/google/uuid"
)

// Searcher turns a topic into ordered post addresses.
type Searcher interface {
	Search(ctx context.Context, topic string, maxResults int) []string
}

// Result is everything one Discover call produced.
type Result struct {
	Topic     string           `json:"topic"`
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Addresses []string         `json:"addresses"`
	Records   []extract.Record `json:"records"`
	Stats     Stats            `json:"stats"`
}

// Pipeline runs search then scrape for a topic and optionally persists the
// records it extracted.
type Pipeline struct {
	Searcher Searcher
	Scraper  *Scraper
	// Store is optional; nil skips persistence.
	Store  storage.Backend
	Logger *slog.Logger
}

// Discover searches for topic, scrapes the addresses found and saves the
// resulting records. Search and scrape failures only shrink the result; an
// error is returned for missing components or failed saves.
func (p *Pipeline) Discover(ctx context.Context, topic string, maxResults int) (*Result, error) {
	if p.Searcher == nil {
		return nil, fmt.Errorf("pipeline: searcher is nil")
	}
	if p.Scraper == nil {
		return nil, fmt.Errorf("pipeline: scraper is nil")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{
		Topic:     topic,
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	// Stage 1: search
	res.Addresses = p.Searcher.Search(ctx, topic, maxResults)

	// Stage 2: fetch and extract
	res.Records, res.Stats = p.Scraper.RunWithStats(ctx, res.Addresses)
	res.Duration = time.Since(res.StartedAt)

	logger.Info("discovery finished",
		"topic", topic,
		"run_id", res.RunID,
		"addresses", len(res.Addresses),
		"records", len(res.Records),
		"duration", res.Duration,
	)

	if p.Store == nil {
		return res, nil
	}

	var errs []error
	for _, rec := range res.Records {
		if err := p.Store.Save(ctx, storage.NewRow(res.RunID, topic, rec)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return res, fmt.Errorf("pipeline: save records: %w", err)
	}
	return res, nil
}
