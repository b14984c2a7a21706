package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/extract"
	"github.com/FranksOps/gleaner/internal/metrics"
	"github.com/FranksOps/gleaner/internal/scraper"
)

// PageFetcher retrieves a batch of addresses. The result must be aligned
// index-for-index with the input.
type PageFetcher interface {
	FetchAll(ctx context.Context, addresses []string) []scraper.Outcome
}

// Extractor turns raw HTML into a record.
type Extractor interface {
	Extract(rawHTML, address string) (extract.Record, error)
}

// Stats counts what happened to each requested address.
type Stats struct {
	Requested    int            `json:"requested"`
	Retrieved    int            `json:"retrieved"`
	Unavailable  int            `json:"unavailable"`
	Insufficient int            `json:"insufficient"`
	Failed       int            `json:"failed"`
	Extracted    int            `json:"extracted"`
	ByStrategy   map[string]int `json:"by_strategy,omitempty"`
}

// ScraperConfig holds the optional collaborators of a Scraper.
type ScraperConfig struct {
	Sink   event.Sink
	Logger *slog.Logger
}

// Scraper fetches a batch of post addresses and extracts a record from each
// page that yields enough text.
type Scraper struct {
	fetcher   PageFetcher
	extractor Extractor
	sink      event.Sink
	logger    *slog.Logger
}

func NewScraper(f PageFetcher, e Extractor, cfg ScraperConfig) *Scraper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		fetcher:   f,
		extractor: e,
		sink:      event.OrDiscard(cfg.Sink),
		logger:    logger,
	}
}

// Run returns the records that survived fetching and extraction, in input
// order.
func (s *Scraper) Run(ctx context.Context, addresses []string) []extract.Record {
	records, _ := s.RunWithStats(ctx, addresses)
	return records
}

// RunWithStats is Run plus per-outcome counts.
func (s *Scraper) RunWithStats(ctx context.Context, addresses []string) ([]extract.Record, Stats) {
	stats := Stats{Requested: len(addresses), ByStrategy: map[string]int{}}
	records := []extract.Record{}
	if len(addresses) == 0 {
		return records, stats
	}

	outcomes := s.fetcher.FetchAll(ctx, addresses)

	for i, addr := range addresses {
		if i >= len(outcomes) || !outcomes[i].Retrieved() {
			stats.Unavailable++
			continue
		}
		stats.Retrieved++

		rec, err := s.extractOne(outcomes[i].HTML, addr)
		switch {
		case err == nil:
			records = append(records, rec)
			stats.Extracted++
			stats.ByStrategy[rec.Strategy]++
			metrics.RecordExtraction("extracted", rec.Strategy)
			s.sink.Emit(event.Event{
				Kind:    event.KindExtracted,
				Message: fmt.Sprintf("extracted %d characters via %s", utf8.RuneCountInString(rec.Content), rec.Strategy),
				Address: addr,
			})
		case errors.Is(err, extract.ErrInsufficient):
			stats.Insufficient++
			metrics.RecordExtraction("insufficient", "")
			s.sink.Emit(event.Event{Kind: event.KindInsufficient, Message: "not enough readable text", Address: addr})
		default:
			stats.Failed++
			metrics.RecordExtraction("failed", "")
			s.sink.Emit(event.Event{Kind: event.KindParseFailed, Message: err.Error(), Address: addr})
		}
	}

	s.logger.Debug("scrape finished",
		"requested", stats.Requested,
		"retrieved", stats.Retrieved,
		"extracted", stats.Extracted,
	)
	return records, stats
}

// extractOne isolates a single page so a panicking extractor only drops
// that page.
func (s *Scraper) extractOne(raw, address string) (rec extract.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()
	return s.extractor.Extract(raw, address)
}
