package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FranksOps/gleaner/internal/dedupe"
	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/metrics"
)

const (
	DefaultSiteFilter   = "site:linkedin.com/posts"
	DefaultDomainMarker = "linkedin.com"
)

// DedupeMode controls how repeated addresses are handled.
type DedupeMode int

const (
	// DedupeNone passes duplicates through unchanged.
	DedupeNone DedupeMode = iota
	// DedupeResponse drops repeats within a single response.
	DedupeResponse
	// DedupeSeen drops addresses the configured store has seen before.
	DedupeSeen
)

// ParseDedupeMode maps "none", "response" and "seen" to a DedupeMode.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return DedupeNone, nil
	case "response":
		return DedupeResponse, nil
	case "seen":
		return DedupeSeen, nil
	}
	return DedupeNone, fmt.Errorf("serp: unknown dedupe mode %q", s)
}

// Config configures an Agent. Zero values take the defaults above.
type Config struct {
	SiteFilter   string
	DomainMarker string
	Dedupe       DedupeMode
	// Seen backs DedupeSeen. A process-local store is used when nil.
	Seen   dedupe.Store
	Sink   event.Sink
	Logger *slog.Logger
}

// Agent turns a topic into an ordered list of post addresses.
type Agent struct {
	provider Provider
	config   Config
	sink     event.Sink
	logger   *slog.Logger
}

func NewAgent(p Provider, cfg Config) *Agent {
	if cfg.SiteFilter == "" {
		cfg.SiteFilter = DefaultSiteFilter
	}
	if cfg.DomainMarker == "" {
		cfg.DomainMarker = DefaultDomainMarker
	}
	if cfg.Dedupe == DedupeSeen && cfg.Seen == nil {
		cfg.Seen = dedupe.NewMemory()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		provider: p,
		config:   cfg,
		sink:     event.OrDiscard(cfg.Sink),
		logger:   logger,
	}
}

// Query builds the search string sent for a topic.
func (a *Agent) Query(topic string) string {
	return a.config.SiteFilter + " " + topic
}

// Search returns up to maxResults addresses containing the domain marker, in
// the order the provider ranked them. Failures are reported through the
// event sink and yield an empty result.
func (a *Agent) Search(ctx context.Context, topic string, maxResults int) []string {
	if maxResults <= 0 {
		return []string{}
	}

	query := a.Query(topic)
	a.logger.Debug("searching", "query", query, "max_results", maxResults)

	results, err := a.provider.Search(ctx, query, maxResults)
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			a.sink.Emit(event.Event{Kind: event.KindConfigMissing, Message: "search API key is not configured"})
			metrics.RecordSearch("missing_credential", 0)
		} else {
			a.sink.Emit(event.Event{Kind: event.KindSearchFailed, Message: fmt.Sprintf("search failed: %v", err)})
			metrics.RecordSearch("error", 0)
		}
		return []string{}
	}

	links := a.filter(ctx, results, maxResults)
	metrics.RecordSearch("ok", len(links))
	if len(links) > 0 {
		a.sink.Emit(event.Event{
			Kind:    event.KindDiscovered,
			Message: fmt.Sprintf("found %d posts for %q", len(links), topic),
			Count:   len(links),
		})
	}
	return links
}

func (a *Agent) filter(ctx context.Context, results []Result, maxResults int) []string {
	links := make([]string, 0, min(maxResults, len(results)))
	var inResponse map[string]struct{}
	if a.config.Dedupe == DedupeResponse {
		inResponse = make(map[string]struct{}, len(results))
	}

	for _, r := range results {
		if len(links) >= maxResults {
			break
		}
		if r.Link == "" || !strings.Contains(r.Link, a.config.DomainMarker) {
			continue
		}

		switch a.config.Dedupe {
		case DedupeResponse:
			if _, ok := inResponse[r.Link]; ok {
				continue
			}
			inResponse[r.Link] = struct{}{}
		case DedupeSeen:
			first, err := a.config.Seen.FirstSeen(ctx, r.Link)
			if err != nil {
				a.logger.Warn("dedupe lookup failed, keeping address", "url", r.Link, "error", err)
			} else if !first {
				continue
			}
		}

		links = append(links, r.Link)
	}
	return links
}
