package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/gleaner/internal/bypass"
	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/metrics"
	"github.com/FranksOps/gleaner/pkg/httpclient"
	"golang.org/x/sync/errgroup"
)

// DefaultUserAgent is the identifying header sent with every page request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	DefaultTimeout      = 15 * time.Second
	DefaultConcurrency  = 8
	DefaultMaxBodyBytes = 4 << 20
)

// ErrUnexpectedStatus is wrapped by outcomes whose final status was not 200.
var ErrUnexpectedStatus = errors.New("unexpected status")

// FetchConfig configures a Fetcher. Zero values take the defaults above.
type FetchConfig struct {
	// Timeout bounds each page request on its own.
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	// Concurrency caps the number of requests in flight during FetchAll.
	Concurrency  int
	MaxBodyBytes int64
	// Transport is the round tripper used for every request, e.g. a
	// fingerprint.Transport. Nil uses the net/http default.
	Transport http.RoundTripper
	// Detectors label failed responses; nil uses bypass.DefaultDetectors.
	Detectors []bypass.Detector
	Sink      event.Sink
	Logger    *slog.Logger
}

// Outcome is the result of retrieving one address. It is Retrieved when Err
// is nil and Unavailable otherwise.
type Outcome struct {
	Address    string
	HTML       string
	StatusCode int
	// BlockedBy names the protection recognised on a failed response.
	BlockedBy string
	Duration  time.Duration
	Err       error
}

// Retrieved reports whether the page body is usable.
func (o Outcome) Retrieved() bool { return o.Err == nil }

// Fetcher retrieves post pages. A single client is shared by all requests so
// connections are pooled across a batch.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	sink   event.Sink
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Transport:    cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		sink:   event.OrDiscard(cfg.Sink),
		logger: logger,
	}, nil
}

// FetchAll retrieves every address with at most Concurrency requests in
// flight. The result is aligned index-for-index with addresses; a failure
// only affects its own slot.
func (f *Fetcher) FetchAll(ctx context.Context, addresses []string) []Outcome {
	out := make([]Outcome, len(addresses))
	if len(addresses) == 0 {
		return out
	}

	var g errgroup.Group
	g.SetLimit(f.config.Concurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			out[i] = f.Fetch(ctx, addr)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Fetch retrieves a single address. It never returns an error directly;
// failures are carried in Outcome.Err.
func (f *Fetcher) Fetch(ctx context.Context, address string) Outcome {
	start := time.Now()
	o := f.fetch(ctx, address)
	o.Duration = time.Since(start)

	status := "ok"
	if !o.Retrieved() {
		status = "unavailable"
		msg := fmt.Sprintf("fetch failed: %v", o.Err)
		if o.BlockedBy != "" {
			msg = fmt.Sprintf("fetch blocked by %s: %v", o.BlockedBy, o.Err)
		}
		f.sink.Emit(event.Event{Kind: event.KindFetchFailed, Message: msg, Address: address})
	} else {
		f.sink.Emit(event.Event{Kind: event.KindFetched, Message: "page retrieved", Address: address})
	}
	f.logger.Debug("fetched", "url", address, "status", o.StatusCode, "outcome", status, "duration", o.Duration)

	metrics.RecordFetch(hostOf(address), status, o.BlockedBy, o.Duration, len(o.HTML))
	return o
}

func (f *Fetcher) fetch(ctx context.Context, address string) Outcome {
	o := Outcome{Address: address}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		o.Err = fmt.Errorf("failed to create request: %w", err)
		return o
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		o.Err = fmt.Errorf("request failed: %w", err)
		return o
	}
	defer resp.Body.Close()

	o.StatusCode = resp.StatusCode
	body, err := httpclient.ReadBody(resp, f.config.MaxBodyBytes)

	if resp.StatusCode != http.StatusOK {
		finalURL := address
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		o.BlockedBy = bypass.Classify(bypass.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			FinalURL:   finalURL,
		}, f.config.Detectors)
		o.Err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		return o
	}
	if err != nil {
		o.Err = err
		return o
	}

	o.HTML = string(body)
	return o
}

func hostOf(address string) string {
	if u, err := url.Parse(address); err == nil {
		return u.Hostname()
	}
	return ""
}
