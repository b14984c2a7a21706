package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gleaner_search_requests_total",
			Help: "Total number of search requests by outcome",
		},
		[]string{"outcome"},
	)

	SearchLinksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gleaner_search_links_total",
			Help: "Total number of candidate addresses returned by searches",
		},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gleaner_fetch_requests_total",
			Help: "Total number of page fetches by domain and outcome",
		},
		[]string{"domain", "outcome", "blocked_by"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gleaner_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gleaner_fetch_bytes_total",
			Help: "Total bytes of page HTML retrieved",
		},
		[]string{"domain"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gleaner_extractions_total",
			Help: "Total number of extraction attempts by outcome and winning strategy",
		},
		[]string{"outcome", "strategy"},
	)
)

// RecordSearch counts one search request and the links it produced.
func RecordSearch(outcome string, links int) {
	SearchRequestsTotal.WithLabelValues(outcome).Inc()
	SearchLinksTotal.Add(float64(links))
}

// RecordFetch updates the fetch metrics for one page.
func RecordFetch(domain, outcome, blockedBy string, d time.Duration, bytes int) {
	FetchRequestsTotal.WithLabelValues(domain, outcome, blockedBy).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
}

// RecordExtraction counts one extraction attempt. strategy is empty for
// attempts that produced nothing.
func RecordExtraction(outcome, strategy string) {
	ExtractionsTotal.WithLabelValues(outcome, strategy).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
