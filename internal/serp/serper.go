package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FranksOps/gleaner/pkg/httpclient"
)

// DefaultSerperEndpoint is the Serper Google search endpoint.
const DefaultSerperEndpoint = "https://google.serper.dev/search"

const maxResponseBytes = 2 << 20

// SerperConfig configures the Serper provider.
type SerperConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	// Transport overrides the round tripper, mostly for tests.
	Transport http.RoundTripper
}

// Serper queries https://serper.dev.
type Serper struct {
	apiKey   string
	endpoint string
	client   *httpclient.Client
}

func NewSerper(cfg SerperConfig) (*Serper, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerperEndpoint
	}
	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}
	return &Serper{apiKey: cfg.APIKey, endpoint: cfg.Endpoint, client: client}, nil
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []map[string]any `json:"organic"`
}

// Search sends one POST request and returns the organic results in order.
func (s *Serper) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.apiKey == "" {
		return nil, ErrMissingCredential
	}

	payload, err := json.Marshal(serperRequest{Q: query, Num: limit})
	if err != nil {
		return nil, fmt.Errorf("serp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("serp: create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadBody(resp, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var decoded serperResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("serp: decode response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Organic))
	for _, item := range decoded.Organic {
		results = append(results, Result{
			Link:    stringField(item, "link"),
			Title:   stringField(item, "title"),
			Snippet: stringField(item, "snippet"),
		})
	}
	return results, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
