// Package serp discovers LinkedIn post addresses through a web search API.
package serp

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingCredential is returned by providers that were constructed without
// an API key. No request is made in that case.
var ErrMissingCredential = errors.New("serp: missing API credential")

// Result is one organic search hit. Link is empty when the provider returned
// a non-string link.
type Result struct {
	Link    string `json:"link"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Provider abstracts a search engine that returns ordered organic results for
// a query. The limit parameter is a hint for how many results to return.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// StatusError reports a non-2xx response from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("serp: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("serp: unexpected status %d: %s", e.StatusCode, e.Body)
}
