// Package extract turns a fetched post page into a title and readable body
// text using an ordered chain of heuristics.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// ErrInsufficient means the page produced no text or too little to be useful,
// which usually indicates a login wall, a block page or an empty post.
var ErrInsufficient = errors.New("extract: insufficient content")

const (
	DefaultMinContent = 80
	DefaultMaxContent = 2000
	DefaultMinTitle   = 5
)

// Record is the text recovered from one page.
type Record struct {
	Address string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// Strategy names the heuristic that produced Content.
	Strategy string `json:"strategy"`
}

var (
	scriptRe = regexp.MustCompile(`(?i)<script[\s\S]*?</script>`)
	styleRe  = regexp.MustCompile(`(?i)<style[\s\S]*?</style>`)
	titleRe  = regexp.MustCompile(`(?i)<title[^>]*>([^<]*)</title>`)
)

// Config tunes an Extractor. Zero values take the defaults above.
type Config struct {
	MinContent int
	MaxContent int
	// Strategies run before the default chain, in order.
	Strategies []Strategy
}

// Extractor applies its strategies in order; the first that yields text wins.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	strategies []Strategy
	minContent int
	minTitle   int
}

// New builds an Extractor whose chain is cfg.Strategies followed by
// StructuredDescription and TagStrip.
func New(cfg Config) *Extractor {
	if cfg.MinContent <= 0 {
		cfg.MinContent = DefaultMinContent
	}
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = DefaultMaxContent
	}

	chain := make([]Strategy, 0, len(cfg.Strategies)+2)
	chain = append(chain, cfg.Strategies...)
	chain = append(chain, StructuredDescription{}, TagStrip{MaxLen: cfg.MaxContent})

	return &Extractor{
		strategies: chain,
		minContent: cfg.MinContent,
		minTitle:   DefaultMinTitle,
	}
}

// Strategies returns the names of the chain in evaluation order.
func (e *Extractor) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract recovers a Record from rawHTML. It returns ErrInsufficient when
// the winning text is shorter than the configured minimum.
func (e *Extractor) Extract(rawHTML, address string) (Record, error) {
	cleaned := Clean(rawHTML)

	var content, strategy string
	for _, s := range e.strategies {
		if text, ok := s.Content(cleaned); ok {
			content, strategy = text, s.Name()
			break
		}
	}

	if n := utf8.RuneCountInString(content); n < e.minContent {
		if strategy == "" {
			return Record{}, fmt.Errorf("%w: no text found", ErrInsufficient)
		}
		return Record{}, fmt.Errorf("%w: %d characters via %s", ErrInsufficient, n, strategy)
	}

	return Record{
		Address:  address,
		Title:    e.title(rawHTML, address),
		Content:  content,
		Strategy: strategy,
	}, nil
}

// title returns the first <title> long enough to keep. Short ones, such as
// inline SVG labels, are skipped.
func (e *Extractor) title(rawHTML, address string) string {
	for _, m := range titleRe.FindAllStringSubmatch(rawHTML, -1) {
		if t := collapse(m[1]); utf8.RuneCountInString(t) >= e.minTitle {
			return t
		}
	}
	return address
}

// Clean removes script and style blocks, replacing each with a space.
func Clean(rawHTML string) string {
	cleaned := scriptRe.ReplaceAllString(rawHTML, " ")
	return styleRe.ReplaceAllString(cleaned, " ")
}
