package event

import (
	"context"
	"log/slog"
	"sync"
)

// Kind classifies an Event.
type Kind string

const (
	// KindConfigMissing is emitted when a required credential or setting is absent.
	KindConfigMissing Kind = "config_missing"
	// KindSearchFailed covers transport, status and decoding failures of the search stage.
	KindSearchFailed Kind = "search_failed"
	// KindDiscovered reports how many addresses a search produced.
	KindDiscovered Kind = "discovered"
	// KindFetchFailed is emitted once per address that could not be retrieved.
	KindFetchFailed Kind = "fetch_failed"
	// KindFetched is emitted once per address that was retrieved.
	KindFetched Kind = "fetched"
	// KindInsufficient marks a page dropped because it yielded too little text.
	KindInsufficient Kind = "insufficient"
	// KindParseFailed marks a page dropped because extraction failed unexpectedly.
	KindParseFailed Kind = "parse_failed"
	// KindExtracted reports a record produced for an address.
	KindExtracted Kind = "extracted"
)

// Event is a structured notification raised by the search and scrape stages.
// Address is empty for events that are not tied to a single page. Count
// carries the number of addresses on KindDiscovered.
type Event struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Address string `json:"address,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// Func adapts a plain function to a Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans every event out to all non-nil sinks in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Recorder keeps every event it receives in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// LogSink writes events to a slog.Logger. Failures log at warn, discovery and
// extraction at info, per-page drops and fetch successes at debug.
func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(e Event) {
		attrs := []slog.Attr{slog.String("kind", string(e.Kind))}
		if e.Address != "" {
			attrs = append(attrs, slog.String("url", e.Address))
		}
		logger.LogAttrs(context.Background(), Level(e.Kind), e.Message, attrs...)
	})
}

// Level maps an event kind to the slog level it is logged at.
func Level(k Kind) slog.Level {
	switch k {
	case KindConfigMissing, KindSearchFailed, KindFetchFailed, KindParseFailed:
		return slog.LevelWarn
	case KindDiscovered, KindExtracted:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
