package event

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRecorder_Concurrent(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Emit(Event{Kind: KindFetched, Address: "https://www.linkedin.com/posts/x"})
		}()
	}
	wg.Wait()

	if got := r.Count(KindFetched); got != 50 {
		t.Errorf("expected 50 fetched events, got %d", got)
	}
	if got := len(r.Events()); got != 50 {
		t.Errorf("expected 50 events, got %d", got)
	}
}

func TestMulti_SkipsNil(t *testing.T) {
	var a, b Recorder
	s := Multi(&a, nil, &b)
	s.Emit(Event{Kind: KindDiscovered, Message: "found 2"})

	if a.Count(KindDiscovered) != 1 || b.Count(KindDiscovered) != 1 {
		t.Errorf("expected both recorders to receive the event")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) != Discard {
		t.Errorf("expected Discard for nil sink")
	}
	var r Recorder
	if OrDiscard(&r) != Sink(&r) {
		t.Errorf("expected the given sink back")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	s := LogSink(logger)

	s.Emit(Event{Kind: KindFetchFailed, Message: "fetch failed", Address: "https://www.linkedin.com/posts/a"})
	s.Emit(Event{Kind: KindInsufficient, Message: "too short"})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "url=https://www.linkedin.com/posts/a") {
		t.Errorf("expected warn line with url, got %q", out)
	}
	if strings.Contains(out, "too short") {
		t.Errorf("debug-level event should be filtered at info, got %q", out)
	}
}
