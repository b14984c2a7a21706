package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/gleaner/internal/config"
	"github.com/FranksOps/gleaner/internal/event"
	"github.com/FranksOps/gleaner/internal/extract"
	"github.com/FranksOps/gleaner/internal/pipeline"
	"github.com/FranksOps/gleaner/internal/scraper"
)

const postBody = `Shipping a Go service to production taught our team a lot about
context cancellation, bounded worker pools and structured logging with slog.`

// isolate points config discovery and HOME at empty directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("GLEANER_SEARCH_API_KEY", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCmd(t *testing.T) {
	isolate(t)

	serper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"organic":[
			{"link":"https://www.linkedin.com/posts/a"},
			{"link":"https://example.com/b"},
			{"link":"https://www.linkedin.com/posts/c"},
			{"link":"https://www.linkedin.com/posts/d"}
		]}`)
	}))
	defer serper.Close()

	t.Setenv("SERPER_API_KEY", "test-key")
	t.Setenv("GLEANER_SEARCH_ENDPOINT", serper.URL)

	out, err := execute(t, "search", "golang", "--max", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.Fields(out)
	want := []string{"https://www.linkedin.com/posts/a", "https://www.linkedin.com/posts/c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("address %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSearchCmd_MissingKeyPrintsNothing(t *testing.T) {
	isolate(t)

	out, err := execute(t, "search", "golang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestScrapeCmd(t *testing.T) {
	isolate(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><head><title>Post</title></head><body><p>%s</p></body></html>", postBody)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	list := filepath.Join(t.TempDir(), "addresses.txt")
	content := "# posts\n" + srv.URL + "/gone\n\n"
	if err := os.WriteFile(list, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write address list: %v", err)
	}

	out, err := execute(t, "scrape", "--no-progress", "--file", list, srv.URL+"/ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d: %q", len(lines), out)
	}
	var rec extract.Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if rec.Address != srv.URL+"/ok" {
		t.Errorf("unexpected address %s", rec.Address)
	}
	if !strings.Contains(rec.Content, "bounded worker pools") {
		t.Errorf("unexpected content %q", rec.Content)
	}
}

func TestScrapeCmd_NoAddresses(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "scrape"); err == nil {
		t.Fatal("expected an error without addresses")
	}
}

func TestQueryCmd_NeedsBackend(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "query"); err == nil {
		t.Fatal("expected an error with storage backend none")
	}
}

func TestQueryCmd_JSONBackend(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "posts.ndjson")
	store, err := openBackend(context.Background(), config.StorageConfig{Backend: "json", DSN: path})
	if err != nil {
		t.Fatalf("failed to open backend: %v", err)
	}
	p := &pipeline.Pipeline{
		Searcher: staticSearcher{"https://www.linkedin.com/posts/a"},
		Scraper:  pipeline.NewScraper(staticFetcher{}, extract.New(extract.Config{}), pipeline.ScraperConfig{}),
		Store:    store,
	}
	if _, err := p.Discover(context.Background(), "golang", 5); err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	store.Close()

	t.Setenv("GLEANER_STORAGE_BACKEND", "json")
	t.Setenv("GLEANER_STORAGE_DSN", path)

	out, err := execute(t, "query", "--topic", "golang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"url":"https://www.linkedin.com/posts/a"`) {
		t.Errorf("expected stored post in output, got %q", out)
	}

	out, err = execute(t, "query", "--topic", "rust")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected no rows for another topic, got %q", out)
	}
}

type staticSearcher []string

func (s staticSearcher) Search(ctx context.Context, topic string, maxResults int) []string {
	return s
}

type staticFetcher struct{}

func (staticFetcher) FetchAll(ctx context.Context, addrs []string) []scraper.Outcome {
	out := make([]scraper.Outcome, len(addrs))
	for i, a := range addrs {
		out[i] = scraper.Outcome{Address: a, HTML: "<html><body>" + postBody + "</body></html>", StatusCode: http.StatusOK}
	}
	return out
}

func TestOpenBackend(t *testing.T) {
	store, err := openBackend(context.Background(), config.StorageConfig{Backend: "none"})
	if err != nil || store != nil {
		t.Errorf("expected nil backend for none, got %v, %v", store, err)
	}

	if _, err := openBackend(context.Background(), config.StorageConfig{Backend: "mongo"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestReadAddresses(t *testing.T) {
	in := "  https://a  \n# comment\n\nhttps://b\n"
	got, err := readAddresses(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "https://a" || got[1] != "https://b" {
		t.Errorf("unexpected addresses %v", got)
	}
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gleaner.log")
	var console bytes.Buffer

	logger, closer, err := setupLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &console)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible", "topic", "golang")
	if err := closer.Close(); err != nil {
		t.Fatalf("failed to close log file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !bytes.Equal(data, console.Bytes()) {
		t.Errorf("file and console output differ")
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", data, err)
	}
	if entry["service"] != "gleaner" || entry["msg"] != "visible" || entry["topic"] != "golang" {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestSetupLogger_BadLevel(t *testing.T) {
	if _, _, err := setupLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestProgressSink(t *testing.T) {
	p := newProgressSink(&bytes.Buffer{}, 3, "fetching")
	sink := event.Multi(event.Discard, p)

	sink.Emit(event.Event{Kind: event.KindFetched})
	sink.Emit(event.Event{Kind: event.KindExtracted})
	sink.Emit(event.Event{Kind: event.KindFetchFailed})

	if got := p.Count(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestProgressSink_ResizesToDiscovered(t *testing.T) {
	p := newProgressSink(&bytes.Buffer{}, 10, "fetching")

	p.Emit(event.Event{Kind: event.KindDiscovered, Message: "found 2 posts", Count: 2})
	if got := p.Total(); got != 2 {
		t.Fatalf("expected total 2 after discovery, got %d", got)
	}

	p.Emit(event.Event{Kind: event.KindFetched})
	p.Emit(event.Event{Kind: event.KindFetchFailed})
	if got := p.Count(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	if err := writeReport(&bytes.Buffer{}, "pdf", &pipeline.Result{}); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestScheduleParser(t *testing.T) {
	for _, expr := range []string{"@every 1h", "@hourly", "*/15 * * * *"} {
		if _, err := scheduleParser.Parse(expr); err != nil {
			t.Errorf("%q: unexpected error: %v", expr, err)
		}
	}
	if _, err := scheduleParser.Parse("soon"); err == nil {
		t.Error("expected an error for an invalid expression")
	}
}
