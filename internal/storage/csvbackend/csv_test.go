package csvbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/gleaner/internal/storage"
)

func TestCSVBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "gleaner.csv")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	row1 := &storage.Row{
		ID:        "csv1",
		RunID:     "run-1",
		Topic:     "GMO labeling",
		Address:   "https://www.linkedin.com/posts/csv1",
		Title:     "Commas, \"quotes\"",
		Content:   "multi-line\ncontent, with commas",
		Strategy:  "tag_strip",
		Language:  "eng",
		CreatedAt: now.Add(-2 * time.Hour),
	}
	row2 := &storage.Row{
		ID:        "csv2",
		RunID:     "run-2",
		Topic:     "seed patents",
		Address:   "https://www.linkedin.com/posts/csv2",
		Title:     "Second",
		Content:   "second",
		Strategy:  "structured_description",
		CreatedAt: now.Add(-1 * time.Hour),
	}

	if err := b.Save(ctx, row1); err != nil {
		t.Fatalf("Failed to save row 1: %v", err)
	}
	if err := b.Save(ctx, row2); err != nil {
		t.Fatalf("Failed to save row 2: %v", err)
	}

	byTopic, err := b.Query(ctx, storage.Filter{Topic: "GMO labeling"})
	if err != nil {
		t.Fatalf("Failed to query by topic: %v", err)
	}
	if len(byTopic) != 1 {
		t.Fatalf("Expected 1 result for topic filter, got %d", len(byTopic))
	}
	got := byTopic[0]
	if got.Title != row1.Title || got.Content != row1.Content || got.Language != "eng" {
		t.Errorf("Expected %+v, got %+v", row1, got)
	}
	if !got.CreatedAt.Equal(row1.CreatedAt) {
		t.Errorf("Expected CreatedAt %v, got %v", row1.CreatedAt, got.CreatedAt)
	}

	past := now.Add(-90 * time.Minute)
	resultsSince, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query by Since: %v", err)
	}
	if len(resultsSince) != 1 || resultsSince[0].ID != "csv2" {
		t.Fatalf("Expected only csv2 for Since filter")
	}

	resultsAll, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(resultsAll) != 2 || resultsAll[0].ID != "csv2" {
		t.Fatalf("Expected 2 rows with csv2 first")
	}

	resultsLimit, err := b.Query(ctx, storage.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query limit: %v", err)
	}
	if len(resultsLimit) != 1 || resultsLimit[0].ID != "csv1" {
		t.Errorf("Expected csv1 for offset 1")
	}
}

func TestCSVBackend_HeaderWrittenOnce(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "gleaner.csv")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := New(filePath)
		if err != nil {
			t.Fatalf("Failed to open CSV backend: %v", err)
		}
		if err := b.Save(ctx, &storage.Row{ID: "row", CreatedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		b.Close()
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if n := strings.Count(string(data), "id,run_id,topic"); n != 1 {
		t.Errorf("Expected header once, found %d times", n)
	}
}

func TestCSVBackend_EmptyFile(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "gleaner.csv"))
	if err != nil {
		t.Fatalf("Failed to create CSV backend: %v", err)
	}
	defer b.Close()

	rows, err := b.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
}
