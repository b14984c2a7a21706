package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/gleaner/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "gleaner.db")
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC() // SQLite stores UTC well

	older := &storage.Row{
		ID:        "sqlite1",
		RunID:     "run-1",
		Topic:     "GMO labeling",
		Address:   "https://www.linkedin.com/posts/a",
		Title:     "First post",
		Content:   "first post content",
		Strategy:  "structured_description",
		Language:  "eng",
		CreatedAt: now.Add(-2 * time.Hour),
	}
	newer := &storage.Row{
		ID:        "sqlite2",
		RunID:     "run-2",
		Topic:     "seed patents",
		Address:   "https://www.linkedin.com/posts/b",
		Title:     "Second post",
		Content:   "second post content",
		Strategy:  "tag_strip",
		CreatedAt: now.Add(-1 * time.Hour),
	}

	for _, r := range []*storage.Row{older, newer} {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save row %s: %v", r.ID, err)
		}
	}

	results, err := b.Query(ctx, storage.Filter{Topic: "GMO labeling"})
	if err != nil {
		t.Fatalf("Failed to query rows: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(results))
	}

	got := results[0]
	if got.ID != older.ID || got.RunID != older.RunID || got.Address != older.Address {
		t.Errorf("Expected %+v, got %+v", older, got)
	}
	if got.Title != older.Title || got.Content != older.Content || got.Strategy != older.Strategy {
		t.Errorf("Expected %+v, got %+v", older, got)
	}
	if got.Language != "eng" {
		t.Errorf("Expected language eng, got %q", got.Language)
	}
	if got.CreatedAt.Unix() != older.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", older.CreatedAt, got.CreatedAt)
	}

	// Newest first
	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all rows: %v", err)
	}
	if len(all) != 2 || all[0].ID != "sqlite2" {
		t.Fatalf("Expected newest row first, got %d rows", len(all))
	}

	byRun, err := b.Query(ctx, storage.Filter{RunID: "run-2"})
	if err != nil {
		t.Fatalf("Failed to query by run: %v", err)
	}
	if len(byRun) != 1 || byRun[0].ID != "sqlite2" {
		t.Fatalf("Expected run-2 row, got %d rows", len(byRun))
	}

	since := now.Add(-90 * time.Minute)
	recent, err := b.Query(ctx, storage.Filter{Since: &since})
	if err != nil {
		t.Fatalf("Failed to query with Since: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "sqlite2" {
		t.Fatalf("Expected 1 recent row, got %d", len(recent))
	}

	paged, err := b.Query(ctx, storage.Filter{Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query with Offset: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "sqlite1" {
		t.Fatalf("Expected offset to skip newest row, got %d rows", len(paged))
	}

	limited, err := b.Query(ctx, storage.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query with Limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("Expected 1 row with limit, got %d", len(limited))
	}
}
