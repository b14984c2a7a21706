package storage

import (
	"context"
	"strings"
	"time"

	"github.com/FranksOps/gleaner/internal/extract"
	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// Row is one extracted post as persisted by a Backend.
type Row struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Topic     string    `json:"topic"`
	Address   string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Strategy  string    `json:"strategy"`
	Language  string    `json:"language,omitempty"` // ISO 639-3, e.g. "eng"
	CreatedAt time.Time `json:"created_at"`
}

// NewRow builds a Row for a record produced during run runID.
func NewRow(runID, topic string, rec extract.Record) *Row {
	return &Row{
		ID:        uuid.NewString(),
		RunID:     runID,
		Topic:     topic,
		Address:   rec.Address,
		Title:     rec.Title,
		Content:   rec.Content,
		Strategy:  rec.Strategy,
		Language:  DetectLanguage(rec.Title + " " + rec.Content),
		CreatedAt: time.Now().UTC(),
	}
}

// DetectLanguage returns the ISO 639-3 code of text, or "" for blank input.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return whatlanggo.Detect(text).Lang.Iso6393()
}

// Filter allows querying for specific Rows.
type Filter struct {
	Topic   string
	RunID   string
	Address string
	Since   *time.Time
	Limit   int
	Offset  int
}

// Match reports whether r passes every field set on f. Limit and Offset are
// not considered.
func (f Filter) Match(r *Row) bool {
	if f.Topic != "" && r.Topic != f.Topic {
		return false
	}
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Address != "" && r.Address != f.Address {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page orders rows newest first and applies Offset and Limit. rows must be in
// insertion order.
func (f Filter) Page(rows []*Row) []*Row {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			return []*Row{}
		}
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return rows
}

// Backend defines the interface for storing and querying extracted posts.
type Backend interface {
	Save(ctx context.Context, row *Row) error
	Query(ctx context.Context, filter Filter) ([]*Row, error)
	Close() error
}
