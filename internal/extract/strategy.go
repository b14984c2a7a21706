package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Strategy recovers body text from a document that has already had its
// script and style blocks removed. ok is false when the strategy found
// nothing, which hands the document to the next strategy in the chain.
type Strategy interface {
	Name() string
	Content(cleaned string) (text string, ok bool)
}

// TruncationMarker is appended to text cut at a strategy's length cap.
const TruncationMarker = "..."

var (
	descriptionRe = regexp.MustCompile(`"description"\s*:\s*"([^"]{20,})"`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
)

// StructuredDescription reads the first embedded "description" field
// (JSON-LD and similar) whose quoted value is at least 20 characters long.
type StructuredDescription struct{}

func (StructuredDescription) Name() string { return "structured_description" }

func (StructuredDescription) Content(cleaned string) (string, bool) {
	m := descriptionRe.FindStringSubmatch(cleaned)
	if m == nil {
		return "", false
	}
	return collapse(m[1]), true
}

// TagStrip removes every tag and keeps the remaining text, cut to MaxLen
// characters with TruncationMarker appended when longer.
type TagStrip struct {
	MaxLen int
}

func (TagStrip) Name() string { return "tag_strip" }

func (s TagStrip) Content(cleaned string) (string, bool) {
	text := collapse(tagRe.ReplaceAllString(cleaned, " "))
	if text == "" {
		return "", false
	}
	return clip(text, s.MaxLen), true
}

// collapse folds every whitespace run into one space and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clip cuts s to max characters and appends TruncationMarker. max <= 0 disables it.
func clip(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}
