// Package analyzer measures how closely a post's text follows its topic.
package analyzer

import (
	"strings"
	"unicode"
)

// TermMatch counts the case-insensitive occurrences of one term in a text
// and keeps the sentences that contain it.
type TermMatch struct {
	Term      string   `json:"term"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences"`
}

// Terms splits a topic into distinct lowercase search terms. Words shorter
// than two letters are dropped; a quoted phrase is kept whole.
func Terms(topic string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if len([]rune(t)) < 2 || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for i, part := range strings.Split(topic, `"`) {
		if i%2 == 1 {
			add(part)
			continue
		}
		for _, w := range strings.FieldsFunc(part, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
		}) {
			add(w)
		}
	}
	return out
}

// FindTermMatches scans content for each term and returns one TermMatch per
// term found, in term order.
func FindTermMatches(content string, terms []string) []TermMatch {
	if content == "" || len(terms) == 0 {
		return nil
	}

	lower := strings.ToLower(content)
	sentences := splitIntoSentences(content)
	lowerSentences := make([]string, len(sentences))
	for i, s := range sentences {
		lowerSentences[i] = strings.ToLower(s)
	}

	results := make([]TermMatch, 0, len(terms))
	for _, term := range terms {
		lt := strings.ToLower(term)
		if lt == "" {
			continue
		}
		n := strings.Count(lower, lt)
		if n == 0 {
			continue
		}
		var matched []string
		for i, ls := range lowerSentences {
			if strings.Contains(ls, lt) {
				matched = append(matched, sentences[i])
			}
		}
		results = append(results, TermMatch{Term: term, Count: n, Sentences: matched})
	}
	return results
}

// Relevance summarises a text against a set of terms.
type Relevance struct {
	// Mentions is the total number of term occurrences.
	Mentions int `json:"mentions"`
	// Coverage is the share of terms that occur at least once.
	Coverage float64 `json:"coverage"`
	// Highlight is the first sentence mentioning the most terms.
	Highlight string `json:"highlight,omitempty"`
}

// Score computes the Relevance of content to terms.
func Score(content string, terms []string) Relevance {
	var r Relevance
	matches := FindTermMatches(content, terms)
	if len(matches) == 0 {
		return r
	}

	hits := make(map[string]int)
	var order []string
	for _, m := range matches {
		r.Mentions += m.Count
		for _, s := range m.Sentences {
			if hits[s] == 0 {
				order = append(order, s)
			}
			hits[s]++
		}
	}
	r.Coverage = float64(len(matches)) / float64(len(terms))

	best := 0
	for _, s := range order {
		if hits[s] > best {
			best = hits[s]
			r.Highlight = s
		}
	}
	return r
}

// splitIntoSentences splits on '.', '!' and '?' followed by whitespace or
// the end of text, and on line breaks. Empty sentences are dropped.
func splitIntoSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}
