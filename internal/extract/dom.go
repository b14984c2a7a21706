package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// Selector parses the document and returns the text of the first CSS
// selector that matches at least MinLen characters. It is opt-in; the
// default chain stays regex based.
type Selector struct {
	Selectors []string
	MinLen    int
	MaxLen    int
}

func (Selector) Name() string { return "selector" }

func (s Selector) Content(cleaned string) (string, bool) {
	if len(s.Selectors) == 0 {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return "", false
	}
	for _, sel := range s.Selectors {
		text := collapse(doc.Find(sel).First().Text())
		if text != "" && utf8.RuneCountInString(text) >= s.MinLen {
			return clip(text, s.MaxLen), true
		}
	}
	return "", false
}

// OpenGraph returns the og:description meta value when it is at least
// MinLen characters long.
type OpenGraph struct {
	MinLen int
	MaxLen int
}

func (OpenGraph) Name() string { return "opengraph" }

func (o OpenGraph) Content(cleaned string) (string, bool) {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(cleaned)); err != nil {
		return "", false
	}
	text := collapse(og.Description)
	if text == "" || utf8.RuneCountInString(text) < o.MinLen {
		return "", false
	}
	return clip(text, o.MaxLen), true
}
