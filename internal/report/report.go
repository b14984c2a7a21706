package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"sort"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/gleaner/internal/analyzer"
	"github.com/FranksOps/gleaner/internal/pipeline"
	"github.com/FranksOps/gleaner/internal/storage"
)

const excerptLen = 160

// Post is the per-record line of a report.
type Post struct {
	Address  string `json:"url"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Strategy string `json:"strategy"`
	Language string `json:"language,omitempty"`
	// Mentions counts topic terms in the title and content.
	Mentions  int    `json:"mentions"`
	Highlight string `json:"highlight,omitempty"`
}

// Summary contains aggregated figures about one discovery run.
type Summary struct {
	Topic        string         `json:"topic"`
	RunID        string         `json:"run_id"`
	StartTime    time.Time      `json:"start_time"`
	Duration     time.Duration  `json:"duration"`
	Addresses    int            `json:"addresses"`
	Retrieved    int            `json:"retrieved"`
	Unavailable  int            `json:"unavailable"`
	Insufficient int            `json:"insufficient"`
	Failed       int            `json:"failed"`
	Extracted    int            `json:"extracted"`
	OnTopic      int            `json:"on_topic"`
	ByStrategy   map[string]int `json:"by_strategy"`
	ByLanguage   map[string]int `json:"by_language"`
	Posts        []Post         `json:"posts"`
}

// GenerateSummary turns a pipeline result into report figures.
func GenerateSummary(res *pipeline.Result) Summary {
	s := Summary{
		ByStrategy: make(map[string]int),
		ByLanguage: make(map[string]int),
		Posts:      []Post{},
	}
	if res == nil {
		return s
	}

	s.Topic = res.Topic
	s.RunID = res.RunID
	s.StartTime = res.StartedAt
	s.Duration = res.Duration
	s.Addresses = len(res.Addresses)
	s.Retrieved = res.Stats.Retrieved
	s.Unavailable = res.Stats.Unavailable
	s.Insufficient = res.Stats.Insufficient
	s.Failed = res.Stats.Failed
	s.Extracted = res.Stats.Extracted

	terms := analyzer.Terms(res.Topic)
	for _, rec := range res.Records {
		lang := storage.DetectLanguage(rec.Title + " " + rec.Content)
		rel := analyzer.Score(rec.Title+"\n"+rec.Content, terms)
		if rel.Mentions > 0 {
			s.OnTopic++
		}
		s.ByStrategy[rec.Strategy]++
		if lang != "" {
			s.ByLanguage[lang]++
		}
		s.Posts = append(s.Posts, Post{
			Address:   rec.Address,
			Title:     rec.Title,
			Excerpt:   excerpt(rec.Content),
			Strategy:  rec.Strategy,
			Language:  lang,
			Mentions:  rel.Mentions,
			Highlight: excerpt(rel.Highlight),
		})
	}
	return s
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLen {
		return s
	}
	return string([]rune(s)[:excerptLen]) + "..."
}

type count struct {
	Key string
	N   int
}

// sorted returns map entries by descending count, then key.
func sorted(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, n := range m {
		out = append(out, count{Key: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Key < out[j].Key
	})
	return out
}

var funcs = map[string]any{"sorted": sorted}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const textTmpl = `Gleaner Run Summary
-------------------
Topic:         {{.Topic}}
Run:           {{.RunID}}
Started:       {{.StartTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Addresses:     {{.Addresses}}
Retrieved:     {{.Retrieved}}
Unavailable:   {{.Unavailable}}
Insufficient:  {{.Insufficient}}
Failed:        {{.Failed}}
Extracted:     {{.Extracted}}
On topic:      {{.OnTopic}}

Strategies:
{{- range sorted .ByStrategy}}
  {{.Key}}: {{.N}}
{{- else}}
  None
{{- end}}

Languages:
{{- range sorted .ByLanguage}}
  {{.Key}}: {{.N}}
{{- else}}
  None
{{- end}}

Posts:
{{- range .Posts}}
  * {{.Title}} ({{.Mentions}} mentions)
    {{.Address}}
    {{.Excerpt}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Gleaner Report: {{.Topic}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Gleaner Report: {{.Topic}}</h1>
  <p><strong>Run:</strong> {{.RunID}} started {{.StartTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Addresses</div>
    <div class="stat-val">{{.Addresses}}</div>
  </div>
  <div class="stat-card">
    <div>Unavailable</div>
    <div class="stat-val" style="color: {{if gt .Unavailable 0}}red{{else}}green{{end}};">{{.Unavailable}}</div>
  </div>
  <div class="stat-card">
    <div>Extracted</div>
    <div class="stat-val">{{.Extracted}}</div>
  </div>

  <h3>Strategies</h3>
  <table>
    <tr><th>Strategy</th><th>Count</th></tr>
    {{- range sorted .ByStrategy}}
    <tr><td>{{.Key}}</td><td>{{.N}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Posts</h3>
  <table>
    <tr><th>Title</th><th>Excerpt</th><th>Mentions</th><th>Language</th></tr>
    {{- range .Posts}}
    <tr><td><a href="{{.Address}}">{{.Title}}</a></td><td>{{.Excerpt}}</td><td>{{.Mentions}}</td><td>{{.Language}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes an HTML report. Scraped text is escaped.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Funcs(funcs).Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
