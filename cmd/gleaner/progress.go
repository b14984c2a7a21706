package main

import (
	"io"
	"sync"

	"github.com/FranksOps/gleaner/internal/event"
	"github.com/schollz/progressbar/v3"
)

// progressSink advances a bar once per fetched or failed page. The total is
// reset to the discovered count once the search stage reports it.
type progressSink struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressSink(w io.Writer, total int, description string) *progressSink {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &progressSink{bar: bar}
}

func (p *progressSink) Emit(e event.Event) {
	switch e.Kind {
	case event.KindDiscovered:
		p.mu.Lock()
		p.bar.ChangeMax(e.Count)
		p.mu.Unlock()
	case event.KindFetched, event.KindFetchFailed:
		p.mu.Lock()
		_ = p.bar.Add(1)
		p.mu.Unlock()
	}
}

func (p *progressSink) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

// Count returns how many pages the bar has seen.
func (p *progressSink) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.bar.State().CurrentNum)
}

// Total returns the bar's current maximum.
func (p *progressSink) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar.GetMax()
}
