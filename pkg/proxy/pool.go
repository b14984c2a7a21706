// Package proxy rotates outbound requests across a set of proxies and
// benches the ones that keep failing.
package proxy

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxFailures = 3
	DefaultCooldown    = 5 * time.Minute
)

// Config tunes failure handling.
type Config struct {
	// MaxFailures in a row benches a proxy for Cooldown.
	MaxFailures int
	Cooldown    time.Duration
}

type entry struct {
	url      *url.URL
	failures int
	benched  time.Time // zero when active
}

// Pool is a round-robin proxy rotation. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	cursor      int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool returns an empty pool. Zero config values take the defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Add parses proxy addresses and appends them. An address without a scheme
// is taken as http.
func (p *Pool) Add(addresses ...string) error {
	parsed := make([]*entry, 0, len(addresses))
	for _, raw := range addresses {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		if u.Host == "" {
			return fmt.Errorf("proxy: %q has no host", raw)
		}
		parsed = append(parsed, &entry{url: u})
	}

	p.mu.Lock()
	p.entries = append(p.entries, parsed...)
	p.mu.Unlock()
	return nil
}

// LoadFile adds one proxy per line of path, skipping blanks and # comments.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read %s: %w", path, err)
	}
	return p.Add(lines...)
}

// Len returns the number of proxies, benched ones included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next active proxy, or nil when the pool is empty or every
// proxy is benched. A proxy whose cooldown has passed is active again.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.entries)

		if !e.benched.IsZero() {
			if now.Before(e.benched.Add(p.cooldown)) {
				continue
			}
			e.benched = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

// Report records the result of a request through u. A success clears the
// failure streak; MaxFailures failures in a row bench the proxy.
func (p *Pool) Report(u *url.URL, ok bool) {
	if u == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := u.String()
	for _, e := range p.entries {
		if e.url.String() != key {
			continue
		}
		if ok {
			e.failures = 0
			return
		}
		e.failures++
		if e.failures >= p.maxFailures && e.benched.IsZero() {
			e.benched = p.now()
		}
		return
	}
}
