package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/IshaanNene/fetgoat/internal/config"
)

// ProxyPool picks the proxy each outgoing exchange goes through and
// benches proxies that keep failing.
type ProxyPool struct {
	mu       sync.Mutex
	entries  []*proxyEntry
	rotation string
	cursor   int
	current  *proxyEntry
	maxFails int
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type proxyEntry struct {
	url          *url.URL
	fails        int
	benchedUntil time.Time
	lastErr      error
	uses         int64
}

type proxyKey struct{}

// NewProxyPool builds a pool from configuration. Unparseable URLs are
// logged and skipped.
func NewProxyPool(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyPool {
	p := &ProxyPool{
		rotation: cfg.Rotation,
		maxFails: max(1, cfg.MaxFails),
		cooldown: cfg.Cooldown,
		now:      time.Now,
		logger:   logger.With("component", "proxy_pool"),
	}
	for _, raw := range cfg.URLs {
		if err := p.Add(raw); err != nil {
			p.logger.Warn("skipping proxy", "url", raw, "error", err)
		}
	}
	p.logger.Info("proxy pool ready", "count", len(p.entries), "rotation", p.rotation)
	return p
}

// Add appends a proxy at runtime.
func (p *ProxyPool) Add(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid proxy URL %q: no host", raw)
	}
	p.mu.Lock()
	p.entries = append(p.entries, &proxyEntry{url: u})
	p.mu.Unlock()
	return nil
}

// ProxyFunc plugs the pool into an http.Transport. A proxy pinned on the
// request context wins so that redirects stay on the same exit.
func (p *ProxyPool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(r *http.Request) (*url.URL, error) {
		if u, ok := r.Context().Value(proxyKey{}).(*url.URL); ok {
			return u, nil
		}
		return p.Next(), nil
	}
}

// pin chooses a proxy for one exchange and records it on ctx.
func (p *ProxyPool) pin(ctx context.Context) (context.Context, *url.URL) {
	u := p.Next()
	if u == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, proxyKey{}, u), u
}

// Next returns the proxy for the next exchange, or nil to go direct
// when every proxy is benched.
func (p *ProxyPool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.rotation == "sticky" && p.current != nil && p.usable(p.current, now) {
		p.current.uses++
		return p.current.url
	}

	var live []*proxyEntry
	for _, e := range p.entries {
		if p.usable(e, now) {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		return nil
	}

	var e *proxyEntry
	switch p.rotation {
	case "random":
		e = live[rand.Intn(len(live))]
	default:
		e = live[p.cursor%len(live)]
		p.cursor++
	}
	p.current = e
	e.uses++
	return e.url
}

func (p *ProxyPool) usable(e *proxyEntry, now time.Time) bool {
	if e.fails < p.maxFails {
		return true
	}
	if p.cooldown > 0 && !now.Before(e.benchedUntil) {
		e.fails = 0
		return true
	}
	return false
}

// Fail records a transport failure through u. After max_fails in a row
// the proxy sits out the cooldown (for good when the cooldown is zero).
func (p *ProxyPool) Fail(u *url.URL, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(u)
	if e == nil {
		return
	}
	e.fails++
	e.lastErr = err
	if e.fails < p.maxFails {
		return
	}
	e.benchedUntil = p.now().Add(p.cooldown)
	if p.current == e {
		p.current = nil
	}
	p.logger.Warn("proxy benched", "proxy", u.Host, "fails", e.fails, "cooldown", p.cooldown, "error", err)
}

// Succeed clears the failure streak of u.
func (p *ProxyPool) Succeed(u *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.find(u); e != nil {
		e.fails = 0
		e.lastErr = nil
	}
}

func (p *ProxyPool) find(u *url.URL) *proxyEntry {
	if u == nil {
		return nil
	}
	for _, e := range p.entries {
		if e.url.String() == u.String() {
			return e
		}
	}
	return nil
}

// Count returns the number of proxies in the pool.
func (p *ProxyPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Available returns how many proxies are not benched right now.
func (p *ProxyPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, e := range p.entries {
		if p.usable(e, now) {
			n++
		}
	}
	return n
}
