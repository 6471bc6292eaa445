package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for a fetgoat process.
type Metrics struct {
	// Exchange metrics
	RequestsTotal  atomic.Int64
	RequestsFailed atomic.Int64

	// Response metrics
	ResponsesTotal  atomic.Int64
	Responses2xx    atomic.Int64
	Responses3xx    atomic.Int64
	Responses4xx    atomic.Int64
	Responses5xx    atomic.Int64
	BytesDownloaded atomic.Int64

	// Session metrics
	LoginsTotal  atomic.Int64
	LoginsFailed atomic.Int64

	// Scraping metrics
	PagesWalked       atomic.Int64
	EntitiesPopulated atomic.Int64
	HomeBounces       atomic.Int64
	ErrorPages        atomic.Int64
	ParseFailures     atomic.Int64

	// Identity metrics
	IdentityLookups   atomic.Int64
	IdentityCacheHits atomic.Int64

	// Export metrics
	ItemsExported      atomic.Int64
	ItemsDropped       atomic.Int64
	PicturesDownloaded atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// RecordResponse counts one completed exchange by status class.
func (m *Metrics) RecordResponse(status int, size int) {
	m.ResponsesTotal.Add(1)
	m.BytesDownloaded.Add(int64(size))
	switch {
	case status >= 500:
		m.Responses5xx.Add(1)
	case status >= 400:
		m.Responses4xx.Add(1)
	case status >= 300:
		m.Responses3xx.Add(1)
	default:
		m.Responses2xx.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"fetgoat_requests_total", "Total requests made", m.RequestsTotal.Load()},
		{"fetgoat_requests_failed_total", "Total failed requests", m.RequestsFailed.Load()},
		{"fetgoat_responses_total", "Total responses received", m.ResponsesTotal.Load()},
		{"fetgoat_responses_2xx_total", "Total 2xx responses", m.Responses2xx.Load()},
		{"fetgoat_responses_3xx_total", "Total 3xx responses", m.Responses3xx.Load()},
		{"fetgoat_responses_4xx_total", "Total 4xx responses", m.Responses4xx.Load()},
		{"fetgoat_responses_5xx_total", "Total 5xx responses", m.Responses5xx.Load()},
		{"fetgoat_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"fetgoat_logins_total", "Total login attempts", m.LoginsTotal.Load()},
		{"fetgoat_logins_failed_total", "Total rejected logins", m.LoginsFailed.Load()},
		{"fetgoat_pages_walked_total", "Total listing pages fetched", m.PagesWalked.Load()},
		{"fetgoat_entities_populated_total", "Total entities populated", m.EntitiesPopulated.Load()},
		{"fetgoat_home_bounces_total", "Total requests bounced to the home page", m.HomeBounces.Load()},
		{"fetgoat_error_pages_total", "Total server error pages received", m.ErrorPages.Load()},
		{"fetgoat_parse_failures_total", "Total mandatory field misses", m.ParseFailures.Load()},
		{"fetgoat_identity_lookups_total", "Total handle lookups over the network", m.IdentityLookups.Load()},
		{"fetgoat_identity_cache_hits_total", "Total handle lookups served from cache", m.IdentityCacheHits.Load()},
		{"fetgoat_items_exported_total", "Total items exported", m.ItemsExported.Load()},
		{"fetgoat_items_dropped_total", "Total items dropped by the pipeline", m.ItemsDropped.Load()},
		{"fetgoat_pictures_downloaded_total", "Total pictures downloaded", m.PicturesDownloaded.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer serves metrics until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":      m.RequestsTotal.Load(),
		"requests_failed":     m.RequestsFailed.Load(),
		"responses_total":     m.ResponsesTotal.Load(),
		"responses_2xx":       m.Responses2xx.Load(),
		"responses_3xx":       m.Responses3xx.Load(),
		"responses_4xx":       m.Responses4xx.Load(),
		"responses_5xx":       m.Responses5xx.Load(),
		"bytes_downloaded":    m.BytesDownloaded.Load(),
		"logins_total":        m.LoginsTotal.Load(),
		"logins_failed":       m.LoginsFailed.Load(),
		"pages_walked":        m.PagesWalked.Load(),
		"entities_populated":  m.EntitiesPopulated.Load(),
		"home_bounces":        m.HomeBounces.Load(),
		"error_pages":         m.ErrorPages.Load(),
		"parse_failures":      m.ParseFailures.Load(),
		"identity_lookups":    m.IdentityLookups.Load(),
		"identity_cache_hits": m.IdentityCacheHits.Load(),
		"items_exported":      m.ItemsExported.Load(),
		"items_dropped":       m.ItemsDropped.Load(),
		"pictures_downloaded": m.PicturesDownloaded.Load(),
	}
}
