package fetcher

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/andybalholm/brotli"
	"github.com/codeGROOVE-dev/retry"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// HTTPFetcher implements Fetcher using net/http. Cookies live in the jar
// handed in by the owner, so one fetcher serves exactly one session.
type HTTPFetcher struct {
	client     *http.Client
	cfg        *config.FetcherConfig
	proxies    *ProxyPool
	logger     *slog.Logger
	userAgent  string
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPFetcher creates a new HTTP fetcher bound to jar.
func NewHTTPFetcher(cfg *config.Config, jar http.CookieJar, logger *slog.Logger) (*HTTPFetcher, error) {
	if jar == nil {
		return nil, fmt.Errorf("create http fetcher: nil cookie jar")
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: max(1, cfg.Fetcher.MaxIdleConns/2),
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decompressed below, brotli included
	}

	var proxies *ProxyPool
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		proxies = NewProxyPool(&cfg.Proxy, logger)
		transport.Proxy = proxies.ProxyFunc()
	}

	var rt http.RoundTripper = transport
	if cfg.Fetcher.CloudflareBypass {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     rt,
		Jar:           jar,
		Timeout:       cfg.Fetcher.RequestTimeout,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:     client,
		cfg:        &cfg.Fetcher,
		proxies:    proxies,
		logger:     logger.With("component", "http_fetcher"),
		userAgent:  cfg.Fetcher.UserAgent,
		maxRetries: cfg.Fetcher.MaxRetries,
		retryDelay: cfg.Fetcher.RetryDelay,
	}, nil
}

// Fetch executes an HTTP request, retrying transient failures. Only
// idempotent requests are replayed; a form POST is sent once.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	attempts := uint(f.maxRetries + 1)
	if !req.Idempotent() {
		attempts = 1
	}
	return retry.DoWithData(
		func() (*types.Response, error) {
			return f.fetchOnce(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(f.retryDelay),
		retry.MaxJitter(f.retryDelay/2+time.Millisecond),
		retry.DelayType(retryDelay),
		retry.RetryIf(func(err error) bool {
			var fe *types.FetchError
			return errors.As(err, &fe) && fe.Retryable
		}),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug("retrying request", "attempt", n+1, "url", req.URLString(), "error", err)
		}),
	)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var proxy *url.URL
	if f.proxies != nil {
		ctx, proxy = f.proxies.pin(ctx)
	}

	var body io.Reader
	encoded := req.EncodedBody()
	if encoded != nil {
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URLString(), body)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}

	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	} else {
		httpReq.Header.Set("User-Agent", "fetgoat/"+config.Version)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if encoded != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		if proxy != nil && ctx.Err() == nil {
			f.proxies.Fail(proxy, err)
		}
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()
	if proxy != nil {
		f.proxies.Succeed(proxy)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited (retry after %s): %s", retryAfter, strings.TrimSpace(string(snippet))),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	}

	if httpResp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(snippet)),
			Retryable:  true,
		}
	}

	limit := f.cfg.MaxBodySize
	if req.MaxBodySize != 0 {
		limit = req.MaxBodySize
	}
	tooLarge := func() error {
		return &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("%w: more than %d bytes", types.ErrBodyTooLarge, limit),
		}
	}
	if limit > 0 && httpResp.ContentLength > limit {
		return nil, tooLarge()
	}

	reader, err := decompressReader(httpResp, httpResp.Body)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}
	if limit > 0 {
		reader = io.LimitReader(reader, limit+1)
	}

	respBody, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	if limit > 0 && int64(len(respBody)) > limit {
		return nil, tooLarge()
	}

	resp := types.NewResponse(req, httpResp, respBody, duration)

	f.logger.Debug("fetch complete",
		"method", req.Method,
		"url", req.URLString(),
		"final_url", resp.FinalURL,
		"status", resp.StatusCode,
		"size", len(respBody),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// Proxies returns the proxy pool, or nil when proxying is off.
func (f *HTTPFetcher) Proxies() *ProxyPool {
	return f.proxies
}

// retryDelay waits as long as a 429 asked for, and backs off otherwise.
func retryDelay(attempt uint, err error, cfg *retry.Config) time.Duration {
	var fe *types.FetchError
	if errors.As(err, &fe) && fe.RetryAfter > 0 {
		return fe.RetryAfter
	}
	return retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)(attempt, err, cfg)
}

// decompressReader wraps a reader with the decoder for its
// Content-Encoding. "deflate" is the zlib format.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return zlib.NewReader(reader)
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
