package fetcher

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testFetcher(t *testing.T, mutate func(*config.Config)) (*HTTPFetcher, http.CookieJar) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetcher.MaxRetries = 2
	cfg.Fetcher.RetryDelay = time.Millisecond
	cfg.Fetcher.RequestTimeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f, err := NewHTTPFetcher(cfg, jar, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, jar
}

func get(t *testing.T, f Fetcher, rawURL string) (*types.Response, error) {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	require.NoError(t, err)
	return f.Fetch(context.Background(), req)
}

// --- Decoding Tests ---

func TestFetchDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			http.Error(w, "no brotli", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("<html>brotli body</html>"))
		_ = bw.Close()
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<html>brotli body</html>", string(resp.Body))
}

func TestFetchDecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("gzip body"))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "gzip body", string(resp.Body))
}

func TestFetchDecodesDeflate(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, _ = zw.Write([]byte("deflate body"))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "deflate body", string(resp.Body))
}

// --- Body Size Tests ---

func TestFetchBodyCap(t *testing.T) {
	const limit = 1024
	tests := []struct {
		name     string
		size     int
		chunked  bool
		override int64
		wantErr  bool
	}{
		{"at limit", limit, false, 0, false},
		{"over limit with length", limit + 1, false, 0, true},
		{"over limit chunked", 4 * limit, true, 0, true},
		{"request raises cap", 4 * limit, false, 8 * limit, false},
		{"request lifts cap", 4 * limit, true, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := strings.Repeat("x", tt.size)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.chunked {
					for i := 0; i < len(payload); i += 256 {
						_, _ = w.Write([]byte(payload[i:min(i+256, len(payload))]))
						w.(http.Flusher).Flush()
					}
					return
				}
				w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
				_, _ = w.Write([]byte(payload))
			}))
			defer srv.Close()

			f, _ := testFetcher(t, func(c *config.Config) { c.Fetcher.MaxBodySize = limit })
			req, err := types.NewRequest(srv.URL)
			require.NoError(t, err)
			req.MaxBodySize = tt.override

			resp, err := f.Fetch(context.Background(), req)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrBodyTooLarge)
				var fe *types.FetchError
				require.True(t, errors.As(err, &fe))
				require.False(t, fe.Retryable)
				return
			}
			require.NoError(t, err)
			require.Len(t, resp.Body, tt.size)
		})
	}
}

func TestFetchBodyCapAppliesAfterDecoding(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(bytes.Repeat([]byte("a"), 64*1024))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f, _ := testFetcher(t, func(c *config.Config) { c.Fetcher.MaxBodySize = 16 * 1024 })
	_, err := get(t, f, srv.URL)
	require.ErrorIs(t, err, types.ErrBodyTooLarge)
}

// --- Retry Tests ---

func TestFetchRetriesServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", string(resp.Body))
	require.Equal(t, int32(2), hits.Load())
}

func TestFetchGivesUpOnPersistentServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	_, err := get(t, f, srv.URL)
	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	require.True(t, fe.IsRetryable())
	require.Equal(t, int32(3), hits.Load())
}

func TestFetchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _ := testFetcher(t, func(cfg *config.Config) { cfg.Fetcher.MaxRetries = 0 })
	_, err := get(t, f, srv.URL)
	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	require.Equal(t, 7*time.Second, fe.RetryAfter)
}

func TestFetchWaitsRetryAfter(t *testing.T) {
	var (
		hits  atomic.Int32
		first atomic.Int64
		gap   atomic.Int64
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UnixNano()
		if hits.Add(1) == 1 {
			first.Store(now)
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		gap.Store(now - first.Load())
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", string(resp.Body))
	require.Equal(t, int32(2), hits.Load())
	require.GreaterOrEqual(t, time.Duration(gap.Load()), time.Second)
}

func TestFetchDoesNotReplayPost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	req, err := types.NewRequest(srv.URL + "/session")
	require.NoError(t, err)
	req.Method = http.MethodPost
	req.Form = url.Values{"nickname_or_email": {"TestKinkster"}}

	_, err = f.Fetch(context.Background(), req)
	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	require.Equal(t, int32(1), hits.Load())
}

func TestFetchClientErrorIsAResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL+"/users/0")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.True(t, resp.IsClientError())
	require.Equal(t, int32(1), hits.Load())
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	req, err := types.NewRequest(srv.URL)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, req)
	require.Error(t, err)
}

// --- Transport Behavior Tests ---

func TestFetchKeepsCookiesInJar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_fl_sessionid", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, jar := testFetcher(t, nil)
	_, err := get(t, f, srv.URL)
	require.NoError(t, err)

	u, _ := url.Parse(srv.URL)
	cookies := jar.Cookies(u)
	require.Len(t, cookies, 1)
	require.Equal(t, "abc", cookies[0].Value)
}

func TestFetchUserAgent(t *testing.T) {
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.UserAgent())
	}))
	defer srv.Close()

	f, _ := testFetcher(t, func(cfg *config.Config) { cfg.Fetcher.UserAgent = "" })
	_, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "fetgoat/"+config.Version, seen.Load())

	f, _ = testFetcher(t, func(cfg *config.Config) { cfg.Fetcher.UserAgent = "Mozilla/5.0 test" })
	_, err = get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Mozilla/5.0 test", seen.Load())
}

func TestFetchWithoutFollowingRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Rope_Bunny" {
			http.Redirect(w, r, "/users/555", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("profile"))
	}))
	defer srv.Close()

	f, _ := testFetcher(t, nil)
	resp, err := get(t, f, srv.URL+"/Rope_Bunny")
	require.NoError(t, err)
	require.Equal(t, "555", resp.FinalPathSegment())

	f, _ = testFetcher(t, func(cfg *config.Config) { cfg.Fetcher.FollowRedirects = false })
	resp, err = get(t, f, srv.URL+"/Rope_Bunny")
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestNewHTTPFetcherRequiresJar(t *testing.T) {
	_, err := NewHTTPFetcher(config.DefaultConfig(), nil, testLogger)
	require.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 5 * time.Second},
		{"10", 10 * time.Second},
		{" 3 ", 3 * time.Second},
		{"600", 120 * time.Second},
		{"soon", 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			require.Equal(t, tt.want, parseRetryAfter(tt.header))
		})
	}
}

// --- Proxy Tests ---

func TestFetchThroughProxy(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("via proxy for " + r.URL.Host))
	}))
	defer proxy.Close()

	f, _ := testFetcher(t, func(c *config.Config) {
		c.Proxy.Enabled = true
		c.Proxy.URLs = []string{proxy.URL}
	})
	require.NotNil(t, f.Proxies())

	resp, err := get(t, f, "http://fetlife.test/users/1")
	require.NoError(t, err)
	require.Equal(t, "via proxy for fetlife.test", string(resp.Body))
}

func TestFetchBenchesDeadProxyAndGoesDirect(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("direct"))
	}))
	defer srv.Close()

	f, _ := testFetcher(t, func(c *config.Config) {
		c.Proxy.Enabled = true
		c.Proxy.URLs = []string{deadURL}
		c.Proxy.MaxFails = 1
	})

	resp, err := get(t, f, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "direct", string(resp.Body))
	require.Equal(t, 0, f.Proxies().Available())
}
