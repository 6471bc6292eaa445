package fetcher

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/fetgoat/internal/config"
)

func testPool(rotation string, maxFails int, cooldown time.Duration, urls ...string) *ProxyPool {
	return NewProxyPool(&config.ProxyConfig{
		Enabled:  true,
		Rotation: rotation,
		URLs:     urls,
		MaxFails: maxFails,
		Cooldown: cooldown,
	}, testLogger)
}

// --- Proxy Rotation Tests ---

func TestProxyRoundRobin(t *testing.T) {
	pool := testPool("round_robin", 1, 0, "http://p1:8080", "http://p2:8080", "socks5://p3:1080")
	require.Equal(t, 3, pool.Count())

	seen := make(map[string]int)
	for i := 0; i < 6; i++ {
		seen[pool.Next().Host]++
	}
	require.Equal(t, map[string]int{"p1:8080": 2, "p2:8080": 2, "p3:1080": 2}, seen)
}

func TestProxyStickyKeepsExitUntilBenched(t *testing.T) {
	pool := testPool("sticky", 2, 0, "http://p1:8080", "http://p2:8080")

	first := pool.Next()
	for i := 0; i < 4; i++ {
		require.Equal(t, first.Host, pool.Next().Host)
	}

	pool.Fail(first, errors.New("connection reset"))
	require.Equal(t, first.Host, pool.Next().Host, "one failure is below max_fails")

	pool.Fail(first, errors.New("connection reset"))
	second := pool.Next()
	require.NotEqual(t, first.Host, second.Host)
	require.Equal(t, second.Host, pool.Next().Host)
	require.Equal(t, 1, pool.Available())
}

func TestProxySucceedResetsStreak(t *testing.T) {
	pool := testPool("sticky", 2, 0, "http://p1:8080", "http://p2:8080")
	p := pool.Next()

	pool.Fail(p, errors.New("timeout"))
	pool.Succeed(p)
	pool.Fail(p, errors.New("timeout"))
	require.Equal(t, p.Host, pool.Next().Host)
	require.Equal(t, 2, pool.Available())
}

func TestProxyCooldown(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pool := testPool("sticky", 1, time.Minute, "http://p1:8080")
	pool.now = func() time.Time { return now }

	p := pool.Next()
	pool.Fail(p, errors.New("refused"))
	require.Nil(t, pool.Next(), "all benched means a direct connection")

	now = now.Add(59 * time.Second)
	require.Nil(t, pool.Next())

	now = now.Add(time.Second)
	require.Equal(t, p.Host, pool.Next().Host)
}

func TestProxySkipsInvalidAndAddsAtRuntime(t *testing.T) {
	pool := testPool("round_robin", 1, 0, "http://p1:8080", "::not a url", "no-host")
	require.Equal(t, 1, pool.Count())

	require.Error(t, pool.Add("://"))
	require.NoError(t, pool.Add("http://late:3128"))
	require.Equal(t, 2, pool.Count())

	pool.Fail(&url.URL{Scheme: "http", Host: "unknown:1"}, errors.New("ignored"))
	require.Equal(t, 2, pool.Available())
}

func TestProxyFuncPrefersPinnedExit(t *testing.T) {
	pool := testPool("round_robin", 1, 0, "http://p1:8080", "http://p2:8080")
	ctx, pinned := pool.pin(t.Context())
	require.NotNil(t, pinned)

	req := httptest.NewRequest(http.MethodGet, "https://fetlife.com/", nil).WithContext(ctx)
	for i := 0; i < 3; i++ {
		u, err := pool.ProxyFunc()(req)
		require.NoError(t, err)
		require.Equal(t, pinned.Host, u.Host)
	}
}
