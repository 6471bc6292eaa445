package fetgoat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/content"
	"github.com/IshaanNene/fetgoat/internal/session"
	"github.com/IshaanNene/fetgoat/internal/sitetest"
	"github.com/IshaanNene/fetgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newClient(t *testing.T, site *sitetest.Site, password string, extra ...Option) *Client {
	t.Helper()
	opts := append([]Option{
		WithBaseURL(site.URL),
		WithAccount(site.Nickname, password),
		WithSessionDir(filepath.Join(t.TempDir(), "sessions")),
		WithOutput("json", t.TempDir()),
		WithRetries(0, time.Millisecond),
		WithLogger(testLogger),
	}, extra...)
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// --- Construction Tests ---

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(WithBaseURL("not a url"), WithLogger(testLogger))
	require.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf).Info("hidden")
	require.Empty(t, buf.String())

	NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf).Warn("shown", "k", 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "shown", rec["msg"])
}

// --- Login Tests ---

func TestEnsureLoginWithPassword(t *testing.T) {
	site := sitetest.New(t)
	c := newClient(t, site, site.Password)

	require.NoError(t, c.EnsureLogin(context.Background()))
	require.Equal(t, site.UserID, c.Session().UserID())
}

func TestEnsureLoginReusesStoredCookies(t *testing.T) {
	site := sitetest.New(t)
	store := session.NewMemoryStore()

	first := newClient(t, site, site.Password, WithStore(store))
	require.NoError(t, first.EnsureLogin(context.Background()))

	second := newClient(t, site, "", WithStore(store))
	require.NoError(t, second.EnsureLogin(context.Background()))
	require.Equal(t, site.UserID, second.Session().UserID())
}

func TestEnsureLoginFailures(t *testing.T) {
	site := sitetest.New(t)

	err := newClient(t, site, "wrong").EnsureLogin(context.Background())
	require.ErrorIs(t, err, types.ErrLoginFailed)

	err = newClient(t, site, "").EnsureLogin(context.Background())
	require.ErrorIs(t, err, types.ErrNotLoggedIn)
}

// --- Entity + Export Tests ---

func friendsPage(site *sitetest.Site) string {
	return site.Layout("Friends - FetLife", `
<div class="user_in_list"><a href="/users/600"><img alt="Knotty" src="https://pic.example/600_60.jpg"></a><span class="quiet">31F sub</span><em>Berlin</em></div>
<div class="user_in_list"><a href="/users/601"><img alt="Hemp" src="https://pic.example/601_60.jpg"></a><span class="quiet">40M Top</span></div>`)
}

func TestFriendsExport(t *testing.T) {
	site := sitetest.New(t)
	site.Page("/users/555/friends", friendsPage(site))
	c := newClient(t, site, site.Password)
	ctx := context.Background()
	require.NoError(t, c.EnsureLogin(ctx))

	friends, err := c.User().FriendsOf(ctx, ID(555), 0)
	require.NoError(t, err)

	var nicks []string
	for _, f := range friends {
		nicks = append(nicks, f.Nickname)
	}
	if diff := cmp.Diff([]string{"Knotty", "Hemp"}, nicks); diff != "" {
		t.Errorf("friends mismatch (-want +got):\n%s", diff)
	}

	items := content.Items(friends)
	items = append(items, content.ToItem(friends[0]))
	n, err := c.Export(ctx, "friends-555", items, ExportOptions{Required: []string{"nickname"}})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, int64(2), c.Metrics().ItemsExported.Load())
	require.Equal(t, int64(1), c.Metrics().ItemsDropped.Load())

	data, err := os.ReadFile(filepath.Join(c.Config().Storage.OutputPath, "friends-555.json"))
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	require.Equal(t, "profile", out[0]["_kind"])
	require.True(t, strings.HasSuffix(out[0]["_url"].(string), "/users/600"))
}

func TestExportUnknownSink(t *testing.T) {
	site := sitetest.New(t)
	c := newClient(t, site, site.Password)
	c.Config().Storage.Type = "parquet"

	_, err := c.Export(context.Background(), "x", nil, ExportOptions{})
	var se *types.StorageError
	require.True(t, errors.As(err, &se))
}

func TestWhoHelpers(t *testing.T) {
	require.True(t, Self().IsSelf())
	id, ok := ParseWho("@555").KnownID()
	require.True(t, ok)
	require.Equal(t, int64(555), id)
	_, ok = Handle("Rope_Bunny").KnownID()
	require.False(t, ok)
}
