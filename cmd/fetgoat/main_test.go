package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/fetgoat/internal/sitetest"
	"github.com/IshaanNene/fetgoat/pkg/fetgoat"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testClient(t *testing.T, site *sitetest.Site) *fetgoat.Client {
	t.Helper()
	c, err := fetgoat.New(
		fetgoat.WithBaseURL(site.URL),
		fetgoat.WithAccount(site.Nickname, "wrong"),
		fetgoat.WithSessionDir(filepath.Join(t.TempDir(), "sessions")),
		fetgoat.WithRetries(0, time.Millisecond),
		fetgoat.WithLogger(testLogger),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// --- Last Page Tests ---

func TestDumpLastPageAfterRejectedLogin(t *testing.T) {
	site := sitetest.New(t)
	c := testClient(t, site)

	require.Error(t, c.EnsureLogin(context.Background()))

	dir := t.TempDir()
	path, err := dumpLastPage(c, dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "fetgoat-last-page.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Login failed")
	require.Contains(t, c.Session().LastURL(), "/session")
}

func TestDumpLastPageBeforeAnyRequest(t *testing.T) {
	site := sitetest.New(t)
	c := testClient(t, site)

	path, err := dumpLastPage(c, t.TempDir())
	require.NoError(t, err)
	require.Empty(t, path)
}
