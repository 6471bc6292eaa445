package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/parser"
	"github.com/IshaanNene/fetgoat/internal/session"
	"github.com/IshaanNene/fetgoat/internal/sitetest"
	"github.com/IshaanNene/fetgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const userItems = `//*[contains(@class, "user_in_list")]`

func newSession(t *testing.T, site *sitetest.Site) *session.Session {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = site.URL
	cfg.Fetcher.MaxRetries = 0
	cfg.Fetcher.RetryDelay = time.Millisecond
	s, err := session.New(cfg, session.NewMemoryStore(), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// friendsSite serves a three-page friends listing with 20, 20 and 5 rows.
func friendsSite(t *testing.T) *sitetest.Site {
	site := sitetest.New(t)
	base := "/users/7/friends"
	site.Page(base, site.UserListPage(base, 1, 3, 100, 20))
	site.Page(base+"?page=2", site.UserListPage(base, 2, 3, 120, 20))
	site.Page(base+"?page=3", site.UserListPage(base, 3, 3, 140, 5))
	return site
}

// --- Walk Tests ---

func TestWalkAllPages(t *testing.T) {
	site := friendsSite(t)
	w := NewWalker(newSession(t, site), nil, testLogger)

	items, err := w.Walk(context.Background(), Listing{Path: "/users/7/friends", ItemXPath: userItems})
	require.NoError(t, err)
	require.Len(t, items, 45)

	for i, item := range items {
		want := fmt.Sprintf("user%d", 100+i)
		alt, _ := parser.Attr(parser.QueryOne(item, ".//img"), "alt")
		require.Equal(t, want, alt, "item %d out of order", i)
	}

	require.Equal(t, 1, site.Hits("/users/7/friends"), "page 1 fetched exactly once")
	require.Zero(t, site.Hits("/users/7/friends?page=1"))
	require.Equal(t, 1, site.Hits("/users/7/friends?page=2"))
	require.Equal(t, 1, site.Hits("/users/7/friends?page=3"))
	require.EqualValues(t, 3, w.metrics.PagesWalked.Load())
}

func TestWalkLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
		pages int
	}{
		{"one page", 1, 20, 1},
		{"two pages", 2, 40, 2},
		{"exact", 3, 45, 3},
		{"beyond total", 10, 45, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := friendsSite(t)
			w := NewWalker(newSession(t, site), nil, testLogger)

			items, err := w.Walk(context.Background(), Listing{Path: "/users/7/friends", ItemXPath: userItems, Limit: tt.limit})
			require.NoError(t, err)
			require.Len(t, items, tt.want)
			require.Equal(t, tt.pages, site.TotalHits())
			require.Zero(t, site.Hits("/users/7/friends?page=4"))
		})
	}
}

func TestWalkSinglePageWithoutPagination(t *testing.T) {
	site := sitetest.New(t)
	site.Page("/groups/3/group_memberships", site.UserListPage("/groups/3/group_memberships", 1, 1, 1, 4))

	w := NewWalker(newSession(t, site), nil, testLogger)
	items, err := w.Walk(context.Background(), Listing{Path: "/groups/3/group_memberships", ItemXPath: userItems, Limit: 5})
	require.NoError(t, err)
	require.Len(t, items, 4)
	require.Equal(t, 1, site.TotalHits())
}

func TestWalkExtraQuery(t *testing.T) {
	site := sitetest.New(t)
	base := "/search/kinksters"
	site.Page(base+"?q=rope", site.UserListPage(base, 1, 2, 1, 3))
	site.Page(base+"?page=2&q=rope", site.UserListPage(base, 2, 2, 4, 2))

	w := NewWalker(newSession(t, site), nil, testLogger)
	items, err := w.Walk(context.Background(), Listing{
		Path:      base,
		ItemXPath: userItems,
		Query:     url.Values{"q": {"rope"}},
	})
	require.NoError(t, err)
	require.Len(t, items, 5)
	require.Equal(t, 1, site.Hits(base+"?page=2&q=rope"))
}

func TestWalkFailsWholeOnMidWalkError(t *testing.T) {
	site := sitetest.New(t)
	base := "/users/7/friends"
	site.Page(base, site.UserListPage(base, 1, 3, 100, 20))
	site.PageStatus(base+"?page=2", 503, "down")

	w := NewWalker(newSession(t, site), nil, testLogger)
	items, err := w.Walk(context.Background(), Listing{Path: base, ItemXPath: userItems})
	require.Error(t, err)
	require.Nil(t, items, "no partial results")
	require.True(t, errors.Is(err, types.ErrUnavailable))
	require.Zero(t, site.Hits(base+"?page=3"))
}

func TestWalkNegativeLimit(t *testing.T) {
	w := NewWalker(stubGetter{}, nil, testLogger)
	_, err := w.Walk(context.Background(), Listing{Path: "/x", ItemXPath: "//li", Limit: -1})
	require.Error(t, err)
}

func TestWalkInvalidItemXPath(t *testing.T) {
	w := NewWalker(stubGetter{"/x": "<ul><li>a</li></ul>"}, nil, testLogger)
	_, err := w.Walk(context.Background(), Listing{Path: "/x", ItemXPath: "//li[", Limit: 1})

	var pe *types.ParseError
	require.True(t, errors.As(err, &pe))
}

type stubGetter map[string]string

func (g stubGetter) Get(_ context.Context, path string, _ url.Values) (*types.Response, error) {
	body, ok := g[path]
	if !ok {
		return nil, &types.FetchError{URL: path, StatusCode: 404, Err: types.ErrNotFound}
	}
	return &types.Response{StatusCode: 200, Body: []byte(body)}, nil
}

// --- Pagination Tests ---

func TestCountPages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"no control", `<div>nothing</div>`, 1},
		{"last page has no next link", sitetest.Pagination("/p", 3, 3), 1},
		{"first of three", sitetest.Pagination("/p", 1, 3), 3},
		{"middle of twelve", sitetest.Pagination("/p", 6, 12), 12},
		{
			"ellipsis before next",
			`<div class="pagination"><a href="?page=2">2</a><a href="?page=3">3</a><span class="gap">…</span><a href="?page=40">40</a><a class="next_page" href="?page=2">Next</a></div>`,
			40,
		},
		{
			"non numeric second to last",
			`<div class="pagination"><a href="?page=2">2</a><a href="?page=9">9</a><a href="?page=9">Last</a><a class="next_page" href="?page=2">Next</a></div>`,
			9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parser.Parse([]byte("<html><body>" + tt.body + "</body></html>"))
			require.NoError(t, err)
			require.Equal(t, tt.want, CountPages(doc))
		})
	}
}

func TestPageURL(t *testing.T) {
	require.Equal(t, "/users/1/friends", PageURL("/users/1/friends", 1, nil))
	require.Equal(t, "/users/1/friends?page=2", PageURL("/users/1/friends", 2, nil))
	require.Equal(t, "/search?page=3&q=a+b", PageURL("/search", 3, url.Values{"q": {"a b"}}))
	require.Equal(t, "/search?q=x", PageURL("/search", 1, url.Values{"q": {"x"}, "page": {"9"}}))
	require.Equal(t, "/cities/5/events?sort=date&page=2", PageURL("/cities/5/events?sort=date", 2, nil))
}
