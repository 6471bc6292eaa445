package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/sitetest"
	"github.com/IshaanNene/fetgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = baseURL
	cfg.Account.Nickname = "TestKinkster"
	cfg.Fetcher.MaxRetries = 1
	cfg.Fetcher.RetryDelay = time.Millisecond
	cfg.Fetcher.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestSession(t *testing.T, site *sitetest.Site, store Store) *Session {
	t.Helper()
	s, err := New(testConfig(site.URL), store, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func defaultMarkers() Markers {
	return NewMarkers(config.DefaultConfig().Site)
}

// --- Login Tests ---

func TestLoginSuccess(t *testing.T) {
	site := sitetest.New(t)
	store, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	s := newTestSession(t, site, store)
	ok, err := s.Login(context.Background(), Credentials{Nickname: site.Nickname, Password: site.Password})
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, site.UserID, s.UserID())
	require.Equal(t, "TestKinkster", s.Nickname())
	require.True(t, s.LoggedIn())

	form := site.LastForm()
	require.Equal(t, "Login to FetLife", form.Get("commit"))
	require.Contains(t, form.Get("authenticity_token"), "+", "numeric character reference must be decoded before posting")

	cookies, err := store.Load("TestKinkster")
	require.NoError(t, err)
	require.NotEmpty(t, cookies)
}

func TestLoginStoresCookieAttributes(t *testing.T) {
	site := sitetest.New(t)
	store, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	s := newTestSession(t, site, store)
	ok, err := s.Login(context.Background(), Credentials{Nickname: site.Nickname, Password: site.Password})
	require.NoError(t, err)
	require.True(t, ok)

	cookies, err := store.Load("TestKinkster")
	require.NoError(t, err)
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == sitetest.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	require.Equal(t, "valid", session.Value)
	require.Equal(t, "/", session.Path)
	require.True(t, session.HttpOnly)
	require.True(t, session.Expires.After(time.Now().Add(24*time.Hour)), "max-age must survive as an expiry")
}

func TestLoginWrongPasswordReturnsFalse(t *testing.T) {
	site := sitetest.New(t)
	s := newTestSession(t, site, NewMemoryStore())

	ok, err := s.Login(context.Background(), Credentials{Nickname: site.Nickname, Password: "wrong"})
	require.NoError(t, err, "rejected credentials are not an error")
	require.False(t, ok)
	require.Zero(t, s.UserID())
	require.EqualValues(t, 1, s.Metrics().LoginsFailed.Load())
}

func TestLoginRequiresCredentials(t *testing.T) {
	site := sitetest.New(t)
	s := newTestSession(t, site, NewMemoryStore())

	_, err := s.Login(context.Background(), Credentials{Nickname: "x"})
	require.Error(t, err)
	require.Zero(t, site.TotalHits())
}

func TestResumeFromStoredCookies(t *testing.T) {
	site := sitetest.New(t)
	store := NewMemoryStore()

	first := newTestSession(t, site, store)
	ok, err := first.Login(context.Background(), Credentials{Nickname: site.Nickname, Password: site.Password})
	require.NoError(t, err)
	require.True(t, ok)

	second := newTestSession(t, site, store)
	ok, err = second.Resume(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, site.UserID, second.UserID())
}

func TestResumeWithoutCookies(t *testing.T) {
	site := sitetest.New(t)
	s := newTestSession(t, site, NewMemoryStore())

	ok, err := s.Resume(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, site.TotalHits(), "nothing to resume means no request")
	require.Zero(t, s.Metrics().LoginsFailed.Load())
}

func TestResumeStaleSessionIsNotAFailedLogin(t *testing.T) {
	site := sitetest.New(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save("TestKinkster", []*http.Cookie{{Name: sitetest.SessionCookie, Value: "expired", Path: "/"}}))

	s := newTestSession(t, site, store)
	ok, err := s.Resume(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, site.TotalHits())
	require.Zero(t, s.Metrics().LoginsFailed.Load())
	require.Zero(t, s.Metrics().LoginsTotal.Load())
}

// --- Request Tests ---

func TestRequestRefreshesCSRFToken(t *testing.T) {
	site := sitetest.New(t)
	site.Page("/a", site.Layout("A", "a"))
	tokenA := site.IssuedToken()
	site.Page("/b", site.Layout("B", "b"))
	tokenB := site.IssuedToken()
	site.Page("/plain", "<html><body>no token here</body></html>")

	s := newTestSession(t, site, NewMemoryStore())
	ctx := context.Background()

	_, err := s.Get(ctx, "/a", nil)
	require.NoError(t, err)
	require.Equal(t, tokenA, s.CSRFToken())

	_, err = s.Get(ctx, "/b", nil)
	require.NoError(t, err)
	require.Equal(t, tokenB, s.CSRFToken())

	resp, err := s.Get(ctx, "/plain", nil)
	require.NoError(t, err)
	require.Equal(t, tokenB, s.CSRFToken(), "a page without a token keeps the previous one")
	require.Equal(t, resp.Body, s.LastPage())
}

func TestGetFoldsFormIntoQuery(t *testing.T) {
	site := sitetest.New(t)
	site.Page("/search/kinksters?page=2&q=rope", "<html>results</html>")

	s := newTestSession(t, site, NewMemoryStore())
	resp, err := s.Get(context.Background(), "/search/kinksters", map[string][]string{"q": {"rope"}, "page": {"2"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, site.Hits("/search/kinksters?page=2&q=rope"))
}

func TestServerErrorIsUnavailable(t *testing.T) {
	site := sitetest.New(t)
	site.PageStatus("/broken", http.StatusInternalServerError, "boom")

	s := newTestSession(t, site, NewMemoryStore())
	_, err := s.Get(context.Background(), "/broken", nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, types.ErrUnavailable))

	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	require.Equal(t, 2, site.Hits("/broken"), "one retry configured")
}

type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	close(b.started)
	<-b.release
	return &types.Response{StatusCode: 200, Request: req, FinalURL: req.URLString()}, nil
}

func (b *blockingFetcher) Close() error { return nil }
func (b *blockingFetcher) Type() string { return "blocking" }

func TestConcurrentUseRejected(t *testing.T) {
	bf := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	s, err := New(testConfig("https://fetlife.example"), NewMemoryStore(), testLogger, WithFetcher(bf))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Get(context.Background(), "/slow", nil)
		done <- err
	}()
	<-bf.started

	_, err = s.Get(context.Background(), "/other", nil)
	require.ErrorIs(t, err, types.ErrConcurrentUse)

	close(bf.release)
	require.NoError(t, <-done)
}

// --- Marker Tests ---

func TestFindCSRFTokenDecodesCharRefs(t *testing.T) {
	m := defaultMarkers()
	body := []byte(`<meta name="csrf-token" content="abc&#43;def&#x3D;&#61;"/>`)

	tok, ok := m.FindCSRFToken(body)
	require.True(t, ok)
	require.Equal(t, "abc+def==", tok)

	_, ok = m.FindCSRFToken([]byte(`<meta name="description" content="x">`))
	require.False(t, ok)
}

func TestFindUserIDPatterns(t *testing.T) {
	m := defaultMarkers()

	id, ok := m.FindUserID([]byte(`<script>var currentUserId = 1234;</script>`))
	require.True(t, ok)
	require.EqualValues(t, 1234, id)

	id, ok = m.FindUserID([]byte(`<script>FetLife.currentUser.id = 77;</script>`))
	require.True(t, ok)
	require.EqualValues(t, 77, id)

	_, ok = m.FindUserID([]byte(`<html>logged out</html>`))
	require.False(t, ok)
}

func TestFindNicknameAndBounces(t *testing.T) {
	m := defaultMarkers()

	nick, ok := m.FindNickname([]byte(`<title>Some_Body-1 - Kinksters - FetLife</title>`))
	require.True(t, ok)
	require.Equal(t, "Some_Body-1", nick)

	require.True(t, m.IsHomePage([]byte(`<title>Home - FetLife</title>`)))
	require.False(t, m.IsHomePage([]byte(`<title>Someone - Kinksters - FetLife</title>`)))
	require.True(t, m.IsErrorPage([]byte(sitetest.ErrorPage())))
}

// --- Store Tests ---

func TestFileStoreCreatesPrivateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	cookies, err := store.Load("nobody")
	require.NoError(t, err)
	require.Empty(t, cookies)

	require.Equal(t, filepath.Join(dir, "a_b_c.cookies.json"), store.Path("a/b c"))
}

func TestFileStoreSaveLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	in := []*http.Cookie{{Name: sitetest.SessionCookie, Value: "valid", Path: "/"}}
	require.NoError(t, store.Save("me@example.com", in))

	out, err := store.Load("me@example.com")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "valid", out[0].Value)
}

func TestFileStoreUnwritableDirIsFatal(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := NewFileStore(filepath.Join(blocker, "sessions"))
	require.Error(t, err)
}
