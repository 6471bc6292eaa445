// Package session holds the authenticated state of one account: its
// cookie jar, the rotating CSRF token and the last page it saw.
//
// A Session serves one caller at a time. Request fails fast with
// types.ErrConcurrentUse instead of interleaving two exchanges.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/fetcher"
	"github.com/IshaanNene/fetgoat/internal/observability"
	"github.com/IshaanNene/fetgoat/internal/types"
)

var tracer = otel.Tracer("fetgoat/session")

// Credentials identify the account to sign in as.
type Credentials struct {
	// Nickname may also be the account's email address.
	Nickname string
	Password string
}

// Session is the authenticated state of one account.
type Session struct {
	cfg     *config.Config
	base    *url.URL
	account string
	store   Store
	jar     *cookieJar
	fetcher fetcher.Fetcher
	markers Markers
	metrics *observability.Metrics
	logger  *slog.Logger

	busy     atomic.Bool
	csrf     string
	userID   int64
	nickname string
	lastPage []byte
	lastURL  string
}

// Option configures a Session.
type Option func(*Session)

// WithFetcher replaces the default HTTP fetcher. The replacement does not
// share the session's cookie jar.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithMetrics records exchanges into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithAccount overrides the account handle that keys the cookie store.
func WithAccount(account string) Option {
	return func(s *Session) { s.account = account }
}

// New creates a session for cfg.Account, seeding its cookie jar from
// store.
func New(cfg *config.Config, store Store, logger *slog.Logger, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("create session: nil store")
	}
	base, err := url.Parse(strings.TrimRight(cfg.Site.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("create session: invalid base URL %q", cfg.Site.BaseURL)
	}

	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		base:    base,
		account: cfg.Account.Nickname,
		store:   store,
		jar:     jar,
		markers: NewMarkers(cfg.Site),
		logger:  logger.With("component", "session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(logger)
	}
	s.logger = s.logger.With("account", s.account)

	cookies, err := store.Load(s.account)
	if err != nil {
		return nil, fmt.Errorf("load session cookies: %w", err)
	}
	if len(cookies) > 0 {
		jar.SetCookies(base, cookies)
		s.logger.Debug("restored cookies", "count", len(cookies))
	}

	if s.fetcher == nil {
		hf, err := fetcher.NewHTTPFetcher(cfg, jar, logger)
		if err != nil {
			return nil, err
		}
		s.fetcher = hf
	}

	return s, nil
}

// Login signs in with a form POST. It reports false, with a nil error,
// when the site answers without a signed-in user id; transport failures
// are returned as errors.
func (s *Session) Login(ctx context.Context, creds Credentials) (bool, error) {
	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	s.metrics.LoginsTotal.Add(1)
	if creds.Nickname == "" || creds.Password == "" {
		span.SetStatus(codes.Error, "missing credentials")
		return false, fmt.Errorf("login: nickname and password are required")
	}

	if _, err := s.Get(ctx, "/login", nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return false, fmt.Errorf("fetch login page: %w", err)
	}
	if s.csrf == "" {
		s.logger.Warn("login page carried no csrf token")
	}

	form := url.Values{
		"nickname_or_email":  {creds.Nickname},
		"password":           {creds.Password},
		"authenticity_token": {s.csrf},
		"commit":             {"Login to FetLife"},
	}
	resp, err := s.Post(ctx, "/session", form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post login form")
		return false, fmt.Errorf("submit login: %w", err)
	}

	if !s.adoptLogin(resp.Body, creds.Nickname) {
		s.rejected("password")
		span.SetStatus(codes.Error, types.ErrLoginFailed.Error())
		return false, nil
	}
	span.SetAttributes(attribute.Int64("fetgoat.user_id", s.userID))
	return true, nil
}

// Resume checks whether the restored cookies still carry a signed-in
// session by loading the home page. With no cookies at all it answers
// false without a request. A stale session is not a failed login.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if len(s.jar.Cookies(s.base)) == 0 {
		s.logger.Debug("no stored session to resume")
		return false, nil
	}
	resp, err := s.Get(ctx, "/", nil)
	if err != nil {
		return false, fmt.Errorf("resume session: %w", err)
	}
	if !s.adoptLogin(resp.Body, s.account) {
		s.logger.Debug("stored session is signed out", "landed_on", resp.FinalURL)
		return false, nil
	}
	return true, nil
}

// rejected records a login attempt the site turned down.
func (s *Session) rejected(method string) {
	s.metrics.LoginsFailed.Add(1)
	s.logger.Warn("login rejected", "method", method, "landed_on", s.LastURL())
}

func (s *Session) adoptLogin(body []byte, nickname string) bool {
	id, ok := s.markers.FindUserID(body)
	if !ok {
		return false
	}
	s.userID = id
	if nickname != "" && !strings.Contains(nickname, "@") {
		s.nickname = nickname
	}
	s.logger.Info("logged in", "user_id", id)
	return true
}

// Get requests path with form folded into the query string.
func (s *Session) Get(ctx context.Context, path string, form url.Values) (*types.Response, error) {
	return s.Request(ctx, path, http.MethodGet, form)
}

// Post submits form to path.
func (s *Session) Post(ctx context.Context, path string, form url.Values) (*types.Response, error) {
	return s.Request(ctx, path, http.MethodPost, form)
}

// Request performs one exchange relative to the site base URL. Every
// response refreshes the CSRF token and flushes cookies to the store.
func (s *Session) Request(ctx context.Context, path, method string, form url.Values) (*types.Response, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, types.ErrConcurrentUse
	}
	defer s.busy.Store(false)

	ctx, span := tracer.Start(ctx, "session:Request")
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("fetgoat.path", path))

	req, err := s.newRequest(path, method, form)
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	s.metrics.RequestsTotal.Add(1)
	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		s.metrics.RequestsFailed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.StatusCode >= 500 {
			s.metrics.ErrorPages.Add(1)
			return nil, fmt.Errorf("%w: %w", types.ErrUnavailable, err)
		}
		return nil, err
	}

	s.metrics.RecordResponse(resp.StatusCode, len(resp.Body))
	s.absorb(resp)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func (s *Session) newRequest(path, method string, form url.Values) (*types.Request, error) {
	if method == "" {
		method = http.MethodGet
	}

	target := path
	var body url.Values
	switch method {
	case http.MethodGet:
		target = types.WithQuery(path, form)
	case http.MethodPost:
		body = make(url.Values, len(form)+1)
		for k, v := range form {
			body[k] = append([]string(nil), v...)
		}
		if body.Get("authenticity_token") == "" && s.csrf != "" {
			body.Set("authenticity_token", s.csrf)
		}
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}

	u, err := s.base.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", types.ErrInvalidURL, target, err)
	}

	return &types.Request{
		URL:       u,
		Method:    method,
		Headers:   make(http.Header),
		Form:      body,
		CreatedAt: time.Now(),
	}, nil
}

// absorb records what every response teaches the session.
func (s *Session) absorb(resp *types.Response) {
	s.lastPage = resp.Body
	s.lastURL = resp.FinalURL
	if token, ok := s.markers.FindCSRFToken(resp.Body); ok {
		s.csrf = token
	}
	if len(resp.Cookies) > 0 {
		s.jar.SetCookies(s.base, resp.Cookies)
	}
	s.persist()
}

func (s *Session) persist() {
	if err := s.store.Save(s.account, s.jar.Saved(s.base)); err != nil {
		s.logger.Warn("failed to persist cookies", "error", err)
	}
}

// CSRFToken returns the token harvested from the most recent page.
func (s *Session) CSRFToken() string { return s.csrf }

// UserID returns the signed-in user's id, or 0 before login.
func (s *Session) UserID() int64 { return s.userID }

// Nickname returns the signed-in user's nickname when known.
func (s *Session) Nickname() string { return s.nickname }

// Account returns the handle that keys the cookie store.
func (s *Session) Account() string { return s.account }

// LoggedIn reports whether a login or resume succeeded.
func (s *Session) LoggedIn() bool { return s.userID > 0 }

// LastPage returns the body of the most recent response.
func (s *Session) LastPage() []byte { return s.lastPage }

// LastURL returns the final URL of the most recent response.
func (s *Session) LastURL() string { return s.lastURL }

// BaseURL returns the site base URL.
func (s *Session) BaseURL() *url.URL {
	u := *s.base
	return &u
}

// Permalink returns the absolute URL for a server-relative path.
func (s *Session) Permalink(path string) string {
	return s.base.String() + path
}

// Markers returns the page markers the session was configured with.
func (s *Session) Markers() Markers { return s.markers }

// Fetcher returns the session's transport. Requests sent through it
// carry the session cookies when the default HTTP fetcher is in use.
func (s *Session) Fetcher() fetcher.Fetcher { return s.fetcher }

// Metrics returns the session's counters.
func (s *Session) Metrics() *observability.Metrics { return s.metrics }

// Close flushes cookies and releases the transport.
func (s *Session) Close() error {
	s.persist()
	return s.fetcher.Close()
}
