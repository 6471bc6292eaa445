// Package fetgoat is the library entry point: it wires configuration, a
// signed-in session, identity resolution and the entity model together.
//
// Example usage:
//
//	client, err := fetgoat.New(
//	    fetgoat.WithAccount("Rope_Bunny", os.Getenv("FETLIFE_PASSWORD")),
//	    fetgoat.WithCache("./fetgoat_cache", 24*time.Hour),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.EnsureLogin(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	friends, err := client.User().FriendsOf(ctx, fetgoat.Handle("JohnBaku"), 2)
package fetgoat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/content"
	"github.com/IshaanNene/fetgoat/internal/fetcher"
	"github.com/IshaanNene/fetgoat/internal/identity"
	"github.com/IshaanNene/fetgoat/internal/media"
	"github.com/IshaanNene/fetgoat/internal/observability"
	"github.com/IshaanNene/fetgoat/internal/pipeline"
	"github.com/IshaanNene/fetgoat/internal/session"
	"github.com/IshaanNene/fetgoat/internal/storage"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// Who re-exports identity references for callers outside the module.
type Who = identity.Who

// Self refers to the signed-in account.
func Self() Who { return identity.Self() }

// ID refers to a user by numeric id.
func ID(id int64) Who { return identity.ID(id) }

// Handle refers to a user by nickname.
func Handle(nickname string) Who { return identity.Handle(nickname) }

// ParseWho reads a user reference from free text.
func ParseWho(s string) Who { return identity.Parse(s) }

// ExportOptions selects export pipeline stages.
type ExportOptions = pipeline.Options

// Client is the high-level API for using fetgoat as a library.
type Client struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	session  *session.Session
	cache    *identity.Cache
	resolver *identity.Resolver
	user     *content.User
}

type settings struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   session.Store
	fetcher fetcher.Fetcher
}

// Option configures a Client.
type Option func(*settings)

// WithConfig replaces the default configuration wholesale. Options after
// it still apply on top.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithAccount sets the account credentials.
func WithAccount(nickname, password string) Option {
	return func(s *settings) {
		s.cfg.Account.Nickname = nickname
		s.cfg.Account.Password = password
	}
}

// WithBaseURL points the client at another copy of the site.
func WithBaseURL(rawURL string) Option {
	return func(s *settings) { s.cfg.Site.BaseURL = rawURL }
}

// WithSessionDir sets where session cookies are kept.
func WithSessionDir(dir string) Option {
	return func(s *settings) { s.cfg.Session.StoreDir = dir }
}

// WithProxy enables proxy rotation with the given proxy URLs.
func WithProxy(urls ...string) Option {
	return func(s *settings) {
		s.cfg.Proxy.Enabled = true
		s.cfg.Proxy.URLs = urls
	}
}

// WithCache enables the persistent handle cache.
func WithCache(dir string, ttl time.Duration) Option {
	return func(s *settings) {
		s.cfg.Cache.Enabled = true
		s.cfg.Cache.Dir = dir
		s.cfg.Cache.TTL = ttl
	}
}

// WithOutput sets the export format and directory.
func WithOutput(format, path string) Option {
	return func(s *settings) {
		s.cfg.Storage.Type = format
		s.cfg.Storage.OutputPath = path
	}
}

// WithRetries sets transport retry behavior.
func WithRetries(n int, delay time.Duration) Option {
	return func(s *settings) {
		s.cfg.Fetcher.MaxRetries = n
		s.cfg.Fetcher.RetryDelay = delay
	}
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(s *settings) { s.cfg.Logging.Level = "debug" }
}

// WithLogger replaces the logger built from the logging config.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStore replaces the on-disk cookie store.
func WithStore(store session.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithFetcher replaces the HTTP transport.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(s *settings) { s.fetcher = f }
}

// New creates a Client. No request is made until the first call that
// needs one.
func New(opts ...Option) (*Client, error) {
	s := &settings{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	cfg := s.cfg
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := s.logger
	if logger == nil {
		logger = NewLogger(cfg.Logging, os.Stderr)
	}
	metrics := observability.NewMetrics(logger)

	store := s.store
	if store == nil {
		fs, err := session.NewFileStore(cfg.Session.StoreDir)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	sessOpts := []session.Option{session.WithMetrics(metrics)}
	if s.fetcher != nil {
		sessOpts = append(sessOpts, session.WithFetcher(s.fetcher))
	}
	sess, err := session.New(cfg, store, logger, sessOpts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	cache, err := identity.NewCache(cfg.Cache)
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("open identity cache: %w", err)
	}
	resolver := identity.NewResolver(sess, cache, metrics, logger)

	return &Client{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		session:  sess,
		cache:    cache,
		resolver: resolver,
		user:     content.NewUser(sess, resolver, metrics, logger),
	}, nil
}

// NewLogger builds the structured logger described by cfg.
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Config returns the effective configuration.
func (c *Client) Config() *config.Config { return c.cfg }

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Session returns the underlying session.
func (c *Client) Session() *session.Session { return c.session }

// User returns the entity API bound to the session.
func (c *Client) User() *content.User { return c.user }

// Metrics returns the shared counters.
func (c *Client) Metrics() *observability.Metrics { return c.metrics }

// Login signs in with the configured credentials, through a headless
// browser when browser.enabled is set. It reports false for rejected
// credentials.
func (c *Client) Login(ctx context.Context) (bool, error) {
	creds := session.Credentials{Nickname: c.cfg.Account.Nickname, Password: c.cfg.Account.Password}
	if c.cfg.Browser.Enabled {
		return c.session.LoginWithBrowser(ctx, creds)
	}
	return c.session.Login(ctx, creds)
}

// EnsureLogin reuses stored cookies when they are still signed in, then
// tries browser cookies when session.browser_cookies is set, and only
// then logs in with the password.
func (c *Client) EnsureLogin(ctx context.Context) error {
	ok, err := c.session.Resume(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if c.cfg.Session.BrowserCookies {
		n, err := c.session.ImportBrowserCookies(ctx)
		if err != nil {
			c.logger.Warn("browser cookie import failed", "error", err)
		}
		if n > 0 {
			if ok, err = c.session.Resume(ctx); err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}

	if c.cfg.Account.Password == "" {
		return fmt.Errorf("%w: no stored session and no password for %q", types.ErrNotLoggedIn, c.cfg.Account.Nickname)
	}
	ok, err = c.Login(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w for %q", types.ErrLoginFailed, c.cfg.Account.Nickname)
	}
	return nil
}

// ServeMetrics starts the metrics endpoint when metrics.enabled is set.
func (c *Client) ServeMetrics(ctx context.Context) error {
	if !c.cfg.Metrics.Enabled {
		return nil
	}
	return c.metrics.StartServer(ctx, c.cfg.Metrics.Port, c.cfg.Metrics.Path)
}

// Export runs items through the export pipeline and writes the survivors
// to the configured sink under name. It returns how many were written.
func (c *Client) Export(ctx context.Context, name string, items []*types.Item, opts ExportOptions) (int, error) {
	kept, err := pipeline.Build(opts, c.logger).Run(items)
	if err != nil {
		return 0, err
	}
	c.metrics.ItemsDropped.Add(int64(len(items) - len(kept)))

	sink, err := storage.New(c.cfg.Storage, name, c.logger)
	if err != nil {
		return 0, &types.StorageError{Backend: c.cfg.Storage.Type, Err: err}
	}
	storeErr := sink.Store(ctx, kept)
	closeErr := sink.Close()
	if err := errors.Join(storeErr, closeErr); err != nil {
		return 0, &types.StorageError{Backend: sink.Name(), Err: err}
	}

	c.metrics.ItemsExported.Add(int64(len(kept)))
	c.logger.Info("export complete", "name", name, "sink", sink.Name(), "items", len(kept))
	return len(kept), nil
}

// DownloadPictures saves pictures under media.output_dir.
func (c *Client) DownloadPictures(ctx context.Context, pictures []*content.Picture, concurrent int) ([]*media.DownloadResult, error) {
	dl, err := media.NewDownloader(c.cfg.Media, c.session.Fetcher(), concurrent, c.metrics, c.logger)
	if err != nil {
		return nil, err
	}
	return dl.DownloadAll(ctx, pictures), nil
}

// Close flushes session cookies and closes the identity cache.
func (c *Client) Close() error {
	return errors.Join(c.session.Close(), c.resolver.Close())
}
