package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// Login form selectors on the site's /login page.
const (
	loginNicknameSelector = `input[name="nickname_or_email"]`
	loginPasswordSelector = `input[name="password"]`
	loginSubmitSelector   = `button[type="submit"], input[type="submit"]`
)

// BrowserLogin signs in through a real headless browser, for accounts the
// plain form POST cannot get through (bot checks, JS challenges).
type BrowserLogin struct {
	cfg     *config.Config
	proxies *ProxyPool
	logger  *slog.Logger
}

// NewBrowserLogin creates a browser login helper. proxies may be nil.
func NewBrowserLogin(cfg *config.Config, proxies *ProxyPool, logger *slog.Logger) *BrowserLogin {
	return &BrowserLogin{
		cfg:     cfg,
		proxies: proxies,
		logger:  logger.With("component", "browser_login"),
	}
}

// Login submits the login form and returns the landing page together with
// the cookies the browser ended up holding for the site.
func (bl *BrowserLogin) Login(ctx context.Context, nickname, password string) (*types.Response, error) {
	start := time.Now()
	loginURL := strings.TrimRight(bl.cfg.Site.BaseURL, "/") + "/login"

	req, err := types.NewRequest(loginURL)
	if err != nil {
		return nil, err
	}
	req.Tag = "login"

	browser, cleanup, err := bl.connect()
	if err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: err}
	}
	defer cleanup()

	var page *rod.Page
	if bl.cfg.Browser.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: fmt.Errorf("open page: %w", err)}
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(bl.cfg.Browser.Timeout)

	if err := page.Navigate(loginURL); err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: err, Retryable: true}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: err, Retryable: true}
	}

	if err := bl.fillForm(page, nickname, password); err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: err}
	}

	if err := page.WaitStable(500 * time.Millisecond); err != nil {
		bl.logger.Warn("page stability timeout, continuing", "error", err)
	}

	body, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: err, Retryable: true}
	}

	finalURL := loginURL
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	pageCookies, err := page.Cookies([]string{bl.cfg.Site.BaseURL})
	if err != nil {
		return nil, &types.FetchError{URL: loginURL, Err: fmt.Errorf("read cookies: %w", err)}
	}

	duration := time.Since(start)
	bl.logger.Debug("browser login complete",
		"final_url", finalURL,
		"cookies", len(pageCookies),
		"duration", duration,
	)

	return types.NewBrowserResponse(req, []byte(body), finalURL, toHTTPCookies(pageCookies), duration), nil
}

func (bl *BrowserLogin) fillForm(page *rod.Page, nickname, password string) error {
	nickEl, err := page.Element(loginNicknameSelector)
	if err != nil {
		return fmt.Errorf("find nickname field: %w", err)
	}
	if err := nickEl.Input(nickname); err != nil {
		return fmt.Errorf("type nickname: %w", err)
	}

	passEl, err := page.Element(loginPasswordSelector)
	if err != nil {
		return fmt.Errorf("find password field: %w", err)
	}
	if err := passEl.Input(password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}

	submit, err := page.Element(loginSubmitSelector)
	if err != nil {
		return fmt.Errorf("find submit button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}
	return nil
}

// connect attaches to an existing browser when browser.control_url is set,
// otherwise launches a local Chromium.
func (bl *BrowserLogin) connect() (*rod.Browser, func(), error) {
	controlURL := bl.cfg.Browser.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().
			Headless(bl.cfg.Browser.Headless).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-blink-features", "AutomationControlled")

		if bl.proxies != nil {
			if proxyURL := bl.proxies.Next(); proxyURL != nil {
				l = l.Proxy(proxyURL.String())
			}
		}

		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("connect browser: %w", err)
	}

	// A browser we attached to stays up; only our own launch is torn down.
	cleanup := func() {
		if l != nil {
			_ = browser.Close()
			l.Kill()
		}
	}
	return browser, cleanup, nil
}

func toHTTPCookies(in []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = c.Expires.Time()
		}
		out = append(out, hc)
	}
	return out
}
