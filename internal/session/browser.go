package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register every browser cookie store

	"github.com/IshaanNene/fetgoat/internal/fetcher"
)

// ImportBrowserCookies copies the site's cookies out of the local
// browsers into the session jar, so a session signed in through a
// desktop browser can be reused. It returns how many cookies were taken.
func (s *Session) ImportBrowserCookies(ctx context.Context) (int, error) {
	domain := strings.TrimPrefix(s.base.Hostname(), "www.")

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil && len(kookies) == 0 {
		return 0, fmt.Errorf("read browser cookies: %w", err)
	}

	seen := make(map[string]bool, len(kookies))
	cookies := make([]*http.Cookie, 0, len(kookies))
	for _, c := range kookies {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	if len(cookies) == 0 {
		return 0, nil
	}

	s.jar.SetCookies(s.base, cookies)
	s.persist()
	s.logger.Info("imported browser cookies", "domain", domain, "count", len(cookies))
	return len(cookies), nil
}

// LoginWithBrowser signs in through a headless browser and adopts the
// cookies it ends up with. The result has the same meaning as Login.
func (s *Session) LoginWithBrowser(ctx context.Context, creds Credentials) (bool, error) {
	ctx, span := tracer.Start(ctx, "session:LoginWithBrowser")
	defer span.End()

	s.metrics.LoginsTotal.Add(1)
	if creds.Nickname == "" || creds.Password == "" {
		return false, fmt.Errorf("login: nickname and password are required")
	}

	var proxies *fetcher.ProxyPool
	if pf, ok := s.fetcher.(interface{ Proxies() *fetcher.ProxyPool }); ok {
		proxies = pf.Proxies()
	}

	resp, err := fetcher.NewBrowserLogin(s.cfg, proxies, s.logger).Login(ctx, creds.Nickname, creds.Password)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("browser login: %w", err)
	}
	s.absorb(resp)

	if s.adoptLogin(resp.Body, creds.Nickname) {
		return true, nil
	}
	// The landing page may not carry the marker; the cookies decide.
	ok, err := s.Resume(ctx)
	if err == nil && !ok {
		s.rejected("browser")
	}
	return ok, err
}
