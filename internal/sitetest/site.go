// Package sitetest serves a small imitation of the site over httptest for
// package tests: a login flow with rotating CSRF tokens, a cookie-gated
// home page, and whatever pages a test registers.
package sitetest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// SessionCookie is the cookie the fake site sets on a successful login.
const SessionCookie = "_fl_sessionid"

// Site is a running fake site.
type Site struct {
	*httptest.Server

	Nickname string
	Password string
	UserID   int64

	mu        sync.Mutex
	pages     map[string]page
	redirects map[string]string
	hits      map[string]int
	tokenSeq  int
	issued    string
	lastForm  url.Values
}

type page struct {
	status int
	body   string
}

// New starts a fake site and stops it when the test ends.
func New(t testing.TB) *Site {
	t.Helper()
	s := &Site{
		Nickname:  "TestKinkster",
		Password:  "s3cret",
		UserID:    1001,
		pages:     make(map[string]page),
		redirects: make(map[string]string),
		hits:      make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Page registers body under a request URI such as "/users/1?page=2".
func (s *Site) Page(uri, body string) {
	s.PageStatus(uri, http.StatusOK, body)
}

// PageStatus registers body with an explicit status code.
func (s *Site) PageStatus(uri string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[uri] = page{status: status, body: body}
}

// Redirect makes requests for from answer 302 to to.
func (s *Site) Redirect(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = to
}

// Hits returns how many times uri was requested.
func (s *Site) Hits(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[uri]
}

// TotalHits returns the number of requests served.
func (s *Site) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// LastForm returns the last POSTed form.
func (s *Site) LastForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm
}

// IssuedToken returns the decoded CSRF token of the last rendered page.
func (s *Site) IssuedToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.RequestURI()

	s.mu.Lock()
	s.hits[uri]++
	to, redirected := s.redirects[uri]
	p, found := s.pages[uri]
	s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && uri == "/login":
		s.write(w, http.StatusOK, s.layout("Login - FetLife", false, `<form action="/session" method="post"></form>`))
	case r.Method == http.MethodPost && uri == "/session":
		s.login(w, r)
	case redirected:
		http.Redirect(w, r, to, http.StatusFound)
	case found:
		s.write(w, p.status, p.body)
	case uri == "/" || uri == "/home":
		s.write(w, http.StatusOK, s.layout("Home - FetLife", s.authenticated(r), "<h1>Home</h1>"))
	default:
		http.NotFound(w, r)
	}
}

func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lastForm = r.PostForm
	issued := s.issued
	s.mu.Unlock()

	ok := r.PostForm.Get("authenticity_token") == issued &&
		r.PostForm.Get("nickname_or_email") == s.Nickname &&
		r.PostForm.Get("password") == s.Password
	if !ok {
		s.write(w, http.StatusOK, s.layout("Login - FetLife", false, `<p class="flash">Login failed</p>`))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "valid",
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/home", http.StatusFound)
}

func (s *Site) authenticated(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value == "valid"
}

func (s *Site) write(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// layout renders a page carrying a fresh CSRF token whose "+" is written
// as a numeric character reference, as the site does.
func (s *Site) layout(title string, signedIn bool, body string) string {
	s.mu.Lock()
	s.tokenSeq++
	raw := fmt.Sprintf("tok%d&#43;Zz=", s.tokenSeq)
	s.issued = fmt.Sprintf("tok%d+Zz=", s.tokenSeq)
	s.mu.Unlock()

	var script string
	if signedIn {
		script = fmt.Sprintf("<script>var currentUserId = %d;</script>", s.UserID)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>%s</title>
<meta name="csrf-token" content="%s"/>
%s</head>
<body>%s</body></html>`, html.EscapeString(title), raw, script, body)
}

// Layout renders a signed-in page with the given title and body.
func (s *Site) Layout(title, body string) string {
	return s.layout(title, true, body)
}

// ErrorPage is the site's generic 500 page, served with status 200.
func ErrorPage() string {
	return `<html><head><title>FetLife</title></head><body><p class="error_code">500 Internal Server Error</p></body></html>`
}

// Pagination renders the pagination control for page cur of total. The
// last page has no next_page link, like the site.
func Pagination(base string, cur, total int) string {
	if total <= 1 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div class="pagination">`)
	if cur > 1 {
		fmt.Fprintf(&b, `<a class="previous_page" rel="prev" href="%s?page=%d">&laquo; Previous</a>`, base, cur-1)
	}
	for i := 1; i <= total; i++ {
		if i == cur {
			fmt.Fprintf(&b, `<em class="current">%d</em>`, i)
			continue
		}
		fmt.Fprintf(&b, `<a href="%s?page=%d">%d</a>`, base, i, i)
	}
	if cur < total {
		fmt.Fprintf(&b, `<a class="next_page" rel="next" href="%s?page=%d">Next &raquo;</a>`, base, cur+1)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// UserRow renders one user_in_list entry.
func UserRow(id int64, nickname, agr, location string) string {
	return fmt.Sprintf(`<div class="clearfix user_in_list">
  <div><a href="/users/%d"><img alt="%s" src="https://pic.example/%d_60.jpg" class="profile_avatar"></a></div>
  <div><a href="/users/%d" class="large">%s</a><span class="quiet">%s</span><em class="small">%s</em></div>
</div>`, id, nickname, id, id, nickname, agr, location)
}

// UserListPage renders a page of n users starting at firstID.
func (s *Site) UserListPage(base string, cur, total int, firstID int64, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		b.WriteString(UserRow(id, fmt.Sprintf("user%d", id), "29M Dom", "Berlin, Germany"))
	}
	b.WriteString(Pagination(base, cur, total))
	return s.Layout("Friends - FetLife", b.String())
}
