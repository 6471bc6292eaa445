package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"
)

// cookieJar is a cookiejar.Jar that also keeps the attributes each cookie
// was set with. Cookies reads back only name and value, which is not
// enough to restore path, expiry and flags on the next run.
type cookieJar struct {
	*cookiejar.Jar

	mu  sync.Mutex
	set map[string]*http.Cookie
	now func() time.Time
}

func newCookieJar() (*cookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &cookieJar{Jar: jar, set: make(map[string]*http.Cookie), now: time.Now}, nil
}

// SetCookies implements http.CookieJar.
func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.Jar.SetCookies(u, cookies)

	now := j.now()
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		key := c.Name + "\x00" + c.Domain + "\x00" + c.Path
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.set, key)
			continue
		}
		kept := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: c.SameSite,
		}
		if c.MaxAge > 0 {
			kept.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.set[key] = kept
	}
}

// Saved returns the cookies the jar would send to u, carrying the
// attributes they were set with. Cookies the jar knows but never saw set
// come back as name and value only.
func (j *cookieJar) Saved(u *url.URL) []*http.Cookie {
	live := make(map[string]string)
	for _, c := range j.Jar.Cookies(u) {
		live[c.Name] = c.Value
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*http.Cookie, 0, len(live))
	for _, c := range j.set {
		if v, ok := live[c.Name]; ok && v == c.Value {
			cp := *c
			out = append(out, &cp)
			delete(live, c.Name)
		}
	}
	for name, value := range live {
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
