package session

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/parser"
)

var numericCharRef = regexp.MustCompile(`&#([xX][0-9a-fA-F]+|[0-9]+);`)

// Markers recognizes the page features the session relies on: the CSRF
// meta tag, the inline script carrying the signed-in user's id, the
// profile title, and the two bounce pages.
type Markers struct {
	CSRFPattern     string
	UserIDPatterns  []string
	NicknamePattern string
	HomeMarker      []byte
	ErrorMarker     []byte
}

// NewMarkers builds Markers from site configuration.
func NewMarkers(site config.SiteConfig) Markers {
	return Markers{
		CSRFPattern:     site.CSRFPattern,
		UserIDPatterns:  site.UserIDPatterns,
		NicknamePattern: site.NicknamePattern,
		HomeMarker:      []byte(site.HomeMarker),
		ErrorMarker:     []byte(site.ErrorMarker),
	}
}

// FindCSRFToken returns the page's authenticity token with numeric
// character references decoded.
func (m Markers) FindCSRFToken(body []byte) (string, bool) {
	raw, ok := parser.FindFirst(m.CSRFPattern, body)
	if !ok || raw == "" {
		return "", false
	}
	return decodeCharRefs(raw), true
}

// FindUserID returns the signed-in user's id from an authenticated page.
func (m Markers) FindUserID(body []byte) (int64, bool) {
	raw, ok := parser.FindFirstOf(m.UserIDPatterns, body)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FindNickname returns the nickname from a profile page title.
func (m Markers) FindNickname(body []byte) (string, bool) {
	return parser.FindFirst(m.NicknamePattern, body)
}

// IsHomePage reports whether body is the signed-in home page, which the
// site serves in place of missing or hidden entities.
func (m Markers) IsHomePage(body []byte) bool {
	return len(m.HomeMarker) > 0 && bytes.Contains(body, m.HomeMarker)
}

// IsErrorPage reports whether body is the site's generic 500 page.
func (m Markers) IsErrorPage(body []byte) bool {
	return len(m.ErrorMarker) > 0 && bytes.Contains(body, m.ErrorMarker)
}

func decodeCharRefs(s string) string {
	return numericCharRef.ReplaceAllStringFunc(s, func(ref string) string {
		num := ref[2 : len(ref)-1]
		base := 10
		if num[0] == 'x' || num[0] == 'X' {
			num, base = num[1:], 16
		}
		code, err := strconv.ParseInt(num, base, 32)
		if err != nil || code <= 0 {
			return ref
		}
		return string(rune(code))
	})
}
