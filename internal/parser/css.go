package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SkipFunc reports whether a child of a rendered fragment is left out.
type SkipFunc func(*goquery.Selection) bool

// RenderChildren serializes the child nodes of n back to markup,
// dropping the ones skip matches. A nil skip keeps everything.
func RenderChildren(n *html.Node, skip SkipFunc) string {
	if n == nil {
		return ""
	}

	var b strings.Builder
	goquery.NewDocumentFromNode(n).Contents().Each(func(_ int, s *goquery.Selection) {
		if skip != nil && skip(s) {
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		b.WriteString(out)
	})
	return strings.TrimSpace(b.String())
}

// ClassContains matches elements whose class attribute contains marker,
// ignoring case.
func ClassContains(marker string) SkipFunc {
	marker = strings.ToLower(marker)
	return func(s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		return ok && strings.Contains(strings.ToLower(class), marker)
	}
}

