// Package parser turns site HTML into field mappings. Extraction is driven
// by declarative rule tables so that markup drift is a table edit.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/types"
)

// Rule assigns the first node matched by XPath to Field.
type Rule struct {
	// Field is the key the value is stored under.
	Field string

	// XPath is evaluated relative to the node handed to ExtractFields.
	XPath string

	// Attr selects what is read from the matched node: "" for trimmed
	// text, "html" for inner markup, "outer" for outer markup, anything
	// else names an attribute.
	Attr string

	// Mandatory fields must match; a miss fails the whole extraction.
	Mandatory bool

	// Default is stored when an optional field is absent. Empty means
	// the field stays absent.
	Default string

	// Transform rewrites the raw value before it is stored.
	Transform func(string) string

	// Decompose splits the raw value into several fields. When set, Field
	// itself is not stored unless Decompose returns it.
	Decompose func(string) map[string]string
}

// Fields is the result of an extraction. An absent key means the field
// was optional and did not match.
type Fields map[string]string

// Has reports whether key was extracted.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Int returns key parsed as an integer, or 0.
func (f Fields) Int(key string) int64 {
	n, err := strconv.ParseInt(f[key], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Bool reports whether key was extracted with a non-empty value.
func (f Fields) Bool(key string) bool {
	return f[key] != ""
}

// Time returns key parsed as an RFC 3339 timestamp, or the zero time.
func (f Fields) Time(key string) time.Time {
	return ParseTime(f[key])
}

// Parse builds a tree from a page body.
func Parse(body []byte) (*html.Node, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ExtractFields applies rules to node. Optional misses leave the field
// absent; a mandatory miss returns a *types.ParseError wrapping
// types.ErrMissingField.
func ExtractFields(node *html.Node, rules []Rule) (Fields, error) {
	fields := make(Fields, len(rules))
	for _, rule := range rules {
		raw, ok, err := extractOne(node, rule)
		if err != nil {
			return nil, &types.ParseError{Field: rule.Field, Selector: rule.XPath, Err: err}
		}
		if !ok {
			if rule.Mandatory {
				return nil, &types.ParseError{Field: rule.Field, Selector: rule.XPath, Err: types.ErrMissingField}
			}
			if rule.Default != "" {
				fields[rule.Field] = rule.Default
			}
			continue
		}

		if rule.Transform != nil {
			raw = rule.Transform(raw)
		}
		if rule.Decompose != nil {
			for k, v := range rule.Decompose(raw) {
				fields[k] = v
			}
			continue
		}
		fields[rule.Field] = raw
	}
	return fields, nil
}

func extractOne(node *html.Node, rule Rule) (string, bool, error) {
	match, err := htmlquery.Query(node, rule.XPath)
	if err != nil {
		return "", false, fmt.Errorf("invalid xpath: %w", err)
	}
	if match == nil {
		return "", false, nil
	}

	switch rule.Attr {
	case "":
		return Text(match), true, nil
	case "html":
		return htmlquery.OutputHTML(match, false), true, nil
	case "outer":
		return htmlquery.OutputHTML(match, true), true, nil
	default:
		v, ok := Attr(match, rule.Attr)
		return v, ok, nil
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04Z",
	"2006-01-02 15:04",
	"Monday, January 2, 2006 at 3:04 PM",
	"Mon, Jan 2, 2006 at 3:04 PM",
	"January 2, 2006 3:04 PM",
	"2006-01-02",
}

// ParseTime reads the timestamp formats the site uses in datetime and
// content attributes.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
