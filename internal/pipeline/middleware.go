package pipeline

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/types"
)

// HTMLFields are the exported fields that carry markup.
var HTMLFields = []string{"content", "bio"}

// TextFields are the exported free-text fields.
var TextFields = []string{"content", "bio", "caption", "description", "tagline"}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from all string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(item *types.Item) (*types.Item, error) {
	for key, v := range item.Fields {
		if s, ok := v.(string); ok {
			item.Set(key, strings.TrimSpace(s))
		}
	}
	return item, nil
}

// DedupMiddleware drops repeated entities. Listings overlap when a page
// shifts during a walk, so the same kind and id can arrive twice.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(item *types.Item) (*types.Item, error) {
	key := fmt.Sprintf("%s/%d", item.Kind, item.ID)
	if item.ID == 0 {
		key = item.Kind + "/" + item.URL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return item, nil
}

// KindFilterMiddleware keeps only items of the given kinds.
type KindFilterMiddleware struct {
	kinds map[string]bool
}

func NewKindFilterMiddleware(kinds ...string) *KindFilterMiddleware {
	m := &KindFilterMiddleware{kinds: make(map[string]bool, len(kinds))}
	for _, k := range kinds {
		m.kinds[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return m
}

func (m *KindFilterMiddleware) Name() string { return "kind_filter" }

func (m *KindFilterMiddleware) Process(item *types.Item) (*types.Item, error) {
	if !m.kinds[item.Kind] {
		return nil, nil
	}
	return item, nil
}

// FieldFilterMiddleware keeps only the named fields.
type FieldFilterMiddleware struct {
	fields map[string]bool
}

func NewFieldFilterMiddleware(fields ...string) *FieldFilterMiddleware {
	m := &FieldFilterMiddleware{fields: make(map[string]bool, len(fields))}
	for _, f := range fields {
		m.fields[strings.TrimSpace(f)] = true
	}
	return m
}

func (m *FieldFilterMiddleware) Name() string { return "field_filter" }

func (m *FieldFilterMiddleware) Process(item *types.Item) (*types.Item, error) {
	if len(m.fields) == 0 {
		return item, nil
	}
	for _, key := range item.Keys() {
		if !m.fields[key] {
			item.Delete(key)
		}
	}
	return item, nil
}

// RequiredFieldsMiddleware drops items missing required fields or
// carrying them empty.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, field := range m.Fields {
		val, ok := item.Get(field)
		if !ok || val == nil {
			return nil, nil
		}
		if s, isString := val.(string); isString && s == "" {
			return nil, nil
		}
	}
	return item, nil
}

// HTMLSanitizeMiddleware replaces markup in the given fields with its
// text content.
type HTMLSanitizeMiddleware struct {
	fields []string
}

func NewHTMLSanitizeMiddleware(fields ...string) *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{fields: fields}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range m.fields {
		s := item.GetString(key)
		if s == "" {
			continue
		}
		text, err := plainText(s)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		item.Set(key, text)
	}
	return item, nil
}

// PIIRedactMiddleware masks contact details people leave in free text.
type PIIRedactMiddleware struct {
	fields   []string
	patterns []piiPattern
	logger   *slog.Logger
}

type piiPattern struct {
	kind string
	re   *regexp.Regexp
}

func NewPIIRedactMiddleware(fields []string, logger *slog.Logger) *PIIRedactMiddleware {
	return &PIIRedactMiddleware{
		fields: fields,
		patterns: []piiPattern{
			{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
			{"phone", regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)},
			{"handle", regexp.MustCompile(`(?i)\b(?:kik|telegram|snap(?:chat)?|whatsapp)\s*[:\-]?\s*@?[a-z0-9_.]{3,}`)},
		},
		logger: logger.With("component", "pii_redact"),
	}
}

func (m *PIIRedactMiddleware) Name() string { return "pii_redact" }

func (m *PIIRedactMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range m.fields {
		s := item.GetString(key)
		if s == "" {
			continue
		}
		for _, p := range m.patterns {
			if p.re.MatchString(s) {
				s = p.re.ReplaceAllString(s, "[REDACTED_"+strings.ToUpper(p.kind)+"]")
				m.logger.Debug("PII redacted", "kind", item.Kind, "id", item.ID, "field", key, "type", p.kind)
			}
		}
		item.Set(key, s)
	}
	return item, nil
}

// WordCountMiddleware adds <field>_word_count for the given fields. Markup
// is not counted.
type WordCountMiddleware struct {
	fields []string
	suffix string
}

func NewWordCountMiddleware(fields []string) *WordCountMiddleware {
	return &WordCountMiddleware{
		fields: fields,
		suffix: "_word_count",
	}
}

func (m *WordCountMiddleware) Name() string { return "word_count" }

func (m *WordCountMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, field := range m.fields {
		s := item.GetString(field)
		if s == "" {
			continue
		}
		if strings.Contains(s, "<") {
			if text, err := plainText(s); err == nil {
				s = text
			}
		}
		item.Set(field+m.suffix, len(strings.Fields(s)))
	}
	return item, nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// plainText returns the text of an HTML fragment with block elements
// separated by a space and whitespace runs collapsed.
func plainText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte(' ')
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}
