// Package content models the site's entities: profiles, writings,
// pictures, comments, events, groups and group discussions.
//
// Every entity starts as a stub carrying at least its id, possibly with
// fields copied from a listing row. Populate fetches the entity's own page
// and merges what it finds. Nothing populates implicitly.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// State is the population state of an entity.
type State int

const (
	// Stub entities know their identity and whatever a listing showed.
	Stub State = iota
	// Populated entities have merged their own detail page at least once.
	Populated
)

func (s State) String() string {
	if s == Populated {
		return "populated"
	}
	return "stub"
}

// next is the population transition. A failed fetch leaves the state as
// it was; nothing returns to Stub.
func next(s State, fetched bool) State {
	if fetched {
		return Populated
	}
	return s
}

// Entity is implemented by every content variant.
type Entity interface {
	// URL is the server-relative path of the entity's page.
	URL() string
	// Permalink is the absolute URL of the entity's page.
	Permalink() string
	State() State
	Populate(ctx context.Context) error
}

// Content holds what every entity shares.
type Content struct {
	ID int64

	// Creator is nil for profiles.
	Creator *Profile

	// Body is the entity's markup fragment, when it has one.
	Body *html.Node

	// Text is used for entities whose body is plain text.
	Text string

	Published time.Time

	user  *User
	state State
}

// State reports whether the entity has been populated.
func (c *Content) State() State { return c.state }

// IsPopulated is shorthand for State() == Populated.
func (c *Content) IsPopulated() bool { return c.state == Populated }

// ContentHTML renders the body fragment's children back to markup, or
// the escaped plain text when there is no fragment.
func (c *Content) ContentHTML() string {
	if c.Body == nil {
		return html.EscapeString(c.Text)
	}
	return parser.RenderChildren(c.Body, nil)
}

// ContentText returns the body's text content.
func (c *Content) ContentText() string {
	if c.Body == nil {
		return c.Text
	}
	return parser.Text(c.Body)
}

func (c *Content) permalink(path string) string {
	if c.user == nil {
		return path
	}
	return c.user.client.Permalink(path)
}

func (c *Content) markPopulated() {
	c.state = next(c.state, true)
	c.user.metrics.EntitiesPopulated.Add(1)
}

// fetchPage loads path and rejects the site's disguised failures before
// anything is read from the page: a bounce to the home page (or a plain
// 404) is types.ErrNotFound, the generic error page is
// types.ErrUnavailable.
func (u *User) fetchPage(ctx context.Context, path string) (*html.Node, error) {
	if u == nil {
		return nil, fmt.Errorf("populate %s: entity has no session", path)
	}
	resp, err := u.client.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("populate %s: %w", path, err)
	}

	markers := u.client.Markers()
	switch {
	case resp.StatusCode == http.StatusNotFound, markers.IsHomePage(resp.Body):
		u.metrics.HomeBounces.Add(1)
		u.logger.Debug("bounced", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("populate %s: %w", path, types.ErrNotFound)
	case markers.IsErrorPage(resp.Body):
		u.metrics.ErrorPages.Add(1)
		return nil, fmt.Errorf("populate %s: %w", path, types.ErrUnavailable)
	case len(resp.Body) == 0:
		return nil, fmt.Errorf("populate %s: %w: %w", path, types.ErrUnavailable, types.ErrEmptyResponse)
	}

	doc, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("populate %s: %w", path, err)
	}
	return doc, nil
}

// extract applies rules to node, turning a mandatory miss into
// types.ErrUnavailable so callers can tell it from an empty entity.
func (u *User) extract(path string, node *html.Node, rules []parser.Rule) (parser.Fields, error) {
	fields, err := parser.ExtractFields(node, rules)
	if err == nil {
		return fields, nil
	}

	var pe *types.ParseError
	if errors.As(err, &pe) {
		pe.URL = path
		if errors.Is(pe, types.ErrMissingField) {
			u.metrics.ParseFailures.Add(1)
			u.logger.Warn("mandatory field missing", "path", path, "field", pe.Field)
			return nil, fmt.Errorf("%w: %w", types.ErrUnavailable, pe)
		}
	}
	return nil, err
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
