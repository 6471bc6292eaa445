// Package listing walks the site's paginated listings and collects the
// repeated item fragments in page order.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/antchfx/htmlquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/observability"
	"github.com/IshaanNene/fetgoat/internal/parser"
	"github.com/IshaanNene/fetgoat/internal/types"
)

var tracer = otel.Tracer("fetgoat/listing")

// PaginationXPath matches the anchors of the pagination control, found
// through its next-page link.
const PaginationXPath = `//a[@class="next_page"]/../a`

// Getter issues GET requests relative to the site base URL.
// *session.Session satisfies it.
type Getter interface {
	Get(ctx context.Context, path string, form url.Values) (*types.Response, error)
}

// Listing describes one paginated listing.
type Listing struct {
	// Path is the server-relative listing URL, e.g. "/users/42/friends".
	Path string

	// ItemXPath matches one repeated item on a page.
	ItemXPath string

	// Limit caps the number of pages fetched. Zero means every page.
	Limit int

	// Query carries extra query parameters sent with every page.
	Query url.Values
}

// Page is one fetched listing page.
type Page struct {
	Number int
	Doc    *html.Node
	Items  []*html.Node
}

// Walker fetches listings one page at a time.
type Walker struct {
	getter  Getter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWalker creates a walker over g. A nil metrics gets a private set.
func NewWalker(g Getter, metrics *observability.Metrics, logger *slog.Logger) *Walker {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Walker{
		getter:  g,
		metrics: metrics,
		logger:  logger.With("component", "listing"),
	}
}

// Walk fetches page 1, reads the total page count from it, then fetches
// pages 2 through min(total, limit) and returns every item fragment in
// page and document order. Any page failing fails the whole walk.
func (w *Walker) Walk(ctx context.Context, l Listing) ([]*html.Node, error) {
	var items []*html.Node
	err := w.Each(ctx, l, func(p *Page) error {
		items = append(items, p.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Each is Walk with a callback per page, for callers that need the
// surrounding page as well as its items. An error from fn stops the walk.
func (w *Walker) Each(ctx context.Context, l Listing, fn func(*Page) error) error {
	ctx, span := tracer.Start(ctx, "listing:Walk")
	defer span.End()
	span.SetAttributes(attribute.String("fetgoat.listing", l.Path), attribute.Int("fetgoat.limit", l.Limit))

	if l.Limit < 0 {
		return fmt.Errorf("walk %s: negative page limit %d", l.Path, l.Limit)
	}

	first, err := w.fetch(ctx, l, 1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "first page failed")
		return err
	}

	total := CountPages(first.Doc)
	last := total
	if l.Limit > 0 && l.Limit < last {
		last = l.Limit
	}
	span.SetAttributes(attribute.Int("fetgoat.pages_total", total), attribute.Int("fetgoat.pages_walked", last))
	w.logger.Debug("walking listing", "path", l.Path, "pages", total, "limit", l.Limit)

	if err := fn(first); err != nil {
		return err
	}
	for n := 2; n <= last; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := w.fetch(ctx, l, n)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "page failed")
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) fetch(ctx context.Context, l Listing, n int) (*Page, error) {
	target := PageURL(l.Path, n, l.Query)
	resp, err := w.getter.Get(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d of %s: %w", n, l.Path, err)
	}
	w.metrics.PagesWalked.Add(1)

	doc, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, &types.ParseError{URL: target, Err: err}
	}
	items, err := htmlquery.QueryAll(doc, l.ItemXPath)
	if err != nil {
		return nil, &types.ParseError{URL: target, Selector: l.ItemXPath, Err: err}
	}
	w.logger.Debug("listing page", "url", target, "items", len(items))
	return &Page{Number: n, Doc: doc, Items: items}, nil
}

// CountPages returns the number of pages announced by the pagination
// control, or 1 when the page has no next-page link.
func CountPages(doc *html.Node) int {
	anchors := parser.Query(doc, PaginationXPath)
	if len(anchors) < 2 {
		return 1
	}
	if n, err := strconv.Atoi(parser.Text(anchors[len(anchors)-2])); err == nil && n > 0 {
		return n
	}

	// Controls that end in an ellipsis or a "last" link: take the largest
	// number shown.
	best := 1
	for _, a := range anchors {
		if n, err := strconv.Atoi(parser.Text(a)); err == nil && n > best {
			best = n
		}
	}
	return best
}

// PageURL returns the URL of page n of a listing. Page 1 is the bare
// listing URL; later pages add page=n.
func PageURL(path string, n int, query url.Values) string {
	q := make(url.Values, len(query)+1)
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	if n > 1 {
		q.Set("page", strconv.Itoa(n))
	} else {
		q.Del("page")
	}
	return types.WithQuery(path, q)
}
