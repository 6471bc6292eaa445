package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/identity"
	"github.com/IshaanNene/fetgoat/internal/listing"
	"github.com/IshaanNene/fetgoat/internal/observability"
	"github.com/IshaanNene/fetgoat/internal/parser"
)

// Client is the part of a session entities need.
type Client interface {
	identity.Client
	Permalink(path string) string
}

// User issues fetches on behalf of a signed-in session and builds
// entities from what comes back. Entities keep a reference to the User
// that made them for later population.
type User struct {
	client   Client
	resolver *identity.Resolver
	walker   *listing.Walker
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewUser wraps client. A nil resolver gets one without a persistent
// cache; nil metrics get a private set.
func NewUser(client Client, resolver *identity.Resolver, metrics *observability.Metrics, logger *slog.Logger) *User {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	if resolver == nil {
		resolver = identity.NewResolver(client, nil, metrics, logger)
	}
	return &User{
		client:   client,
		resolver: resolver,
		walker:   listing.NewWalker(client, metrics, logger),
		metrics:  metrics,
		logger:   logger.With("component", "content"),
	}
}

// Resolve returns the numeric id of who.
func (u *User) Resolve(ctx context.Context, who identity.Who) (int64, error) {
	return u.resolver.Resolve(ctx, who)
}

// Resolver returns the user's identity resolver.
func (u *User) Resolver() *identity.Resolver { return u.resolver }

// --- single entities ---

// Profile fetches the profile of who.
func (u *User) Profile(ctx context.Context, who identity.Who) (*Profile, error) {
	id, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	p := u.NewProfile(id)
	if err := p.Populate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Writing fetches one writing by who.
func (u *User) Writing(ctx context.Context, who identity.Who, id int64) (*Writing, error) {
	cid, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	w := u.NewWriting(cid, id)
	if err := w.Populate(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Picture fetches one picture by who.
func (u *User) Picture(ctx context.Context, who identity.Who, id int64) (*Picture, error) {
	cid, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	p := u.NewPicture(cid, id)
	if err := p.Populate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Status fetches one status update by who.
func (u *User) Status(ctx context.Context, who identity.Who, id int64) (*Status, error) {
	cid, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	s := u.NewStatus(cid, id)
	if err := s.Populate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Event fetches one event. Attendees are left for LoadAttendees.
func (u *User) Event(ctx context.Context, id int64) (*Event, error) {
	e := u.NewEvent(id)
	if err := e.Populate(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Group fetches one group.
func (u *User) Group(ctx context.Context, id int64) (*Group, error) {
	g := u.NewGroup(id)
	if err := g.Populate(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// Discussion fetches one group discussion.
func (u *User) Discussion(ctx context.Context, groupID, id int64) (*GroupDiscussion, error) {
	d := u.NewDiscussion(groupID, id)
	if err := d.Populate(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// --- user listings ---

// FriendsOf lists who's friends, walking at most pages pages (0 for all).
func (u *User) FriendsOf(ctx context.Context, who identity.Who, pages int) ([]*Profile, error) {
	id, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	return u.usersInListing(ctx, fmt.Sprintf("/users/%d/friends", id), pages, nil)
}

// MembersOfGroup lists a group's members.
func (u *User) MembersOfGroup(ctx context.Context, groupID int64, pages int) ([]*Profile, error) {
	return u.usersInListing(ctx, fmt.Sprintf("/groups/%d/group_memberships", groupID), pages, nil)
}

// KinkstersWithFetish lists users into a fetish.
func (u *User) KinkstersWithFetish(ctx context.Context, fetishID int64, pages int) ([]*Profile, error) {
	return u.usersInListing(ctx, fmt.Sprintf("/fetishes/%d/kinksters", fetishID), pages, nil)
}

// KinkstersGoingToEvent lists an event's confirmed RSVPs.
func (u *User) KinkstersGoingToEvent(ctx context.Context, eventID int64, pages int) ([]*Profile, error) {
	return u.usersInListing(ctx, fmt.Sprintf("/events/%d/rsvps", eventID), pages, nil)
}

// KinkstersMaybeGoingToEvent lists an event's tentative RSVPs.
func (u *User) KinkstersMaybeGoingToEvent(ctx context.Context, eventID int64, pages int) ([]*Profile, error) {
	return u.usersInListing(ctx, fmt.Sprintf("/events/%d/rsvps/maybe", eventID), pages, nil)
}

// KinkstersInLocation lists users in an administrative area.
func (u *User) KinkstersInLocation(ctx context.Context, areaID int64, pages int) ([]*Profile, error) {
	return u.usersInListing(ctx, fmt.Sprintf("/administrative_areas/%d/kinksters", areaID), pages, nil)
}

// SearchKinksters lists users matching query.
func (u *User) SearchKinksters(ctx context.Context, query string, pages int) ([]*Profile, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search kinksters: empty query")
	}
	return u.usersInListing(ctx, "/search/kinksters", pages, url.Values{"q": {query}})
}

// Search runs a site search and returns the users it lists.
func (u *User) Search(ctx context.Context, query string, pages int) ([]*Profile, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	return u.usersInListing(ctx, "/search", pages, url.Values{"q": {query}})
}

func (u *User) usersInListing(ctx context.Context, path string, pages int, query url.Values) ([]*Profile, error) {
	nodes, err := u.walk(ctx, path, userItemXPath, pages, query)
	if err != nil {
		return nil, err
	}
	out := make([]*Profile, 0, len(nodes))
	for _, n := range nodes {
		p, err := u.profileFromRow(n)
		if err != nil {
			u.skipRow(path, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// --- content listings ---

// WritingsOf lists who's writings.
func (u *User) WritingsOf(ctx context.Context, who identity.Who, pages int) ([]*Writing, error) {
	id, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/users/%d/posts", id)
	nodes, err := u.walk(ctx, path, writingItemXPath, pages, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*Writing, 0, len(nodes))
	for _, n := range nodes {
		w, err := u.writingFromItem(n, id)
		if err != nil {
			u.skipRow(path, err)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// PicturesOf lists who's pictures.
func (u *User) PicturesOf(ctx context.Context, who identity.Who, pages int) ([]*Picture, error) {
	id, err := u.resolver.Resolve(ctx, who)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/users/%d/pictures", id)
	nodes, err := u.walk(ctx, path, pictureItemXPath, pages, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*Picture, 0, len(nodes))
	for _, n := range nodes {
		p, err := u.pictureFromItem(n, id)
		if err != nil {
			u.skipRow(path, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// UpcomingEventsInLocation lists events in a place, given as the place's
// URL part such as "cities/5898".
func (u *User) UpcomingEventsInLocation(ctx context.Context, place string, pages int) ([]*Event, error) {
	place = strings.Trim(place, "/")
	if place == "" {
		return nil, fmt.Errorf("upcoming events: empty place")
	}
	path := "/" + place + "/events"
	nodes, err := u.walk(ctx, path, eventItemXPath, pages, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*Event, 0, len(nodes))
	for _, n := range nodes {
		e, err := u.eventFromItem(n)
		if err != nil {
			u.skipRow(path, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// DiscussionsOfGroup lists a group's discussions.
func (u *User) DiscussionsOfGroup(ctx context.Context, groupID int64, pages int) ([]*GroupDiscussion, error) {
	path := fmt.Sprintf("/groups/%d/group_posts", groupID)
	nodes, err := u.walk(ctx, path, discussionItemXPath, pages, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*GroupDiscussion, 0, len(nodes))
	for _, n := range nodes {
		d, err := u.discussionFromItem(n, groupID)
		if err != nil {
			u.skipRow(path, err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (u *User) walk(ctx context.Context, path, itemXPath string, pages int, query url.Values) ([]*html.Node, error) {
	return u.walker.Walk(ctx, listing.Listing{Path: path, ItemXPath: itemXPath, Limit: pages, Query: query})
}

func (u *User) skipRow(path string, err error) {
	u.metrics.ParseFailures.Add(1)
	u.logger.Warn("skipping unreadable listing row", "path", path, "error", err)
}

// eventLinks builds event stubs from links on a page.
func (u *User) eventLinks(doc *html.Node, xpath string) []*Event {
	var out []*Event
	for _, a := range parser.Query(doc, xpath) {
		href, _ := parser.Attr(a, "href")
		id, err := strconv.ParseInt(parser.IDFromHref(href), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		e := u.NewEvent(id)
		e.Title = parser.Text(a)
		out = append(out, e)
	}
	return out
}

// groupLinks builds group stubs from links on a page.
func (u *User) groupLinks(doc *html.Node, xpath string) []*Group {
	var out []*Group
	for _, a := range parser.Query(doc, xpath) {
		href, _ := parser.Attr(a, "href")
		id, err := strconv.ParseInt(parser.IDFromHref(href), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		g := u.NewGroup(id)
		g.Name = parser.Text(a)
		out = append(out, g)
	}
	return out
}
