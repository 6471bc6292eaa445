package content

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
)

// Event is an event page.
type Event struct {
	Content

	Title   string
	Tagline string
	Start   time.Time
	End     time.Time

	// StartText keeps a listing's start time when it could not be parsed.
	StartText string

	VenueName    string
	VenueAddress string
	Address      Address
	Cost         string
	DressCode    string
	Description  string

	Going      []*Profile
	MaybeGoing []*Profile
}

// NewEvent returns a stub event.
func (u *User) NewEvent(id int64) *Event {
	return &Event{Content: Content{ID: id, user: u}}
}

// URL implements Entity.
func (e *Event) URL() string {
	return "/events/" + strconv.FormatInt(e.ID, 10)
}

// Permalink implements Entity.
func (e *Event) Permalink() string { return e.permalink(e.URL()) }

// Populate fetches the event page and merges it. Attendees are not
// loaded; see LoadAttendees.
func (e *Event) Populate(ctx context.Context) error {
	path := e.URL()
	doc, err := e.user.fetchPage(ctx, path)
	if err != nil {
		return err
	}
	fields, err := e.user.extract(path, doc, eventRules)
	if err != nil {
		return err
	}

	e.apply(fields)
	if fields.Has("tagline") {
		e.Tagline = fields["tagline"]
	}
	if fields.Has("end") {
		e.End = fields.Time("end")
	}
	for _, pair := range []struct {
		key string
		dst *string
	}{
		{"venue_address", &e.VenueAddress},
		{"cost", &e.Cost},
		{"dress_code", &e.DressCode},
		{"description", &e.Description},
	} {
		if fields.Has(pair.key) {
			*pair.dst = fields[pair.key]
		}
	}
	e.Address = eventAddress(doc)
	if creator := e.user.stubCreator(fields.Int("creator_id"), fields["creator_nickname"], fields["creator_avatar"]); creator != nil {
		e.Creator = creator
	}
	e.markPopulated()
	return nil
}

// LoadAttendees fills Going and MaybeGoing from the RSVP listings,
// walking at most pages pages of each (0 for all).
func (e *Event) LoadAttendees(ctx context.Context, pages int) error {
	going, err := e.user.KinkstersGoingToEvent(ctx, e.ID, pages)
	if err != nil {
		return err
	}
	maybe, err := e.user.KinkstersMaybeGoingToEvent(ctx, e.ID, pages)
	if err != nil {
		return err
	}
	e.Going, e.MaybeGoing = going, maybe
	return nil
}

func (e *Event) apply(f parser.Fields) {
	if f.Has("id") {
		e.ID = parseID(f["id"])
	}
	if f.Has("title") {
		e.Title = f["title"]
	}
	if f.Has("venue_name") {
		e.VenueName = f["venue_name"]
	}
	if f.Has("start") {
		if t := f.Time("start"); !t.IsZero() {
			e.Start = t.UTC()
			e.StartText = ""
		} else {
			e.StartText = f["start"]
		}
	}
}

// eventAddress reads the location's meta tags: country, region and,
// when present, locality.
func eventAddress(doc *html.Node) Address {
	metas := parser.Query(doc, eventLocationMetasXPath)
	content := func(i int) string {
		if i >= len(metas) {
			return ""
		}
		v, _ := parser.Attr(metas[i], "content")
		return v
	}
	return Address{Country: content(0), Region: content(1), Locality: content(2)}
}

func (u *User) eventFromItem(item *html.Node) (*Event, error) {
	fields, err := parser.ExtractFields(item, eventItemRules)
	if err != nil {
		return nil, err
	}
	e := u.NewEvent(0)
	e.apply(fields)
	return e, nil
}
