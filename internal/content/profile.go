package content

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
)

// Address holds the structured parts of a location.
type Address struct {
	Locality string
	Region   string
	Country  string
}

func (a Address) String() string {
	var parts []string
	for _, p := range []string{a.Locality, a.Region, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// splitLocation reads "City, Region, Country" text. Two parts are taken as
// region and country, one as the country alone.
func splitLocation(s string) Address {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return Address{}
	case 1:
		return Address{Country: parts[0]}
	case 2:
		return Address{Region: parts[0], Country: parts[1]}
	default:
		return Address{
			Locality: strings.Join(parts[:len(parts)-2], ", "),
			Region:   parts[len(parts)-2],
			Country:  parts[len(parts)-1],
		}
	}
}

// Profile is a user's profile. A profile has no creator.
type Profile struct {
	Content

	Nickname      string
	Age           int
	Gender        string
	Role          string
	Location      string
	LocationParts Address
	AvatarURL     string
	PayingAccount bool
	FriendCount   int64
	Bio           string
	Events        []*Event
	Groups        []*Group
}

// NewProfile returns a stub profile for user id.
func (u *User) NewProfile(id int64) *Profile {
	return &Profile{Content: Content{ID: id, user: u}}
}

// URL implements Entity.
func (p *Profile) URL() string {
	return "/users/" + strconv.FormatInt(p.ID, 10)
}

// Permalink implements Entity.
func (p *Profile) Permalink() string { return p.permalink(p.URL()) }

// NamedPermalink returns the profile's URL by nickname, or the numeric
// permalink while the nickname is unknown.
func (p *Profile) NamedPermalink() string {
	if p.Nickname == "" {
		return p.Permalink()
	}
	return p.permalink("/" + p.Nickname)
}

// Populate fetches the profile page and merges it.
func (p *Profile) Populate(ctx context.Context) error {
	doc, err := p.user.fetchPage(ctx, p.URL())
	if err != nil {
		return err
	}
	fields, err := p.user.extract(p.URL(), doc, profileRules)
	if err != nil {
		return err
	}

	p.apply(fields)
	p.PayingAccount = fields.Has("paying_account")
	p.FriendCount = fields.Int("friend_count")

	if events := p.user.eventLinks(doc, profileEventLinksXPath); len(events) > 0 {
		p.Events = events
	}
	if groups := p.user.groupLinks(doc, profileGroupLinksXPath); len(groups) > 0 {
		p.Groups = groups
	}
	p.user.resolver.Remember(p.Nickname, p.ID)
	p.markPopulated()
	return nil
}

// apply copies the extracted fields that are present.
func (p *Profile) apply(f parser.Fields) {
	if f.Has("id") {
		if id := parseID(f["id"]); id > 0 {
			p.ID = id
		}
	}
	if f.Has("nickname") {
		p.Nickname = f["nickname"]
	}
	if f.Has("avatar_url") {
		p.AvatarURL = f["avatar_url"]
	}
	if f.Has("age") {
		p.Age = int(f.Int("age"))
	}
	if f.Has("gender") {
		p.Gender = f["gender"]
	}
	if f.Has("role") {
		p.Role = f["role"]
	}
	if f.Has("location") {
		p.Location = f["location"]
		p.LocationParts = splitLocation(p.Location)
	}
	if f.Has("bio") {
		p.Bio = strings.TrimSpace(f["bio"])
	}
}

// profileFromRow builds a stub from a user_in_list row.
func (u *User) profileFromRow(row *html.Node) (*Profile, error) {
	fields, err := parser.ExtractFields(row, userRowRules)
	if err != nil {
		return nil, err
	}
	p := u.NewProfile(0)
	p.apply(fields)
	u.resolver.Remember(p.Nickname, p.ID)
	return p, nil
}

// profileHeader reads the author block of a content page.
func (u *User) profileHeader(path string, doc *html.Node) (*Profile, error) {
	fields, err := u.extract(path, doc, profileHeaderRules)
	if err != nil {
		return nil, err
	}
	p := u.NewProfile(0)
	p.apply(fields)
	u.resolver.Remember(p.Nickname, p.ID)
	return p, nil
}

// stubCreator builds the creator stub most listings carry: an id and
// sometimes a nickname and avatar.
func (u *User) stubCreator(id int64, nickname, avatar string) *Profile {
	if id <= 0 {
		return nil
	}
	p := u.NewProfile(id)
	p.Nickname = nickname
	p.AvatarURL = avatar
	u.resolver.Remember(nickname, id)
	return p
}
