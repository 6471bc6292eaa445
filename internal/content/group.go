package content

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
)

// Group is a discussion group.
type Group struct {
	Content

	Name         string
	Description  string
	MemberCount  int64
	PostCount    int64
	CommentCount int64
	LastActivity time.Time
	CreatedAt    time.Time
	Members      []*Profile
}

// NewGroup returns a stub group.
func (u *User) NewGroup(id int64) *Group {
	return &Group{Content: Content{ID: id, user: u}}
}

// URL implements Entity.
func (g *Group) URL() string {
	return "/groups/" + strconv.FormatInt(g.ID, 10)
}

// Permalink implements Entity.
func (g *Group) Permalink() string { return g.permalink(g.URL()) }

// Populate fetches the group page and merges it. Members are not loaded;
// see LoadMembers.
func (g *Group) Populate(ctx context.Context) error {
	path := g.URL()
	doc, err := g.user.fetchPage(ctx, path)
	if err != nil {
		return err
	}
	fields, err := g.user.extract(path, doc, groupRules)
	if err != nil {
		return err
	}

	if fields.Has("name") {
		g.Name = fields["name"]
	}
	if fields.Has("description") {
		g.Description = fields["description"]
	}
	g.MemberCount = fields.Int("member_count")
	g.PostCount = fields.Int("post_count")
	g.CommentCount = fields.Int("comment_count")
	g.LastActivity = fields.Time("last_activity")
	g.CreatedAt = fields.Time("created_at")
	g.Published = g.CreatedAt
	g.markPopulated()
	return nil
}

// LoadMembers fills Members from the membership listing.
func (g *Group) LoadMembers(ctx context.Context, pages int) error {
	members, err := g.user.MembersOfGroup(ctx, g.ID, pages)
	if err != nil {
		return err
	}
	g.Members = members
	return nil
}

// GroupDiscussion is a thread in a group.
type GroupDiscussion struct {
	Content

	GroupID      int64
	Title        string
	CommentCount int64
	Comments     []*Comment
}

// NewDiscussion returns a stub discussion in group groupID.
func (u *User) NewDiscussion(groupID, id int64) *GroupDiscussion {
	return &GroupDiscussion{Content: Content{ID: id, user: u}, GroupID: groupID}
}

// URL implements Entity.
func (d *GroupDiscussion) URL() string {
	return fmt.Sprintf("/groups/%d/group_posts/%d", d.GroupID, d.ID)
}

// Permalink implements Entity.
func (d *GroupDiscussion) Permalink() string { return d.permalink(d.URL()) }

// Populate fetches the discussion page and merges it, comments included.
func (d *GroupDiscussion) Populate(ctx context.Context) error {
	path := d.URL()
	doc, err := d.user.fetchPage(ctx, path)
	if err != nil {
		return err
	}
	fields, err := d.user.extract(path, doc, discussionRules)
	if err != nil {
		return err
	}
	creator, err := d.user.profileHeader(path, doc)
	if err != nil {
		return err
	}
	comments, err := d.user.parseComments(doc, ParentRef{Kind: KindDiscussion, URL: path})
	if err != nil {
		return err
	}

	d.Title = fields["title"]
	if fields.Has("published") {
		d.Published = fields.Time("published")
	}
	if body := parser.QueryOne(doc, discussionBodyXPath); body != nil {
		d.Body = body
	}
	d.Creator = creator
	d.Comments = comments
	d.CommentCount = int64(len(comments))
	d.markPopulated()
	return nil
}

func (u *User) discussionFromItem(item *html.Node, groupID int64) (*GroupDiscussion, error) {
	fields, err := parser.ExtractFields(item, discussionItemRules)
	if err != nil {
		return nil, err
	}
	d := u.NewDiscussion(groupID, parseID(fields["id"]))
	d.Title = fields["title"]
	d.CommentCount = fields.Int("comment_count")
	d.Published = fields.Time("published")
	d.Creator = u.stubCreator(fields.Int("creator_id"), fields["creator_nickname"], "")
	return d, nil
}
