package content

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// ParentKind names the kind of entity a comment is attached to.
type ParentKind int

const (
	KindWriting ParentKind = iota
	KindPicture
	KindStatus
	KindDiscussion
)

// Fragment returns the anchor prefix the site uses for comments on this
// kind of parent.
func (k ParentKind) Fragment() string {
	switch k {
	case KindWriting:
		return "post"
	case KindPicture:
		return "picture"
	case KindStatus:
		return "status"
	case KindDiscussion:
		return "group_post"
	default:
		return "unknown"
	}
}

func (k ParentKind) String() string { return k.Fragment() }

// ParentRef points a comment at the entity it belongs to.
type ParentRef struct {
	Kind ParentKind
	URL  string
}

// Comment is a comment on a writing, picture, status or discussion.
type Comment struct {
	Content

	Parent ParentRef
}

// NewComment returns a stub comment on parent.
func (u *User) NewComment(parent ParentRef, id int64) *Comment {
	return &Comment{Content: Content{ID: id, user: u}, Parent: parent}
}

// URL implements Entity: the parent's page with the comment's anchor.
func (c *Comment) URL() string {
	return c.Parent.URL + "#" + c.Parent.Kind.Fragment() + "_comment_" + strconv.FormatInt(c.ID, 10)
}

// Permalink implements Entity.
func (c *Comment) Permalink() string { return c.permalink(c.URL()) }

// Populate fetches the parent's page and merges this comment from it.
func (c *Comment) Populate(ctx context.Context) error {
	doc, err := c.user.fetchPage(ctx, c.Parent.URL)
	if err != nil {
		return err
	}
	comments, err := c.user.parseComments(doc, c.Parent)
	if err != nil {
		return err
	}
	for _, found := range comments {
		if found.ID == c.ID {
			c.Creator = found.Creator
			c.Body = found.Body
			c.Published = found.Published
			c.markPopulated()
			return nil
		}
	}
	return fmt.Errorf("populate %s: %w", c.URL(), types.ErrNotFound)
}

// parseComments reads the comments section of a content page. A page
// without one has no comments.
func (u *User) parseComments(doc *html.Node, parent ParentRef) ([]*Comment, error) {
	nodes := parser.Query(doc, commentXPath)
	comments := make([]*Comment, 0, len(nodes))
	for _, n := range nodes {
		fields, err := u.extract(parent.URL, n, commentRules)
		if err != nil {
			return nil, err
		}
		c := u.NewComment(parent, parseID(fields["id"]))
		c.Creator = u.stubCreator(fields.Int("creator_id"), fields["creator_nickname"], fields["creator_avatar"])
		c.Published = fields.Time("published")
		c.Body = parser.QueryOne(n, commentBodyXPath)
		comments = append(comments, c)
	}
	return comments, nil
}
