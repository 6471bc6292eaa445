package content

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
)

// teaserClass marks the "Read N comments" paragraph the site appends to
// writings in listings.
const teaserClass = "no_underline"

// Writing is a user's post.
type Writing struct {
	Content

	Title    string
	Category string
	Privacy  string
	Comments []*Comment
}

// NewWriting returns a stub writing by creator.
func (u *User) NewWriting(creatorID, id int64) *Writing {
	return &Writing{Content: Content{ID: id, Creator: u.NewProfile(creatorID), user: u}}
}

// URL implements Entity.
func (w *Writing) URL() string {
	return fmt.Sprintf("/users/%d/posts/%d", creatorID(w.Creator), w.ID)
}

// Permalink implements Entity.
func (w *Writing) Permalink() string { return w.permalink(w.URL()) }

// ContentHTML renders the writing's body without the comments teaser.
func (w *Writing) ContentHTML() string {
	if w.Body == nil {
		return html.EscapeString(w.Text)
	}
	return parser.RenderChildren(w.Body, parser.ClassContains(teaserClass))
}

// Populate fetches the writing's page and merges it, comments included.
func (w *Writing) Populate(ctx context.Context) error {
	path := w.URL()
	doc, err := w.user.fetchPage(ctx, path)
	if err != nil {
		return err
	}
	fields, err := w.user.extract(path, doc, writingRules)
	if err != nil {
		return err
	}
	creator, err := w.user.profileHeader(path, doc)
	if err != nil {
		return err
	}
	comments, err := w.user.parseComments(doc, ParentRef{Kind: KindWriting, URL: path})
	if err != nil {
		return err
	}

	w.apply(fields)
	w.Creator = creator
	if body := parser.QueryOne(doc, writingBodyXPath); body != nil {
		w.Body = body
	}
	w.Comments = comments
	w.markPopulated()
	return nil
}

func (w *Writing) apply(f parser.Fields) {
	if f.Has("id") {
		w.ID = parseID(f["id"])
	}
	if f.Has("title") {
		w.Title = f["title"]
	}
	if f.Has("category") {
		w.Category = f["category"]
	}
	if f.Has("privacy") {
		w.Privacy = f["privacy"]
	}
	if f.Has("published") {
		w.Published = f.Time("published")
	}
}

func (u *User) writingFromItem(item *html.Node, ownerID int64) (*Writing, error) {
	fields, err := parser.ExtractFields(item, writingItemRules)
	if err != nil {
		return nil, err
	}
	w := &Writing{Content: Content{user: u}}
	w.apply(fields)

	cid := fields.Int("creator_id")
	if cid <= 0 {
		cid = ownerID
	}
	w.Creator = u.stubCreator(cid, "", fields["creator_avatar"])
	w.Body = parser.QueryOne(item, writingItemBodyXPath)
	return w, nil
}

func creatorID(p *Profile) int64 {
	if p == nil {
		return 0
	}
	return p.ID
}
