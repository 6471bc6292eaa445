package content

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/IshaanNene/fetgoat/internal/parser"
)

// Picture is a user's picture page, not the image itself.
type Picture struct {
	Content

	// Src is the full-size image. Listings only show the thumbnail, so
	// until population it is a guess derived from ThumbSrc.
	Src      string
	ThumbSrc string
	Comments []*Comment
}

// NewPicture returns a stub picture by creator.
func (u *User) NewPicture(creatorID, id int64) *Picture {
	return &Picture{Content: Content{ID: id, Creator: u.NewProfile(creatorID), user: u}}
}

// URL implements Entity.
func (p *Picture) URL() string {
	return fmt.Sprintf("/users/%d/pictures/%d", creatorID(p.Creator), p.ID)
}

// Permalink implements Entity.
func (p *Picture) Permalink() string { return p.permalink(p.URL()) }

// Populate fetches the picture page and merges it, comments included.
func (p *Picture) Populate(ctx context.Context) error {
	path := p.URL()
	doc, err := p.user.fetchPage(ctx, path)
	if err != nil {
		return err
	}
	fields, err := p.user.extract(path, doc, pictureRules)
	if err != nil {
		return err
	}
	creator, err := p.user.profileHeader(path, doc)
	if err != nil {
		return err
	}
	comments, err := p.user.parseComments(doc, ParentRef{Kind: KindPicture, URL: path})
	if err != nil {
		return err
	}

	p.Published = fields.Time("published")
	if fields.Has("src") {
		p.Src = fields["src"]
	}
	if caption := parser.QueryOne(doc, pictureBodyXPath); caption != nil {
		p.Body = caption
		p.Text = parser.Text(caption)
	}
	p.Creator = creator
	p.Comments = comments
	p.markPopulated()
	return nil
}

func (u *User) pictureFromItem(item *html.Node, ownerID int64) (*Picture, error) {
	fields, err := parser.ExtractFields(item, pictureItemRules)
	if err != nil {
		return nil, err
	}
	p := u.NewPicture(ownerID, parseID(fields["id"]))
	p.ThumbSrc = fields["thumb_src"]
	p.Src = parser.ThumbToFull(p.ThumbSrc)
	p.Text = fields["caption"]
	return p, nil
}
