package content

import (
	"context"
	"fmt"
)

// MaxStatusLength is the longest status update the site accepts, in
// characters.
const MaxStatusLength = 200

// Status is a short plain-text update on a user's profile.
type Status struct {
	Content

	Comments []*Comment
}

// NewStatus returns a stub status by creator.
func (u *User) NewStatus(creatorID, id int64) *Status {
	return &Status{Content: Content{ID: id, Creator: u.NewProfile(creatorID), user: u}}
}

// URL implements Entity.
func (s *Status) URL() string {
	return fmt.Sprintf("/users/%d/statuses/%d", creatorID(s.Creator), s.ID)
}

// Permalink implements Entity.
func (s *Status) Permalink() string { return s.permalink(s.URL()) }

// Populate fetches the status page and merges it, comments included.
func (s *Status) Populate(ctx context.Context) error {
	path := s.URL()
	doc, err := s.user.fetchPage(ctx, path)
	if err != nil {
		return err
	}
	fields, err := s.user.extract(path, doc, statusRules)
	if err != nil {
		return err
	}
	creator, err := s.user.profileHeader(path, doc)
	if err != nil {
		return err
	}
	comments, err := s.user.parseComments(doc, ParentRef{Kind: KindStatus, URL: path})
	if err != nil {
		return err
	}

	s.Text = fields["text"]
	s.Published = fields.Time("published")
	s.Creator = creator
	s.Comments = comments
	s.markPopulated()
	return nil
}

// Truncated reports whether the text is longer than the site allows.
func (s *Status) Truncated() bool {
	return len([]rune(s.Text)) > MaxStatusLength
}
