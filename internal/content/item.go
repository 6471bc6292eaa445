package content

import (
	"time"

	"github.com/IshaanNene/fetgoat/internal/types"
)

// ToItem flattens an entity into an export record. Unknown entity types
// yield nil.
func ToItem(e Entity) *types.Item {
	var item *types.Item
	switch v := e.(type) {
	case *Profile:
		item = types.NewItem("profile", v.ID, v.Permalink())
		item.SetIf("nickname", v.Nickname)
		if v.Age > 0 {
			item.Set("age", v.Age)
		}
		item.SetIf("gender", v.Gender)
		item.SetIf("role", v.Role)
		item.SetIf("location", v.Location)
		item.SetIf("locality", v.LocationParts.Locality)
		item.SetIf("region", v.LocationParts.Region)
		item.SetIf("country", v.LocationParts.Country)
		item.SetIf("avatar_url", v.AvatarURL)
		item.SetIf("bio", v.Bio)
		if v.IsPopulated() {
			item.Set("paying_account", v.PayingAccount)
			item.Set("friend_count", v.FriendCount)
		}
	case *Writing:
		item = types.NewItem("writing", v.ID, v.Permalink())
		item.SetIf("title", v.Title)
		item.SetIf("category", v.Category)
		item.SetIf("privacy", v.Privacy)
		item.SetIf("content", v.ContentHTML())
		item.Set("comment_count", len(v.Comments))
	case *Picture:
		item = types.NewItem("picture", v.ID, v.Permalink())
		item.SetIf("src", v.Src)
		item.SetIf("thumb_src", v.ThumbSrc)
		item.SetIf("caption", v.ContentText())
		item.Set("comment_count", len(v.Comments))
	case *Status:
		item = types.NewItem("status", v.ID, v.Permalink())
		item.SetIf("text", v.Text)
		item.Set("comment_count", len(v.Comments))
	case *Comment:
		item = types.NewItem("comment", v.ID, v.Permalink())
		item.Set("parent_kind", v.Parent.Kind.String())
		item.SetIf("parent_url", v.Parent.URL)
		item.SetIf("content", v.ContentHTML())
	case *Event:
		item = types.NewItem("event", v.ID, v.Permalink())
		item.SetIf("title", v.Title)
		item.SetIf("tagline", v.Tagline)
		setTime(item, "start", v.Start)
		item.SetIf("start_text", v.StartText)
		setTime(item, "end", v.End)
		item.SetIf("venue_name", v.VenueName)
		item.SetIf("venue_address", v.VenueAddress)
		item.SetIf("address", v.Address.String())
		item.SetIf("cost", v.Cost)
		item.SetIf("dress_code", v.DressCode)
		item.SetIf("description", v.Description)
		if v.Going != nil || v.MaybeGoing != nil {
			item.Set("going", len(v.Going))
			item.Set("maybe_going", len(v.MaybeGoing))
		}
	case *Group:
		item = types.NewItem("group", v.ID, v.Permalink())
		item.SetIf("name", v.Name)
		item.SetIf("description", v.Description)
		item.Set("member_count", v.MemberCount)
		item.Set("post_count", v.PostCount)
		item.Set("comment_count", v.CommentCount)
		setTime(item, "last_activity", v.LastActivity)
	case *GroupDiscussion:
		item = types.NewItem("group_discussion", v.ID, v.Permalink())
		item.Set("group_id", v.GroupID)
		item.SetIf("title", v.Title)
		item.Set("comment_count", v.CommentCount)
		item.SetIf("content", v.ContentHTML())
	default:
		return nil
	}

	base := baseOf(e)
	if base.Creator != nil {
		item.Set("creator_id", base.Creator.ID)
		item.SetIf("creator_nickname", base.Creator.Nickname)
	}
	setTime(item, "published", base.Published)
	item.Set("state", base.State().String())
	return item
}

func baseOf(e Entity) *Content {
	switch v := e.(type) {
	case *Profile:
		return &v.Content
	case *Writing:
		return &v.Content
	case *Picture:
		return &v.Content
	case *Status:
		return &v.Content
	case *Comment:
		return &v.Content
	case *Event:
		return &v.Content
	case *Group:
		return &v.Content
	case *GroupDiscussion:
		return &v.Content
	}
	return &Content{}
}

func setTime(item *types.Item, key string, t time.Time) {
	if !t.IsZero() {
		item.Set(key, t.UTC().Format(time.RFC3339))
	}
}

// Items flattens a slice of entities.
func Items[E Entity](entities []E) []*types.Item {
	items := make([]*types.Item, 0, len(entities))
	for _, e := range entities {
		if item := ToItem(e); item != nil {
			items = append(items, item)
		}
	}
	return items
}
