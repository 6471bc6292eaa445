package content

import "github.com/IshaanNene/fetgoat/internal/parser"

// Item paths of the listings.
const (
	userItemXPath       = `//*[contains(@class, "user_in_list")]`
	writingItemXPath    = `//article`
	pictureItemXPath    = `//ul[contains(@class, "page")]/li`
	eventItemXPath      = `//*[contains(@class, "event_listings")]/li`
	discussionItemXPath = `//*[contains(@class, "group_post")]`
	commentXPath        = `//*[@id="comments"]//article`
)

// Fragment paths: nodes kept whole as an entity's Body.
const (
	writingBodyXPath        = `(//*[@id="post_content"]//div)[2]`
	writingItemBodyXPath    = `(.//div)[2]`
	pictureBodyXPath        = `//span[contains(@class, "caption")]`
	commentBodyXPath        = `(.//div)[1]`
	discussionBodyXPath     = `//*[@id="group_post"]//*[contains(@class, "content")]`
	profileEventLinksXPath  = `//h3[contains(text(), "Events")]/following-sibling::ul[1]//a[contains(@href, "/events/")]`
	profileGroupLinksXPath  = `//h3[contains(text(), "Groups")]/following-sibling::ul[1]//a[contains(@href, "/groups/")]`
	eventLocationMetasXPath = `//*[contains(@itemprop, "location")]//meta`
)

// userRowRules read one user_in_list row.
var userRowRules = []parser.Rule{
	{Field: "id", XPath: `(.//a)[1]`, Attr: "href", Mandatory: true, Transform: parser.IDFromHref},
	{Field: "nickname", XPath: `(.//img)[1]`, Attr: "alt"},
	{Field: "avatar_url", XPath: `(.//img)[1]`, Attr: "src"},
	{Field: "age_gender_role", XPath: `.//span[contains(@class, "quiet")]`, Decompose: parser.AgeGenderRole},
	{Field: "location", XPath: `(.//em)[1]`, Transform: parser.Collapse},
}

// profileRules read a profile page.
var profileRules = []parser.Rule{
	{Field: "nickname", XPath: `//*[@class="pan"]`, Attr: "alt", Mandatory: true},
	{Field: "avatar_url", XPath: `//*[@class="pan"]`, Attr: "src"},
	{Field: "age_gender_role", XPath: `(//h2)[1]//span`, Decompose: parser.AgeGenderRole},
	{Field: "location", XPath: `(//em)[1]`, Transform: func(s string) string { return parser.StripParens(parser.Collapse(s)) }},
	{Field: "paying_account", XPath: `//*[contains(@class, "donation_badge")]`, Attr: "outer"},
	{Field: "friend_count", XPath: `(//h4)[1]//span`, Default: "0", Transform: parser.CountField},
	{Field: "bio", XPath: `//h3[contains(text(), "About me")]/following-sibling::div[1]`, Attr: "html"},
}

// profileHeaderRules read the author block shown above writings,
// pictures and discussions.
var profileHeaderRules = []parser.Rule{
	{Field: "id", XPath: `(//*[@id="profile_header"]//a)[1]`, Attr: "href", Mandatory: true, Transform: parser.IDFromHref},
	{Field: "nickname", XPath: `(//*[@id="profile_header"]//img)[1]`, Attr: "alt"},
	{Field: "avatar_url", XPath: `(//*[@id="profile_header"]//img)[1]`, Attr: "src"},
	{Field: "age_gender_role", XPath: `//*[@class="age_gender_role"]`, Decompose: parser.AgeGenderRole},
	{Field: "location", XPath: `//*[@class="location"]`, Transform: parser.StripParens},
}

// writingItemRules read one article of a writings listing.
var writingItemRules = []parser.Rule{
	{Field: "id", XPath: `(.//a)[2]`, Attr: "href", Mandatory: true, Transform: parser.IDFromHref},
	{Field: "title", XPath: `(.//h2)[1]`},
	{Field: "category", XPath: `(.//strong)[1]`},
	{Field: "creator_id", XPath: `(.//a)[1]`, Attr: "href", Transform: parser.IDFromHref},
	{Field: "creator_avatar", XPath: `(.//img)[1]`, Attr: "src"},
	{Field: "published", XPath: `(.//time)[1]`, Attr: "datetime"},
}

// writingRules read a writing page.
var writingRules = []parser.Rule{
	{Field: "title", XPath: `(//h2)[1]`, Mandatory: true},
	{Field: "category", XPath: `//*[@id="post_content"]//header//strong`},
	{Field: "published", XPath: `//*[@id="post_content"]//time`, Attr: "datetime"},
	{Field: "privacy", XPath: `//*[@id="privacy_section"]//*[@class="display"]`},
}

// pictureItemRules read one thumbnail of a pictures listing.
var pictureItemRules = []parser.Rule{
	{Field: "id", XPath: `(.//a)[1]`, Attr: "href", Mandatory: true, Transform: parser.IDFromHref},
	{Field: "thumb_src", XPath: `(.//img)[1]`, Attr: "src"},
	{Field: "caption", XPath: `(.//img)[1]`, Attr: "alt"},
}

// pictureRules read a picture page.
var pictureRules = []parser.Rule{
	{Field: "published", XPath: `//*[@id="picture"]//time`, Attr: "datetime", Mandatory: true},
	{Field: "src", XPath: `(//*[@id="picture"]//img)[1]`, Attr: "src"},
}

// statusRules read a status page.
var statusRules = []parser.Rule{
	{Field: "text", XPath: `//*[@id="status"]//*[contains(@class, "status_text")]`, Mandatory: true, Transform: parser.Collapse},
	{Field: "published", XPath: `//*[@id="status"]//time`, Attr: "datetime"},
}

// commentRules read one comment article.
var commentRules = []parser.Rule{
	{Field: "id", XPath: `.`, Attr: "id", Mandatory: true, Transform: parser.IDFromElementID},
	{Field: "creator_id", XPath: `(.//a)[1]`, Attr: "href", Transform: parser.IDFromHref},
	{Field: "creator_nickname", XPath: `(.//a)[1]//img`, Attr: "alt"},
	{Field: "creator_avatar", XPath: `(.//a)[1]//img`, Attr: "src"},
	{Field: "published", XPath: `(.//time)[1]`, Attr: "datetime"},
}

// eventItemRules read one entry of an events listing.
var eventItemRules = []parser.Rule{
	{Field: "id", XPath: `(.//a)[1]`, Attr: "href", Mandatory: true, Transform: parser.IDFromHref},
	{Field: "title", XPath: `(.//a)[1]`},
	{Field: "start", XPath: `(.//div)[2]`, Transform: parser.Collapse},
	{Field: "venue_name", XPath: `(.//div)[3]`, Transform: parser.Collapse},
}

// eventRules read an event page.
var eventRules = []parser.Rule{
	{Field: "title", XPath: `//h1[contains(@itemprop, "name")]`, Mandatory: true},
	{Field: "tagline", XPath: `//h1[contains(@itemprop, "name")]/following-sibling::p`},
	{Field: "start", XPath: `//*[contains(@itemprop, "startDate")]`, Attr: "content"},
	{Field: "end", XPath: `//*[contains(@itemprop, "endDate")]`, Attr: "content"},
	{Field: "venue_name", XPath: `//*[contains(@itemprop, "location")]//*[@itemprop="name"]`},
	{Field: "venue_address", XPath: `//th/*[text()="Location:"]/../../td/*[contains(@class, "s")]/text()[1]`, Transform: parser.Collapse},
	{Field: "cost", XPath: `//th[text()="Cost:"]/../td`, Transform: parser.Collapse},
	{Field: "dress_code", XPath: `//th[text()="Dress code:"]/../td`, Transform: parser.Collapse},
	{Field: "description", XPath: `//*[contains(@class, "description")]`},
	{Field: "creator_id", XPath: `//h3[text()="Created by"]/following-sibling::ul//a`, Attr: "href", Transform: parser.IDFromHref},
	{Field: "creator_nickname", XPath: `//h3[text()="Created by"]/following-sibling::ul//a//img`, Attr: "alt"},
	{Field: "creator_avatar", XPath: `//h3[text()="Created by"]/following-sibling::ul//a//img`, Attr: "src"},
}

// groupRules read a group page.
var groupRules = []parser.Rule{
	{Field: "name", XPath: `(//h2)[1]`, Mandatory: true},
	{Field: "description", XPath: `//*[contains(@class, "group_description")]`},
	{Field: "member_count", XPath: `//*[contains(@class, "group_stats")]//*[contains(@class, "members")]`, Default: "0", Transform: parser.CountField},
	{Field: "post_count", XPath: `//*[contains(@class, "group_stats")]//*[contains(@class, "posts")]`, Default: "0", Transform: parser.CountField},
	{Field: "comment_count", XPath: `//*[contains(@class, "group_stats")]//*[contains(@class, "comments")]`, Default: "0", Transform: parser.CountField},
	{Field: "last_activity", XPath: `//*[contains(@class, "last_activity")]//time`, Attr: "datetime"},
	{Field: "created_at", XPath: `//*[contains(@class, "created_at")]//time`, Attr: "datetime"},
}

// discussionItemRules read one entry of a group's discussion listing.
var discussionItemRules = []parser.Rule{
	{Field: "id", XPath: `(.//h3//a)[1]`, Attr: "href", Mandatory: true, Transform: parser.IDFromHref},
	{Field: "title", XPath: `(.//h3//a)[1]`},
	{Field: "creator_id", XPath: `(.//a[contains(@href, "/users/")])[1]`, Attr: "href", Transform: parser.IDFromHref},
	{Field: "creator_nickname", XPath: `(.//a[contains(@href, "/users/")])[1]`},
	{Field: "comment_count", XPath: `.//*[contains(@class, "comments_count")]`, Default: "0", Transform: parser.CountField},
	{Field: "published", XPath: `(.//time)[1]`, Attr: "datetime"},
}

// discussionRules read a group discussion page.
var discussionRules = []parser.Rule{
	{Field: "title", XPath: `(//h2)[1]`, Mandatory: true},
	{Field: "published", XPath: `//*[@id="group_post"]//time`, Attr: "datetime"},
}
