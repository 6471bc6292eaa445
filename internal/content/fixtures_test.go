package content

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/fetgoat/internal/sitetest"
)

const profileHeader = `<div id="profile_header">
  <a href="/users/555"><img alt="Rope_Bunny" src="https://pic.example/555_60.jpg"></a>
  <span class="age_gender_role">29M Dom</span>
  <span class="location">(Berlin, Germany)</span>
</div>`

const commentsSection = `<div id="comments">
  <article id="comment_901">
    <a href="/users/600"><img alt="Knotty" src="https://pic.example/600_60.jpg"></a>
    <time datetime="2013-05-02T10:00:00Z">May 2</time>
    <div><p>Nice work</p></div>
  </article>
  <article id="comment_902">
    <a href="/users/601"><img alt="Hemp" src="https://pic.example/601_60.jpg"></a>
    <time datetime="2013-05-03T10:00:00Z">May 3</time>
    <div><p>Agreed</p></div>
  </article>
</div>`

func profilePage(site *sitetest.Site) string {
	return site.Layout("Rope_Bunny - Kinksters - FetLife", `
<div id="profile">
  <img class="pan" alt="Rope_Bunny" src="https://pic.example/555_200.jpg">
  <h2>Rope_Bunny <span>29 M dominant</span></h2>
  <em>(Kreuzberg, Berlin, Germany)</em>
  <span class="donation_badge">Supporter</span>
  <h4>Friends <span>(1,057)</span></h4>
  <h3>About me</h3><div><p>Likes <b>jute</b>.</p></div>
  <h3>Events going to</h3><ul><li><a href="/events/77">Rope Munch</a></li></ul>
  <h3>Groups member of</h3><ul><li><a href="/groups/12">Rope Lovers</a></li></ul>
</div>`)
}

func sparseProfilePage(site *sitetest.Site) string {
	return site.Layout("Quiet_One - Kinksters - FetLife", `
<img class="pan" alt="Quiet_One" src="https://pic.example/556_200.jpg">
<h2>Quiet_One</h2>
<em>Germany</em>`)
}

func writingPage(site *sitetest.Site) string {
	return site.Layout("On Knots - FetLife", profileHeader+`
<h2>On Knots</h2>
<div id="post_content">
  <header><strong> Erotica </strong> <time datetime="2013-05-01T12:00:00Z">May 1</time></header>
  <div class="wrap"><div class="body"><p>First</p><p>Second</p></div></div>
</div>
<div id="privacy_section"><span class="display">Public</span></div>
`+commentsSection)
}

func writingsListing(site *sitetest.Site, base string, cur, total, first, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		id := first + i
		fmt.Fprintf(&b, `<article>
  <a href="/users/555"><img src="https://pic.example/555_60.jpg"></a>
  <h2>Writing %d</h2>
  <a href="/users/555/posts/%d">read</a>
  <strong>Erotica</strong>
  <time datetime="2013-05-01T12:00:00Z">May 1</time>
  <div class="meta"></div>
  <div class="body"><p>Text %d</p><p class="No_Underline"><a href="#">Read 3 comments</a></p></div>
</article>`, id, id, id)
	}
	b.WriteString(sitetest.Pagination(base, cur, total))
	return site.Layout("Writings - FetLife", b.String())
}

func picturesListing(site *sitetest.Site) string {
	return site.Layout("Pictures - FetLife", `<ul class="page">
  <li><a href="/users/555/pictures/301"><img src="https://pic.example/301_110.jpg" alt="Sunset"></a></li>
  <li><a href="/users/555/pictures/302"><img src="https://pic.example/302_110.png" alt=""></a></li>
</ul>`)
}

func picturePage(site *sitetest.Site) string {
	return site.Layout("Picture - FetLife", profileHeader+`
<div id="picture">
  <img src="https://pic.example/301_720.jpg">
  <time datetime="2014-01-01T00:00:00Z">Jan 1</time>
  <span class="caption">Sunset <b>rope</b></span>
</div>
`+commentsSection)
}

func statusPage(site *sitetest.Site) string {
	return site.Layout("Status - FetLife", profileHeader+`
<div id="status">
  <p class="status_text"> Off to the
    munch tonight </p>
  <time datetime="2015-03-04T20:00:00Z">Mar 4</time>
</div>
`+commentsSection)
}

func eventPage(site *sitetest.Site) string {
	return site.Layout("Rope Munch - FetLife", `
<h1 itemprop="name">Rope Munch</h1>
<p>Casual meetup</p>
<span itemprop="startDate" content="2024-06-01T19:00:00Z"></span>
<span itemprop="endDate" content="2024-06-01T22:00:00Z"></span>
<div itemprop="location">
  <meta content="Germany"><meta content="Berlin"><meta content="Kreuzberg">
  <span itemprop="name">The Dungeon</span>
</div>
<table>
  <tr><th><span>Location:</span></th><td><span class="s">Main St 1<br>Berlin</span></td></tr>
  <tr><th>Cost:</th><td>10 EUR</td></tr>
  <tr><th>Dress code:</th><td> All   black </td></tr>
</table>
<div class="description">Bring rope.</div>
<h3>Created by</h3>
<ul><li><a href="/users/555"><img alt="Rope_Bunny" src="https://pic.example/555_60.jpg"></a></li></ul>`)
}

func eventsListing(site *sitetest.Site) string {
	return site.Layout("Events - FetLife", `<ul class="event_listings">
  <li><div class="event"><a href="/events/77">Rope Munch</a></div><div class="date">2024-06-01 19:00</div><div class="venue">The Dungeon</div></li>
  <li><div class="event"><a href="/events/78">Play Party</a></div><div class="date">Sometime soon</div><div class="venue">Secret</div></li>
</ul>`)
}

func groupPage(site *sitetest.Site) string {
	return site.Layout("Rope Lovers - FetLife", `
<h2>Rope Lovers</h2>
<div class="group_description">All about rope</div>
<ul class="group_stats">
  <li class="members">1,234 members</li>
  <li class="posts">56 discussions</li>
  <li class="comments">789 comments</li>
</ul>
<p class="last_activity"><time datetime="2024-05-01T00:00:00Z">May</time></p>
<p class="created_at"><time datetime="2010-01-01T00:00:00Z">2010</time></p>`)
}

func discussionsListing(site *sitetest.Site) string {
	return site.Layout("Discussions - FetLife", `
<div class="group_post"><h3><a href="/groups/12/group_posts/900">Knots?</a></h3><a href="/users/555">Rope_Bunny</a><span class="comments_count">(12)</span><time datetime="2024-04-01T00:00:00Z">Apr</time></div>
<div class="group_post"><h3><a href="/groups/12/group_posts/901">Safety</a></h3><a href="/users/600">Knotty</a><span class="comments_count">(0)</span></div>`)
}

func discussionPage(site *sitetest.Site) string {
	return site.Layout("Knots? - FetLife", profileHeader+`
<h2>Knots?</h2>
<div id="group_post"><time datetime="2024-04-01T00:00:00Z">Apr</time><div class="content"><p>Which knot?</p></div></div>
`+commentsSection)
}
