package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/fetgoat/internal/content"
	"github.com/IshaanNene/fetgoat/internal/types"
	"github.com/IshaanNene/fetgoat/pkg/fetgoat"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func row(cells ...any) table.Row { return table.Row(cells) }

func rows(r ...table.Row) []table.Row { return r }

// export writes items to the configured sink when --export is set.
func export(cmd *cobra.Command, client *fetgoat.Client, name string, items []*types.Item) error {
	if exportFormat == "" {
		return nil
	}
	opts := fetgoat.ExportOptions{PlainText: plainText, Redact: redact}
	if fields != "" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				opts.Fields = append(opts.Fields, f)
			}
		}
	}
	n, err := client.Export(cmd.Context(), name, items, opts)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "exported %d item(s) as %s to %s\n", n, client.Config().Storage.Type, client.Config().Storage.OutputPath)
	return nil
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func agr(p *content.Profile) string {
	var parts []string
	if p.Age > 0 {
		parts = append(parts, fmt.Sprint(p.Age))
	}
	if p.Gender != "" {
		parts = append(parts, p.Gender)
	}
	if p.Role != "" {
		parts = append(parts, p.Role)
	}
	return strings.Join(parts, " ")
}

func nickname(p *content.Profile) string {
	if p == nil {
		return ""
	}
	if p.Nickname != "" {
		return p.Nickname
	}
	return fmt.Sprintf("#%d", p.ID)
}

func renderProfiles(profiles []*content.Profile) {
	t := newTable()
	t.AppendHeader(row("ID", "Nickname", "Age/Sex/Role", "Location"))
	for _, p := range profiles {
		t.AppendRow(row(p.ID, p.Nickname, agr(p), p.Location))
	}
	t.AppendFooter(row("", fmt.Sprintf("%d user(s)", len(profiles)), "", ""))
	t.Render()
}

func renderProfile(p *content.Profile) {
	t := newTable()
	t.AppendRows(rows(
		row("ID", p.ID),
		row("Nickname", p.Nickname),
		row("Age/Sex/Role", agr(p)),
		row("Location", p.Location),
		row("Friends", p.FriendCount),
		row("Supporter", p.PayingAccount),
		row("Profile", p.NamedPermalink()),
	))
	if p.Bio != "" {
		t.AppendRow(row("About", truncate(p.Bio, 80)))
	}
	for _, e := range p.Events {
		t.AppendRow(row("Event", fmt.Sprintf("%s (#%d)", e.Title, e.ID)))
	}
	for _, g := range p.Groups {
		t.AppendRow(row("Group", fmt.Sprintf("%s (#%d)", g.Name, g.ID)))
	}
	t.Render()
}

func renderWritings(writings []*content.Writing) {
	t := newTable()
	t.AppendHeader(row("ID", "Title", "Category", "Published", "Excerpt"))
	for _, w := range writings {
		t.AppendRow(row(w.ID, w.Title, w.Category, date(w.Published), truncate(w.ContentText(), 50)))
	}
	t.Render()
}

func renderPictures(pictures []*content.Picture) {
	t := newTable()
	t.AppendHeader(row("ID", "Caption", "Source"))
	for _, p := range pictures {
		t.AppendRow(row(p.ID, truncate(p.ContentText(), 40), p.Src))
	}
	t.Render()
}

func renderEvents(events []*content.Event) {
	t := newTable()
	t.AppendHeader(row("ID", "Title", "Starts", "Venue"))
	for _, e := range events {
		start := date(e.Start)
		if start == "" {
			start = e.StartText
		}
		t.AppendRow(row(e.ID, e.Title, start, e.VenueName))
	}
	t.Render()
}

func renderEvent(e *content.Event) {
	t := newTable()
	t.AppendRows(rows(
		row("ID", e.ID),
		row("Title", e.Title),
		row("Tagline", e.Tagline),
		row("Starts", date(e.Start)),
		row("Ends", date(e.End)),
		row("Venue", e.VenueName),
		row("Address", e.Address.String()),
		row("Cost", e.Cost),
		row("Dress code", e.DressCode),
		row("Created by", nickname(e.Creator)),
	))
	if e.Going != nil || e.MaybeGoing != nil {
		t.AppendRow(row("Going", len(e.Going)))
		t.AppendRow(row("Maybe", len(e.MaybeGoing)))
	}
	t.Render()
}

func renderGroup(g *content.Group) {
	t := newTable()
	t.AppendRows(rows(
		row("ID", g.ID),
		row("Name", g.Name),
		row("Description", truncate(g.Description, 80)),
		row("Members", g.MemberCount),
		row("Discussions", g.PostCount),
		row("Comments", g.CommentCount),
		row("Last activity", date(g.LastActivity)),
	))
	t.Render()
}

func renderDiscussions(discussions []*content.GroupDiscussion) {
	t := newTable()
	t.AppendHeader(row("ID", "Title", "Started by", "Comments", "Published"))
	for _, d := range discussions {
		t.AppendRow(row(d.ID, d.Title, nickname(d.Creator), d.CommentCount, date(d.Published)))
	}
	t.Render()
}
