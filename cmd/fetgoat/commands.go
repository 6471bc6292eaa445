package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/fetgoat/internal/content"
	"github.com/IshaanNene/fetgoat/internal/media"
	"github.com/IshaanNene/fetgoat/pkg/fetgoat"
)

// loginCmd creates the "login" subcommand.
func loginCmd() *cobra.Command {
	var (
		password      string
		browser       bool
		importCookies bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session cookies",
		Long: `Sign in with the account password (or FETGOAT_ACCOUNT_PASSWORD), through a
headless browser with --browser, or by copying the cookies of a desktop
browser that is already signed in with --import-cookies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if password != "" {
				cfg.Account.Password = password
			}
			cfg.Browser.Enabled = cfg.Browser.Enabled || browser

			client, err := fetgoat.New(fetgoat.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer client.Close()
			sess := client.Session()

			var ok bool
			if importCookies {
				n, err := sess.ImportBrowserCookies(cmd.Context())
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("no cookies for %s found in local browsers", cfg.Site.BaseURL)
				}
				ok, err = sess.Resume(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				if cfg.Account.Nickname == "" || cfg.Account.Password == "" {
					return fmt.Errorf("login needs --account and --password (or FETGOAT_ACCOUNT_PASSWORD)")
				}
				ok, err = client.Login(cmd.Context())
				if err != nil {
					return err
				}
			}
			if !ok {
				return fmt.Errorf("login rejected for %q", cfg.Account.Nickname)
			}
			fmt.Printf("Logged in as %s (id %d)\n", cfg.Account.Nickname, sess.UserID())
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&browser, "browser", false, "sign in through a headless browser")
	cmd.Flags().BoolVar(&importCookies, "import-cookies", false, "reuse a desktop browser's signed-in cookies")
	return cmd
}

// resolveCmd creates the "resolve" subcommand.
func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <user>...",
		Short: "Print the numeric id and nickname of each user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			t := newTable()
			t.AppendHeader(row("User", "ID", "Nickname"))
			for _, arg := range args {
				id, err := client.User().Resolve(cmd.Context(), fetgoat.ParseWho(arg))
				if err != nil {
					return fmt.Errorf("resolve %s: %w", arg, err)
				}
				nick, err := client.User().Resolver().NicknameByID(cmd.Context(), id)
				if err != nil {
					client.Logger().Warn("nickname lookup failed", "id", id, "error", err)
				}
				t.AppendRow(row(arg, id, nick))
			}
			t.Render()
			return nil
		},
	}
}

// profileCmd creates the "profile" subcommand.
func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [user]",
		Short: "Show a user's profile (default: yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			p, err := client.User().Profile(cmd.Context(), whoArg(args))
			if err != nil {
				return err
			}
			renderProfile(p)
			return export(cmd, client, fmt.Sprintf("profile-%d", p.ID), content.Items([]*content.Profile{p}))
		},
	}
}

// friendsCmd creates the "friends" subcommand.
func friendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "friends [user]",
		Short: "List a user's friends (default: yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			who := whoArg(args)
			friends, err := client.User().FriendsOf(cmd.Context(), who, pages)
			if err != nil {
				return err
			}
			renderProfiles(friends)
			return export(cmd, client, "friends-"+who.String(), content.Items(friends))
		},
	}
}

// writingsCmd creates the "writings" subcommand.
func writingsCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "writings [user]",
		Short: "List a user's writings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			who := whoArg(args)
			writings, err := client.User().WritingsOf(cmd.Context(), who, pages)
			if err != nil {
				return err
			}
			if full {
				for _, w := range writings {
					if err := w.Populate(cmd.Context()); err != nil {
						client.Logger().Warn("could not load writing", "id", w.ID, "error", err)
					}
				}
			}
			renderWritings(writings)
			return export(cmd, client, "writings-"+who.String(), content.Items(writings))
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "load every writing page, comments included")
	return cmd
}

// picturesCmd creates the "pictures" subcommand.
func picturesCmd() *cobra.Command {
	var (
		download   bool
		concurrent int
	)
	cmd := &cobra.Command{
		Use:   "pictures [user]",
		Short: "List a user's pictures, optionally downloading them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			who := whoArg(args)
			pictures, err := client.User().PicturesOf(cmd.Context(), who, pages)
			if err != nil {
				return err
			}
			renderPictures(pictures)

			if download {
				results, err := client.DownloadPictures(cmd.Context(), pictures, concurrent)
				if err != nil {
					return err
				}
				var saved, failed int
				var bytes int64
				for _, r := range results {
					if r.Err != nil {
						failed++
						continue
					}
					saved++
					bytes += r.Size
				}
				fmt.Fprintf(os.Stderr, "downloaded %d picture(s), %s, %d failed, into %s\n",
					saved, media.HumanSize(bytes), failed, client.Config().Media.OutputDir)
			}
			return export(cmd, client, "pictures-"+who.String(), content.Items(pictures))
		},
	}
	cmd.Flags().BoolVar(&download, "download", false, "save pictures under media.output_dir")
	cmd.Flags().IntVar(&concurrent, "concurrency", 4, "parallel downloads")
	return cmd
}

// membersCmd creates the "members" subcommand.
func membersCmd() *cobra.Command {
	return userListCmd("members <group-id>", "List a group's members", "members",
		func(cmd *cobra.Command, u *content.User, id int64) ([]*content.Profile, error) {
			return u.MembersOfGroup(cmd.Context(), id, pages)
		})
}

// fetishCmd creates the "fetish" subcommand.
func fetishCmd() *cobra.Command {
	return userListCmd("fetish <fetish-id>", "List users into a fetish", "fetish",
		func(cmd *cobra.Command, u *content.User, id int64) ([]*content.Profile, error) {
			return u.KinkstersWithFetish(cmd.Context(), id, pages)
		})
}

// locationCmd creates the "location" subcommand.
func locationCmd() *cobra.Command {
	return userListCmd("location <area-id>", "List users in an administrative area", "location",
		func(cmd *cobra.Command, u *content.User, id int64) ([]*content.Profile, error) {
			return u.KinkstersInLocation(cmd.Context(), id, pages)
		})
}

// rsvpsCmd creates the "rsvps" subcommand.
func rsvpsCmd() *cobra.Command {
	var maybe bool
	cmd := userListCmd("rsvps <event-id>", "List an event's RSVPs", "rsvps",
		func(cmd *cobra.Command, u *content.User, id int64) ([]*content.Profile, error) {
			if maybe {
				return u.KinkstersMaybeGoingToEvent(cmd.Context(), id, pages)
			}
			return u.KinkstersGoingToEvent(cmd.Context(), id, pages)
		})
	cmd.Flags().BoolVar(&maybe, "maybe", false, "list tentative RSVPs instead")
	return cmd
}

func userListCmd(use, short, name string, list func(*cobra.Command, *content.User, int64) ([]*content.Profile, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args[0])
			if err != nil {
				return err
			}
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			users, err := list(cmd, client.User(), id)
			if err != nil {
				return err
			}
			renderProfiles(users)
			return export(cmd, client, fmt.Sprintf("%s-%d", name, id), content.Items(users))
		},
	}
}

// eventCmd creates the "event" subcommand.
func eventCmd() *cobra.Command {
	var rsvpPages int
	cmd := &cobra.Command{
		Use:   "event <event-id>",
		Short: "Show an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args[0])
			if err != nil {
				return err
			}
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			e, err := client.User().Event(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rsvpPages >= 0 {
				if err := e.LoadAttendees(cmd.Context(), rsvpPages); err != nil {
					return err
				}
			}
			renderEvent(e)
			return export(cmd, client, fmt.Sprintf("event-%d", id), content.Items([]*content.Event{e}))
		},
	}
	cmd.Flags().IntVar(&rsvpPages, "rsvp-pages", -1, "also load attendees, walking this many RSVP pages (0 = all)")
	return cmd
}

// eventsCmd creates the "events" subcommand.
func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <place>",
		Short: `List upcoming events in a place, such as "cities/5898"`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			events, err := client.User().UpcomingEventsInLocation(cmd.Context(), args[0], pages)
			if err != nil {
				return err
			}
			renderEvents(events)
			return export(cmd, client, "events-"+args[0], content.Items(events))
		},
	}
}

// searchCmd creates the "search" subcommand.
func searchCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search for users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			query := strings.Join(args, " ")
			var users []*content.Profile
			if all {
				users, err = client.User().Search(cmd.Context(), query, pages)
			} else {
				users, err = client.User().SearchKinksters(cmd.Context(), query, pages)
			}
			if err != nil {
				return err
			}
			renderProfiles(users)
			return export(cmd, client, "search-"+query, content.Items(users))
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "use the general site search instead of the kinkster search")
	return cmd
}

// groupCmd creates the "group" subcommand.
func groupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "group <group-id>",
		Short: "Show a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args[0])
			if err != nil {
				return err
			}
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			g, err := client.User().Group(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderGroup(g)
			return export(cmd, client, fmt.Sprintf("group-%d", id), content.Items([]*content.Group{g}))
		},
	}
}

// discussionsCmd creates the "discussions" subcommand.
func discussionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discussions <group-id> [discussion-id]",
		Short: "List a group's discussions, or show one with its comments",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := idArg(args[0])
			if err != nil {
				return err
			}
			client, err := signedIn(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if len(args) == 2 {
				id, err := idArg(args[1])
				if err != nil {
					return err
				}
				d, err := client.User().Discussion(cmd.Context(), groupID, id)
				if err != nil {
					return err
				}
				renderDiscussions([]*content.GroupDiscussion{d})
				fmt.Println(truncate(d.ContentText(), 400))
				items := content.Items([]*content.GroupDiscussion{d})
				items = append(items, content.Items(d.Comments)...)
				return export(cmd, client, fmt.Sprintf("discussion-%d-%d", groupID, id), items)
			}

			discussions, err := client.User().DiscussionsOfGroup(cmd.Context(), groupID, pages)
			if err != nil {
				return err
			}
			renderDiscussions(discussions)
			return export(cmd, client, fmt.Sprintf("discussions-%d", groupID), content.Items(discussions))
		},
	}
}

func whoArg(args []string) fetgoat.Who {
	if len(args) == 0 {
		return fetgoat.Self()
	}
	return fetgoat.ParseWho(args[0])
}

func idArg(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("expected a numeric id, got %q", s)
	}
	return id, nil
}
