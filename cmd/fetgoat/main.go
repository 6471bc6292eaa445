package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/pkg/fetgoat"
)

var (
	cfgFile      string
	verbose      bool
	account      string
	pages        int
	exportFormat string
	outputPath   string
	plainText    bool
	redact       bool
	fields       string

	// current is the client of the running command, kept so a failure can
	// dump the page the session last saw.
	current *fetgoat.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fetgoat",
		Short: "fetgoat: FetLife client for profiles, listings and content",
		Long: `fetgoat signs in to FetLife with a persistent cookie session and reads
profiles, friend and member lists, writings, pictures, events and groups.

Results print as tables and can be exported as JSON, JSONL, CSV or into
MongoDB. Users can be named by nickname, numeric id, or "me".`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&account, "account", "a", "", "account nickname (overrides account.nickname)")
	rootCmd.PersistentFlags().IntVarP(&pages, "pages", "p", 0, "listing pages to walk (0 = all)")
	rootCmd.PersistentFlags().StringVarP(&exportFormat, "export", "e", "", "also export results: json, jsonl, csv, mongo")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "export directory (overrides storage.output_path)")
	rootCmd.PersistentFlags().BoolVar(&plainText, "plain", false, "strip markup from exported content")
	rootCmd.PersistentFlags().BoolVar(&redact, "redact", false, "mask contact details in exported text")
	rootCmd.PersistentFlags().StringVar(&fields, "fields", "", "comma-separated fields to keep in exports")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(friendsCmd())
	rootCmd.AddCommand(writingsCmd())
	rootCmd.AddCommand(picturesCmd())
	rootCmd.AddCommand(membersCmd())
	rootCmd.AddCommand(fetishCmd())
	rootCmd.AddCommand(rsvpsCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(locationCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(groupCmd())
	rootCmd.AddCommand(discussionsCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if verbose && current != nil {
			if path, derr := dumpLastPage(current, os.TempDir()); derr != nil {
				fmt.Fprintln(os.Stderr, derr)
			} else if path != "" {
				fmt.Fprintf(os.Stderr, "last page (%s) saved to %s\n", current.Session().LastURL(), path)
			}
		}
		os.Exit(1)
	}
}

// dumpLastPage writes the last page the session received into dir. It
// returns an empty path when nothing has been fetched yet.
func dumpLastPage(c *fetgoat.Client, dir string) (string, error) {
	page := c.Session().LastPage()
	if len(page) == 0 {
		return "", nil
	}
	path := filepath.Join(dir, "fetgoat-last-page.html")
	if err := os.WriteFile(path, page, 0o600); err != nil {
		return "", fmt.Errorf("write last page: %w", err)
	}
	return path, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if account != "" {
		cfg.Account.Nickname = account
	}
	if exportFormat != "" {
		cfg.Storage.Type = strings.ToLower(exportFormat)
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
}

// newClient builds a client without touching the network.
func newClient() (*fetgoat.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return fetgoat.New(fetgoat.WithConfig(cfg))
}

// signedIn builds a client and makes sure it has a live session.
func signedIn(cmd *cobra.Command) (*fetgoat.Client, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	current = client
	if err := client.ServeMetrics(cmd.Context()); err != nil {
		client.Logger().Warn("failed to start metrics server", "error", err)
	}
	if err := client.EnsureLogin(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fetgoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			t := newTable()
			t.AppendHeader(row("Setting", "Value"))
			t.AppendRows(rows(
				row("site.base_url", cfg.Site.BaseURL),
				row("account.nickname", cfg.Account.Nickname),
				row("account.password", mask(cfg.Account.Password)),
				row("session.store_dir", cfg.Session.StoreDir),
				row("session.browser_cookies", cfg.Session.BrowserCookies),
				row("fetcher.request_timeout", cfg.Fetcher.RequestTimeout),
				row("fetcher.max_retries", cfg.Fetcher.MaxRetries),
				row("fetcher.cloudflare_bypass", cfg.Fetcher.CloudflareBypass),
				row("proxy.enabled", cfg.Proxy.Enabled),
				row("proxy.rotation", cfg.Proxy.Rotation),
				row("proxy.count", len(cfg.Proxy.URLs)),
				row("browser.enabled", cfg.Browser.Enabled),
				row("cache.enabled", cfg.Cache.Enabled),
				row("cache.dir", cfg.Cache.Dir),
				row("cache.ttl", cfg.Cache.TTL),
				row("storage.type", cfg.Storage.Type),
				row("storage.output_path", cfg.Storage.OutputPath),
				row("media.output_dir", cfg.Media.OutputDir),
				row("logging.level", cfg.Logging.Level),
				row("metrics.enabled", cfg.Metrics.Enabled),
			))
			t.Render()
			return nil
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return "********"
}
