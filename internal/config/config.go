package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for fetgoat.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"    yaml:"site"`
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Media   MediaConfig   `mapstructure:"media"   yaml:"media"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// SiteConfig describes the remote site and the markers used to read its pages.
type SiteConfig struct {
	BaseURL         string   `mapstructure:"base_url"          yaml:"base_url"`
	CSRFPattern     string   `mapstructure:"csrf_pattern"      yaml:"csrf_pattern"`
	UserIDPatterns  []string `mapstructure:"user_id_patterns"  yaml:"user_id_patterns"`
	NicknamePattern string   `mapstructure:"nickname_pattern"  yaml:"nickname_pattern"`
	HomeMarker      string   `mapstructure:"home_marker"       yaml:"home_marker"`
	ErrorMarker     string   `mapstructure:"error_marker"      yaml:"error_marker"`
}

// AccountConfig holds the credentials of the acting account.
type AccountConfig struct {
	Nickname string `mapstructure:"nickname" yaml:"nickname"`
	Password string `mapstructure:"password" yaml:"-"`
}

// SessionConfig controls where session cookies live.
type SessionConfig struct {
	StoreDir       string `mapstructure:"store_dir"       yaml:"store_dir"`
	BrowserCookies bool   `mapstructure:"browser_cookies" yaml:"browser_cookies"`
}

// FetcherConfig controls the HTTP transport.
type FetcherConfig struct {
	RequestTimeout   time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	FollowRedirects  bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects     int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize      int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure      bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout  time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgent        string        `mapstructure:"user_agent"        yaml:"user_agent"`
	CloudflareBypass bool          `mapstructure:"cloudflare_bypass" yaml:"cloudflare_bypass"`
}

// ProxyConfig controls proxy rotation. "sticky" keeps every exchange on
// one proxy until it fails, so a signed-in session keeps its exit address.
type ProxyConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string        `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string      `mapstructure:"urls"     yaml:"urls"`
	MaxFails int           `mapstructure:"max_fails" yaml:"max_fails"`
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// BrowserConfig controls headless-browser login.
type BrowserConfig struct {
	Enabled    bool          `mapstructure:"enabled"     yaml:"enabled"`
	Headless   bool          `mapstructure:"headless"    yaml:"headless"`
	ControlURL string        `mapstructure:"control_url" yaml:"control_url"`
	Stealth    bool          `mapstructure:"stealth"     yaml:"stealth"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// CacheConfig controls the persistent identity cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir     string        `mapstructure:"dir"     yaml:"dir"`
	TTL     time.Duration `mapstructure:"ttl"     yaml:"ttl"`
}

// StorageConfig controls export.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// MediaConfig controls picture downloads.
type MediaConfig struct {
	OutputDir string `mapstructure:"output_dir"  yaml:"output_dir"`
	MaxSizeMB int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus-format metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:     "https://fetlife.com",
			CSRFPattern: `<meta name="csrf-token" content="([+a-zA-Z0-9&#;=/_-]+)"\s*/?>`,
			UserIDPatterns: []string{
				`var currentUserId = ([0-9]+);`,
				`FetLife\.currentUser\.id\s*=\s*([0-9]+);`,
			},
			NicknamePattern: `<title>([-_A-Za-z0-9]+) - Kinksters - FetLife</title>`,
			HomeMarker:      `<title>Home - FetLife</title>`,
			ErrorMarker:     `<p class="error_code">500 Internal Server Error</p>`,
		},
		Session: SessionConfig{
			StoreDir: "./fetgoat_sessions",
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			MaxRetries:      2,
			RetryDelay:      time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "sticky",
			MaxFails: 3,
			Cooldown: 5 * time.Minute,
		},
		Browser: BrowserConfig{
			Enabled:  false,
			Headless: true,
			Stealth:  true,
			Timeout:  60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     "./fetgoat_cache",
			TTL:     7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Type:            "json",
			OutputPath:      "./output",
			MongoDatabase:   "fetgoat",
			MongoCollection: "entities",
		},
		Media: MediaConfig{
			OutputDir: "./pictures",
			MaxSizeMB: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
