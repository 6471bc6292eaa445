package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if _, err := regexp.Compile(cfg.Site.CSRFPattern); err != nil {
		return fmt.Errorf("site.csrf_pattern: %w", err)
	}
	if len(cfg.Site.UserIDPatterns) == 0 {
		return fmt.Errorf("site.user_id_patterns must not be empty")
	}
	for _, p := range cfg.Site.UserIDPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("site.user_id_patterns %q: %w", p, err)
		}
	}
	if _, err := regexp.Compile(cfg.Site.NicknamePattern); err != nil {
		return fmt.Errorf("site.nickname_pattern: %w", err)
	}

	if cfg.Session.StoreDir == "" {
		return fmt.Errorf("session.store_dir must not be empty")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.RetryDelay < 0 {
		return fmt.Errorf("fetcher.retry_delay must be >= 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Proxy.Enabled {
		switch cfg.Proxy.Rotation {
		case "sticky", "round_robin", "random":
		default:
			return fmt.Errorf("proxy.rotation must be sticky, round_robin or random, got %q", cfg.Proxy.Rotation)
		}
		if cfg.Proxy.MaxFails < 1 {
			return fmt.Errorf("proxy.max_fails must be >= 1")
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			u, err := url.Parse(proxyURL)
			if err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
			switch u.Scheme {
			case "http", "https", "socks5":
			default:
				return fmt.Errorf("proxy URL %q must use http, https or socks5", proxyURL)
			}
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must be set when cache.enabled is true")
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "mongo": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, csv, mongo)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "mongo" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri must be set for mongo storage")
	}

	if cfg.Media.MaxSizeMB < 0 {
		return fmt.Errorf("media.max_size_mb must be >= 0, got %d", cfg.Media.MaxSizeMB)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
