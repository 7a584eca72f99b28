package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidFormats lists the export formats the CLI accepts.
var ValidFormats = map[string]bool{
	"json": true, "csv": true, "txt": true, "mongodb": true,
}

var validProbeModes = map[string]bool{
	"": true, "text": true, "attribute": true, "click_then_read": true,
}

// Validate checks the configuration for invalid values. Probe selectors are
// compiled later, when the probe table is built.
func Validate(cfg *Config) error {
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Fetcher.RateLimit < 0 {
		return fmt.Errorf("fetcher.rate_limit must be >= 0")
	}
	if cfg.Fetcher.RateLimit > 0 && cfg.Fetcher.RateBurst < 1 {
		return fmt.Errorf("fetcher.rate_burst must be >= 1 when rate_limit is set")
	}

	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must be >= 0")
	}

	if cfg.Scroll.MaxIterations < 0 {
		return fmt.Errorf("scroll.max_iterations must be >= 0, got %d", cfg.Scroll.MaxIterations)
	}
	if cfg.Scroll.Pause < 0 {
		return fmt.Errorf("scroll.pause must be >= 0")
	}

	if cfg.Comments.Enabled {
		if strings.TrimSpace(cfg.Comments.ThreadSelector) == "" {
			return fmt.Errorf("comments.thread_selector must not be empty")
		}
		if strings.TrimSpace(cfg.Comments.BodySelector) == "" {
			return fmt.Errorf("comments.body_selector must not be empty")
		}
	}

	for name, p := range cfg.Probes {
		if !validProbeModes[p.Mode] {
			return fmt.Errorf("probes.%s.mode must be text/attribute/click_then_read, got %q", name, p.Mode)
		}
		if p.Mode == "attribute" && p.Attribute == "" {
			return fmt.Errorf("probes.%s.attribute is required in attribute mode", name)
		}
		if p.Wait < 0 || p.ClickSettle < 0 {
			return fmt.Errorf("probes.%s: wait and click_settle must be >= 0", name)
		}
	}

	if cfg.Harvest.Timeout <= 0 {
		return fmt.Errorf("harvest.timeout must be > 0")
	}

	for _, f := range cfg.Storage.Formats {
		if !ValidFormats[f] {
			return fmt.Errorf("storage format %q is not supported (valid: json, csv, txt, mongodb)", f)
		}
		if f == "mongodb" && cfg.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongodb format")
		}
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

	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation settings must be >= 0")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks that a URL is a usable http(s) watch-page address.
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
