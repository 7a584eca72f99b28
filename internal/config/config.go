package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for TubeHarvest.
type Config struct {
	Fetcher  FetcherConfig          `mapstructure:"fetcher"  yaml:"fetcher"`
	Browser  BrowserConfig          `mapstructure:"browser"  yaml:"browser"`
	Scroll   ScrollConfig           `mapstructure:"scroll"   yaml:"scroll"`
	Comments CommentsConfig         `mapstructure:"comments" yaml:"comments"`
	Probes   map[string]ProbeConfig `mapstructure:"probes"   yaml:"probes"`
	Harvest  HarvestConfig          `mapstructure:"harvest"  yaml:"harvest"`
	Storage  StorageConfig          `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig          `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig          `mapstructure:"metrics"  yaml:"metrics"`
}

// FetcherConfig controls how a watch page is opened.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // browser, http
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`

	// Page opens per second across all sessions; 0 disables pacing.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// BrowserConfig controls the headless Chromium session.
type BrowserConfig struct {
	Bin               string        `mapstructure:"bin"                yaml:"bin"`
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox"         yaml:"no_sandbox"`
	WindowSize        string        `mapstructure:"window_size"        yaml:"window_size"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"       yaml:"settle_delay"`
}

// ScrollConfig controls the comment scroll loop.
type ScrollConfig struct {
	Pause         time.Duration `mapstructure:"pause"          yaml:"pause"`
	MaxIterations int           `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// CommentsConfig controls comment collection.
type CommentsConfig struct {
	Enabled        bool   `mapstructure:"enabled"         yaml:"enabled"`
	ThreadSelector string `mapstructure:"thread_selector" yaml:"thread_selector"`
	BodySelector   string `mapstructure:"body_selector"   yaml:"body_selector"`
}

// ProbeConfig overrides one field probe. Selectors are written as
// "css:<expr>" or "xpath:<expr>"; a bare expression is CSS.
type ProbeConfig struct {
	Candidates   []string      `mapstructure:"candidates"    yaml:"candidates"`
	Mode         string        `mapstructure:"mode"          yaml:"mode"` // text, attribute, click_then_read
	Attribute    string        `mapstructure:"attribute"     yaml:"attribute"`
	ClickTargets []string      `mapstructure:"click_targets" yaml:"click_targets"`
	ClickSettle  time.Duration `mapstructure:"click_settle"  yaml:"click_settle"`
	Wait         time.Duration `mapstructure:"wait"          yaml:"wait"`
	Fallback     string        `mapstructure:"fallback"      yaml:"fallback"`
}

// HarvestConfig bounds a whole harvest.
type HarvestConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StorageConfig controls export.
type StorageConfig struct {
	Formats    []string    `mapstructure:"formats"     yaml:"formats"` // json, csv, txt, mongodb
	OutputPath string      `mapstructure:"output_path" yaml:"output_path"`
	Mongo      MongoConfig `mapstructure:"mongo"       yaml:"mongo"`
}

// MongoConfig configures the MongoDB exporter.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"` // stderr, stdout or a file path

	// Rotation, only used when Output is a file.
	MaxSizeMB  int  `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress"     yaml:"compress"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			Type:            "browser",
			RequestTimeout:  30 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxRetries:      2,
			RetryDelay:      2 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
			RateBurst:       1,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			WindowSize:        "1920,1080",
			NavigationTimeout: 60 * time.Second,
			SettleDelay:       8 * time.Second,
		},
		Scroll: ScrollConfig{
			Pause:         2 * time.Second,
			MaxIterations: 15,
		},
		Comments: CommentsConfig{
			Enabled:        true,
			ThreadSelector: "ytd-comment-thread-renderer",
			BodySelector:   "#content-text",
		},
		Harvest: HarvestConfig{
			Timeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Formats:    []string{"json", "csv", "txt"},
			OutputPath: "./output",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "tubeharvest",
				Collection: "harvests",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
