package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("TUBEHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tubeharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".tubeharvest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env vars can override
// keys that never appear in a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.retry_delay", cfg.Fetcher.RetryDelay)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.rate_limit", cfg.Fetcher.RateLimit)
	v.SetDefault("fetcher.rate_burst", cfg.Fetcher.RateBurst)

	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.settle_delay", cfg.Browser.SettleDelay)

	v.SetDefault("scroll.pause", cfg.Scroll.Pause)
	v.SetDefault("scroll.max_iterations", cfg.Scroll.MaxIterations)

	v.SetDefault("comments.enabled", cfg.Comments.Enabled)
	v.SetDefault("comments.thread_selector", cfg.Comments.ThreadSelector)
	v.SetDefault("comments.body_selector", cfg.Comments.BodySelector)

	v.SetDefault("harvest.timeout", cfg.Harvest.Timeout)

	v.SetDefault("storage.formats", cfg.Storage.Formats)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", cfg.Logging.Compress)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

// Dump renders cfg as YAML that Load reads back to the same values.
func Dump(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
