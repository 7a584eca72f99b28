// Package tubeharvest provides a public SDK for embedding TubeHarvest as a
// library.
//
// Example usage:
//
//	client, err := tubeharvest.New(
//	    tubeharvest.WithEngine("browser"),
//	    tubeharvest.WithScroll(2*time.Second, 15),
//	    tubeharvest.WithOutput("./output", "json", "csv"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	h, err := client.Harvest(ctx, "https://www.youtube.com/watch?v=...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(h.Video.Title, len(h.Comments))
//	client.Export(ctx, h)
package tubeharvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/fetcher"
	"github.com/IshaanNene/tubeharvest/internal/harvest"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/parser"
	"github.com/IshaanNene/tubeharvest/internal/storage"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Re-exported result types.
type (
	Harvest     = types.Harvest
	VideoRecord = types.VideoRecord
	Count       = types.Count
)

// ParseCount converts abbreviated count text such as "12.3K" to an integer.
func ParseCount(text string) (int64, error) {
	return parser.ParseAbbreviatedCount(text)
}

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the default configuration. Options after it still
// apply on top.
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithEngine selects how pages are opened: "browser" or "http".
func WithEngine(engine string) Option {
	return func(c *Client) { c.cfg.Fetcher.Type = engine }
}

// WithScroll sets the scroll pause and iteration limit.
func WithScroll(pause time.Duration, maxIterations int) Option {
	return func(c *Client) {
		c.cfg.Scroll.Pause = pause
		c.cfg.Scroll.MaxIterations = maxIterations
	}
}

// WithoutComments skips the comment section.
func WithoutComments() Option {
	return func(c *Client) { c.cfg.Comments.Enabled = false }
}

// WithOutput sets the export directory and formats.
func WithOutput(dir string, formats ...string) Option {
	return func(c *Client) {
		c.cfg.Storage.OutputPath = dir
		if len(formats) > 0 {
			c.cfg.Storage.Formats = formats
		}
	}
}

// WithTimeout bounds each harvest.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.cfg.Harvest.Timeout = d }
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.cfg.Fetcher.UserAgent = ua }
}

// WithLogger sets the logger. By default only warnings are logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVerbose enables debug-level logging on the default logger.
func WithVerbose() Option {
	return func(c *Client) { c.cfg.Logging.Level = "debug" }
}

// Client harvests watch pages. The browser or HTTP fetcher is started on
// the first Harvest call and shared by later calls.
type Client struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	harvester *harvest.Harvester

	mu      sync.Mutex
	fetcher fetcher.Fetcher
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}

	if err := config.Validate(c.cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if c.logger == nil {
		level := slog.LevelWarn
		if c.cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	c.metrics = observability.NewMetrics(c.logger)

	h, err := harvest.FromConfig(c.cfg, c.logger, c.metrics)
	if err != nil {
		return nil, err
	}
	c.harvester = h
	return c, nil
}

// Harvest opens url and extracts its record and comments.
func (c *Client) Harvest(ctx context.Context, url string) (*Harvest, error) {
	if err := config.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}

	f, err := c.openFetcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Harvest.Timeout)
	defer cancel()
	return c.harvester.HarvestURL(ctx, f, url)
}

// HarvestFile extracts a record from a saved watch page. sourceURL is
// recorded as the page's address.
func (c *Client) HarvestFile(ctx context.Context, path, sourceURL string) (*Harvest, error) {
	session, err := fetcher.OpenFile(path, sourceURL)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Harvest.Timeout)
	defer cancel()
	return c.harvester.Harvest(ctx, session, sourceURL)
}

// Export writes h to every configured format.
func (c *Client) Export(ctx context.Context, h *Harvest) error {
	exp, err := storage.New(ctx, &c.cfg.Storage, c.logger, c.metrics)
	if err != nil {
		return err
	}
	defer exp.Close()
	return exp.Export(ctx, h)
}

// Stats returns harvest statistics.
func (c *Client) Stats() map[string]int64 {
	return c.metrics.Snapshot()
}

// Close shuts down the fetcher, if one was started.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetcher == nil {
		return nil
	}
	err := c.fetcher.Close()
	c.fetcher = nil
	return err
}

func (c *Client) openFetcher() (fetcher.Fetcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetcher != nil {
		return c.fetcher, nil
	}
	f, err := fetcher.New(c.cfg, c.logger, c.metrics)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	c.fetcher = f
	return f, nil
}
