package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod.
// Each Open gets its own page so independent harvests never share one.
type BrowserFetcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	limiter  *rate.Limiter
	cfg      *config.Config
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewBrowserFetcher launches Chromium and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:     cfg,
		limiter: newLimiter(&cfg.Fetcher),
		metrics: ensureMetrics(metrics, logger),
		logger:  logger.With("component", "browser_fetcher"),
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		bf.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready",
		"headless", cfg.Browser.Headless,
		"window_size", cfg.Browser.WindowSize,
	)
	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	bc := bf.cfg.Browser
	l := launcher.New().
		Headless(bc.Headless).
		NoSandbox(bc.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("mute-audio")

	if bc.WindowSize != "" {
		l = l.Set("window-size", bc.WindowSize)
	}
	if bc.Bin != "" {
		l = l.Bin(bc.Bin)
	}

	bf.launcher = l
	return l.Launch()
}

// Open navigates a fresh page to url, waits for the load event and then the
// settle delay so client-side rendering can finish.
func (bf *BrowserFetcher) Open(ctx context.Context, url string) (Session, error) {
	if err := waitTurn(ctx, bf.limiter, url); err != nil {
		bf.metrics.PagesFailed.Add(1)
		return nil, err
	}
	start := time.Now()

	page, err := bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		bf.metrics.PagesFailed.Add(1)
		return nil, &types.DocumentError{Op: "new_page", URL: url, Err: err}
	}

	if ua := bf.cfg.Fetcher.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	live := document.NewLive(page, bf.logger)

	navCtx, cancel := context.WithTimeout(ctx, bf.cfg.Browser.NavigationTimeout)
	err = live.Navigate(navCtx, url)
	cancel()
	if err != nil {
		_ = page.Close()
		bf.metrics.PagesFailed.Add(1)
		return nil, err
	}

	if d := bf.cfg.Browser.SettleDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			_ = page.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	bf.metrics.PagesOpened.Add(1)
	bf.logger.Debug("page ready", "url", url, "duration", time.Since(start))
	return live, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	var err error
	if bf.browser != nil {
		err = bf.browser.Close()
	}
	if bf.launcher != nil {
		bf.launcher.Cleanup()
	}
	return err
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
