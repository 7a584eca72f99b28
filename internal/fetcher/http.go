package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// HTTPFetcher implements Fetcher by downloading the server-rendered HTML.
// Nothing is executed, so scrolling and clicking have no effect and only
// markup present in the initial response can be harvested.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     *config.FetcherConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		Timeout:       cfg.Fetcher.RequestTimeout,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:  client,
		limiter: newLimiter(&cfg.Fetcher),
		cfg:     &cfg.Fetcher,
		metrics: ensureMetrics(metrics, logger),
		logger:  logger.With("component", "http_fetcher"),
	}, nil
}

// Open downloads url, retrying transient failures, and parses the body into
// a static document.
func (f *HTTPFetcher) Open(ctx context.Context, url string) (Session, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := waitTurn(ctx, f.limiter, url); err != nil {
			f.metrics.PagesFailed.Add(1)
			return nil, err
		}

		body, wait, err := f.fetch(ctx, url)
		if err == nil {
			doc, perr := document.NewStatic(bytes.NewReader(body), url)
			if perr != nil {
				f.metrics.PagesFailed.Add(1)
				return nil, &types.DocumentError{Op: "parse", URL: url, Err: perr}
			}
			f.metrics.PagesOpened.Add(1)
			return staticSession{doc}, nil
		}

		lastErr = err
		if wait == 0 || attempt == f.cfg.MaxRetries {
			break
		}
		f.logger.Warn("fetch failed, retrying", "url", url, "attempt", attempt+1, "wait", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	f.metrics.PagesFailed.Add(1)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &types.DocumentError{Op: "fetch", URL: url, Err: lastErr}
}

// fetch performs one GET. A non-zero wait means the failure is worth
// retrying after that long.
func (f *HTTPFetcher) fetch(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	ua := f.cfg.UserAgent
	if ua == "" {
		ua = "TubeHarvest/" + config.Version
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if isRetryableError(err) {
			return nil, RandomDelay(f.cfg.RetryDelay), err
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	// Handle 429 Too Many Requests; respect Retry-After if present
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, retryAfter, fmt.Errorf("HTTP 429: rate limited (retry after %s)", retryAfter)
	}
	if resp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, RandomDelay(f.cfg.RetryDelay), fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if resp.StatusCode >= 400 {
		return nil, 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(resp, reader)
	if err != nil {
		return nil, 0, err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, RandomDelay(f.cfg.RetryDelay), err
	}
	f.metrics.BytesDownloaded.Add(int64(len(body)))

	f.logger.Debug("fetch complete",
		"url", url,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return body, 0, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection refused.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellation is NOT retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return true
		}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second // default back-off
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		if secs < 1 {
			secs = 1
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}

// RandomDelay returns a random delay around the base duration (±25%).
// A non-positive base yields a millisecond so callers still see a retry.
func RandomDelay(base time.Duration) time.Duration {
	if base <= 0 {
		return time.Millisecond
	}
	jitter := float64(base) * 0.25
	return base + time.Duration(rand.Float64()*2*jitter-jitter)
}
