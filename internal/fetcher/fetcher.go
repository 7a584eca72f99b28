package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Session is an opened page. The caller owns it and must Close it, also
// when the harvest fails.
type Session interface {
	document.Document
	Close() error
}

// Fetcher opens watch pages as documents.
type Fetcher interface {
	// Open loads url and returns a ready document. Failures are
	// *types.DocumentError values.
	Open(ctx context.Context, url string) (Session, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher named by cfg.Fetcher.Type.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		return NewBrowserFetcher(cfg, logger, metrics)
	case "http":
		return NewHTTPFetcher(cfg, logger, metrics)
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Fetcher.Type)
	}
}

// staticSession is a snapshot session; closing it is a no-op.
type staticSession struct {
	*document.Static
}

func (staticSession) Close() error { return nil }

// OpenFile loads a saved watch page from disk. sourceURL is recorded as the
// page's address.
func OpenFile(path, sourceURL string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.DocumentError{Op: "open", URL: path, Err: err}
	}
	defer f.Close()

	doc, err := document.NewStatic(f, sourceURL)
	if err != nil {
		return nil, &types.DocumentError{Op: "parse", URL: path, Err: err}
	}
	return staticSession{doc}, nil
}

func ensureMetrics(m *observability.Metrics, logger *slog.Logger) *observability.Metrics {
	if m == nil {
		return observability.NewMetrics(logger)
	}
	return m
}

// newLimiter returns nil when pacing is disabled.
func newLimiter(cfg *config.FetcherConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

// waitTurn blocks until the limiter admits one more page open.
func waitTurn(ctx context.Context, l *rate.Limiter, url string) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &types.DocumentError{Op: "rate_limit", URL: url, Err: err}
	}
	return nil
}
