package harvest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/tubeharvest/internal/automation"
	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/fetcher"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/parser"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Opener opens a watch page. fetcher.Fetcher satisfies it.
type Opener interface {
	Open(ctx context.Context, url string) (fetcher.Session, error)
}

// FromConfig builds a Harvester from the scroll, comments and probes
// sections of cfg. Extra options are applied last.
func FromConfig(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, extra ...Option) (*Harvester, error) {
	probes, err := parser.ProbesFromConfig(parser.DefaultProbes(), cfg.Probes)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithProbes(probes),
		WithScroller(automation.NewScroller(cfg.Scroll.Pause, cfg.Scroll.MaxIterations, logger)),
		WithMetrics(metrics),
	}

	if cfg.Comments.Enabled {
		thread, err := parser.ParseSelector(cfg.Comments.ThreadSelector)
		if err != nil {
			return nil, fmt.Errorf("comments.thread_selector: %w", err)
		}
		body, err := parser.ParseSelector(cfg.Comments.BodySelector)
		if err != nil {
			return nil, fmt.Errorf("comments.body_selector: %w", err)
		}
		opts = append(opts, WithCollector(NewCommentCollector(thread, body, logger)))
	} else {
		opts = append(opts, WithoutComments())
	}

	return New(logger, append(opts, extra...)...), nil
}

// HarvestURL opens url, harvests it and releases the session, also when
// opening succeeded but the harvest failed.
func (h *Harvester) HarvestURL(ctx context.Context, opener Opener, url string) (*types.Harvest, error) {
	session, err := opener.Open(ctx, url)
	if err != nil {
		h.metrics.HarvestsFailed.Add(1)
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			h.logger.Warn("session close failed", "url", url, "error", cerr)
		}
	}()

	return h.Harvest(ctx, session, url)
}
