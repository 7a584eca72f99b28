package harvest

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/tubeharvest/internal/automation"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Default comment selectors for the watch view.
var (
	DefaultThreadSelector = document.CSS("ytd-comment-thread-renderer")
	DefaultBodySelector   = document.CSS("#content-text")
)

// ScrollDriver exposes lazily loaded content before collection.
type ScrollDriver interface {
	ScrollUntilStable(ctx context.Context, surface automation.ScrollSurface) (automation.ScrollState, error)
}

// CommentResult is the outcome of one collection pass.
type CommentResult struct {
	Comments []string
	Threads  int
	Skipped  int
	Scroll   automation.ScrollState
}

// CommentCollector gathers comment bodies from thread nodes.
type CommentCollector struct {
	ThreadSelector document.Selector
	BodySelector   document.Selector

	logger *slog.Logger
}

// NewCommentCollector creates a collector for the given selectors.
func NewCommentCollector(thread, body document.Selector, logger *slog.Logger) *CommentCollector {
	return &CommentCollector{
		ThreadSelector: thread,
		BodySelector:   body,
		logger:         logger.With("component", "comment_collector"),
	}
}

// CollectComments scrolls once to load the comment section and returns the
// comment bodies in document order. Threads whose body cannot be read are
// skipped. An empty list is a normal result.
func (c *CommentCollector) CollectComments(ctx context.Context, doc document.Document, scroller ScrollDriver) ([]string, error) {
	res, err := c.Collect(ctx, doc, scroller)
	if err != nil {
		return nil, err
	}
	return res.Comments, nil
}

// Collect is CollectComments with per-pass counts.
func (c *CommentCollector) Collect(ctx context.Context, doc document.Document, scroller ScrollDriver) (CommentResult, error) {
	res := CommentResult{Comments: []string{}}

	state, err := scroller.ScrollUntilStable(ctx, doc)
	res.Scroll = state
	if err != nil {
		return res, err
	}

	threads, err := doc.QueryAll(ctx, c.ThreadSelector)
	if err != nil {
		if fatal(ctx, err) {
			return res, err
		}
		c.logger.Warn("comment threads query failed", "selector", c.ThreadSelector.String(), "error", err)
		return res, nil
	}
	res.Threads = len(threads)

	for i, thread := range threads {
		body, ok, err := doc.QueryWithin(ctx, thread, c.BodySelector)
		if err == nil && ok {
			var text string
			text, err = doc.ReadText(ctx, body)
			if err == nil {
				res.Comments = append(res.Comments, text)
				continue
			}
		}
		if err != nil && fatal(ctx, err) {
			return res, err
		}
		res.Skipped++
		c.logger.Debug("comment skipped", "index", i, "found", ok, "error", err)
	}

	c.logger.Info("comments collected",
		"threads", res.Threads,
		"collected", len(res.Comments),
		"skipped", res.Skipped,
		"scroll_iterations", state.IterationsRun,
	)
	return res, nil
}

func fatal(ctx context.Context, err error) bool {
	return types.IsDocumentUnavailable(err) || ctx.Err() != nil
}
