// Package harvest assembles a video record and its comments from a
// document by composing the field extractor, the scroller and the comment
// collector.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/automation"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/parser"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Harvester runs one harvest at a time per document. Independent harvests
// may share a Harvester as long as each uses its own document.
type Harvester struct {
	probes    parser.ProbeSet
	extractor *parser.Extractor
	scroller  ScrollDriver
	collector *CommentCollector
	comments  bool
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithProbes replaces the default probe table.
func WithProbes(ps parser.ProbeSet) Option {
	return func(h *Harvester) { h.probes = ps }
}

// WithScroller sets the scroll loop used before comment collection.
func WithScroller(s ScrollDriver) Option {
	return func(h *Harvester) { h.scroller = s }
}

// WithCollector sets the comment collector.
func WithCollector(c *CommentCollector) Option {
	return func(h *Harvester) { h.collector = c }
}

// WithoutComments skips scrolling and comment collection.
func WithoutComments() Option {
	return func(h *Harvester) { h.comments = false }
}

// WithMetrics records harvest counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Harvester) { h.metrics = m }
}

// WithClock overrides the clock used for ScrapedAt.
func WithClock(now func() time.Time) Option {
	return func(h *Harvester) { h.now = now }
}

// New creates a Harvester with the default probes, scroller and collector.
func New(logger *slog.Logger, opts ...Option) *Harvester {
	h := &Harvester{
		probes:   parser.DefaultProbes(),
		comments: true,
		logger:   logger.With("component", "harvester"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.extractor == nil {
		h.extractor = parser.NewExtractor(logger)
	}
	if h.scroller == nil {
		h.scroller = automation.NewScroller(automation.DefaultScrollPause, automation.DefaultMaxIterations, logger)
	}
	if h.collector == nil {
		h.collector = NewCommentCollector(DefaultThreadSelector, DefaultBodySelector, logger)
	}
	if h.metrics == nil {
		h.metrics = observability.NewMetrics(logger)
	}
	return h
}

// Probes returns the active probe table.
func (h *Harvester) Probes() parser.ProbeSet { return h.probes }

// Harvest extracts every field in FieldOrder, then the comments. Missing
// fields keep their not-found markers. The only error returned is an
// unavailable document or a done context, in which case no record is
// produced.
func (h *Harvester) Harvest(ctx context.Context, doc document.Document, url string) (*types.Harvest, error) {
	start := time.Now()
	h.metrics.HarvestsStarted.Add(1)
	h.metrics.ActiveHarvests.Add(1)
	defer h.metrics.ActiveHarvests.Add(-1)

	log := h.logger.With("url", url)
	log.Info("harvest started")

	video := types.NewVideoRecord(url)
	for _, name := range parser.FieldOrder {
		probe, ok := h.probes[name]
		if !ok {
			h.metrics.FieldsMissing.Add(1)
			continue
		}

		value, found, err := h.extractor.ExtractField(ctx, doc, probe)
		if err != nil {
			return nil, h.fail(log, "extract "+name, err)
		}
		if found {
			h.metrics.FieldsFound.Add(1)
		} else {
			h.metrics.FieldsMissing.Add(1)
			log.Warn("field not found", "field", name)
		}
		h.assign(log, &video, name, value, found)
	}

	comments := []string{}
	if h.comments {
		res, err := h.collector.Collect(ctx, doc, h.scroller)
		h.recordScroll(res.Scroll)
		if err != nil {
			return nil, h.fail(log, "collect comments", err)
		}
		h.metrics.CommentsCollected.Add(int64(len(res.Comments)))
		h.metrics.CommentsSkipped.Add(int64(res.Skipped))
		comments = res.Comments
	}

	video.ScrapedAt = h.now().UTC()
	h.metrics.HarvestsCompleted.Add(1)

	log.Info("harvest complete",
		"title", video.Title,
		"likes", video.LikeCount.String(),
		"comments", len(comments),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return types.NewHarvest(video, comments), nil
}

func (h *Harvester) assign(log *slog.Logger, video *types.VideoRecord, name, value string, found bool) {
	switch name {
	case parser.FieldTitle:
		video.Title = value
	case parser.FieldChannel:
		video.Channel = value
	case parser.FieldSubscribers:
		video.SubscriberCountText = value
	case parser.FieldViews:
		video.ViewCountText = value
	case parser.FieldDescription:
		video.Description = value
	case parser.FieldLikes:
		if !found {
			video.LikeCount = types.UnknownCount()
			return
		}
		n, err := parser.ParseAbbreviatedCount(value)
		if err != nil {
			h.metrics.LikeParseErrors.Add(1)
			log.Warn("like count unreadable", "text", value, "error", err)
			video.LikeCount = types.UnknownCount()
			return
		}
		video.LikeCount = types.KnownCount(n)
	}
}

func (h *Harvester) recordScroll(s automation.ScrollState) {
	h.metrics.ScrollIterations.Add(int64(s.IterationsRun))
	switch {
	case s.Converged:
		h.metrics.ScrollsConverged.Add(1)
	case s.MaxIterations > 0 && s.IterationsRun >= s.MaxIterations:
		h.metrics.ScrollsExhausted.Add(1)
	}
}

func (h *Harvester) fail(log *slog.Logger, phase string, err error) error {
	h.metrics.HarvestsFailed.Add(1)
	log.Error("harvest aborted", "phase", phase, "error", err)
	return fmt.Errorf("%s: %w", phase, err)
}
