package automation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Default scroll loop settings.
const (
	DefaultScrollPause   = 2 * time.Second
	DefaultMaxIterations = 15
)

// ScrollSurface is the part of a document the scroller drives.
type ScrollSurface interface {
	ScrollToBottom(ctx context.Context) error
	DocumentHeight(ctx context.Context) (int, error)
}

// ScrollState reports how a scroll loop ended. IterationsRun never exceeds
// MaxIterations.
type ScrollState struct {
	LastObservedHeight int
	IterationsRun      int
	MaxIterations      int
	PauseDuration      time.Duration
	Converged          bool
}

// Scroller scrolls a lazily loading page until its height stops growing. A
// literal Scroller is usable and logs to slog.Default.
type Scroller struct {
	Pause         time.Duration
	MaxIterations int

	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewScroller creates a scroller. Negative values fall back to the defaults;
// zero is honoured, so a zero MaxIterations never scrolls.
func NewScroller(pause time.Duration, maxIterations int, logger *slog.Logger) *Scroller {
	if pause < 0 {
		pause = DefaultScrollPause
	}
	if maxIterations < 0 {
		maxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scroller{
		Pause:         pause,
		MaxIterations: maxIterations,
		logger:        logger.With("component", "scroller"),
		sleep:         sleepCtx,
	}
}

// ScrollUntilStable scrolls to the bottom, waits Pause, and compares the
// document height with the previous reading, stopping as soon as it is
// unchanged or after MaxIterations rounds. Running out of rounds is not an
// error. Element-level failures end the loop early with the state so far;
// only an unavailable document or a done context is returned as an error.
func (s *Scroller) ScrollUntilStable(ctx context.Context, surface ScrollSurface) (ScrollState, error) {
	state := ScrollState{MaxIterations: s.MaxIterations, PauseDuration: s.Pause}

	height, err := surface.DocumentHeight(ctx)
	if err != nil {
		return state, s.stop(ctx, "height", err, state)
	}
	state.LastObservedHeight = height

	for state.IterationsRun < s.MaxIterations {
		if err := surface.ScrollToBottom(ctx); err != nil {
			return state, s.stop(ctx, "scroll", err, state)
		}
		state.IterationsRun++

		if err := s.pause(ctx); err != nil {
			return state, err
		}

		height, err := surface.DocumentHeight(ctx)
		if err != nil {
			return state, s.stop(ctx, "height", err, state)
		}
		if height == state.LastObservedHeight {
			state.Converged = true
			break
		}
		state.LastObservedHeight = height
	}

	s.log().Debug("scroll finished",
		"iterations", state.IterationsRun,
		"max_iterations", state.MaxIterations,
		"height", state.LastObservedHeight,
		"converged", state.Converged,
	)
	return state, nil
}

// stop decides whether a failed step ends the harvest or just the loop.
func (s *Scroller) stop(ctx context.Context, step string, err error, state ScrollState) error {
	if types.IsDocumentUnavailable(err) {
		return err
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	s.log().Warn("scroll stopped early",
		"step", step,
		"iterations", state.IterationsRun,
		"error", err,
	)
	return nil
}

func (s *Scroller) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default().With("component", "scroller")
	}
	return s.logger
}

func (s *Scroller) pause(ctx context.Context) error {
	if s.sleep == nil {
		return sleepCtx(ctx, s.Pause)
	}
	return s.sleep(ctx, s.Pause)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
