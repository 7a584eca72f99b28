package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Mode selects how a matched node is turned into a value.
type Mode string

const (
	ModeText          Mode = "text"
	ModeAttribute     Mode = "attribute"
	ModeClickThenRead Mode = "click_then_read"
)

// FieldProbe describes how to locate one field. Candidates are tried in
// order and the first one that yields a value wins.
type FieldProbe struct {
	Name       string
	Candidates []document.Selector
	Mode       Mode
	Attribute  string

	// ClickTargets are the expand controls clicked in click_then_read mode.
	// With none configured the matched node itself is clicked.
	ClickTargets []document.Selector
	ClickSettle  time.Duration

	// Wait is the total time the probe may spend waiting for a candidate to
	// appear, used only when the document implements document.Waiter.
	Wait time.Duration

	Fallback string
}

// Validate checks the probe's shape and compiles every selector.
func (p FieldProbe) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("probe has no name")
	}
	if len(p.Candidates) == 0 {
		return fmt.Errorf("probe %q: no candidates", p.Name)
	}
	switch p.mode() {
	case ModeText, ModeClickThenRead:
	case ModeAttribute:
		if p.Attribute == "" {
			return fmt.Errorf("probe %q: attribute mode needs an attribute name", p.Name)
		}
	default:
		return fmt.Errorf("probe %q: unknown mode %q", p.Name, p.Mode)
	}
	for _, sel := range append(append([]document.Selector{}, p.Candidates...), p.ClickTargets...) {
		if err := sel.Validate(); err != nil {
			return fmt.Errorf("probe %q: %w", p.Name, err)
		}
	}
	return nil
}

func (p FieldProbe) mode() Mode {
	if p.Mode == "" {
		return ModeText
	}
	return p.Mode
}

// Extractor evaluates field probes against a document.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new extractor. The zero Extractor is also usable
// and logs to slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger: logger.With("component", "field_extractor"),
	}
}

// ExtractField runs one probe. A missing field is not an error: it yields
// (probe.Fallback, false, nil). The returned error is non-nil only when the
// document itself is unavailable or ctx is done.
func (e *Extractor) ExtractField(ctx context.Context, doc document.Document, probe FieldProbe) (string, bool, error) {
	st := &probeRun{probe: probe}

	for _, sel := range probe.Candidates {
		n, ok, qerr := doc.Query(ctx, sel)
		if v, found, err := e.settle(ctx, doc, st, sel, n, ok, qerr); err != nil || found {
			return v, found, err
		}
	}

	waiter, canWait := doc.(document.Waiter)
	if canWait && probe.Wait > 0 {
		budget := probe.Wait
		for i, sel := range probe.Candidates {
			share := budget / time.Duration(len(probe.Candidates)-i)
			if share <= 0 {
				break
			}
			budget -= share
			n, ok, qerr := waiter.WaitQuery(ctx, sel, share)
			if v, found, err := e.settle(ctx, doc, st, sel, n, ok, qerr); err != nil || found {
				return v, found, err
			}
		}
	}

	e.log().Debug("field not found", "field", probe.Name, "candidates", len(probe.Candidates))
	return probe.Fallback, false, nil
}

func (e *Extractor) log() *slog.Logger {
	if e.logger == nil {
		return slog.Default().With("component", "field_extractor")
	}
	return e.logger
}

// probeRun carries per-call state so a click is attempted once per probe.
type probeRun struct {
	probe   FieldProbe
	clicked bool
}

// settle turns one query outcome into a value, a miss, or a fatal error.
func (e *Extractor) settle(ctx context.Context, doc document.Document, st *probeRun, sel document.Selector, n document.Node, ok bool, qerr error) (string, bool, error) {
	if qerr != nil {
		if fatal(ctx, qerr) {
			return "", false, qerr
		}
		e.log().Debug("candidate failed", "field", st.probe.Name, "selector", sel.String(), "error", qerr)
		return "", false, nil
	}
	if !ok {
		return "", false, nil
	}

	v, err := e.read(ctx, doc, st, n)
	if err != nil {
		if fatal(ctx, err) {
			return "", false, err
		}
		e.log().Debug("candidate read failed", "field", st.probe.Name, "selector", sel.String(), "error", err)
		return "", false, nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false, nil
	}
	e.log().Debug("field extracted", "field", st.probe.Name, "selector", sel.String())
	return v, true, nil
}

func (e *Extractor) read(ctx context.Context, doc document.Document, st *probeRun, n document.Node) (string, error) {
	switch st.probe.mode() {
	case ModeAttribute:
		return doc.ReadAttribute(ctx, n, st.probe.Attribute)
	case ModeClickThenRead:
		if !st.clicked {
			st.clicked = true
			if err := e.expand(ctx, doc, st.probe, n); err != nil {
				return "", err
			}
		}
		return doc.ReadText(ctx, n)
	default:
		return doc.ReadText(ctx, n)
	}
}

// expand clicks the probe's expand control. Click failures are swallowed;
// only a fatal document error is returned.
func (e *Extractor) expand(ctx context.Context, doc document.Document, probe FieldProbe, matched document.Node) error {
	target := matched
	if len(probe.ClickTargets) > 0 {
		target = nil
		for _, sel := range probe.ClickTargets {
			n, ok, err := doc.Query(ctx, sel)
			if err != nil {
				if fatal(ctx, err) {
					return err
				}
				continue
			}
			if ok {
				target = n
				break
			}
		}
	}

	if target != nil {
		if err := doc.Click(ctx, target); err != nil {
			if fatal(ctx, err) {
				return err
			}
			e.log().Debug("expand click failed, reading anyway", "field", probe.Name, "error", err)
		}
	} else {
		e.log().Debug("no expand control found", "field", probe.Name)
	}

	if probe.ClickSettle > 0 {
		return sleepCtx(ctx, probe.ClickSettle)
	}
	return nil
}

func fatal(ctx context.Context, err error) bool {
	if types.IsDocumentUnavailable(err) {
		return true
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
