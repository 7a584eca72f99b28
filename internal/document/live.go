package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

const (
	scrollScript = `() => window.scrollTo(0, document.documentElement.scrollHeight)`
	heightScript = `() => document.documentElement.scrollHeight`
	clickScript  = `() => this.click()`
)

// Live is a Document backed by a Rod page.
type Live struct {
	page   *rod.Page
	url    string
	logger *slog.Logger

	// probeTimeout bounds the liveness check run after an unexpected error.
	probeTimeout time.Duration
}

// NewLive wraps an open Rod page.
func NewLive(page *rod.Page, logger *slog.Logger) *Live {
	return &Live{
		page:         page,
		logger:       logger.With("component", "live_document"),
		probeTimeout: 3 * time.Second,
	}
}

// Page exposes the underlying Rod page.
func (l *Live) Page() *rod.Page { return l.page }

// URL returns the last URL navigated to.
func (l *Live) URL() string { return l.url }

// Navigate loads url and waits for the load event. Any failure here makes
// the document unusable.
func (l *Live) Navigate(ctx context.Context, url string) error {
	l.url = url
	page := l.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return &types.DocumentError{Op: "navigate", URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &types.DocumentError{Op: "wait_load", URL: url, Err: err}
	}
	return nil
}

func (l *Live) Query(ctx context.Context, sel Selector) (Node, bool, error) {
	page := l.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	var el *rod.Element
	var err error
	if sel.IsXPath() {
		el, err = page.ElementX(sel.Expr)
	} else {
		el, err = page.Element(sel.Expr)
	}
	return l.found(ctx, "query", el, err)
}

// WaitQuery polls for sel until it appears or wait elapses. Running out of
// time is reported as no match.
func (l *Live) WaitQuery(ctx context.Context, sel Selector, wait time.Duration) (Node, bool, error) {
	if wait <= 0 {
		return l.Query(ctx, sel)
	}
	page := l.page.Context(ctx).Timeout(wait)

	var el *rod.Element
	var err error
	if sel.IsXPath() {
		el, err = page.ElementX(sel.Expr)
	} else {
		el, err = page.Element(sel.Expr)
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, false, nil
	}
	if err == nil {
		el = el.Context(ctx)
	}
	return l.found(ctx, "wait_query", el, err)
}

func (l *Live) QueryAll(ctx context.Context, sel Selector) ([]Node, error) {
	page := l.page.Context(ctx)

	var els rod.Elements
	var err error
	if sel.IsXPath() {
		els, err = page.ElementsX(sel.Expr)
	} else {
		els, err = page.Elements(sel.Expr)
	}
	if err != nil {
		return nil, l.classify(ctx, "query_all", err)
	}

	out := make([]Node, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (l *Live) QueryWithin(ctx context.Context, parent Node, sel Selector) (Node, bool, error) {
	p, err := element(parent)
	if err != nil {
		return nil, false, err
	}
	p = p.Context(ctx)

	var el *rod.Element
	if sel.IsXPath() {
		el, err = p.ElementX(sel.within())
	} else {
		el, err = p.Element(sel.Expr)
	}
	return l.found(ctx, "query_within", el, err)
}

func (l *Live) ReadText(ctx context.Context, n Node) (string, error) {
	el, err := element(n)
	if err != nil {
		return "", err
	}
	text, err := el.Context(ctx).Text()
	if err != nil {
		return "", l.classify(ctx, "read_text", err)
	}
	return text, nil
}

func (l *Live) ReadAttribute(ctx context.Context, n Node, name string) (string, error) {
	el, err := element(n)
	if err != nil {
		return "", err
	}
	val, err := el.Context(ctx).Attribute(name)
	if err != nil {
		return "", l.classify(ctx, "read_attribute", err)
	}
	if val == nil {
		return "", fmt.Errorf("attribute %q: %w", name, types.ErrNoMatch)
	}
	return *val, nil
}

// Click dispatches a DOM click, which works on elements hidden behind
// overlays where a synthesized mouse click would not.
func (l *Live) Click(ctx context.Context, n Node) error {
	el, err := element(n)
	if err != nil {
		return err
	}
	if _, err := el.Context(ctx).Eval(clickScript); err != nil {
		return l.classify(ctx, "click", err)
	}
	return nil
}

func (l *Live) ScrollToBottom(ctx context.Context) error {
	if _, err := l.page.Context(ctx).Eval(scrollScript); err != nil {
		return l.classify(ctx, "scroll", err)
	}
	return nil
}

func (l *Live) DocumentHeight(ctx context.Context) (int, error) {
	res, err := l.page.Context(ctx).Eval(heightScript)
	if err != nil {
		return 0, l.classify(ctx, "height", err)
	}
	return res.Value.Int(), nil
}

// Close closes the page.
func (l *Live) Close() error {
	return l.page.Close()
}

func (l *Live) found(ctx context.Context, op string, el *rod.Element, err error) (Node, bool, error) {
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, l.classify(ctx, op, err)
	}
	return el, true, nil
}

// classify decides whether err is local to one element or means the page is
// gone. Element-level failures are returned as-is; anything else is checked
// against a liveness probe.
func (l *Live) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var (
		evalErr    *rod.EvalError
		objErr     *rod.ObjectNotFoundError
		interErr   *rod.NotInteractableError
		navErr     *rod.NavigationError
		pageGone   *rod.PageNotFoundError
		expectElem *rod.ExpectElementError
	)
	switch {
	case errors.As(err, &navErr), errors.As(err, &pageGone):
		return &types.DocumentError{Op: op, URL: l.url, Err: err}
	case errors.As(err, &evalErr), errors.As(err, &objErr),
		errors.As(err, &interErr), errors.As(err, &expectElem):
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, probeErr := l.page.Timeout(l.probeTimeout).Info(); probeErr != nil {
		l.logger.Debug("liveness probe failed", "op", op, "error", probeErr)
		return &types.DocumentError{Op: op, URL: l.url, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func element(n Node) (*rod.Element, error) {
	el, ok := n.(*rod.Element)
	if !ok || el == nil {
		return nil, fmt.Errorf("live document: foreign node %T", n)
	}
	return el, nil
}
