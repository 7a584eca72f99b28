// Package document defines the capability the harvester uses to query a
// rendered page, plus a live browser implementation and a static HTML one.
package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

// SelectorKind names the query language of a Selector.
type SelectorKind string

const (
	KindCSS   SelectorKind = "css"
	KindXPath SelectorKind = "xpath"
)

// Selector is one lookup candidate.
type Selector struct {
	Kind SelectorKind
	Expr string
}

// CSS returns a CSS selector.
func CSS(expr string) Selector { return Selector{Kind: KindCSS, Expr: expr} }

// XPath returns an XPath selector.
func XPath(expr string) Selector { return Selector{Kind: KindXPath, Expr: expr} }

func (s Selector) String() string {
	return string(s.kind()) + ":" + s.Expr
}

func (s Selector) kind() SelectorKind {
	if s.Kind == "" {
		return KindCSS
	}
	return s.Kind
}

// IsXPath reports whether the selector is an XPath expression.
func (s Selector) IsXPath() bool { return s.kind() == KindXPath }

// within returns the expression to evaluate under a parent node. A leading
// "//" is rooted at the document in XPath, so it is rewritten to ".//".
func (s Selector) within() string {
	if s.IsXPath() && strings.HasPrefix(s.Expr, "//") {
		return "." + s.Expr
	}
	return s.Expr
}

// Validate compiles the selector without evaluating it.
func (s Selector) Validate() error {
	if s.Expr == "" {
		return &types.SelectorError{Kind: string(s.kind()), Expr: s.Expr, Err: fmt.Errorf("empty expression")}
	}
	switch s.kind() {
	case KindCSS:
		if _, err := cascadia.Compile(s.Expr); err != nil {
			return &types.SelectorError{Kind: string(KindCSS), Expr: s.Expr, Err: err}
		}
	case KindXPath:
		if _, err := xpath.Compile(s.Expr); err != nil {
			return &types.SelectorError{Kind: string(KindXPath), Expr: s.Expr, Err: err}
		}
	default:
		return &types.SelectorError{Kind: string(s.Kind), Expr: s.Expr, Err: fmt.Errorf("unknown selector kind")}
	}
	return nil
}

// Node is an opaque handle to an element owned by a Document.
type Node any

// Document is a live or static page. A query with zero matches returns
// (nil, false, nil); errors wrapping types.ErrDocumentUnavailable mean the
// page itself is gone.
type Document interface {
	Navigate(ctx context.Context, url string) error
	Query(ctx context.Context, sel Selector) (Node, bool, error)
	QueryAll(ctx context.Context, sel Selector) ([]Node, error)
	QueryWithin(ctx context.Context, parent Node, sel Selector) (Node, bool, error)
	ReadText(ctx context.Context, n Node) (string, error)
	ReadAttribute(ctx context.Context, n Node, name string) (string, error)
	Click(ctx context.Context, n Node) error
	ScrollToBottom(ctx context.Context) error
	DocumentHeight(ctx context.Context) (int, error)
}

// Waiter is implemented by documents that can block until a selector
// appears, up to a bound.
type Waiter interface {
	WaitQuery(ctx context.Context, sel Selector, wait time.Duration) (Node, bool, error)
}
