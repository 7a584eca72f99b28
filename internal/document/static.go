package document

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Static is a Document over a parsed HTML snapshot. Clicking and scrolling
// have no effect, and the height never changes.
type Static struct {
	root   *html.Node
	doc    *goquery.Document
	url    string
	height int
}

// NewStatic parses an HTML snapshot.
func NewStatic(r io.Reader, sourceURL string) (*Static, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Static{
		root:   root,
		doc:    goquery.NewDocumentFromNode(root),
		url:    sourceURL,
		height: len(htmlquery.OutputHTML(root, true)),
	}, nil
}

// NewStaticString parses an HTML snapshot held in a string.
func NewStaticString(body, sourceURL string) (*Static, error) {
	return NewStatic(strings.NewReader(body), sourceURL)
}

// URL returns the URL the snapshot was taken from.
func (s *Static) URL() string { return s.url }

// Navigate only records the URL; a snapshot cannot load another page.
func (s *Static) Navigate(_ context.Context, url string) error {
	s.url = url
	return nil
}

func (s *Static) Query(ctx context.Context, sel Selector) (Node, bool, error) {
	return s.QueryWithin(ctx, s.root, sel)
}

func (s *Static) QueryAll(_ context.Context, sel Selector) ([]Node, error) {
	var found []*html.Node
	if sel.IsXPath() {
		nodes, err := htmlquery.QueryAll(s.root, sel.Expr)
		if err != nil {
			return nil, &types.SelectorError{Kind: string(KindXPath), Expr: sel.Expr, Err: err}
		}
		found = nodes
	} else {
		m, err := cascadia.Compile(sel.Expr)
		if err != nil {
			return nil, &types.SelectorError{Kind: string(KindCSS), Expr: sel.Expr, Err: err}
		}
		found = s.doc.FindMatcher(m).Nodes
	}

	out := make([]Node, len(found))
	for i, n := range found {
		out[i] = n
	}
	return out, nil
}

func (s *Static) QueryWithin(_ context.Context, parent Node, sel Selector) (Node, bool, error) {
	p, err := s.node(parent)
	if err != nil {
		return nil, false, err
	}

	if sel.IsXPath() {
		n, err := htmlquery.Query(p, sel.within())
		if err != nil {
			return nil, false, &types.SelectorError{Kind: string(KindXPath), Expr: sel.Expr, Err: err}
		}
		if n == nil {
			return nil, false, nil
		}
		return n, true, nil
	}

	m, err := cascadia.Compile(sel.Expr)
	if err != nil {
		return nil, false, &types.SelectorError{Kind: string(KindCSS), Expr: sel.Expr, Err: err}
	}
	match := goquery.NewDocumentFromNode(p).FindMatcher(m).First()
	if match.Length() == 0 {
		return nil, false, nil
	}
	return match.Nodes[0], true, nil
}

func (s *Static) ReadText(_ context.Context, n Node) (string, error) {
	node, err := s.node(n)
	if err != nil {
		return "", err
	}
	return htmlquery.InnerText(node), nil
}

func (s *Static) ReadAttribute(_ context.Context, n Node, name string) (string, error) {
	node, err := s.node(n)
	if err != nil {
		return "", err
	}
	for _, attr := range node.Attr {
		if attr.Key == name {
			return attr.Val, nil
		}
	}
	return "", fmt.Errorf("attribute %q: %w", name, types.ErrNoMatch)
}

func (s *Static) Click(_ context.Context, n Node) error {
	_, err := s.node(n)
	return err
}

func (s *Static) ScrollToBottom(context.Context) error { return nil }

func (s *Static) DocumentHeight(context.Context) (int, error) { return s.height, nil }

func (s *Static) node(n Node) (*html.Node, error) {
	node, ok := n.(*html.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("static document: foreign node %T", n)
	}
	return node, nil
}
