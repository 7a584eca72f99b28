// Package documenttest provides a scripted document.Document for tests.
package documenttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Node is a scripted element.
type Node struct {
	Name     string
	Text     string
	TextErr  error
	Attrs    map[string]string
	Children map[string]*Node // keyed by Selector.String()
	ClickErr error
	Clicks   int
}

// Document answers queries from fixed tables and records every call.
// Keys are Selector.String() values such as "css:h1.title".
type Document struct {
	mu sync.Mutex

	Matches   map[string]*Node
	QueryErrs map[string]error
	Lists     map[string][]*Node
	ListErrs  map[string]error

	// Heights is consumed one value per DocumentHeight call; the last value
	// repeats once the slice runs out.
	Heights     []int
	HeightErr   error
	ScrollErr   error
	NavigateErr error

	// OnScroll, if set, runs after every successful ScrollToBottom.
	OnScroll func(d *Document)

	Calls       []string
	Scrolls     int
	HeightReads int
	URL         string
}

// New returns an empty scripted document.
func New() *Document {
	return &Document{
		Matches:   make(map[string]*Node),
		QueryErrs: make(map[string]error),
		Lists:     make(map[string][]*Node),
		ListErrs:  make(map[string]error),
	}
}

// Unavailable returns an error the harvester treats as fatal.
func Unavailable(op string) error {
	return &types.DocumentError{Op: op, Err: fmt.Errorf("target closed")}
}

func (d *Document) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

// CallCount reports how many recorded calls equal call exactly.
func (d *Document) CallCount(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (d *Document) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("navigate %s", url)
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	d.URL = url
	return nil
}

func (d *Document) Query(ctx context.Context, sel document.Selector) (document.Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := sel.String()
	d.record("query %s", key)
	if err, ok := d.QueryErrs[key]; ok {
		return nil, false, err
	}
	n, ok := d.Matches[key]
	if !ok {
		return nil, false, nil
	}
	return n, true, nil
}

func (d *Document) QueryAll(ctx context.Context, sel document.Selector) ([]document.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := sel.String()
	d.record("query_all %s", key)
	if err, ok := d.ListErrs[key]; ok {
		return nil, err
	}
	nodes := d.Lists[key]
	out := make([]document.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (d *Document) QueryWithin(ctx context.Context, parent document.Node, sel document.Selector) (document.Node, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	p, err := node(parent)
	if err != nil {
		return nil, false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := sel.String()
	d.record("query_within %s %s", p.Name, key)
	child, ok := p.Children[key]
	if !ok {
		return nil, false, nil
	}
	return child, true, nil
}

func (d *Document) ReadText(ctx context.Context, n document.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	nd, err := node(n)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("read_text %s", nd.Name)
	if nd.TextErr != nil {
		return "", nd.TextErr
	}
	return nd.Text, nil
}

func (d *Document) ReadAttribute(ctx context.Context, n document.Node, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	nd, err := node(n)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("read_attribute %s %s", nd.Name, name)
	v, ok := nd.Attrs[name]
	if !ok {
		return "", fmt.Errorf("attribute %q: %w", name, types.ErrNoMatch)
	}
	return v, nil
}

func (d *Document) Click(ctx context.Context, n document.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nd, err := node(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("click %s", nd.Name)
	nd.Clicks++
	return nd.ClickErr
}

func (d *Document) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.record("scroll")
	if d.ScrollErr != nil {
		d.mu.Unlock()
		return d.ScrollErr
	}
	d.Scrolls++
	hook := d.OnScroll
	d.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Document) DocumentHeight(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("height")
	if d.HeightErr != nil {
		return 0, d.HeightErr
	}
	i := d.HeightReads
	d.HeightReads++
	if len(d.Heights) == 0 {
		return 0, nil
	}
	if i >= len(d.Heights) {
		i = len(d.Heights) - 1
	}
	return d.Heights[i], nil
}

// Waiting adds document.Waiter to a scripted document and records each
// requested wait bound.
type Waiting struct {
	*Document
	Waits []time.Duration
}

func (w *Waiting) WaitQuery(ctx context.Context, sel document.Selector, wait time.Duration) (document.Node, bool, error) {
	w.mu.Lock()
	w.Waits = append(w.Waits, wait)
	w.mu.Unlock()
	return w.Document.Query(ctx, sel)
}

func node(n document.Node) (*Node, error) {
	nd, ok := n.(*Node)
	if !ok || nd == nil {
		return nil, fmt.Errorf("documenttest: foreign node %T", n)
	}
	return nd, nil
}
