package harvest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/document/documenttest"
	"github.com/IshaanNene/tubeharvest/internal/fetcher"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/parser"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

type closingDoc struct {
	*documenttest.Document
	closed int
}

func (c *closingDoc) Close() error {
	c.closed++
	return nil
}

type stubOpener struct {
	session *closingDoc
	err     error
	opened  []string
}

func (o *stubOpener) Open(_ context.Context, url string) (fetcher.Session, error) {
	o.opened = append(o.opened, url)
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

func TestHarvestURLClosesSession(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*documenttest.Document)
		wantErr bool
	}{
		{"success", func(*documenttest.Document) {}, false},
		{"unavailable", func(d *documenttest.Document) { d.ScrollErr = documenttest.Unavailable("scroll") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := documenttest.New()
			doc.Heights = []int{10}
			tt.setup(doc)
			opener := &stubOpener{session: &closingDoc{Document: doc}}

			got, err := newTestHarvester().HarvestURL(context.Background(), opener, "https://example.com/watch?v=1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && got != nil {
				t.Error("no record expected on failure")
			}
			if opener.session.closed != 1 {
				t.Errorf("session closed %d times, want 1", opener.session.closed)
			}
			if !reflect.DeepEqual(opener.opened, []string{"https://example.com/watch?v=1"}) {
				t.Errorf("opened = %v", opener.opened)
			}
		})
	}
}

func TestHarvestURLOpenFailure(t *testing.T) {
	openErr := &types.DocumentError{Op: "navigate", URL: "u", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	metrics := observability.NewMetrics(testLogger)

	_, err := newTestHarvester(WithMetrics(metrics)).HarvestURL(context.Background(), &stubOpener{err: openErr}, "u")
	if !types.IsDocumentUnavailable(err) {
		t.Fatalf("expected document unavailable, got %v", err)
	}
	if metrics.HarvestsFailed.Load() != 1 {
		t.Error("expected failed harvest to be counted")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scroll.Pause = time.Millisecond
	cfg.Scroll.MaxIterations = 2
	cfg.Comments.ThreadSelector = "xpath://div[@class='thread']"
	cfg.Comments.BodySelector = "css:p.body"
	cfg.Probes = map[string]config.ProbeConfig{
		"Title": {Candidates: []string{"css:h1.custom"}, Fallback: "untitled"},
	}

	h, err := FromConfig(cfg, testLogger, nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}

	title := h.Probes()[parser.FieldTitle]
	if len(title.Candidates) != 1 || title.Candidates[0].String() != "css:h1.custom" || title.Fallback != "untitled" {
		t.Errorf("title probe = %+v", title)
	}

	doc := documenttest.New()
	doc.Heights = []int{10}
	doc.Lists["xpath://div[@class='thread']"] = []*documenttest.Node{
		{Name: "t1", Children: map[string]*documenttest.Node{"css:p.body": {Text: "hi"}}},
	}

	got, err := h.Harvest(context.Background(), doc, "")
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if got.Video.Title != "untitled" {
		t.Errorf("title = %q, want configured fallback", got.Video.Title)
	}
	if !reflect.DeepEqual(got.Comments, []string{"hi"}) {
		t.Errorf("comments = %q", got.Comments)
	}
}

func TestFromConfigZeroScrolls(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scroll.MaxIterations = 0
	cfg.Scroll.Pause = 0
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}

	h, err := FromConfig(cfg, testLogger, nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	doc := documenttest.New()
	doc.Heights = []int{100}
	doc.OnScroll = func(d *documenttest.Document) { d.Heights = append(d.Heights, d.Heights[len(d.Heights)-1]+100) }

	start := time.Now()
	if _, err := h.Harvest(context.Background(), doc, ""); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if doc.Scrolls != 0 {
		t.Errorf("max_iterations=0 but scrolled %d times", doc.Scrolls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("zero pause harvest took %v", elapsed)
	}
}

func TestFromConfigCommentsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Comments.Enabled = false

	h, err := FromConfig(cfg, testLogger, nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	doc := documenttest.New()
	if _, err := h.Harvest(context.Background(), doc, ""); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if doc.Scrolls != 0 || doc.CallCount("query_all css:ytd-comment-thread-renderer") != 0 {
		t.Error("comments disabled but the comment section was touched")
	}
}

func TestFromConfigRejectsBadSelectors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown probe", func(c *config.Config) { c.Probes = map[string]config.ProbeConfig{"rating": {}} }},
		{"bad candidate", func(c *config.Config) {
			c.Probes = map[string]config.ProbeConfig{"title": {Candidates: []string{"css:div[[["}}}
		}},
		{"bad thread selector", func(c *config.Config) { c.Comments.ThreadSelector = "xpath://div[" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if _, err := FromConfig(cfg, testLogger, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}
