package harvest

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/document/documenttest"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/parser"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

var fixedNow = time.Date(2024, 3, 9, 15, 4, 5, 0, time.FixedZone("CET", 3600))

func newTestHarvester(opts ...Option) *Harvester {
	base := []Option{
		WithScroller(testScroller()),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(testLogger, append(base, opts...)...)
}

// scenarioProbes is a small probe table with two title candidates.
func scenarioProbes() parser.ProbeSet {
	ps := parser.DefaultProbes()
	title := ps[parser.FieldTitle]
	title.Candidates = []document.Selector{document.CSS("h1.first"), document.CSS("h1.second")}
	title.Wait = 0
	ps[parser.FieldTitle] = title
	return ps
}

func TestHarvestScenario(t *testing.T) {
	doc := documenttest.New()
	doc.Heights = []int{1000, 1000}
	doc.Matches["css:h1.second"] = &documenttest.Node{Name: "title", Text: "Test Video"}
	doc.Lists[threadKey] = []*documenttest.Node{
		thread("t1", "a", nil),
		thread("t2", "b", nil),
		thread("t3", "", errors.New("stale element")),
	}

	metrics := observability.NewMetrics(testLogger)
	h := newTestHarvester(WithProbes(scenarioProbes()), WithMetrics(metrics))

	got, err := h.Harvest(context.Background(), doc, "https://www.youtube.com/watch?v=test")
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}

	v := got.Video
	if v.Title != "Test Video" {
		t.Errorf("title = %q, want Test Video", v.Title)
	}
	if v.LikeCount.Known {
		t.Errorf("likes = %v, want unknown", v.LikeCount)
	}
	if v.SubscriberCountText != types.SubscribersNotFound {
		t.Errorf("subscribers = %q", v.SubscriberCountText)
	}
	if v.Description != types.DescriptionNotFound {
		t.Errorf("description = %q", v.Description)
	}
	if v.Channel != types.ChannelNotFound || v.ViewCountText != types.ViewsNotFound {
		t.Errorf("channel/views = %q / %q", v.Channel, v.ViewCountText)
	}
	if !reflect.DeepEqual(got.Comments, []string{"a", "b"}) {
		t.Errorf("comments = %q, want [a b]", got.Comments)
	}
	if !v.ScrapedAt.Equal(fixedNow) || v.ScrapedAt.Location() != time.UTC {
		t.Errorf("scraped_at = %v, want %v in UTC", v.ScrapedAt, fixedNow)
	}
	if v.URL != "https://www.youtube.com/watch?v=test" {
		t.Errorf("url = %q", v.URL)
	}

	snap := metrics.Snapshot()
	if snap["fields_found"] != 1 || snap["fields_missing"] != 5 {
		t.Errorf("field metrics = %v", snap)
	}
	if snap["comments_collected"] != 2 || snap["comments_skipped"] != 1 {
		t.Errorf("comment metrics = %v", snap)
	}
	if snap["harvests_completed"] != 1 || snap["active_harvests"] != 0 {
		t.Errorf("harvest metrics = %v", snap)
	}
}

func TestHarvestFieldOrderIsStable(t *testing.T) {
	doc := documenttest.New()
	doc.Heights = []int{10}

	h := newTestHarvester(WithoutComments())
	if _, err := h.Harvest(context.Background(), doc, ""); err != nil {
		t.Fatalf("harvest: %v", err)
	}

	probes := parser.DefaultProbes()
	var firstQueries []string
	for _, name := range parser.FieldOrder {
		firstQueries = append(firstQueries, "query "+probes[name].Candidates[0].String())
	}

	idx := 0
	for _, call := range doc.Calls {
		if idx < len(firstQueries) && call == firstQueries[idx] {
			idx++
		}
	}
	if idx != len(firstQueries) {
		t.Errorf("probes ran out of order; calls: %v", doc.Calls)
	}
	if doc.Scrolls != 0 {
		t.Error("comments disabled but the page was scrolled")
	}
}

func TestHarvestLikes(t *testing.T) {
	likesKey := "css:" + parser.DefaultProbes()[parser.FieldLikes].Candidates[0].Expr

	tests := []struct {
		text string
		want types.Count
	}{
		{"12.3K", types.KnownCount(12300)},
		{"1,234", types.KnownCount(1234)},
		{"Like", types.UnknownCount()},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			doc := documenttest.New()
			doc.Matches[likesKey] = &documenttest.Node{Name: "likes", Text: tt.text}

			got, err := newTestHarvester(WithoutComments()).Harvest(context.Background(), doc, "")
			if err != nil {
				t.Fatalf("harvest: %v", err)
			}
			if got.Video.LikeCount != tt.want {
				t.Errorf("likes = %+v, want %+v", got.Video.LikeCount, tt.want)
			}
		})
	}
}

func TestHarvestAbortsOnUnavailableDocument(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*documenttest.Document)
	}{
		{"during extraction", func(d *documenttest.Document) {
			key := parser.DefaultProbes()[parser.FieldChannel].Candidates[0].String()
			d.QueryErrs[key] = documenttest.Unavailable("query")
		}},
		{"during scroll", func(d *documenttest.Document) {
			d.ScrollErr = documenttest.Unavailable("scroll")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := documenttest.New()
			doc.Heights = []int{10}
			tt.setup(doc)

			metrics := observability.NewMetrics(testLogger)
			got, err := newTestHarvester(WithMetrics(metrics)).Harvest(context.Background(), doc, "")
			if !types.IsDocumentUnavailable(err) {
				t.Fatalf("expected document unavailable, got %v", err)
			}
			if got != nil {
				t.Error("no record may be produced on an unavailable document")
			}
			if metrics.HarvestsFailed.Load() != 1 {
				t.Error("expected failed harvest to be counted")
			}
		})
	}
}

func TestHarvestStaticPage(t *testing.T) {
	f, err := os.Open("testdata/watch.html")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	url := "https://www.youtube.com/watch?v=f6kdp27TYZs"
	doc, err := document.NewStatic(f, url)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	got, err := newTestHarvester().Harvest(context.Background(), doc, url)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}

	v := got.Video
	checks := []struct{ field, got, want string }{
		{"title", v.Title, "Go Concurrency Patterns"},
		{"channel", v.Channel, "Google for Developers"},
		{"subscribers", v.SubscriberCountText, "2.51M subscribers"},
		{"views", v.ViewCountText, "1,234,567 views"},
		{"description", v.Description, "Concurrency is the key to designing high performance network services."},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if v.LikeCount != types.KnownCount(12300) {
		t.Errorf("likes = %+v, want 12300", v.LikeCount)
	}

	wantComments := []string{
		"Great talk!",
		"Line one\nLine two, with “quotes” and a comma",
		"Great talk!",
	}
	if !reflect.DeepEqual(got.Comments, wantComments) {
		t.Errorf("comments = %q, want %q", got.Comments, wantComments)
	}
}
