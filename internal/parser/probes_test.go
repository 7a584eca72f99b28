package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

func TestDefaultProbesValid(t *testing.T) {
	ps := DefaultProbes()
	if err := ps.Validate(); err != nil {
		t.Fatalf("default probes invalid: %v", err)
	}

	ordered := ps.Ordered()
	if len(ordered) != len(FieldOrder) {
		t.Fatalf("expected %d probes, got %d", len(FieldOrder), len(ordered))
	}
	for i, p := range ordered {
		if p.Name != FieldOrder[i] {
			t.Errorf("probe %d = %q, want %q", i, p.Name, FieldOrder[i])
		}
	}

	if ps[FieldDescription].Mode != ModeClickThenRead {
		t.Error("description must expand before reading")
	}
	if ps[FieldLikes].Fallback != types.LikesNotFound {
		t.Errorf("likes fallback = %q", ps[FieldLikes].Fallback)
	}
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		raw  string
		want document.Selector
	}{
		{"css:h1.title", document.CSS("h1.title")},
		{"xpath://span[@id='x']", document.XPath("//span[@id='x']")},
		{"//h1", document.XPath("//h1")},
		{"(//li)[1]", document.XPath("(//li)[1]")},
		{"  #owner-sub-count ", document.CSS("#owner-sub-count")},
	}
	for _, tt := range tests {
		got, err := ParseSelector(tt.raw)
		if err != nil {
			t.Errorf("ParseSelector(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSelector(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := ParseSelector("css:div[[["); !errors.Is(err, types.ErrInvalidSelector) {
		t.Errorf("expected ErrInvalidSelector, got %v", err)
	}
}

func TestProbesFromConfig(t *testing.T) {
	base := DefaultProbes()
	overrides := map[string]config.ProbeConfig{
		"title": {
			Candidates: []string{"css:h1.custom", "xpath://h1"},
			Wait:       2 * time.Second,
		},
		"Views": {Fallback: "n/a"},
	}

	ps, err := ProbesFromConfig(base, overrides)
	if err != nil {
		t.Fatalf("ProbesFromConfig: %v", err)
	}

	title := ps[FieldTitle]
	if len(title.Candidates) != 2 || title.Candidates[0] != document.CSS("h1.custom") {
		t.Errorf("title candidates = %v", title.Candidates)
	}
	if title.Wait != 2*time.Second {
		t.Errorf("title wait = %v", title.Wait)
	}
	if title.Fallback != types.TitleNotFound {
		t.Errorf("title fallback changed to %q", title.Fallback)
	}
	if ps[FieldViews].Fallback != "n/a" {
		t.Errorf("views fallback = %q", ps[FieldViews].Fallback)
	}

	if len(base[FieldTitle].Candidates) != 3 {
		t.Error("base probe set was mutated")
	}
}

func TestProbesFromConfigRejects(t *testing.T) {
	tests := map[string]map[string]config.ProbeConfig{
		"unknown field": {"rating": {Candidates: []string{"#rating"}}},
		"bad selector":  {"title": {Candidates: []string{"xpath://h1[("}}},
		"bad mode":      {"title": {Mode: "hover"}},
		"attr w/o name": {"title": {Mode: "attribute"}},
		"bad click sel": {"description": {ClickTargets: []string{"css:div[[["}}},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ProbesFromConfig(DefaultProbes(), overrides); err == nil {
				t.Error("expected error")
			}
		})
	}
}
