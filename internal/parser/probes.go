package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/document"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Field names, in extraction order.
const (
	FieldTitle       = "title"
	FieldChannel     = "channel"
	FieldSubscribers = "subscribers"
	FieldViews       = "views"
	FieldLikes       = "likes"
	FieldDescription = "description"
)

// FieldOrder is the fixed order in which a harvest evaluates probes.
var FieldOrder = []string{
	FieldTitle,
	FieldChannel,
	FieldSubscribers,
	FieldViews,
	FieldLikes,
	FieldDescription,
}

// ProbeSet maps field names to probes.
type ProbeSet map[string]FieldProbe

// Ordered returns the probes in FieldOrder, skipping fields with no probe.
func (ps ProbeSet) Ordered() []FieldProbe {
	out := make([]FieldProbe, 0, len(FieldOrder))
	for _, name := range FieldOrder {
		if p, ok := ps[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates every probe in the set.
func (ps ProbeSet) Validate() error {
	for _, name := range FieldOrder {
		p, ok := ps[name]
		if !ok {
			continue
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultProbes returns the probe table for the watch view. Each field lists
// the current markup first and older layouts after it.
func DefaultProbes() ProbeSet {
	return ProbeSet{
		FieldTitle: {
			Name: FieldTitle,
			Candidates: []document.Selector{
				document.CSS("h1.ytd-watch-metadata yt-formatted-string"),
				document.CSS("h1.title"),
				document.CSS("#title h1"),
			},
			Wait:     15 * time.Second,
			Fallback: types.TitleNotFound,
		},
		FieldChannel: {
			Name: FieldChannel,
			Candidates: []document.Selector{
				document.CSS("#channel-name yt-formatted-string a"),
				document.CSS("#channel-name yt-formatted-string"),
				document.CSS("ytd-channel-name a"),
			},
			Fallback: types.ChannelNotFound,
		},
		FieldSubscribers: {
			Name: FieldSubscribers,
			Candidates: []document.Selector{
				document.CSS("#owner-sub-count"),
			},
			Fallback: types.SubscribersNotFound,
		},
		FieldViews: {
			Name: FieldViews,
			Candidates: []document.Selector{
				document.XPath("//span[contains(text(),'views')]"),
				document.CSS("ytd-video-view-count-renderer span.view-count"),
			},
			Fallback: types.ViewsNotFound,
		},
		FieldLikes: {
			Name: FieldLikes,
			Candidates: []document.Selector{
				document.CSS("like-button-view-model button div.yt-spec-button-shape-next__button-text-content"),
				document.CSS("ytd-toggle-button-renderer:nth-of-type(1) #text"),
			},
			Fallback: types.LikesNotFound,
		},
		FieldDescription: {
			Name: FieldDescription,
			Candidates: []document.Selector{
				document.CSS("#description yt-formatted-string"),
				document.CSS("#description-inline-expander yt-attributed-string"),
			},
			Mode: ModeClickThenRead,
			ClickTargets: []document.Selector{
				document.CSS("tp-yt-paper-button#expand"),
				document.CSS("#description-inline-expander #expand"),
			},
			ClickSettle: time.Second,
			Fallback:    types.DescriptionNotFound,
		},
	}
}

// ParseSelector reads "css:<expr>" or "xpath:<expr>". A bare expression
// starting with "/" or "(" is XPath; anything else is CSS.
func ParseSelector(raw string) (document.Selector, error) {
	raw = strings.TrimSpace(raw)
	var sel document.Selector
	switch {
	case strings.HasPrefix(raw, "css:"):
		sel = document.CSS(strings.TrimSpace(strings.TrimPrefix(raw, "css:")))
	case strings.HasPrefix(raw, "xpath:"):
		sel = document.XPath(strings.TrimSpace(strings.TrimPrefix(raw, "xpath:")))
	case strings.HasPrefix(raw, "/"), strings.HasPrefix(raw, "("):
		sel = document.XPath(raw)
	default:
		sel = document.CSS(raw)
	}
	if err := sel.Validate(); err != nil {
		return document.Selector{}, err
	}
	return sel, nil
}

func parseSelectors(raw []string) ([]document.Selector, error) {
	out := make([]document.Selector, 0, len(raw))
	for _, r := range raw {
		sel, err := ParseSelector(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// ProbesFromConfig applies configured overrides on top of base. Only the
// settings an override names are replaced; unknown field names are rejected.
func ProbesFromConfig(base ProbeSet, overrides map[string]config.ProbeConfig) (ProbeSet, error) {
	out := make(ProbeSet, len(base))
	for k, v := range base {
		out[k] = v
	}

	for name, pc := range overrides {
		name = strings.ToLower(name)
		p, ok := out[name]
		if !ok {
			return nil, fmt.Errorf("probes.%s: unknown field (valid: %s)", name, strings.Join(FieldOrder, ", "))
		}

		if len(pc.Candidates) > 0 {
			sels, err := parseSelectors(pc.Candidates)
			if err != nil {
				return nil, fmt.Errorf("probes.%s.candidates: %w", name, err)
			}
			p.Candidates = sels
		}
		if len(pc.ClickTargets) > 0 {
			sels, err := parseSelectors(pc.ClickTargets)
			if err != nil {
				return nil, fmt.Errorf("probes.%s.click_targets: %w", name, err)
			}
			p.ClickTargets = sels
		}
		if pc.Mode != "" {
			p.Mode = Mode(pc.Mode)
		}
		if pc.Attribute != "" {
			p.Attribute = pc.Attribute
		}
		if pc.ClickSettle > 0 {
			p.ClickSettle = pc.ClickSettle
		}
		if pc.Wait > 0 {
			p.Wait = pc.Wait
		}
		if pc.Fallback != "" {
			p.Fallback = pc.Fallback
		}

		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}
