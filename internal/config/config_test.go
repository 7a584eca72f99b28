package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Scroll.Pause != 2*time.Second || cfg.Scroll.MaxIterations != 15 {
		t.Errorf("unexpected scroll defaults: %+v", cfg.Scroll)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tubeharvest.yaml")
	yaml := `
fetcher:
  type: http
scroll:
  pause: 500ms
storage:
  formats: [json, txt]
probes:
  title:
    candidates:
      - "css:h1.custom"
      - "xpath://h1"
    wait: 3s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TUBEHARVEST_SCROLL_MAX_ITERATIONS", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Fetcher.Type != "http" {
		t.Errorf("fetcher.type = %q, want http", cfg.Fetcher.Type)
	}
	if cfg.Scroll.Pause != 500*time.Millisecond {
		t.Errorf("scroll.pause = %v, want 500ms", cfg.Scroll.Pause)
	}
	if cfg.Scroll.MaxIterations != 4 {
		t.Errorf("scroll.max_iterations = %d, want 4 from env", cfg.Scroll.MaxIterations)
	}
	if len(cfg.Storage.Formats) != 2 {
		t.Errorf("storage.formats = %v", cfg.Storage.Formats)
	}
	if cfg.Browser.SettleDelay != 8*time.Second {
		t.Errorf("browser.settle_delay default lost: %v", cfg.Browser.SettleDelay)
	}

	title, ok := cfg.Probes["title"]
	if !ok {
		t.Fatal("expected title probe override")
	}
	if len(title.Candidates) != 2 || title.Wait != 3*time.Second {
		t.Errorf("title probe = %+v", title)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fetcher type", func(c *Config) { c.Fetcher.Type = "curl" }},
		{"negative scrolls", func(c *Config) { c.Scroll.MaxIterations = -1 }},
		{"format", func(c *Config) { c.Storage.Formats = []string{"xml"} }},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"probe mode", func(c *Config) {
			c.Probes = map[string]ProbeConfig{"title": {Mode: "hover"}}
		}},
		{"attribute without name", func(c *Config) {
			c.Probes = map[string]ProbeConfig{"title": {Mode: "attribute"}}
		}},
		{"empty thread selector", func(c *Config) { c.Comments.ThreadSelector = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"http://localhost:8080/watch", false},
		{"ftp://example.com/video", true},
		{"www.youtube.com/watch?v=x", true},
		{"https://", true},
	}
	for _, tt := range tests {
		if err := ValidateURL(tt.url); (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestDumpLoadsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetcher.Type = "http"
	cfg.Fetcher.RateLimit = 0.5
	cfg.Scroll.Pause = 750 * time.Millisecond
	cfg.Storage.Formats = []string{"csv"}
	cfg.Logging.Compress = true
	cfg.Probes = map[string]ProbeConfig{
		"likes": {Candidates: []string{"css:#likes"}, Wait: 3 * time.Second},
	}

	out, err := Dump(cfg)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dump.yaml")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load dump: %v\n%s", err, out)
	}
	if got.Fetcher.Type != "http" || got.Fetcher.RateLimit != 0.5 {
		t.Errorf("fetcher = %+v", got.Fetcher)
	}
	if got.Scroll.Pause != 750*time.Millisecond || got.Browser.SettleDelay != cfg.Browser.SettleDelay {
		t.Errorf("durations did not survive: scroll=%s settle=%s", got.Scroll.Pause, got.Browser.SettleDelay)
	}
	if len(got.Storage.Formats) != 1 || got.Storage.Formats[0] != "csv" || !got.Logging.Compress {
		t.Errorf("storage/logging = %+v %+v", got.Storage, got.Logging)
	}
	likes := got.Probes["likes"]
	if len(likes.Candidates) != 1 || likes.Candidates[0] != "css:#likes" || likes.Wait != 3*time.Second {
		t.Errorf("probe override = %+v", likes)
	}
}
