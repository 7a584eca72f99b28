package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/IshaanNene/tubeharvest/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics(testLogger)
	m.HarvestsStarted.Add(2)
	m.FieldsMissing.Add(3)
	m.ActiveHarvests.Add(1)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"tubeharvest_harvests_started_total 2",
		"tubeharvest_fields_missing_total 3",
		"# TYPE tubeharvest_active_harvests gauge",
		"tubeharvest_active_harvests 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}

	snap := m.Snapshot()
	if snap["harvests_started"] != 2 || snap["fields_missing"] != 3 {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	logger, closer, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "stderr"}, false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer closer.Close()

	ctx := context.Background()
	if logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn should be enabled")
	}

	verbose, _, _ := NewLogger(config.LoggingConfig{Level: "error"}, true)
	if !verbose.Enabled(ctx, slog.LevelDebug) {
		t.Error("verbose should force debug")
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.log")
	logger, closer, err := NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: path}, false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("harvest complete", "comments", 2)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "harvest complete") {
		t.Errorf("log file missing message: %s", data)
	}
}
