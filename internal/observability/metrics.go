package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for harvests.
type Metrics struct {
	// Harvest metrics
	HarvestsStarted   atomic.Int64
	HarvestsCompleted atomic.Int64
	HarvestsFailed    atomic.Int64
	ActiveHarvests    atomic.Int32

	// Field metrics
	FieldsFound     atomic.Int64
	FieldsMissing   atomic.Int64
	LikeParseErrors atomic.Int64

	// Comment metrics
	CommentsCollected atomic.Int64
	CommentsSkipped   atomic.Int64
	ScrollIterations  atomic.Int64
	ScrollsConverged  atomic.Int64
	ScrollsExhausted  atomic.Int64

	// Fetch metrics
	PagesOpened     atomic.Int64
	PagesFailed     atomic.Int64
	BytesDownloaded atomic.Int64

	// Export metrics
	ExportsWritten atomic.Int64
	ExportsFailed  atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"tubeharvest_harvests_started_total", "Total harvests started", "counter", m.HarvestsStarted.Load()},
		{"tubeharvest_harvests_completed_total", "Total harvests that produced a record", "counter", m.HarvestsCompleted.Load()},
		{"tubeharvest_harvests_failed_total", "Total harvests aborted by an unavailable document", "counter", m.HarvestsFailed.Load()},
		{"tubeharvest_active_harvests", "Harvests currently running", "gauge", int64(m.ActiveHarvests.Load())},
		{"tubeharvest_fields_found_total", "Fields extracted from the page", "counter", m.FieldsFound.Load()},
		{"tubeharvest_fields_missing_total", "Fields that fell back to their not-found marker", "counter", m.FieldsMissing.Load()},
		{"tubeharvest_like_parse_errors_total", "Like counts that could not be parsed", "counter", m.LikeParseErrors.Load()},
		{"tubeharvest_comments_collected_total", "Comment bodies collected", "counter", m.CommentsCollected.Load()},
		{"tubeharvest_comments_skipped_total", "Comment threads skipped", "counter", m.CommentsSkipped.Load()},
		{"tubeharvest_scroll_iterations_total", "Scroll-to-bottom rounds", "counter", m.ScrollIterations.Load()},
		{"tubeharvest_scrolls_converged_total", "Scroll loops that saw the height settle", "counter", m.ScrollsConverged.Load()},
		{"tubeharvest_scrolls_exhausted_total", "Scroll loops that hit the iteration bound", "counter", m.ScrollsExhausted.Load()},
		{"tubeharvest_pages_opened_total", "Pages opened by a fetcher", "counter", m.PagesOpened.Load()},
		{"tubeharvest_pages_failed_total", "Pages that failed to open", "counter", m.PagesFailed.Load()},
		{"tubeharvest_bytes_downloaded_total", "Bytes downloaded by the HTTP fetcher", "counter", m.BytesDownloaded.Load()},
		{"tubeharvest_exports_written_total", "Exports written", "counter", m.ExportsWritten.Load()},
		{"tubeharvest_exports_failed_total", "Exports that failed", "counter", m.ExportsFailed.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"harvests_started":   m.HarvestsStarted.Load(),
		"harvests_completed": m.HarvestsCompleted.Load(),
		"harvests_failed":    m.HarvestsFailed.Load(),
		"active_harvests":    int64(m.ActiveHarvests.Load()),
		"fields_found":       m.FieldsFound.Load(),
		"fields_missing":     m.FieldsMissing.Load(),
		"like_parse_errors":  m.LikeParseErrors.Load(),
		"comments_collected": m.CommentsCollected.Load(),
		"comments_skipped":   m.CommentsSkipped.Load(),
		"scroll_iterations":  m.ScrollIterations.Load(),
		"scrolls_converged":  m.ScrollsConverged.Load(),
		"scrolls_exhausted":  m.ScrollsExhausted.Load(),
		"pages_opened":       m.PagesOpened.Load(),
		"pages_failed":       m.PagesFailed.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"exports_written":    m.ExportsWritten.Load(),
		"exports_failed":     m.ExportsFailed.Load(),
	}
}
