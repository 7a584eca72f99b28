package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// Exporter is the interface for all export backends.
type Exporter interface {
	// Export persists one harvest.
	Export(ctx context.Context, h *types.Harvest) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// New builds a fan-out exporter for every format in cfg.Formats. Backends
// that were already opened are closed again when a later one fails.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger, metrics *observability.Metrics) (*MultiExporter, error) {
	backends := make([]Exporter, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		var (
			e   Exporter
			err error
		)
		switch format {
		case "mongodb":
			e, err = NewMongoExporter(ctx, &cfg.Mongo, logger)
		default:
			e, err = NewFileExporter(format, cfg.OutputPath, logger)
		}
		if err != nil {
			for _, b := range backends {
				b.Close()
			}
			return nil, fmt.Errorf("open %s exporter: %w", format, err)
		}
		backends = append(backends, e)
	}
	return NewMultiExporter(backends, logger, metrics), nil
}
