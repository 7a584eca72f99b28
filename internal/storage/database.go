package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

// MongoExporter writes one document per harvest to a MongoDB collection.
type MongoExporter struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoExporter connects to MongoDB and pings it.
func NewMongoExporter(ctx context.Context, cfg *config.MongoConfig, logger *slog.Logger) (*MongoExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoExporter{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With("component", "mongo_exporter"),
	}, nil
}

func (s *MongoExporter) Name() string { return "mongodb" }

func (s *MongoExporter) Export(ctx context.Context, h *types.Harvest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.collection.InsertOne(ctx, harvestDocument(h))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}

	s.count++
	s.logger.Debug("harvest stored in mongodb", "id", res.InsertedID, "total", s.count)
	return nil
}

func (s *MongoExporter) Close() error {
	s.logger.Info("mongodb exporter closing", "total_harvests", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// harvestDocument mirrors the JSON export layout. An unknown like count is
// stored as the sentinel string.
func harvestDocument(h *types.Harvest) bson.M {
	v := h.Video
	var likes any = v.LikeCount.String()
	if v.LikeCount.Known {
		likes = v.LikeCount.Value
	}
	return bson.M{
		"video_info": bson.M{
			"title":       v.Title,
			"channel":     v.Channel,
			"subscribers": v.SubscriberCountText,
			"views":       v.ViewCountText,
			"likes":       likes,
			"description": v.Description,
			"scraped_at":  v.ScrapedAt,
			"url":         v.URL,
		},
		"comments": h.Comments,
	}
}

// --- Multi-Exporter Fan-Out ---

// MultiExporter writes each harvest to every backend. A failing backend does
// not stop the others.
type MultiExporter struct {
	backends []Exporter
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewMultiExporter creates an exporter that fans out to multiple backends.
func NewMultiExporter(backends []Exporter, logger *slog.Logger, metrics *observability.Metrics) *MultiExporter {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &MultiExporter{
		backends: backends,
		metrics:  metrics,
		logger:   logger.With("component", "multi_exporter"),
	}
}

func (s *MultiExporter) Name() string { return "multi" }

// Backends returns the wrapped exporters.
func (s *MultiExporter) Backends() []Exporter { return s.backends }

func (s *MultiExporter) Export(ctx context.Context, h *types.Harvest) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Export(ctx, h); err != nil {
			s.metrics.ExportsFailed.Add(1)
			s.logger.Error("backend export failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.metrics.ExportsWritten.Add(1)
	}
	return firstErr
}

func (s *MultiExporter) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
