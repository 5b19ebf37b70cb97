// Package worker rebuilds dataset snapshots in response to refresh
// requests on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/loader"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
)

// Worker consumes refresh requests and swaps engine snapshots.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	cache  domain.Cache
	engine *metrics.Engine
	loader *loader.Loader

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// DatasetIDs is the list of datasets to serve (empty = default dataset)
	DatasetIDs []string
}

// NewWorker creates a refresh worker. The loader is optional; without
// it, refresh requests carrying a CSV source fail.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *metrics.Engine, ldr *loader.Loader) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		engine: engine,
		loader: ldr,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to refresh requests for the given datasets.
func (w *Worker) Start(cfg Config) error {
	datasetIDs := cfg.DatasetIDs
	if len(datasetIDs) == 0 {
		datasetIDs = []string{domain.DefaultDataset}
	}

	for _, datasetID := range datasetIDs {
		if err := w.startDatasetWorker(datasetID); err != nil {
			slog.Error("failed to start worker for dataset",
				"dataset_id", datasetID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"dataset_count", len(datasetIDs),
	)

	return nil
}

// startDatasetWorker subscribes to the refresh topic for one dataset.
func (w *Worker) startDatasetWorker(datasetID string) error {
	sub, err := w.bus.Subscribe(w.ctx, datasetID, domain.TopicRefreshRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processRefresh(ctx, datasetID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("dataset worker started",
		"dataset_id", datasetID,
		"topic", domain.TopicRefreshRequested,
	)

	return nil
}

// processRefresh handles one refresh request message.
func (w *Worker) processRefresh(ctx context.Context, datasetID string, msg *domain.Message) error {
	var req domain.RefreshRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse refresh request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message dataset if provided
	if req.DatasetID != "" {
		datasetID = req.DatasetID
	}

	slog.Debug("processing refresh",
		"dataset_id", datasetID,
		"requested_by", req.RequestedBy,
		"source", req.Source,
	)

	result, err := w.Refresh(ctx, datasetID, &req)
	if err != nil {
		slog.Error("refresh failed",
			"dataset_id", datasetID,
			"error", err,
		)
		return err
	}

	slog.Info("refresh completed",
		"dataset_id", datasetID,
		"snapshot_version", result.SnapshotVersion,
		"rows", result.Rows,
		"duration_ms", result.DurationMs,
	)

	return nil
}

// Refresh rebuilds the dataset's snapshot from the repository and
// installs it on the engine. A request source of the form "csv:<path>"
// reloads the fact table from that file first. The outcome is published
// on the completed or failed topic either way.
func (w *Worker) Refresh(ctx context.Context, datasetID string, req *domain.RefreshRequest) (*domain.RefreshResult, error) {
	start := time.Now()

	result, err := w.refresh(ctx, datasetID, req)
	if err != nil {
		w.publishResult(ctx, datasetID, domain.TopicRefreshFailed, &domain.RefreshResult{
			DatasetID:  datasetID,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		})
		return nil, err
	}

	result.DurationMs = time.Since(start).Milliseconds()
	w.publishResult(ctx, datasetID, domain.TopicRefreshCompleted, result)

	return result, nil
}

func (w *Worker) refresh(ctx context.Context, datasetID string, req *domain.RefreshRequest) (*domain.RefreshResult, error) {
	if source := req.Source; strings.HasPrefix(source, "csv:") {
		if w.loader == nil {
			return nil, fmt.Errorf("refresh source %q requires a loader", source)
		}
		audit, err := w.loader.Reload(ctx, datasetID, strings.TrimPrefix(source, "csv:"))
		if err != nil {
			return nil, fmt.Errorf("failed to reload facts: %w", err)
		}

		payload, _ := json.Marshal(audit)
		if err := w.bus.Publish(ctx, datasetID, domain.TopicDatasetLoaded, payload); err != nil {
			slog.Error("failed to publish dataset loaded event",
				"dataset_id", datasetID,
				"error", err,
			)
		}
	}

	rows, err := w.repo.ListOrderLines(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}

	// Bump before building so reports cached against the old snapshot
	// are orphaned even if the build fails.
	version, err := w.cache.BumpSnapshotVersion(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to bump snapshot version: %w", err)
	}

	ds, err := metrics.NewDataset(datasetID, version, rows)
	if err != nil {
		return nil, err
	}
	w.engine.SetSnapshot(ds)

	return &domain.RefreshResult{
		DatasetID:       datasetID,
		SnapshotVersion: version,
		Rows:            int64(len(rows)),
	}, nil
}

func (w *Worker) publishResult(ctx context.Context, datasetID, topic string, result *domain.RefreshResult) {
	payload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, datasetID, topic, payload); err != nil {
		slog.Error("failed to publish refresh result",
			"dataset_id", datasetID,
			"topic", topic,
			"error", err,
		)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
