package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/bus"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/cache"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/loader"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/repository"
)

func testDeps(t *testing.T) (domain.Repository, domain.Cache, *metrics.Engine) {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	engine, err := metrics.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return repo, cache.NewLRUCache(100), engine
}

func seedFacts(t *testing.T, repo domain.Repository, datasetID string) {
	t.Helper()

	day := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	lines := []*domain.OrderLine{
		{OrderID: "O-1", CustomerID: "C-1", ProductName: "Chair", Category: "Furniture", Region: "West", OrderDate: day, ShipDate: day.AddDate(0, 0, 2), Sales: 100, Quantity: 1},
		{OrderID: "O-2", CustomerID: "C-2", ProductName: "Desk", Category: "Furniture", Region: "East", OrderDate: day.AddDate(0, 1, 0), ShipDate: day.AddDate(0, 1, 3), Sales: 250, Quantity: 2},
		{OrderID: "O-3", CustomerID: "C-1", ProductName: "Phone", Category: "Technology", Region: "West", OrderDate: day.AddDate(0, 2, 0), ShipDate: day.AddDate(0, 2, 1), Sales: 400, Quantity: 1},
	}
	if err := repo.SaveOrderLines(context.Background(), datasetID, lines); err != nil {
		t.Fatalf("failed to seed facts: %v", err)
	}
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	t.Run("StartAndStop", func(t *testing.T) {
		repo, cch, engine := testDeps(t)
		w := NewWorker(eventBus, repo, cch, engine, nil)

		err := w.Start(Config{DatasetIDs: []string{"superstore"}})
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicRefreshRequested {
			t.Errorf("unexpected topic %q", stats.Topics[0])
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("DefaultDataset", func(t *testing.T) {
		repo, cch, engine := testDeps(t)
		w := NewWorker(eventBus, repo, cch, engine, nil)

		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		if got := w.GetStats().SubscriptionCount; got != 1 {
			t.Errorf("expected 1 subscription for default dataset, got %d", got)
		}
	})

	t.Run("ProcessRefreshRequest", func(t *testing.T) {
		repo, cch, engine := testDeps(t)
		seedFacts(t, repo, "superstore")

		w := NewWorker(eventBus, repo, cch, engine, nil)
		w.Start(Config{DatasetIDs: []string{"superstore"}})
		defer w.Stop()

		var completed atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "superstore", domain.TopicRefreshCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			completed.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := domain.RefreshRequest{DatasetID: "superstore", RequestedBy: "test"}
		payload, _ := json.Marshal(req)
		if err := eventBus.Publish(context.Background(), "superstore", domain.TopicRefreshRequested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(200 * time.Millisecond)

		if !completed.Load() {
			t.Fatal("expected refresh completion to be published")
		}

		var result domain.RefreshResult
		if err := json.Unmarshal(resultPayload, &result); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}
		if result.DatasetID != "superstore" {
			t.Errorf("expected datasetID 'superstore', got '%s'", result.DatasetID)
		}
		if result.SnapshotVersion != 1 {
			t.Errorf("expected snapshot version 1, got %d", result.SnapshotVersion)
		}
		if result.Rows != 3 {
			t.Errorf("expected 3 rows, got %d", result.Rows)
		}
		if result.Error != "" {
			t.Errorf("unexpected error %q", result.Error)
		}

		info, err := engine.SnapshotInfo("superstore")
		if err != nil {
			t.Fatalf("expected snapshot to be installed: %v", err)
		}
		if info.Rows != 3 || info.Version != 1 {
			t.Errorf("unexpected snapshot info %+v", info)
		}
	})

	t.Run("FailurePublishedForEmptyDataset", func(t *testing.T) {
		repo, cch, engine := testDeps(t)

		w := NewWorker(eventBus, repo, cch, engine, nil)
		w.Start(Config{DatasetIDs: []string{"empty-ds"}})
		defer w.Stop()

		var failed atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "empty-ds", domain.TopicRefreshFailed, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			failed.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(domain.RefreshRequest{DatasetID: "empty-ds"})
		eventBus.Publish(context.Background(), "empty-ds", domain.TopicRefreshRequested, payload)

		time.Sleep(200 * time.Millisecond)

		if !failed.Load() {
			t.Fatal("expected refresh failure to be published")
		}

		var result domain.RefreshResult
		if err := json.Unmarshal(resultPayload, &result); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}
		if result.Error == "" {
			t.Error("expected error message in failure result")
		}
		if _, err := engine.SnapshotInfo("empty-ds"); err == nil {
			t.Error("expected no snapshot for empty dataset")
		}
	})

	t.Run("CSVSourceReloadsFacts", func(t *testing.T) {
		repo, cch, engine := testDeps(t)
		seedFacts(t, repo, "superstore")

		csvPath := filepath.Join(t.TempDir(), "orders.csv")
		content := `Order ID,Order Date,Ship Date,Customer ID,Region,Category,Product Name,Sales,Quantity
O-900,2024-05-01,2024-05-03,C-9,West,Technology,Headset,99.99,1
O-901,2024-05-02,2024-05-04,C-9,West,Technology,Webcam,49.99,1
`
		if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write csv: %v", err)
		}

		ldr := loader.New(repo, domain.LoaderConfig{Strict: true})
		w := NewWorker(eventBus, repo, cch, engine, ldr)
		w.Start(Config{DatasetIDs: []string{"superstore"}})
		defer w.Stop()

		var loaded, completed atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "superstore", domain.TopicDatasetLoaded, func(ctx context.Context, msg *domain.Message) error {
			loaded.Store(true)
			return nil
		})
		eventBus.Subscribe(context.Background(), "superstore", domain.TopicRefreshCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			completed.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(domain.RefreshRequest{Source: "csv:" + csvPath})
		eventBus.Publish(context.Background(), "superstore", domain.TopicRefreshRequested, payload)

		time.Sleep(300 * time.Millisecond)

		if !loaded.Load() {
			t.Error("expected dataset loaded event")
		}
		if !completed.Load() {
			t.Fatal("expected refresh completion")
		}

		var result domain.RefreshResult
		json.Unmarshal(resultPayload, &result)
		if result.Rows != 2 {
			t.Errorf("expected 2 rows after reload, got %d", result.Rows)
		}

		count, _ := repo.CountOrderLines(context.Background(), "superstore")
		if count != 2 {
			t.Errorf("expected reload to replace seeded rows, got %d", count)
		}
	})

	t.Run("MultiDataset", func(t *testing.T) {
		repo, cch, engine := testDeps(t)
		w := NewWorker(eventBus, repo, cch, engine, nil)

		w.Start(Config{DatasetIDs: []string{"superstore", "euro-retail"}})
		defer w.Stop()

		if got := w.GetStats().SubscriptionCount; got != 2 {
			t.Errorf("expected 2 subscriptions for 2 datasets, got %d", got)
		}
	})
}

func TestRefreshDirect(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	repo, cch, engine := testDeps(t)
	seedFacts(t, repo, "superstore")

	w := NewWorker(eventBus, repo, cch, engine, nil)

	result, err := w.Refresh(context.Background(), "superstore", &domain.RefreshRequest{RequestedBy: "startup"})
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if result.SnapshotVersion != 1 || result.Rows != 3 {
		t.Errorf("unexpected result %+v", result)
	}

	// A second refresh bumps the version again.
	result, err = w.Refresh(context.Background(), "superstore", &domain.RefreshRequest{})
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if result.SnapshotVersion != 2 {
		t.Errorf("expected version 2, got %d", result.SnapshotVersion)
	}

	version, err := cch.SnapshotVersion(context.Background(), "superstore")
	if err != nil {
		t.Fatalf("SnapshotVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected cache version 2, got %d", version)
	}
}
