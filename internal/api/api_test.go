package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/bus"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/cache"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
)

func testRow(orderID, customerID, region, category, product string, day time.Time, sales, profit float64) *domain.OrderLine {
	return &domain.OrderLine{
		OrderID:     orderID,
		CustomerID:  customerID,
		ProductName: product,
		Category:    category,
		Region:      region,
		Segment:     "Consumer",
		OrderDate:   day,
		ShipDate:    day.AddDate(0, 0, 2),
		Sales:       sales,
		Profit:      profit,
		Quantity:    1,
	}
}

// createTestServer builds a server around a three-row snapshot:
// TotalSales 550 (West 300, East 250), two customers, 2023-03-10
// through 2024-03-05.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	engine, err := metrics.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	rows := []*domain.OrderLine{
		testRow("O-1", "C-1", "West", "Furniture", "Chair", time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), 100, 20),
		testRow("O-2", "C-2", "East", "Technology", "Phone", time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC), 250, 90),
		testRow("O-3", "C-1", "West", "Furniture", "Desk", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), 200, 40),
	}
	ds, err := metrics.NewDataset("superstore", 1, rows)
	if err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}
	engine.SetSnapshot(ds)

	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })

	return NewServer(cfg, nil, cache.NewLRUCache(100), eventBus, engine, "test-v1", time.Minute)
}

func postQuery(t *testing.T, server *Server, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestQueryEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("ScalarQuery", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":["TotalSales","TotalOrders"]}`, nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report domain.Report
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if report.DatasetID != "superstore" {
			t.Errorf("expected dataset 'superstore', got %q", report.DatasetID)
		}
		if got := report.Scalars["TotalSales"]; !got.Valid || got.Float != 550 {
			t.Errorf("expected TotalSales 550, got %+v", got)
		}
		if got := report.Scalars["TotalOrders"]; !got.Valid || got.Float != 3 {
			t.Errorf("expected TotalOrders 3, got %+v", got)
		}
		if report.Metadata.SnapshotVersion != 1 {
			t.Errorf("expected snapshot version 1, got %d", report.Metadata.SnapshotVersion)
		}
		if report.Metadata.EngineVersion == "" {
			t.Error("expected engine version in metadata")
		}
		if report.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("GroupedQuery", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":["TotalSales"],"groupBy":"region"}`, nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report domain.Report
		if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(report.Groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(report.Groups))
		}
		// Groups are ranked by sales.
		if report.Groups[0].Key != "West" || report.Groups[1].Key != "East" {
			t.Errorf("unexpected group order: %q, %q", report.Groups[0].Key, report.Groups[1].Key)
		}
		if got := report.Groups[0].Measures["TotalSales"]; got.Float != 300 {
			t.Errorf("expected West sales 300, got %v", got.Float)
		}
	})

	t.Run("GrainQuery", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":["TotalSales"],"grain":"year"}`, nil)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var report domain.Report
		json.Unmarshal(rr.Body.Bytes(), &report)

		if len(report.Groups) != 2 {
			t.Fatalf("expected 2 year groups, got %d", len(report.Groups))
		}
		if report.Groups[0].Key != "2023" || report.Groups[0].Measures["TotalSales"].Float != 350 {
			t.Errorf("unexpected first group %+v", report.Groups[0])
		}
		if report.Groups[1].Key != "2024" || report.Groups[1].Measures["TotalSales"].Float != 200 {
			t.Errorf("unexpected second group %+v", report.Groups[1])
		}
	})

	t.Run("CachedQueryMarksHit", func(t *testing.T) {
		body := `{"measures":["TotalProfit"]}`

		first := postQuery(t, server, body, nil)
		if first.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", first.Code)
		}
		var firstReport domain.Report
		json.Unmarshal(first.Body.Bytes(), &firstReport)
		if firstReport.Metadata.CacheHit {
			t.Error("first evaluation should not be a cache hit")
		}

		second := postQuery(t, server, body, nil)
		var secondReport domain.Report
		json.Unmarshal(second.Body.Bytes(), &secondReport)
		if !secondReport.Metadata.CacheHit {
			t.Error("expected second evaluation to hit the report cache")
		}
		if secondReport.Scalars["TotalProfit"].Float != firstReport.Scalars["TotalProfit"].Float {
			t.Error("cached report diverged from computed report")
		}
	})

	t.Run("UnknownMeasure", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":["Bogus"]}`, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("EmptyMeasures", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":[]}`, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := postQuery(t, server, `not-json`, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("DatasetWithoutSnapshot", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":["TotalSales"]}`, map[string]string{
			DatasetIDHeader: "euro-retail",
		})
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postQuery(t, server, `{"measures":["TotalSales"]}`, nil)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestMeasuresEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/measures", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Measures []metrics.MeasureInfo `json:"measures"`
		Count    int                   `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.Count != len(resp.Measures) || resp.Count == 0 {
		t.Errorf("inconsistent catalog count %d for %d measures", resp.Count, len(resp.Measures))
	}
	if resp.Measures[0].Name != domain.MeasureTotalSales {
		t.Errorf("expected catalog to start with TotalSales, got %q", resp.Measures[0].Name)
	}
}

func TestCustomerEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ProfileFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/C-1/profile", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var profile domain.CustomerProfile
		if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if profile.CustomerID != "C-1" {
			t.Errorf("expected customer C-1, got %q", profile.CustomerID)
		}
		if profile.Frequency != 2 {
			t.Errorf("expected frequency 2, got %d", profile.Frequency)
		}
		if profile.Monetary != 300 {
			t.Errorf("expected monetary 300, got %v", profile.Monetary)
		}
		// Last order is the snapshot reference date.
		if profile.Recency != 0 {
			t.Errorf("expected recency 0, got %d", profile.Recency)
		}
	})

	t.Run("ProfileWithReferenceDate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/C-1/profile?ref=2024-06-13", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var profile domain.CustomerProfile
		json.Unmarshal(rr.Body.Bytes(), &profile)

		if profile.Recency != 100 {
			t.Errorf("expected recency 100, got %d", profile.Recency)
		}
		if profile.RecencyBand != "Cold (90+)" {
			t.Errorf("expected Cold band, got %q", profile.RecencyBand)
		}
	})

	t.Run("ProfileBadReferenceDate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/C-1/profile?ref=yesterday", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ProfileNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/C-99/profile", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Segments", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/segments", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			DatasetID string                `json:"datasetId"`
			Segments  []domain.SegmentCount `json:"segments"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(resp.Segments) != 9 {
			t.Fatalf("expected 9 grid cells, got %d", len(resp.Segments))
		}
		var total int
		for _, s := range resp.Segments {
			total += s.Customers
		}
		if total != 2 {
			t.Errorf("expected cell counts to sum to 2 customers, got %d", total)
		}
	})
}

func TestSnapshotLifecycleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Snapshot", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Snapshot metrics.SnapshotInfo `json:"snapshot"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Snapshot.Rows != 3 || resp.Snapshot.Version != 1 {
			t.Errorf("unexpected snapshot info %+v", resp.Snapshot)
		}
	})

	t.Run("SnapshotMissingDataset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
		req.Header.Set(DatasetIDHeader, "euro-retail")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("Calendar", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Days  []domain.CalendarDay `json:"days"`
			Count int                  `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		// 2023-03-10 through 2024-03-05 inclusive.
		if resp.Count != 362 {
			t.Errorf("expected 362 calendar days, got %d", resp.Count)
		}
		first := resp.Days[0]
		if first.Year != 2023 || first.MonthNumber != 3 || first.Quarter != 1 {
			t.Errorf("unexpected first day %+v", first)
		}
	})

	t.Run("RefreshPublishesRequest", func(t *testing.T) {
		var received atomic.Bool
		var payload []byte

		server.Handler().bus.Subscribe(context.Background(), "superstore", domain.TopicRefreshRequested, func(ctx context.Context, msg *domain.Message) error {
			payload = msg.Payload
			received.Store(true)
			return nil
		})
		time.Sleep(50 * time.Millisecond)

		req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		time.Sleep(100 * time.Millisecond)

		if !received.Load() {
			t.Fatal("expected refresh request on the bus")
		}
		var refresh domain.RefreshRequest
		if err := json.Unmarshal(payload, &refresh); err != nil {
			t.Fatalf("failed to parse refresh request: %v", err)
		}
		if refresh.DatasetID != "superstore" || refresh.RequestedBy != "api" {
			t.Errorf("unexpected refresh request %+v", refresh)
		}
	})

	t.Run("RefreshEmptyBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Errorf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("DatasetMiddlewareExtractsID", func(t *testing.T) {
		var capturedDatasetID string

		handler := DatasetMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedDatasetID = GetDatasetID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(DatasetIDHeader, "euro-retail")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedDatasetID != "euro-retail" {
			t.Errorf("expected dataset ID 'euro-retail', got '%s'", capturedDatasetID)
		}
	})

	t.Run("DatasetMiddlewareDefaults", func(t *testing.T) {
		var capturedDatasetID string

		handler := DatasetMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedDatasetID = GetDatasetID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedDatasetID != domain.DefaultDataset {
			t.Errorf("expected default dataset, got '%s'", capturedDatasetID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("RateLimiterBlocksAfterBurst", func(t *testing.T) {
		rl := NewRateLimiter(1, 2)
		handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		codes := make([]int, 3)
		for i := range codes {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}

		if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
			t.Errorf("expected first two requests to pass, got %v", codes)
		}
		if codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected third request to be limited, got %v", codes)
		}
	})

	t.Run("RateLimiterDisabledWhenZero", func(t *testing.T) {
		rl := NewRateLimiter(0, 0)
		handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200 on request %d, got %d", i, rr.Code)
			}
		}
	})
}
