package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *metrics.Engine
	version   string
	reportTTL time.Duration
}

// NewHandler creates a new API handler. reportTTL bounds how long query
// reports stay cached; the snapshot version in the cache key already
// invalidates them on refresh.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *metrics.Engine, version string, reportTTL time.Duration) *Handler {
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		version:   version,
		reportTTL: reportTTL,
	}
}

// Query handles POST /query requests.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := GetDatasetID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var q domain.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Use body dataset if provided
	if q.DatasetID == "" {
		q.DatasetID = datasetID
	} else {
		datasetID = q.DatasetID
	}

	if len(q.Measures) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "measures is required",
		})
		return
	}

	// Serve from the report cache when the same query already ran
	// against the current snapshot.
	var cacheKey string
	if h.cache != nil {
		version, err := h.cache.SnapshotVersion(ctx, datasetID)
		if err == nil {
			cacheKey = queryFingerprint(q, version)
			if cached, err := h.cache.GetReport(ctx, datasetID, cacheKey); err == nil && cached != nil {
				cached.Metadata.CacheHit = true
				cached.Metadata.TraceID = traceID
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
	}

	report, err := h.engine.Evaluate(ctx, q)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	report.Metadata.TraceID = traceID

	if h.cache != nil && cacheKey != "" {
		if err := h.cache.SetReport(ctx, datasetID, cacheKey, report, h.reportTTL); err != nil {
			slog.Warn("failed to cache report",
				"dataset_id", datasetID,
				"error", err,
			)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, metrics.ErrNoSnapshot) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": err.Error(),
	})
}

// queryFingerprint keys cached reports by the exact query shape and the
// snapshot version it was answered under.
func queryFingerprint(q domain.Query, version int64) string {
	payload, _ := json.Marshal(q)
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("query:v%d:%s", version, hex.EncodeToString(sum[:16]))
}

// Measures returns the measure catalog.
func (h *Handler) Measures(w http.ResponseWriter, r *http.Request) {
	catalog := metrics.Catalog()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"measures": catalog,
		"count":    len(catalog),
	})
}

// CustomerProfile returns the RFM profile for one customer. Profiles are
// computed over the full dataset, independent of any filter context.
func (h *Handler) CustomerProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := GetDatasetID(ctx)
	customerID := chi.URLParam(r, "id")

	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	ref, err := refDateParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	profile, err := h.engine.Profile(ctx, datasetID, customerID, ref)
	if err != nil {
		switch {
		case errors.Is(err, metrics.ErrCustomerNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "customer not found",
			})
		case errors.Is(err, metrics.ErrNoSnapshot):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": err.Error(),
			})
		default:
			slog.Error("failed to build profile", "customer_id", customerID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to build profile",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// CustomerSegments returns the RFM band distribution grid.
func (h *Handler) CustomerSegments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := GetDatasetID(ctx)

	ref, err := refDateParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	segments, err := h.engine.Segments(ctx, datasetID, ref)
	if err != nil {
		if errors.Is(err, metrics.ErrNoSnapshot) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to build segments", "dataset_id", datasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build segments",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": datasetID,
		"segments":  segments,
	})
}

// Calendar returns the snapshot's calendar dimension.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	datasetID := GetDatasetID(r.Context())

	days, err := h.engine.CalendarDays(datasetID)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": datasetID,
		"days":      days,
		"count":     len(days),
	})
}

// Refresh handles POST /refresh by publishing a refresh request for the
// worker. The rebuild itself is asynchronous.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := GetDatasetID(ctx)

	var req domain.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.DatasetID == "" {
		req.DatasetID = datasetID
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "api"
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	payload, _ := json.Marshal(req)
	if err := h.bus.Publish(ctx, req.DatasetID, domain.TopicRefreshRequested, payload); err != nil {
		slog.Error("failed to publish refresh request",
			"dataset_id", req.DatasetID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to publish refresh request",
		})
		return
	}

	slog.Info("refresh requested",
		"dataset_id", req.DatasetID,
		"requested_by", req.RequestedBy,
		"source", req.Source,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "refresh requested",
		"datasetId": req.DatasetID,
	})
}

// Snapshot returns the current snapshot info plus recent load history.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := GetDatasetID(ctx)

	info, err := h.engine.SnapshotInfo(datasetID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
		return
	}

	resp := map[string]interface{}{
		"snapshot": info,
	}
	if h.repo != nil {
		if audits, err := h.repo.ListLoadAudits(ctx, datasetID, 5); err == nil {
			resp["recentLoads"] = audits
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// refDateParam parses the optional ?ref=YYYY-MM-DD reference date used
// by the RFM endpoints.
func refDateParam(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("ref")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ref date %q, want YYYY-MM-DD", raw)
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
