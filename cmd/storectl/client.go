package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
)

// apiClient talks to a running superstore server.
type apiClient struct {
	client  *http.Client
	server  string
	dataset string
}

func newAPIClient(server, dataset string) (*apiClient, error) {
	normalized, err := normalizeServerURL(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	return &apiClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		server:  normalized,
		dataset: dataset,
	}, nil
}

// normalizeServerURL ensures the server has a scheme and no trailing path.
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL")
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// do sends one request and decodes the JSON response into out. Non-2xx
// responses are turned into errors carrying the server's error message.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.dataset != "" {
		req.Header.Set("X-Dataset-ID", c.dataset)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with HTTP status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// Query evaluates measures under a filter context.
func (c *apiClient) Query(ctx context.Context, q *domain.Query) (*domain.Report, error) {
	var report domain.Report
	if err := c.do(ctx, http.MethodPost, "/query", q, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Measures fetches the measure catalog.
func (c *apiClient) Measures(ctx context.Context) ([]metrics.MeasureInfo, error) {
	var resp struct {
		Measures []metrics.MeasureInfo `json:"measures"`
	}
	if err := c.do(ctx, http.MethodGet, "/measures", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Measures, nil
}

// Profile fetches the RFM profile for one customer. refDate is an optional
// YYYY-MM-DD override for the recency reference date.
func (c *apiClient) Profile(ctx context.Context, customerID, refDate string) (*domain.CustomerProfile, error) {
	path := "/customers/" + url.PathEscape(customerID) + "/profile"
	if refDate != "" {
		path += "?ref=" + url.QueryEscape(refDate)
	}
	var profile domain.CustomerProfile
	if err := c.do(ctx, http.MethodGet, path, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Segments fetches customer counts per RFM segment.
func (c *apiClient) Segments(ctx context.Context) ([]domain.SegmentCount, error) {
	var resp struct {
		Segments []domain.SegmentCount `json:"segments"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers/segments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}

// snapshotResponse mirrors GET /snapshot.
type snapshotResponse struct {
	Snapshot    metrics.SnapshotInfo `json:"snapshot"`
	RecentLoads []domain.LoadAudit   `json:"recentLoads"`
}

// Snapshot fetches the current snapshot info and recent load audits.
func (c *apiClient) Snapshot(ctx context.Context) (*snapshotResponse, error) {
	var resp snapshotResponse
	if err := c.do(ctx, http.MethodGet, "/snapshot", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh requests a snapshot rebuild. source may name a csv: path to
// reload facts before rebuilding.
func (c *apiClient) Refresh(ctx context.Context, source string) (string, error) {
	req := domain.RefreshRequest{
		DatasetID:   c.dataset,
		RequestedBy: "storectl",
		Source:      source,
	}
	var resp struct {
		Status    string `json:"status"`
		DatasetID string `json:"datasetId"`
	}
	if err := c.do(ctx, http.MethodPost, "/refresh", req, &resp); err != nil {
		return "", err
	}
	return resp.DatasetID, nil
}
