// Benchmark tool for load-testing the superstore query engine.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -rows 10000 -queries 2000
//
// This tool:
//   1. Generates a synthetic order-line CSV (seeded, reproducible)
//   2. Loads it into the server via POST /refresh and waits for the snapshot
//   3. Fires a mixed query workload from concurrent workers
//   4. Reports error rate, cache hit rate, throughput, and latency percentiles
//
// The server must be able to read the generated CSV, so run the benchmark
// on the same host (or point -csv at a shared path).
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// QueryRequest is the superstore API request format
type QueryRequest struct {
	Measures []string     `json:"measures"`
	GroupBy  string       `json:"groupBy,omitempty"`
	Grain    string       `json:"grain,omitempty"`
	Context  QueryContext `json:"context"`
	Limit    int          `json:"limit,omitempty"`
}

type QueryContext struct {
	DateFrom   *string  `json:"dateFrom,omitempty"`
	DateTo     *string  `json:"dateTo,omitempty"`
	Regions    []string `json:"regions,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// QueryResponse carries the report metadata the benchmark cares about
type QueryResponse struct {
	Metadata struct {
		SnapshotVersion int64 `json:"snapshotVersion"`
		RowsMatched     int   `json:"rowsMatched"`
		EvalMs          int64 `json:"evalMs"`
		CacheHit        bool  `json:"cacheHit"`
	} `json:"metadata"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TotalRequests int64
	TotalErrors   int64
	CacheHits     int64
	QueryRequests int64

	mu        sync.Mutex
	latencies []int64 // per-request wall time, ms
}

func (m *Metrics) record(ms int64) {
	m.mu.Lock()
	m.latencies = append(m.latencies, ms)
	m.mu.Unlock()
}

// orderRow is one synthetic fact row
type orderRow struct {
	RowID      int
	OrderID    string
	OrderDate  time.Time
	ShipDate   time.Time
	CustomerID string
	Segment    string
	Region     string
	Category   string
	SubCat     string
	Product    string
	Sales      float64
	Quantity   int
	Discount   float64
	Profit     float64
}

// queryJob is one request in the workload mix
type queryJob struct {
	shape  string
	method string
	path   string
	body   []byte
}

var (
	regions    = []string{"West", "East", "Central", "South"}
	segments   = []string{"Consumer", "Corporate", "Home Office"}
	categories = []string{"Furniture", "Office Supplies", "Technology"}
	subCats    = map[string][]string{
		"Furniture":       {"Chairs", "Tables", "Bookcases", "Furnishings"},
		"Office Supplies": {"Binders", "Paper", "Storage", "Appliances"},
		"Technology":      {"Phones", "Accessories", "Machines", "Copiers"},
	}
	brands = []string{"Global", "Bevis", "Eldon", "Newell", "Logitech", "Canon", "3M", "Fellowes"}
)

func main() {
	// Parse flags
	baseURL := flag.String("url", "http://localhost:8080", "Superstore base URL")
	datasetID := flag.String("dataset", "", "Dataset ID (empty = server default)")
	rows := flag.Int("rows", 10000, "Synthetic order lines to generate")
	customers := flag.Int("customers", 500, "Distinct synthetic customers")
	queries := flag.Int("queries", 2000, "Total query requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Uint64("seed", 42, "Generator seed (reproducible workloads)")
	csvPath := flag.String("csv", "", "Where to write the generated CSV (default temp dir)")
	skipLoad := flag.Bool("skip-load", false, "Skip generation and query the existing snapshot")
	verbose := flag.Bool("verbose", false, "Print each request result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         SUPERSTORE BENCHMARK - Synthetic Query Load           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nServer URL:  %s\n", *baseURL)
	fmt.Printf("Rows:        %d\n", *rows)
	fmt.Printf("Customers:   %d\n", *customers)
	fmt.Printf("Queries:     %d\n", *queries)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Check the server is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: server not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run cmd/superstore/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Server is healthy")

	rng := rand.New(rand.NewSource(int64(*seed)))

	var customerIDs []string
	if !*skipLoad {
		// Generate synthetic facts
		path := *csvPath
		if path == "" {
			path = filepath.Join(os.TempDir(), "superstore-bench.csv")
		}
		fmt.Printf("\nGenerating %d order lines at %s...\n", *rows, path)
		facts := generateOrders(rng, *rows, *customers)
		if err := writeFactsCSV(path, facts); err != nil {
			fmt.Printf("ERROR: failed to write CSV: %v\n", err)
			os.Exit(1)
		}
		seen := map[string]bool{}
		for _, r := range facts {
			if !seen[r.CustomerID] {
				seen[r.CustomerID] = true
				customerIDs = append(customerIDs, r.CustomerID)
			}
		}
		fmt.Printf("✓ Generated %d lines across %d customers\n", len(facts), len(customerIDs))

		// Load facts and wait for the snapshot
		fmt.Println("\nLoading facts into the server...")
		version, err := loadFacts(*baseURL, *datasetID, path, len(facts))
		if err != nil {
			fmt.Printf("ERROR: failed to load facts: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Snapshot v%d built\n", version)
	}

	// Build the workload
	jobs := makeQueries(rng, *queries, customerIDs)

	// Run benchmark
	fmt.Printf("\nRunning %d queries with %d workers...\n", len(jobs), *workers)
	startTime := time.Now()
	metrics := runBenchmark(jobs, *baseURL, *datasetID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateOrders builds order lines with the superstore shape: orders of
// one to three lines, two years of dates, and discount-driven margins that
// go negative at deep discounts.
func generateOrders(rng *rand.Rand, rows, customers int) []orderRow {
	var out []orderRow
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	days := 365 * 3
	discounts := []float64{0, 0, 0, 0, 0.1, 0.2, 0.2, 0.3, 0.4, 0.5, 0.7}

	rowID := 1
	orderSeq := 100000
	for len(out) < rows {
		orderDate := start.AddDate(0, 0, rng.Intn(days))
		orderID := fmt.Sprintf("US-%d-%d", orderDate.Year(), orderSeq)
		orderSeq++
		customerID := fmt.Sprintf("C-%04d", 1+rng.Intn(customers))
		segment := segments[rng.Intn(len(segments))]
		region := regions[rng.Intn(len(regions))]
		shipDate := orderDate.AddDate(0, 0, 1+rng.Intn(7))

		lines := 1 + rng.Intn(3)
		for i := 0; i < lines && len(out) < rows; i++ {
			category := categories[rng.Intn(len(categories))]
			subs := subCats[category]
			sub := subs[rng.Intn(len(subs))]
			product := fmt.Sprintf("%s %s %d", brands[rng.Intn(len(brands))], sub, 100+rng.Intn(900))

			sales := round2(8 + rng.ExpFloat64()*180)
			if sales > 4000 {
				sales = 4000
			}
			discount := discounts[rng.Intn(len(discounts))]
			margin := 0.45 - 1.1*discount + (rng.Float64()*0.2 - 0.1)

			out = append(out, orderRow{
				RowID:      rowID,
				OrderID:    orderID,
				OrderDate:  orderDate,
				ShipDate:   shipDate,
				CustomerID: customerID,
				Segment:    segment,
				Region:     region,
				Category:   category,
				SubCat:     sub,
				Product:    product,
				Sales:      sales,
				Quantity:   1 + rng.Intn(9),
				Discount:   discount,
				Profit:     round2(sales * margin),
			})
			rowID++
		}
	}
	return out
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func writeFactsCSV(path string, rows []orderRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Row ID", "Order ID", "Order Date", "Ship Date", "Customer ID",
		"Segment", "Region", "Category", "Sub-Category", "Product Name",
		"Sales", "Quantity", "Discount", "Profit"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.RowID),
			r.OrderID,
			r.OrderDate.Format("2006-01-02"),
			r.ShipDate.Format("2006-01-02"),
			r.CustomerID,
			r.Segment,
			r.Region,
			r.Category,
			r.SubCat,
			r.Product,
			strconv.FormatFloat(r.Sales, 'f', 2, 64),
			strconv.Itoa(r.Quantity),
			strconv.FormatFloat(r.Discount, 'f', 2, 64),
			strconv.FormatFloat(r.Profit, 'f', 2, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// loadFacts asks the server to reload facts from the CSV and polls the
// snapshot until all rows are visible.
func loadFacts(baseURL, datasetID, path string, wantRows int) (int64, error) {
	body, _ := json.Marshal(map[string]string{
		"datasetId":   datasetID,
		"requestedBy": "benchmark",
		"source":      "csv:" + path,
	})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/refresh", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if datasetID != "" {
		req.Header.Set("X-Dataset-ID", datasetID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return 0, fmt.Errorf("refresh rejected: status %d", resp.StatusCode)
	}

	// The rebuild is asynchronous; poll until the snapshot carries the
	// expected row count.
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(500 * time.Millisecond)

		snapReq, err := http.NewRequest(http.MethodGet, baseURL+"/snapshot", nil)
		if err != nil {
			return 0, err
		}
		if datasetID != "" {
			snapReq.Header.Set("X-Dataset-ID", datasetID)
		}
		snapResp, err := client.Do(snapReq)
		if err != nil {
			continue
		}
		var snap struct {
			Snapshot struct {
				Version int64 `json:"version"`
				Rows    int   `json:"rows"`
			} `json:"snapshot"`
		}
		decodeErr := json.NewDecoder(snapResp.Body).Decode(&snap)
		snapResp.Body.Close()
		if decodeErr != nil || snapResp.StatusCode != http.StatusOK {
			continue
		}
		if snap.Snapshot.Rows == wantRows {
			return snap.Snapshot.Version, nil
		}
	}
	return 0, fmt.Errorf("snapshot did not reach %d rows within 60s", wantRows)
}

// makeQueries builds a mixed workload: repeated scalar totals (cache hits),
// grouped and grain queries with randomized slicers (cache misses), and
// customer profile lookups when customer IDs are known.
func makeQueries(rng *rand.Rand, n int, customerIDs []string) []queryJob {
	jobs := make([]queryJob, 0, n)
	for i := 0; i < n; i++ {
		switch i % 5 {
		case 0:
			jobs = append(jobs, buildQuery("scalar-totals", QueryRequest{
				Measures: []string{"TotalSales", "TotalProfit", "TotalOrders"},
			}))
		case 1:
			q := QueryRequest{
				Measures: []string{"TotalSales", "ProfitMargin"},
				GroupBy:  "region",
			}
			if rng.Intn(2) == 0 {
				q.Context.Categories = []string{categories[rng.Intn(len(categories))]}
			}
			jobs = append(jobs, buildQuery("region-groups", q))
		case 2:
			year := 2022 + rng.Intn(3)
			from := fmt.Sprintf("%d-01-01T00:00:00Z", year)
			to := fmt.Sprintf("%d-12-31T00:00:00Z", year)
			jobs = append(jobs, buildQuery("monthly-grain", QueryRequest{
				Measures: []string{"TotalSales", "SalesLY", "YoYSalesGrowth"},
				Grain:    "month",
				Context:  QueryContext{DateFrom: &from, DateTo: &to},
			}))
		case 3:
			from := fmt.Sprintf("%d-%02d-01T00:00:00Z", 2022+rng.Intn(3), 1+rng.Intn(12))
			jobs = append(jobs, buildQuery("sliced-ratios", QueryRequest{
				Measures: []string{"AvgSalesPerCustomer", "AvgDiscountPct"},
				Context: QueryContext{
					DateFrom:   &from,
					Regions:    []string{regions[rng.Intn(len(regions))]},
					Categories: []string{categories[rng.Intn(len(categories))]},
				},
			}))
		case 4:
			if len(customerIDs) == 0 {
				// No known customers without a load phase; reuse the
				// scalar shape instead.
				jobs = append(jobs, buildQuery("scalar-totals", QueryRequest{
					Measures: []string{"TotalQuantity", "TotalCustomers"},
				}))
				continue
			}
			id := customerIDs[rng.Intn(len(customerIDs))]
			jobs = append(jobs, queryJob{
				shape:  "customer-profile",
				method: http.MethodGet,
				path:   "/customers/" + id + "/profile",
			})
		}
	}
	return jobs
}

func buildQuery(shape string, q QueryRequest) queryJob {
	body, _ := json.Marshal(q)
	return queryJob{shape: shape, method: http.MethodPost, path: "/query", body: body}
}

func runBenchmark(jobs []queryJob, baseURL, datasetID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{latencies: make([]int64, 0, len(jobs))}

	// Create work channel
	work := make(chan queryJob, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for job := range work {
				start := time.Now()
				result, err := sendQuery(client, baseURL, datasetID, job)
				elapsed := time.Since(start).Milliseconds()

				metrics.record(elapsed)
				atomic.AddInt64(&metrics.TotalRequests, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", job.shape, err)
					}
					continue
				}

				if job.path == "/query" {
					atomic.AddInt64(&metrics.QueryRequests, 1)
					if result.Metadata.CacheHit {
						atomic.AddInt64(&metrics.CacheHits, 1)
					}
				}

				if verbose {
					fmt.Printf("✓ %-16s | %5d ms | v%d | cache: %-5v | matched: %d\n",
						job.shape, elapsed,
						result.Metadata.SnapshotVersion,
						result.Metadata.CacheHit,
						result.Metadata.RowsMatched,
					)
				}
			}
		}()
	}

	// Send work
	for _, job := range jobs {
		work <- job
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func sendQuery(client *http.Client, baseURL, datasetID string, job queryJob) (*QueryResponse, error) {
	var reqBody io.Reader
	if job.body != nil {
		reqBody = bytes.NewReader(job.body)
	}

	httpReq, err := http.NewRequest(job.method, baseURL+job.path, reqBody)
	if err != nil {
		return nil, err
	}
	if job.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if datasetID != "" {
		httpReq.Header.Set("X-Dataset-ID", datasetID)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p/100*float64(len(sorted)-1) + 0.5)
	return sorted[rank]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 LOAD STATISTICS\n")
	fmt.Printf("   Total Requests:   %d\n", m.TotalRequests)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	if m.QueryRequests > 0 {
		hitRate := 100 * float64(m.CacheHits) / float64(m.QueryRequests)
		fmt.Printf("   Cache Hits:       %d / %d (%.2f%%)\n", m.CacheHits, m.QueryRequests, hitRate)
	}

	sorted := make([]int64, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Printf("\n⏱️  LATENCY (ms)\n")
	if len(sorted) > 0 {
		var sum int64
		for _, v := range sorted {
			sum += v
		}
		fmt.Printf("   Min:   %6d\n", sorted[0])
		fmt.Printf("   Avg:   %9.2f\n", float64(sum)/float64(len(sorted)))
		fmt.Printf("   p50:   %6d\n", percentile(sorted, 50))
		fmt.Printf("   p90:   %6d\n", percentile(sorted, 90))
		fmt.Printf("   p95:   %6d\n", percentile(sorted, 95))
		fmt.Printf("   p99:   %6d\n", percentile(sorted, 99))
		fmt.Printf("   Max:   %6d\n", sorted[len(sorted)-1])
	}

	fmt.Printf("\n🚀 THROUGHPUT\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalRequests > 0 && duration.Seconds() > 0 {
		fmt.Printf("   Requests/sec:     %.2f\n", float64(m.TotalRequests)/duration.Seconds())
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	p95 := percentile(sorted, 95)
	switch {
	case p95 <= 50:
		fmt.Println("   ✅ Excellent p95 - well inside interactive budgets")
	case p95 <= 200:
		fmt.Println("   ✅ Good p95 - fine for dashboard workloads")
	case p95 <= 1000:
		fmt.Println("   ⚠️  Slow p95 - consider more group workers or a larger cache")
	default:
		fmt.Println("   ❌ Very slow p95 - the snapshot is likely too large for this host")
	}

	if m.TotalRequests > 0 {
		errRate := float64(m.TotalErrors) / float64(m.TotalRequests)
		if errRate == 0 {
			fmt.Println("   ✅ No errors")
		} else if errRate < 0.01 {
			fmt.Printf("   ⚠️  %.2f%% errors - check server logs\n", 100*errRate)
		} else {
			fmt.Printf("   ❌ %.2f%% errors - the server is rejecting or failing requests\n", 100*errRate)
		}
	}

	fmt.Println()
}
