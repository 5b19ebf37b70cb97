// Package loader streams order-line CSV files into the repository.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

var (
	// ErrMissingColumn is returned when a required CSV column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptyFile is returned for files without a header row.
	ErrEmptyFile = errors.New("csv file is empty")
)

// requiredColumns must all be present in the header. Optional columns
// (row id, product id, sub-category, segment, profit) default to zero
// values when absent.
var requiredColumns = []string{
	"orderid", "orderdate", "shipdate", "customerid", "region",
	"category", "productname", "sales", "quantity",
}

// dateLayouts are tried in order. Superstore exports use US-style
// month-first dates; ISO is accepted for regenerated files.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006/01/02",
	time.RFC3339,
}

// Loader parses and persists order-line CSV files.
type Loader struct {
	repo      domain.Repository
	batchSize int
	strict    bool
}

// New creates a loader. In strict mode the first invalid row aborts the
// load; otherwise invalid rows are skipped and counted.
func New(repo domain.Repository, cfg domain.LoaderConfig) *Loader {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Loader{
		repo:      repo,
		batchSize: batchSize,
		strict:    cfg.Strict,
	}
}

// Load reads a CSV file and appends its rows to the dataset in batches.
func (l *Loader) Load(ctx context.Context, datasetID, path string) (*domain.LoadAudit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()

	return l.load(ctx, datasetID, "csv:"+path, file, false)
}

// Reload reads a CSV file and replaces the dataset's rows atomically.
func (l *Loader) Reload(ctx context.Context, datasetID, path string) (*domain.LoadAudit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()

	return l.load(ctx, datasetID, "csv:"+path, file, true)
}

// LoadReader ingests CSV content from any reader, appending to the
// dataset. Used by the HTTP upload endpoint.
func (l *Loader) LoadReader(ctx context.Context, datasetID, source string, r io.Reader) (*domain.LoadAudit, error) {
	return l.load(ctx, datasetID, source, r, false)
}

func (l *Loader) load(ctx context.Context, datasetID, source string, r io.Reader, replace bool) (*domain.LoadAudit, error) {
	start := time.Now()

	lines, skipped, err := l.parse(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: no valid rows", source)
	}

	if replace {
		if err := l.repo.ReplaceDataset(ctx, datasetID, lines); err != nil {
			return nil, fmt.Errorf("failed to replace dataset: %w", err)
		}
	} else {
		for i := 0; i < len(lines); i += l.batchSize {
			end := i + l.batchSize
			if end > len(lines) {
				end = len(lines)
			}
			if err := l.repo.SaveOrderLines(ctx, datasetID, lines[i:end]); err != nil {
				return nil, fmt.Errorf("failed to save batch at row %d: %w", i, err)
			}
		}
	}

	min, max := lines[0].OrderDate, lines[0].OrderDate
	for _, ln := range lines {
		if ln.OrderDate.Before(min) {
			min = ln.OrderDate
		}
		if ln.OrderDate.After(max) {
			max = ln.OrderDate
		}
	}

	audit := &domain.LoadAudit{
		DatasetID:    datasetID,
		Source:       source,
		Rows:         int64(len(lines)),
		Skipped:      skipped,
		MinOrderDate: min,
		MaxOrderDate: max,
		DurationMs:   time.Since(start).Milliseconds(),
		LoadedAt:     time.Now().UTC(),
	}
	if err := l.repo.SaveLoadAudit(ctx, datasetID, audit); err != nil {
		slog.Error("failed to save load audit",
			"dataset_id", datasetID,
			"error", err,
		)
	}

	slog.Info("dataset loaded",
		"dataset_id", datasetID,
		"source", source,
		"rows", audit.Rows,
		"skipped", audit.Skipped,
		"duration_ms", audit.DurationMs,
	)

	return audit, nil
}

// parse streams the CSV, validating every row. Duplicate row IDs are
// skipped so re-running a load cannot double the fact table.
func (l *Loader) parse(r io.Reader) ([]*domain.OrderLine, int64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, ErrEmptyFile
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, 0, err
	}

	var (
		lines   []*domain.OrderLine
		skipped int64
		seen    = make(map[string]bool)
		rowNum  = 1
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			if l.strict {
				return nil, 0, fmt.Errorf("row %d: %w", rowNum, err)
			}
			slog.Warn("skipping malformed row", "row", rowNum, "error", err)
			skipped++
			continue
		}

		line, err := parseRecord(record, cols)
		if err == nil {
			err = line.Validate()
		}
		if err != nil {
			if l.strict {
				return nil, 0, fmt.Errorf("row %d: %w", rowNum, err)
			}
			slog.Warn("skipping invalid row", "row", rowNum, "error", err)
			skipped++
			continue
		}

		if line.LineID != "" {
			if seen[line.LineID] {
				skipped++
				continue
			}
			seen[line.LineID] = true
		}

		lines = append(lines, line)
	}

	return lines, skipped, nil
}

// mapColumns indexes the header by normalized name, so "Sub-Category",
// "sub_category", and "SubCategory" all resolve to the same column.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeColumn(name)] = i
	}

	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return cols, nil
}

func normalizeColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseRecord(record []string, cols map[string]int) (*domain.OrderLine, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	orderDate, err := parseDate(field("orderdate"))
	if err != nil {
		return nil, fmt.Errorf("orderDate: %w", err)
	}
	shipDate, err := parseDate(field("shipdate"))
	if err != nil {
		return nil, fmt.Errorf("shipDate: %w", err)
	}

	sales, err := parseFloat(field("sales"))
	if err != nil {
		return nil, fmt.Errorf("sales: %w", err)
	}
	quantity, err := strconv.Atoi(field("quantity"))
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}

	// Optional numeric fields default to zero.
	var profit, discount float64
	if s := field("profit"); s != "" {
		if profit, err = parseFloat(s); err != nil {
			return nil, fmt.Errorf("profit: %w", err)
		}
	}
	if s := field("discount"); s != "" {
		if discount, err = parseFloat(s); err != nil {
			return nil, fmt.Errorf("discount: %w", err)
		}
	}

	return &domain.OrderLine{
		LineID:      field("rowid"),
		OrderID:     field("orderid"),
		CustomerID:  field("customerid"),
		ProductID:   field("productid"),
		ProductName: field("productname"),
		Category:    field("category"),
		SubCategory: field("subcategory"),
		Region:      field("region"),
		Segment:     field("segment"),
		OrderDate:   orderDate,
		ShipDate:    shipDate,
		Sales:       sales,
		Profit:      profit,
		Quantity:    quantity,
		Discount:    discount,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseFloat accepts plain numbers plus currency-formatted values like
// "$1,024.50".
func parseFloat(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	return strconv.ParseFloat(cleaned, 64)
}
