package metrics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/calendar"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// ErrEmptyDataset is returned when a snapshot is built from zero rows.
var ErrEmptyDataset = errors.New("dataset has no rows")

// Dataset is an immutable snapshot of one dataset's fact table plus its
// derived calendar and per-customer index. Refreshes build a new Dataset
// and swap it into the engine; nothing mutates a Dataset after NewDataset
// returns, which is what makes parallel measure evaluation safe.
type Dataset struct {
	ID       string
	Version  int64
	Rows     []*domain.OrderLine
	Calendar []domain.CalendarDay

	MinOrderDate time.Time
	MaxOrderDate time.Time
	LoadedAt     time.Time

	byCustomer map[string][]int
}

// NewDataset builds a snapshot from fact rows: derives the calendar over
// the rows' order-date range and indexes rows per customer. The calendar
// is rebuilt on every snapshot, so a refresh that widens the date range
// widens the calendar with it.
func NewDataset(id string, version int64, rows []*domain.OrderLine) (*Dataset, error) {
	if id == "" {
		id = domain.DefaultDataset
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrEmptyDataset)
	}

	min, max := calendar.Day(rows[0].OrderDate), calendar.Day(rows[0].OrderDate)
	byCustomer := make(map[string][]int)
	for i, r := range rows {
		d := calendar.Day(r.OrderDate)
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
		byCustomer[r.CustomerID] = append(byCustomer[r.CustomerID], i)
	}

	cal, err := calendar.Build(min, max)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", id, err)
	}

	return &Dataset{
		ID:           id,
		Version:      version,
		Rows:         rows,
		Calendar:     cal,
		MinOrderDate: min,
		MaxOrderDate: max,
		LoadedAt:     time.Now().UTC(),
		byCustomer:   byCustomer,
	}, nil
}

// CustomerRows returns every fact row for one customer, independent of
// any filter context. This is the full-view accessor Frequency and
// Recency are defined over.
func (d *Dataset) CustomerRows(customerID string) []*domain.OrderLine {
	idx, ok := d.byCustomer[customerID]
	if !ok {
		return nil
	}
	rows := make([]*domain.OrderLine, len(idx))
	for i, j := range idx {
		rows[i] = d.Rows[j]
	}
	return rows
}

// CustomerIDs returns every distinct customer in the dataset, sorted.
func (d *Dataset) CustomerIDs() []string {
	ids := make([]string, 0, len(d.byCustomer))
	for id := range d.byCustomer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CustomerCount returns the number of distinct customers.
func (d *Dataset) CustomerCount() int {
	return len(d.byCustomer)
}

// SnapshotInfo describes a loaded snapshot for the ops surface.
type SnapshotInfo struct {
	DatasetID    string    `json:"datasetId"`
	Version      int64     `json:"version"`
	Rows         int       `json:"rows"`
	Customers    int       `json:"customers"`
	CalendarDays int       `json:"calendarDays"`
	MinOrderDate time.Time `json:"minOrderDate"`
	MaxOrderDate time.Time `json:"maxOrderDate"`
	LoadedAt     time.Time `json:"loadedAt"`
}

// Info summarizes the snapshot.
func (d *Dataset) Info() SnapshotInfo {
	return SnapshotInfo{
		DatasetID:    d.ID,
		Version:      d.Version,
		Rows:         len(d.Rows),
		Customers:    len(d.byCustomer),
		CalendarDays: len(d.Calendar),
		MinOrderDate: d.MinOrderDate,
		MaxOrderDate: d.MaxOrderDate,
		LoadedAt:     d.LoadedAt,
	}
}
