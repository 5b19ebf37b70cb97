package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/calendar"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// ErrCustomerNotFound is returned when a profile is requested for a
// customer with no rows in the dataset.
var ErrCustomerNotFound = errors.New("customer not found")

// matchBand finds the first band containing value. Bands are ordered by
// ascending upper limit; limits are inclusive and a nil limit matches
// everything, so a well-formed band list partitions the whole domain.
func matchBand(value float64, bands []domain.Band) string {
	for _, band := range bands {
		if band.UpperLimit == nil || value <= *band.UpperLimit {
			return band.Label
		}
	}
	return ""
}

// buildProfile derives the RFM profile from one customer's full order
// history. Frequency counts every fact row the customer ever produced;
// Recency is the day distance from their latest order to the reference
// date. Both ignore whatever filter context the surrounding query used.
func buildProfile(customerID string, rows []*domain.OrderLine, ref time.Time) *domain.CustomerProfile {
	first, last := calendar.Day(rows[0].OrderDate), calendar.Day(rows[0].OrderDate)
	var monetary float64
	for _, r := range rows {
		d := calendar.Day(r.OrderDate)
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
		monetary += r.Sales
	}

	recency := int(calendar.Day(ref).Sub(last).Hours() / 24)
	if recency < 0 {
		recency = 0
	}

	freq := len(rows)
	return &domain.CustomerProfile{
		CustomerID:     customerID,
		Frequency:      freq,
		FrequencyBand:  matchBand(float64(freq), domain.FrequencyBands),
		Recency:        recency,
		RecencyBand:    matchBand(float64(recency), domain.RecencyBands),
		Monetary:       monetary,
		FirstOrderDate: first,
		LastOrderDate:  last,
	}
}

// Profile returns one customer's RFM profile. The reference date defaults
// to the snapshot's max order date; pass ref to evaluate recency against
// another point in time.
func (e *Engine) Profile(ctx context.Context, datasetID, customerID string, ref *time.Time) (*domain.CustomerProfile, error) {
	ds, err := e.snapshot(datasetID)
	if err != nil {
		return nil, err
	}
	rows := ds.CustomerRows(customerID)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}
	return buildProfile(customerID, rows, e.referenceDate(ds, ref)), nil
}

// Segments returns the RFM band distribution: one cell per
// frequency-band x recency-band pair, zero cells included so the table
// shape is stable. Profiles are derived in parallel across customers.
func (e *Engine) Segments(ctx context.Context, datasetID string, ref *time.Time) ([]domain.SegmentCount, error) {
	ds, err := e.snapshot(datasetID)
	if err != nil {
		return nil, err
	}
	refDate := e.referenceDate(ds, ref)

	ids := ds.CustomerIDs()
	profiles := make([]*domain.CustomerProfile, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles[i] = buildProfile(id, ds.CustomerRows(id), refDate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[[2]string]int)
	for _, p := range profiles {
		counts[[2]string{p.FrequencyBand, p.RecencyBand}]++
	}

	out := make([]domain.SegmentCount, 0, len(domain.FrequencyBands)*len(domain.RecencyBands))
	for _, fb := range domain.FrequencyBands {
		for _, rb := range domain.RecencyBands {
			out = append(out, domain.SegmentCount{
				FrequencyBand: fb.Label,
				RecencyBand:   rb.Label,
				Customers:     counts[[2]string{fb.Label, rb.Label}],
			})
		}
	}
	return out, nil
}

func (e *Engine) referenceDate(ds *Dataset, ref *time.Time) time.Time {
	if ref != nil {
		return calendar.Day(*ref)
	}
	return ds.MaxOrderDate
}
