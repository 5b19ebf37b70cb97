package domain

import (
	"fmt"
	"time"
)

// FilterContext is the explicit filter context a measure is evaluated
// under. Values within one field are OR-ed, fields are AND-ed together.
// The zero value selects every row.
type FilterContext struct {
	// Inclusive order-date range. A nil endpoint leaves that side open.
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`

	// Dimension slicers
	Regions       []string `json:"regions,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	SubCategories []string `json:"subCategories,omitempty"`
	Segments      []string `json:"segments,omitempty"`
	CustomerIDs   []string `json:"customerIds,omitempty"`

	// Expression is an optional CEL predicate over row fields (sales,
	// profit, quantity, discount, region, category, sub_category,
	// segment, customer_id, order_id, product_name, order_date).
	// Matching rows must satisfy it in addition to the slicers.
	Expression string `json:"expression,omitempty"`
}

// IsZero reports whether the context applies no constraint at all.
func (f FilterContext) IsZero() bool {
	return f.DateFrom == nil && f.DateTo == nil &&
		len(f.Regions) == 0 && len(f.Categories) == 0 &&
		len(f.SubCategories) == 0 && len(f.Segments) == 0 &&
		len(f.CustomerIDs) == 0 && f.Expression == ""
}

// Validate rejects inverted date ranges.
func (f FilterContext) Validate() error {
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return fmt.Errorf("filter context: dateTo %s precedes dateFrom %s",
			f.DateTo.Format("2006-01-02"), f.DateFrom.Format("2006-01-02"))
	}
	return nil
}

// WithDateRange returns a copy of the context constrained to [from, to].
// Slicers and the expression carry over unchanged.
func (f FilterContext) WithDateRange(from, to time.Time) FilterContext {
	c := f
	c.DateFrom = &from
	c.DateTo = &to
	return c
}
