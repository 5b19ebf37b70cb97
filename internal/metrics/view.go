package metrics

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/calendar"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// View is a filter context made concrete: the indexes of the snapshot
// rows that match. Views share the snapshot's rows and never copy them;
// restricting a view allocates only a new index slice.
type View struct {
	ds  *Dataset
	idx []int
}

// Len returns the number of matched rows.
func (v *View) Len() int { return len(v.idx) }

// row returns the i-th matched row.
func (v *View) row(i int) *domain.OrderLine { return v.ds.Rows[v.idx[i]] }

// restrict returns a sub-view of the rows satisfying keep.
func (v *View) restrict(keep func(*domain.OrderLine) bool) *View {
	idx := make([]int, 0, len(v.idx))
	for _, j := range v.idx {
		if keep(v.ds.Rows[j]) {
			idx = append(idx, j)
		}
	}
	return &View{ds: v.ds, idx: idx}
}

// restrictRange returns the sub-view with OrderDate in [from, to].
func (v *View) restrictRange(from, to time.Time) *View {
	return v.restrict(func(r *domain.OrderLine) bool {
		d := calendar.Day(r.OrderDate)
		return !d.Before(from) && !d.After(to)
	})
}

// restrictDates applies the optional context endpoints.
func (v *View) restrictDates(from, to *time.Time) *View {
	if from == nil && to == nil {
		return v
	}
	return v.restrict(func(r *domain.OrderLine) bool {
		d := calendar.Day(r.OrderDate)
		if from != nil && d.Before(calendar.Day(*from)) {
			return false
		}
		if to != nil && d.After(calendar.Day(*to)) {
			return false
		}
		return true
	})
}

// restrictDimension returns the sub-view where dim equals key.
func (v *View) restrictDimension(dim, key string) *View {
	return v.restrict(func(r *domain.OrderLine) bool {
		return r.Dimension(dim) == key
	})
}

// inList reports whether s is in the slicer values. An empty slicer
// matches everything.
func inList(s string, values []string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// matchesSlicers applies the context's dimension slicers (OR within a
// field, AND across fields). Date bounds and the expression are applied
// separately.
func matchesSlicers(r *domain.OrderLine, fc domain.FilterContext) bool {
	return inList(r.Region, fc.Regions) &&
		inList(r.Category, fc.Categories) &&
		inList(r.SubCategory, fc.SubCategories) &&
		inList(r.Segment, fc.Segments) &&
		inList(r.CustomerID, fc.CustomerIDs)
}

// rowActivation exposes one fact row to the CEL predicate.
func rowActivation(r *domain.OrderLine) map[string]any {
	return map[string]any{
		"sales":        r.Sales,
		"profit":       r.Profit,
		"quantity":     int64(r.Quantity),
		"discount":     r.Discount,
		"region":       r.Region,
		"category":     r.Category,
		"sub_category": r.SubCategory,
		"segment":      r.Segment,
		"customer_id":  r.CustomerID,
		"order_id":     r.OrderID,
		"product_name": r.ProductName,
		"order_date":   r.OrderDate,
	}
}

// applyContext selects the snapshot rows matching the context's slicers
// and expression, deliberately ignoring the date bounds: time-intelligence
// measures re-window the same selection into shifted or cumulative ranges,
// so the expression is evaluated exactly once per row per query.
func applyContext(ds *Dataset, fc domain.FilterContext, prog cel.Program) (*View, error) {
	idx := make([]int, 0, len(ds.Rows))
	for i, r := range ds.Rows {
		if !matchesSlicers(r, fc) {
			continue
		}
		if prog != nil {
			out, _, err := prog.Eval(rowActivation(r))
			if err != nil {
				return nil, fmt.Errorf("evaluate expression on order %s: %w", r.OrderID, err)
			}
			matched, ok := out.Value().(bool)
			if !ok {
				return nil, fmt.Errorf("expression result is not a bool")
			}
			if !matched {
				continue
			}
		}
		idx = append(idx, i)
	}
	return &View{ds: ds, idx: idx}, nil
}
