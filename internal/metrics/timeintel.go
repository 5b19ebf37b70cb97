package metrics

import (
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/calendar"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// Time-intelligence measures. Each takes the context's date-free view
// (slicers and expression applied, date bounds not) plus the evaluation
// period, and re-windows the selection as needed: cumulative totals widen
// the window backwards, LY measures shift it one calendar year.

// periodOf resolves the evaluation period for scalar time intelligence:
// the context's date range where set, the dataset's full range otherwise.
func periodOf(fc domain.FilterContext, ds *Dataset) (time.Time, time.Time) {
	from, to := ds.MinOrderDate, ds.MaxOrderDate
	if fc.DateFrom != nil {
		from = calendar.Day(*fc.DateFrom)
	}
	if fc.DateTo != nil {
		to = calendar.Day(*fc.DateTo)
	}
	return from, to
}

// cumulativeSales is the running total of Sales up to and including the
// period end. The context's lower date bound still applies; the upper
// bound is replaced by the period end.
func cumulativeSales(noDate *View, fc domain.FilterContext, periodEnd time.Time) float64 {
	v := noDate
	if fc.DateFrom != nil {
		from := calendar.Day(*fc.DateFrom)
		v = v.restrict(func(r *domain.OrderLine) bool {
			return !calendar.Day(r.OrderDate).Before(from)
		})
	}
	end := calendar.Day(periodEnd)
	v = v.restrict(func(r *domain.OrderLine) bool {
		return !calendar.Day(r.OrderDate).After(end)
	})
	return sumSales(v)
}

// salesLY is TotalSales over the same period shifted back one calendar
// year. Undefined when the shifted period holds no rows, which keeps
// growth ratios out of fake zero baselines.
func salesLY(noDate *View, from, to time.Time) domain.Value {
	ly := noDate.restrictRange(calendar.ShiftYearBack(from), calendar.ShiftYearBack(to))
	if ly.Len() == 0 {
		return domain.NoValue()
	}
	return domain.Number(sumSales(ly))
}

// yoySalesGrowth is (TotalSales - SalesLY) / SalesLY under the safe-divide
// policy: undefined whenever SalesLY is undefined or zero.
func yoySalesGrowth(current float64, noDate *View, from, to time.Time) domain.Value {
	ly := salesLY(noDate, from, to)
	if !ly.Valid || ly.Float == 0 {
		return domain.NoValue()
	}
	return domain.Number((current - ly.Float) / ly.Float)
}

// returningCustomersPct is the share of the period's active customers who
// were also active in the same period one year earlier. Undefined when the
// period has no active customers.
func returningCustomersPct(noDate *View, from, to time.Time) domain.Value {
	current := customerSet(noDate.restrictRange(from, to))
	if len(current) == 0 {
		return domain.NoValue()
	}
	prior := customerSet(noDate.restrictRange(
		calendar.ShiftYearBack(from), calendar.ShiftYearBack(to)))

	returning := 0
	for id := range current {
		if _, ok := prior[id]; ok {
			returning++
		}
	}
	return domain.SafeDiv(float64(returning), float64(len(current)))
}

func customerSet(v *View) map[string]struct{} {
	set := make(map[string]struct{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		set[v.row(i).CustomerID] = struct{}{}
	}
	return set
}
