package metrics

import "github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"

// Core aggregate measures. Each is a pure pass over a view; ratios follow
// the safe-divide policy and return the sentinel on zero denominators.

func sumSales(v *View) float64 {
	var total float64
	for i := 0; i < v.Len(); i++ {
		total += v.row(i).Sales
	}
	return total
}

func sumProfit(v *View) float64 {
	var total float64
	for i := 0; i < v.Len(); i++ {
		total += v.row(i).Profit
	}
	return total
}

func sumQuantity(v *View) int {
	var total int
	for i := 0; i < v.Len(); i++ {
		total += v.row(i).Quantity
	}
	return total
}

// distinctOrders counts distinct OrderID values; one order usually spans
// several fact rows.
func distinctOrders(v *View) int {
	seen := make(map[string]struct{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		seen[v.row(i).OrderID] = struct{}{}
	}
	return len(seen)
}

func distinctCustomers(v *View) int {
	seen := make(map[string]struct{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		seen[v.row(i).CustomerID] = struct{}{}
	}
	return len(seen)
}

// avgDiscountPct is the mean row discount expressed as a percentage.
// Undefined over an empty view.
func avgDiscountPct(v *View) domain.Value {
	if v.Len() == 0 {
		return domain.NoValue()
	}
	var total float64
	for i := 0; i < v.Len(); i++ {
		total += v.row(i).Discount
	}
	return domain.Number(total / float64(v.Len()) * 100)
}

// avgShipDays is the mean order-to-ship delay in days. Undefined over an
// empty view.
func avgShipDays(v *View) domain.Value {
	if v.Len() == 0 {
		return domain.NoValue()
	}
	var total float64
	for i := 0; i < v.Len(); i++ {
		total += v.row(i).ShipDays()
	}
	return domain.Number(total / float64(v.Len()))
}

// topProductSales returns the summed sales of the single best-selling
// product in the view. Ties break to the lexicographically smallest
// product name so the result is deterministic. Undefined over an empty
// view.
func topProductSales(v *View) domain.Value {
	if v.Len() == 0 {
		return domain.NoValue()
	}
	sums := make(map[string]float64)
	for i := 0; i < v.Len(); i++ {
		r := v.row(i)
		sums[r.ProductName] += r.Sales
	}

	var bestName string
	var bestSum float64
	first := true
	for name, sum := range sums {
		if first || sum > bestSum || (sum == bestSum && name < bestName) {
			bestName, bestSum = name, sum
			first = false
		}
	}
	return domain.Number(bestSum)
}
