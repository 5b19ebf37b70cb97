package metrics

import (
	"strings"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// MeasureInfo describes one catalog entry for the API surface.
type MeasureInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"` // aggregate, ratio, time
	Description string `json:"description"`
}

var catalog = []MeasureInfo{
	{domain.MeasureTotalSales, "aggregate", "Sum of Sales over the context rows."},
	{domain.MeasureTotalProfit, "aggregate", "Sum of Profit over the context rows."},
	{domain.MeasureTotalQuantity, "aggregate", "Sum of Quantity over the context rows."},
	{domain.MeasureTotalOrders, "aggregate", "Count of distinct order IDs in the context."},
	{domain.MeasureTotalCustomers, "aggregate", "Count of distinct customer IDs in the context."},
	{domain.MeasureAvgSalesPerCustomer, "ratio", "TotalSales / TotalCustomers, no value when the context has no customers."},
	{domain.MeasureAvgProfitPerCustomer, "ratio", "TotalProfit / TotalCustomers, no value when the context has no customers."},
	{domain.MeasureProfitMargin, "ratio", "TotalProfit / TotalSales, no value when TotalSales is zero."},
	{domain.MeasureAvgDiscountPct, "ratio", "Mean row discount as a percentage, no value over an empty context."},
	{domain.MeasureAvgShipDays, "ratio", "Mean order-to-ship delay in days, no value over an empty context."},
	{domain.MeasureTopProductSales, "aggregate", "Summed Sales of the best-selling product; ties break to the lexicographically smallest name."},
	{domain.MeasureCumulativeSales, "time", "Running total of Sales up to the period end within the context."},
	{domain.MeasureSalesLY, "time", "TotalSales over the same period one year earlier, no value when that period has no rows."},
	{domain.MeasureYoYSalesGrowth, "time", "(TotalSales - SalesLY) / SalesLY, no value when SalesLY is missing or zero."},
	{domain.MeasureReturningCustomersPct, "time", "Share of the period's customers also active one year earlier."},
}

// Catalog returns the measures the engine evaluates.
func Catalog() []MeasureInfo {
	out := make([]MeasureInfo, len(catalog))
	copy(out, catalog)
	return out
}

// KnownMeasure reports whether name is in the catalog.
func KnownMeasure(name string) bool {
	for _, m := range catalog {
		if m.Name == name {
			return true
		}
	}
	return false
}

// measureNames lists the catalog for error messages.
func measureNames() string {
	names := make([]string, len(catalog))
	for i, m := range catalog {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}
