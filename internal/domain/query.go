package domain

// Measure names understood by the engine.
const (
	MeasureTotalSales            = "TotalSales"
	MeasureTotalProfit           = "TotalProfit"
	MeasureTotalQuantity         = "TotalQuantity"
	MeasureTotalOrders           = "TotalOrders"
	MeasureTotalCustomers        = "TotalCustomers"
	MeasureAvgSalesPerCustomer   = "AvgSalesPerCustomer"
	MeasureAvgProfitPerCustomer  = "AvgProfitPerCustomer"
	MeasureAvgDiscountPct        = "AvgDiscountPct"
	MeasureProfitMargin          = "ProfitMargin"
	MeasureAvgShipDays           = "AvgShipDays"
	MeasureTopProductSales       = "TopProductSales"
	MeasureCumulativeSales       = "CumulativeSales"
	MeasureSalesLY               = "SalesLY"
	MeasureYoYSalesGrowth        = "YoYSalesGrowth"
	MeasureReturningCustomersPct = "ReturningCustomersPct"
)

// Fact dimensions usable as GroupBy keys.
const (
	DimRegion      = "region"
	DimCategory    = "category"
	DimSubCategory = "sub_category"
	DimSegment     = "segment"
	DimProductName = "product_name"
	DimCustomerID  = "customer_id"
)

// Query asks the engine to evaluate measures under a filter context.
type Query struct {
	DatasetID string   `json:"datasetId,omitempty"`
	Measures  []string `json:"measures"`

	Context FilterContext `json:"context"`

	// GroupBy names a fact dimension to group by; empty means scalar
	// evaluation. Grain groups by calendar period instead. GroupBy and
	// Grain are mutually exclusive.
	GroupBy string `json:"groupBy,omitempty"`
	Grain   Grain  `json:"grain,omitempty"`

	// Limit caps the number of returned groups (0 = no cap).
	Limit int `json:"limit,omitempty"`
}

// Report is the engine's answer to a Query.
type Report struct {
	DatasetID string           `json:"datasetId"`
	Scalars   map[string]Value `json:"scalars,omitempty"`
	Groups    []GroupResult    `json:"groups,omitempty"`
	Metadata  ReportMetadata   `json:"metadata"`
}

// GroupResult holds the measure values for one group key.
type GroupResult struct {
	Key      string           `json:"key"`
	Rows     int              `json:"rows"`
	Measures map[string]Value `json:"measures"`
}

// ReportMetadata contains processing information.
type ReportMetadata struct {
	TraceID         string `json:"traceId,omitempty"`
	SnapshotVersion int64  `json:"snapshotVersion"`
	RowsScanned     int    `json:"rowsScanned"`
	RowsMatched     int    `json:"rowsMatched"`
	GroupCount      int    `json:"groupCount,omitempty"`
	EvalMs          int64  `json:"evalMs"`
	CacheHit        bool   `json:"cacheHit,omitempty"`
	EngineVersion   string `json:"engineVersion"`
}
