package domain

import "time"

// CustomerProfile is the derived RFM profile for one customer. All fields
// are computed over the customer's full order history, independent of any
// active filter context. Profiles are derived on demand, never stored.
type CustomerProfile struct {
	CustomerID     string    `json:"customerId"`
	Frequency      int       `json:"frequency"`
	FrequencyBand  string    `json:"frequencyBand"`
	Recency        int       `json:"recency"` // days since last order
	RecencyBand    string    `json:"recencyBand"`
	Monetary       float64   `json:"monetary"` // lifetime sales
	FirstOrderDate time.Time `json:"firstOrderDate"`
	LastOrderDate  time.Time `json:"lastOrderDate"`
}

// Band maps a value range to a label. Bands are ordered by ascending
// upper limit; a value belongs to the first band whose UpperLimit is nil
// or >= the value. The final band of a list should leave UpperLimit nil
// so the list partitions the whole domain.
type Band struct {
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Label      string   `json:"label"`
}

func bandLimit(f float64) *float64 { return &f }

// FrequencyBands segments customers by lifetime order-line count.
var FrequencyBands = []Band{
	{UpperLimit: bandLimit(2), Label: "Low (1-2)"},
	{UpperLimit: bandLimit(5), Label: "Medium (3-5)"},
	{Label: "High (6+)"},
}

// RecencyBands segments customers by days since their last order.
var RecencyBands = []Band{
	{UpperLimit: bandLimit(30), Label: "Hot (0-30)"},
	{UpperLimit: bandLimit(90), Label: "Warm (31-90)"},
	{Label: "Cold (90+)"},
}

// SegmentCount is one cell of the RFM band distribution table.
type SegmentCount struct {
	FrequencyBand string `json:"frequencyBand"`
	RecencyBand   string `json:"recencyBand"`
	Customers     int    `json:"customers"`
}
