package domain

import (
	"errors"
	"fmt"
	"time"
)

// DefaultDataset is the dataset requests fall back to when no
// X-Dataset-ID header or flag is given.
const DefaultDataset = "superstore"

// OrderLine represents one immutable order-line fact row.
type OrderLine struct {
	// Core identifiers. LineID is the storage key; the repository
	// assigns one when it is empty, since source files carry none.
	LineID     string `json:"lineId,omitempty"`
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`

	// Product attributes
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`

	// Customer attributes
	Region  string `json:"region"`
	Segment string `json:"segment"`

	// Temporal
	OrderDate time.Time `json:"orderDate"`
	ShipDate  time.Time `json:"shipDate"`

	// Financial details
	Sales    float64 `json:"sales"`
	Profit   float64 `json:"profit"`
	Quantity int     `json:"quantity"`
	Discount float64 `json:"discount"`
}

// ErrInvariantViolation marks rows that break a fact-table invariant.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantError reports the first violated invariant on a fact row.
type InvariantError struct {
	OrderID string
	Field   string
	Reason  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("order %q: %s %s", e.OrderID, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvariantViolation.
func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// Validate checks the fact-table invariants: identifiers and dates set,
// ShipDate >= OrderDate, Sales >= 0, Quantity > 0, Discount in [0,1].
func (o *OrderLine) Validate() error {
	switch {
	case o.OrderID == "":
		return &InvariantError{Field: "orderId", Reason: "must not be empty"}
	case o.CustomerID == "":
		return &InvariantError{OrderID: o.OrderID, Field: "customerId", Reason: "must not be empty"}
	case o.ProductName == "":
		return &InvariantError{OrderID: o.OrderID, Field: "productName", Reason: "must not be empty"}
	case o.OrderDate.IsZero():
		return &InvariantError{OrderID: o.OrderID, Field: "orderDate", Reason: "must be set"}
	case o.ShipDate.IsZero():
		return &InvariantError{OrderID: o.OrderID, Field: "shipDate", Reason: "must be set"}
	case o.ShipDate.Before(o.OrderDate):
		return &InvariantError{OrderID: o.OrderID, Field: "shipDate", Reason: "must not precede orderDate"}
	case o.Sales < 0:
		return &InvariantError{OrderID: o.OrderID, Field: "sales", Reason: "must not be negative"}
	case o.Quantity <= 0:
		return &InvariantError{OrderID: o.OrderID, Field: "quantity", Reason: "must be positive"}
	case o.Discount < 0 || o.Discount > 1:
		return &InvariantError{OrderID: o.OrderID, Field: "discount", Reason: "must be within [0,1]"}
	}
	return nil
}

// ShipDays returns the shipping delay in days.
func (o *OrderLine) ShipDays() float64 {
	return o.ShipDate.Sub(o.OrderDate).Hours() / 24
}

// Dimension returns the value of the named fact dimension, used as a
// grouping key. Unknown dimensions return an empty string.
func (o *OrderLine) Dimension(dim string) string {
	switch dim {
	case DimRegion:
		return o.Region
	case DimCategory:
		return o.Category
	case DimSubCategory:
		return o.SubCategory
	case DimSegment:
		return o.Segment
	case DimProductName:
		return o.ProductName
	case DimCustomerID:
		return o.CustomerID
	}
	return ""
}
