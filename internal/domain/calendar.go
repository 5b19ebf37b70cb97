package domain

import "time"

// CalendarDay is one row of the derived date dimension. Dates are
// normalized to midnight UTC; MonthName is the English full month name.
type CalendarDay struct {
	Date        time.Time `json:"date"`
	Year        int       `json:"year"`
	MonthNumber int       `json:"monthNumber"`
	MonthName   string    `json:"monthName"`
	Quarter     int       `json:"quarter"`
}

// Grain is the calendar granularity for grouped time-intelligence
// evaluation.
type Grain string

const (
	GrainDay     Grain = "day"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
)

// ValidGrain reports whether g names a supported calendar grain.
func ValidGrain(g Grain) bool {
	switch g {
	case GrainDay, GrainMonth, GrainQuarter, GrainYear:
		return true
	}
	return false
}
