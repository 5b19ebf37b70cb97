// Package calendar derives the date dimension spanning the fact table's
// order-date range and provides the period arithmetic used by
// time-intelligence measures.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

// ErrInvalidRange is returned when the requested range ends before it
// starts.
var ErrInvalidRange = errors.New("invalid date range")

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// QuarterOf returns the calendar quarter (1-4) containing t.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// Build returns one CalendarDay per date in [min, max], both endpoints
// inclusive, contiguous with no gaps. Inputs are truncated to midnight
// UTC before expansion.
func Build(min, max time.Time) ([]domain.CalendarDay, error) {
	lo, hi := Day(min), Day(max)
	if hi.Before(lo) {
		return nil, fmt.Errorf("%w: max %s precedes min %s",
			ErrInvalidRange, hi.Format("2006-01-02"), lo.Format("2006-01-02"))
	}

	days := make([]domain.CalendarDay, 0, int(hi.Sub(lo).Hours()/24)+1)
	for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
		days = append(days, domain.CalendarDay{
			Date:        d,
			Year:        d.Year(),
			MonthNumber: int(d.Month()),
			MonthName:   d.Month().String(),
			Quarter:     QuarterOf(d),
		})
	}
	return days, nil
}

// ShiftYearBack returns the same month/day exactly one calendar year
// earlier, truncated to midnight UTC. Feb 29 clamps to Feb 28.
func ShiftYearBack(t time.Time) time.Time {
	if t.Month() == time.February && t.Day() == 29 {
		return time.Date(t.Year()-1, time.February, 28, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year()-1, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodKey returns the sortable label of the period containing t at the
// given grain: "2023-04-07", "2023-04", "2023-Q2", "2023".
func PeriodKey(t time.Time, g domain.Grain) string {
	switch g {
	case domain.GrainMonth:
		return t.Format("2006-01")
	case domain.GrainQuarter:
		return fmt.Sprintf("%d-Q%d", t.Year(), QuarterOf(t))
	case domain.GrainYear:
		return fmt.Sprintf("%d", t.Year())
	}
	return t.Format("2006-01-02")
}

// PeriodBounds returns the inclusive [start, end] dates of the period
// containing t at the given grain.
func PeriodBounds(t time.Time, g domain.Grain) (time.Time, time.Time) {
	d := Day(t)
	switch g {
	case domain.GrainMonth:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case domain.GrainQuarter:
		first := time.Month((QuarterOf(d)-1)*3 + 1)
		start := time.Date(d.Year(), first, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, -1)
	case domain.GrainYear:
		start := time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, -1)
	}
	return d, d
}
