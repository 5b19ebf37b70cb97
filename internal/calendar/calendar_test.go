package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuild(t *testing.T) {
	t.Run("ThreeDayRange", func(t *testing.T) {
		days, err := Build(date(2023, 1, 1), date(2023, 1, 3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(days) != 3 {
			t.Fatalf("expected 3 days, got %d", len(days))
		}
		for i, d := range days {
			want := date(2023, 1, 1).AddDate(0, 0, i)
			if !d.Date.Equal(want) {
				t.Errorf("day %d: expected %s, got %s", i, want, d.Date)
			}
			if d.Quarter != 1 {
				t.Errorf("day %d: expected quarter 1, got %d", i, d.Quarter)
			}
			if d.Year != 2023 || d.MonthNumber != 1 || d.MonthName != "January" {
				t.Errorf("day %d: wrong attributes: %+v", i, d)
			}
		}
	})

	t.Run("SingleDay", func(t *testing.T) {
		days, err := Build(date(2023, 7, 15), date(2023, 7, 15))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(days) != 1 {
			t.Fatalf("expected 1 day, got %d", len(days))
		}
		if days[0].Quarter != 3 {
			t.Errorf("expected quarter 3, got %d", days[0].Quarter)
		}
	})

	t.Run("ContiguousAcrossLeapYear", func(t *testing.T) {
		days, err := Build(date(2024, 2, 27), date(2024, 3, 2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(days) != 5 {
			t.Fatalf("expected 5 days including Feb 29, got %d", len(days))
		}
		for i := 1; i < len(days); i++ {
			if got := days[i].Date.Sub(days[i-1].Date); got != 24*time.Hour {
				t.Errorf("gap between %s and %s: %v",
					days[i-1].Date, days[i].Date, got)
			}
		}
		if days[2].Date.Day() != 29 {
			t.Errorf("expected Feb 29 at index 2, got %s", days[2].Date)
		}
	})

	t.Run("InvalidRange", func(t *testing.T) {
		_, err := Build(date(2023, 5, 2), date(2023, 5, 1))
		if err == nil {
			t.Fatal("expected error for max < min")
		}
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("TruncatesTimeOfDay", func(t *testing.T) {
		days, err := Build(
			time.Date(2023, 1, 1, 13, 45, 0, 0, time.UTC),
			time.Date(2023, 1, 2, 3, 10, 0, 0, time.UTC),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(days) != 2 {
			t.Fatalf("expected 2 days, got %d", len(days))
		}
		if h := days[0].Date.Hour(); h != 0 {
			t.Errorf("expected midnight, got hour %d", h)
		}
	})
}

func TestQuarterOf(t *testing.T) {
	cases := []struct {
		month time.Month
		want  int
	}{
		{time.January, 1}, {time.March, 1},
		{time.April, 2}, {time.June, 2},
		{time.July, 3}, {time.September, 3},
		{time.October, 4}, {time.December, 4},
	}
	for _, c := range cases {
		if got := QuarterOf(date(2023, c.month, 10)); got != c.want {
			t.Errorf("QuarterOf(%s) = %d, want %d", c.month, got, c.want)
		}
	}
}

func TestShiftYearBack(t *testing.T) {
	t.Run("PlainDate", func(t *testing.T) {
		got := ShiftYearBack(date(2024, 3, 15))
		if !got.Equal(date(2023, 3, 15)) {
			t.Errorf("expected 2023-03-15, got %s", got)
		}
	})

	t.Run("LeapDayClamps", func(t *testing.T) {
		got := ShiftYearBack(date(2024, 2, 29))
		if !got.Equal(date(2023, 2, 28)) {
			t.Errorf("expected 2023-02-28, got %s", got)
		}
	})
}

func TestPeriodKey(t *testing.T) {
	d := date(2023, 4, 7)
	cases := []struct {
		grain domain.Grain
		want  string
	}{
		{domain.GrainDay, "2023-04-07"},
		{domain.GrainMonth, "2023-04"},
		{domain.GrainQuarter, "2023-Q2"},
		{domain.GrainYear, "2023"},
	}
	for _, c := range cases {
		if got := PeriodKey(d, c.grain); got != c.want {
			t.Errorf("PeriodKey(%s) = %q, want %q", c.grain, got, c.want)
		}
	}
}

func TestPeriodBounds(t *testing.T) {
	d := date(2023, 5, 17)

	t.Run("Day", func(t *testing.T) {
		start, end := PeriodBounds(d, domain.GrainDay)
		if !start.Equal(d) || !end.Equal(d) {
			t.Errorf("expected [%s, %s], got [%s, %s]", d, d, start, end)
		}
	})

	t.Run("Month", func(t *testing.T) {
		start, end := PeriodBounds(d, domain.GrainMonth)
		if !start.Equal(date(2023, 5, 1)) || !end.Equal(date(2023, 5, 31)) {
			t.Errorf("got [%s, %s]", start, end)
		}
	})

	t.Run("Quarter", func(t *testing.T) {
		start, end := PeriodBounds(d, domain.GrainQuarter)
		if !start.Equal(date(2023, 4, 1)) || !end.Equal(date(2023, 6, 30)) {
			t.Errorf("got [%s, %s]", start, end)
		}
	})

	t.Run("Year", func(t *testing.T) {
		start, end := PeriodBounds(d, domain.GrainYear)
		if !start.Equal(date(2023, 1, 1)) || !end.Equal(date(2023, 12, 31)) {
			t.Errorf("got [%s, %s]", start, end)
		}
	})

	t.Run("LeapFebruary", func(t *testing.T) {
		start, end := PeriodBounds(date(2024, 2, 10), domain.GrainMonth)
		if !start.Equal(date(2024, 2, 1)) || !end.Equal(date(2024, 2, 29)) {
			t.Errorf("got [%s, %s]", start, end)
		}
	})
}
