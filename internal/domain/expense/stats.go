package expense

import (
	"time"

	"github.com/spendly/spendly/internal/domain/money"
)

type CategoryStat struct {
	Category      Category    `json:"category"`
	TotalAmount   money.Cents `json:"totalAmount"`
	Count         int         `json:"count"`
	AverageAmount float64     `json:"averageAmount"`
}

type MonthStat struct {
	Year        int         `json:"year"`
	Month       int         `json:"month"`
	TotalAmount money.Cents `json:"totalAmount"`
	Count       int         `json:"count"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Stats struct {
	CategoryStats []CategoryStat `json:"categoryStats"`
	MonthlyStats  []MonthStat    `json:"monthlyStats"`
	DateRange     DateRange      `json:"dateRange"`
}

// StatsRange resolves the requested period: a specific month, a whole year,
// or the current calendar year when neither is given. The range is inclusive
// of the last day, applied uniformly in UTC.
func StatsRange(year, month int, now time.Time) DateRange {
	if year == 0 {
		year = now.UTC().Year()
		month = 0
	}

	var start, end time.Time

	if month >= 1 && month <= 12 {
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0).Add(-time.Second)
	} else {
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	}

	return DateRange{Start: start, End: end}
}

// MultiMonth reports whether the range spans more than one calendar month;
// the month breakdown is only emitted for such ranges.
func (r DateRange) MultiMonth() bool {
	return r.Start.Year() != r.End.Year() || r.Start.Month() != r.End.Month()
}
