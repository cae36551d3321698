package core

import (
	"fmt"
	"time"
)

const (
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"

	// IntervalNone marks a project (or a query) with no periodicity: sums are
	// taken over all recorded quantities and plans are never scaled.
	IntervalNone Interval = "none"
)

// Interval is the granularity a budget resets over.
type Interval string

// ordinals defines the total order daily < weekly < monthly < yearly.
// IntervalNone has no position: it is not a granularity.
var ordinals = map[Interval]int{
	Daily:   0,
	Weekly:  1,
	Monthly: 2,
	Yearly:  3,
}

// ParseInterval validates a user-supplied interval string.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Daily, Weekly, Monthly, Yearly, IntervalNone:
		return Interval(s), nil
	}
	return "", fmt.Errorf("invalid interval %q", s)
}

func (i Interval) String() string {
	return string(i)
}

// UnitName returns the display name of one period ("day", "week", ...).
func (i Interval) UnitName() string {
	switch i {
	case Daily:
		return "day"
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	case Yearly:
		return "year"
	case IntervalNone:
		return "all time"
	}
	return "none"
}

// Less reports whether i is a finer granularity than other.
// IntervalNone is excluded from the ordering; comparisons involving it
// always report false.
func (i Interval) Less(other Interval) bool {
	a, aok := ordinals[i]
	b, bok := ordinals[other]
	return aok && bok && a < b
}

// ConversionFactor returns how many i periods fit in one to period for the
// given reference date, e.g. Daily.ConversionFactor(Monthly, d) is the number
// of days in d's month. The ratio is exact for day/month/year combinations and
// approximate for weekly ones. It is 0 when either side is IntervalNone: with
// no periodicity there is no valid ratio.
func (i Interval) ConversionFactor(to Interval, date time.Time) float64 {
	if i == IntervalNone || to == IntervalNone {
		return 0
	}
	if i == to {
		return 1
	}
	if ordinals[i] > ordinals[to] {
		return 1 / to.ConversionFactor(i, date)
	}
	// From here i is strictly finer than to.
	switch i {
	case Daily:
		switch to {
		case Weekly:
			return 7
		case Monthly:
			return float64(daysInMonth(date))
		default: // Yearly
			return float64(daysInYear(date))
		}
	case Weekly:
		return Daily.ConversionFactor(to, date) / 7
	default: // Monthly, to == Yearly
		return 12
	}
}

func daysInMonth(date time.Time) int {
	return time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysInYear(date time.Time) int {
	if isLeap(date.Year()) {
		return 366
	}
	return 365
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
