package core

import (
	"fmt"
	"time"
)

// Bounds of the unbounded period returned for IntervalNone. Callers treat a
// range covering them as "no date filtering".
var (
	minPeriodDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxPeriodDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// DateRange is an inclusive range of days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Unbounded reports whether the range covers all representable dates,
// i.e. no filtering should be applied.
func (r DateRange) Unbounded() bool {
	return !r.Start.After(minPeriodDate) && !r.End.Before(maxPeriodDate)
}

// Contains reports whether date falls inside the range, both ends included.
func (r DateRange) Contains(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(r.Start) && !d.After(r.End)
}

// DateOf truncates a time to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodRange returns the period of the given interval containing date:
// the single day for Daily, Monday through Sunday for Weekly, first through
// last day of the month or year otherwise. For IntervalNone the range is
// unbounded.
func PeriodRange(date time.Time, interval Interval) DateRange {
	day := DateOf(date)
	switch interval {
	case Daily:
		return DateRange{Start: day, End: day}
	case Weekly:
		start := day.AddDate(0, 0, -mondayOffset(day))
		return DateRange{Start: start, End: start.AddDate(0, 0, 6)}
	case Monthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{Start: start, End: start.AddDate(0, 1, -1)}
	case Yearly:
		return DateRange{
			Start: time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(day.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
		}
	}
	return DateRange{Start: minPeriodDate, End: maxPeriodDate}
}

// AdjacentPeriods steps the reference date one interval backward and forward.
// IntervalNone steps by one day so period navigation keeps working on
// projects without periodicity.
func AdjacentPeriods(date time.Time, interval Interval) (prev, next time.Time) {
	day := DateOf(date)
	switch interval {
	case Weekly:
		return day.AddDate(0, 0, -7), day.AddDate(0, 0, 7)
	case Monthly:
		return addMonthsClamped(day, -1), addMonthsClamped(day, 1)
	case Yearly:
		return addMonthsClamped(day, -12), addMonthsClamped(day, 12)
	}
	return day.AddDate(0, 0, -1), day.AddDate(0, 0, 1)
}

// PeriodLabel returns a human label for the period containing date.
func PeriodLabel(date time.Time, interval Interval) string {
	day := DateOf(date)
	switch interval {
	case Daily:
		return day.Format("02 January 2006")
	case Weekly:
		r := PeriodRange(day, Weekly)
		year, week := day.ISOWeek()
		label := fmt.Sprintf("Week %d of %d", week, year)
		switch {
		case r.Start.Month() == r.End.Month():
			return fmt.Sprintf("%s (%d to %d %s)", label, r.Start.Day(), r.End.Day(), r.End.Format("January"))
		case r.Start.Year() == r.End.Year():
			return fmt.Sprintf("%s (%d %s to %d %s)", label,
				r.Start.Day(), r.Start.Format("January"), r.End.Day(), r.End.Format("January"))
		default:
			return fmt.Sprintf("%s (%d %s to %d %s)", label,
				r.Start.Day(), r.Start.Format("January"), r.End.Day(), r.End.Format("January 2006"))
		}
	case Monthly:
		return day.Format("January 2006")
	case Yearly:
		return day.Format("Year 2006")
	}
	return "All time"
}

// mondayOffset returns how many days date is past the Monday of its week.
func mondayOffset(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// addMonthsClamped steps by whole months, clamping the day to the end of the
// target month (31 January minus one month is 31 December; plus one month is
// 28 or 29 February, not 2 March).
func addMonthsClamped(date time.Time, months int) time.Time {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := date.Day()
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
