package core

import (
	"math"
	"time"
)

type (
	// RollupQuery is the resolved form of an aggregation request: the
	// effective display interval, the reference date (zero time means no
	// temporal filter) and the two view classifications.
	//
	// AllTime is the explicit all-time view of a periodic project.
	// NoDetails additionally covers viewing a project through an interval
	// finer than its native one: a plan defined per month cannot be
	// subdivided into single days, so only raw usage is exposed.
	RollupQuery struct {
		Interval  Interval
		Date      time.Time
		AllTime   bool
		NoDetails bool
	}

	// Record is the rollup of one category. SelfUsed and Used are always
	// present; Details is nil in all-time and no-details views; Availability
	// is set only on the root of a project with an overall budget; Goal is
	// set on every record when and only when the project is in goal mode,
	// Limit when and only when it is in limit mode with details computed.
	Record struct {
		SelfUsed            int64
		SelfUsedNotExpected int64
		SelfExpected        int64
		SelfUnexpected      int64
		SelfExpectedNotUsed int64
		Used                int64
		HasChildren         bool

		Details      *Details
		Availability *Availability
		Goal         *GoalStatus
		Limit        *LimitStatus
	}

	// Details carries the planned/unplanned breakdown of a category subtree.
	// All four fields are clamped non-negative.
	Details struct {
		UsedNotExpected int64
		Expected        int64
		Unexpected      int64
		ExpectedNotUsed int64
	}

	// Availability is the project-wide budget position, carried by the root
	// record. Available and ReallyAvailable are signed: overspending is a
	// legitimate negative state. TotalUnexpected is the part of the budget
	// left for unplanned usage once every planned allocation is honored.
	Availability struct {
		Available       int64
		ReallyAvailable int64
		TotalUnexpected int64
	}

	// GoalStatus reports progress against a planned value that is a target
	// to reach. Planned, MaxValue and Diff are meaningful only when HasPlan
	// is true.
	GoalStatus struct {
		HasPlan  bool
		Planned  int64
		MaxValue int64
		Diff     int64
		Reached  bool
	}

	// LimitStatus reports whether a planned value acting as a ceiling was
	// crossed.
	LimitStatus struct {
		Exceeded bool
	}
)

// NewRollupQuery resolves a caller's reference date and display interval
// against the project configuration. An empty display interval defaults to
// the project's own; a project without periodicity and no requested interval
// is an all-time query with no classification flags.
func NewRollupQuery(p Project, date time.Time, display Interval) RollupQuery {
	effective := display
	if effective == "" {
		if p.HasInterval() {
			effective = p.Interval
		} else {
			effective = IntervalNone
		}
	}

	q := RollupQuery{Interval: effective}
	if !date.IsZero() {
		q.Date = DateOf(date)
	}
	q.AllTime = p.HasInterval() && effective == IntervalNone
	q.NoDetails = q.AllTime || (p.HasInterval() && effective.Less(p.Interval))
	return q
}

// SumRange returns the range direct sums must be filtered to, or nil when
// the query carries no temporal filter.
func (q RollupQuery) SumRange() *DateRange {
	if q.Date.IsZero() || q.AllTime {
		return nil
	}
	r := PeriodRange(q.Date, q.Interval)
	if r.Unbounded() {
		return nil
	}
	return &r
}

// Rollup walks the tree depth-first, children before parents, and produces
// one Record per category id. sums holds each category's direct sum over the
// query range; ids absent from it count as zero. The input tree, project and
// sums are never mutated.
//
// Planned quantities are scaled from the project's native interval to the
// query interval before the walk, rounded half-up, once per category.
func Rollup(p Project, tree *CategoryTree, sums map[int64]int64, q RollupQuery) map[int64]Record {
	scaledExpected, scaledBudget := scalePlans(p, tree, q)

	result := make(map[int64]Record, tree.Len())

	var walk func(id int64)
	walk = func(id int64) {
		children := tree.Children(id)
		for _, child := range children {
			walk(child.ID)
		}

		rec := Record{SelfUsed: sums[id], HasChildren: len(children) > 0}
		expected := scaledExpected[id]
		if expected != 0 {
			rec.SelfExpected = expected
			rec.SelfUnexpected = max64(0, rec.SelfUsed-expected)
			rec.SelfExpectedNotUsed = rec.SelfExpected - rec.SelfUsed + rec.SelfUnexpected
		} else {
			rec.SelfUsedNotExpected = rec.SelfUsed
		}

		rec.Used = rec.SelfUsed
		for _, child := range children {
			rec.Used += result[child.ID].Used
		}

		if !q.AllTime && !q.NoDetails {
			d := Details{
				UsedNotExpected: rec.SelfUsedNotExpected,
				Expected:        rec.SelfExpected,
				Unexpected:      rec.SelfUnexpected,
				ExpectedNotUsed: rec.SelfExpectedNotUsed,
			}
			if expected != 0 {
				// A planned category absorbs its whole subtree into its own
				// plan: children's figures don't accumulate into its
				// unplanned buckets, the overflow is recomputed against the
				// rolled-up usage.
				d.Unexpected = max64(0, rec.Used-expected)
				d.ExpectedNotUsed = d.Expected - rec.Used + d.Unexpected
			} else {
				for _, child := range children {
					cd := result[child.ID].Details
					d.UsedNotExpected += cd.UsedNotExpected
					d.Expected += cd.Expected
					d.Unexpected += cd.Unexpected
					d.ExpectedNotUsed += cd.ExpectedNotUsed
				}
			}
			rec.Details = &d

			if id == tree.RootID() && p.HasIntervalQuantity() {
				really := scaledBudget - (d.UsedNotExpected + d.Unexpected + d.Expected)
				rec.Availability = &Availability{
					Available:       scaledBudget - rec.Used,
					ReallyAvailable: really,
					TotalUnexpected: really + d.UsedNotExpected + d.Unexpected,
				}
			}
		}

		if p.GoalMode {
			rec.Goal = goalStatus(&rec, id == tree.RootID(), scaledBudget)
		} else if rec.Details != nil {
			rec.Limit = limitStatus(&rec, expected)
		}

		result[id] = rec
	}
	walk(tree.RootID())

	return result
}

// scalePlans converts the per-category plans and the overall budget from the
// project's native interval to the query interval. Zero and unset plans stay
// unset; without a native interval no scaling applies.
func scalePlans(p Project, tree *CategoryTree, q RollupQuery) (map[int64]int64, int64) {
	factor := 1.0
	if p.HasInterval() {
		factor = p.Interval.ConversionFactor(q.Interval, q.Date)
	}

	expected := make(map[int64]int64, tree.Len())
	for _, c := range tree.Categories() {
		if c.ExpectedQuantity != nil && *c.ExpectedQuantity != 0 {
			expected[c.ID] = roundHalfUp(float64(*c.ExpectedQuantity) * factor)
		}
	}

	var budget int64
	if p.HasIntervalQuantity() && *p.IntervalQuantity != 0 {
		budget = roundHalfUp(float64(*p.IntervalQuantity) * factor)
	}
	return expected, budget
}

// goalStatus reports progress against the planned value: the scaled overall
// budget at the root, the category's rolled-up plan below it. Without a
// non-zero plan only Reached=false is meaningful.
func goalStatus(rec *Record, isRoot bool, scaledBudget int64) *GoalStatus {
	var planned int64
	if isRoot {
		planned = scaledBudget
	} else if rec.Details != nil {
		planned = rec.Details.Expected
	}
	if planned == 0 || rec.Details == nil {
		return &GoalStatus{}
	}
	return &GoalStatus{
		HasPlan:  true,
		Planned:  planned,
		MaxValue: max64(planned, rec.Used),
		Diff:     abs64(rec.Used - planned),
		Reached:  rec.Used >= planned,
	}
}

// limitStatus flags ceiling breaches. The root compares unplanned consumption
// against the unplanned budget; any other planned category is exceeded as
// soon as its subtree overshoots its own plan, even if the project-level
// budget still has room.
func limitStatus(rec *Record, scaledExpected int64) *LimitStatus {
	if rec.Availability != nil {
		if tu := rec.Availability.TotalUnexpected; tu != 0 {
			return &LimitStatus{
				Exceeded: rec.Details.UsedNotExpected+rec.Details.Unexpected > tu,
			}
		}
		return &LimitStatus{}
	}
	return &LimitStatus{Exceeded: scaledExpected != 0 && rec.Details.Unexpected > 0}
}

func roundHalfUp(v float64) int64 {
	return int64(math.Round(v))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
