/*
schedule.go - Tenure buckets and grant-date arithmetic

Pure calendar functions: no storage, no clocks. Everything the generator
and the balance summary need to answer "when are grants due, and how long
has this employee served at each of them".
*/
package leave

import (
	"math"
	"time"
)

// TenureYears returns the employee's length of service at asOf, floored to
// the nearest half year. 42 complete months -> 3.5. The half-year bucket is
// the key the grant tables are indexed on.
func TenureYears(joinDate, asOf Date) float64 {
	months := MonthsBetween(joinDate, asOf)
	if months < 0 {
		return 0
	}
	return math.Floor(float64(months)/6) / 2
}

// GrantAnchor is one scheduled grant date with the tenure bucket reached
// at that date.
type GrantAnchor struct {
	GrantDate   Date
	TenureYears float64
}

// GrantAnchors enumerates every grant date from the schedule's first
// occurrence through until, inclusive. Returns nil when the policy defines
// no usable cycle.
func GrantAnchors(joinDate Date, policy *PolicyConfig, until Date) []GrantAnchor {
	if policy.GrantCycleMonths <= 0 {
		return nil
	}

	var anchors []GrantAnchor
	add := func(d Date) {
		anchors = append(anchors, GrantAnchor{GrantDate: d, TenureYears: TenureYears(joinDate, d)})
	}

	switch policy.BaselineRule.Kind {
	case Anniversary:
		for year := joinDate.Year(); ; year++ {
			d := NewDate(year, joinDate.Month(), joinDate.Day()).AddMonths(policy.BaselineRule.OffsetMonths)
			if d.After(until) {
				break
			}
			if d.Before(joinDate) {
				continue
			}
			add(d)
		}
	case FixedMonthDay:
		for year := joinDate.Year(); ; year++ {
			d := NewDate(year, timeMonth(policy.BaselineRule.Month), policy.BaselineRule.Day)
			if d.After(until) {
				break
			}
			if d.Before(joinDate) {
				continue
			}
			add(d)
		}
	default: // RelativeFromJoin
		first := joinDate.AddMonths(policy.BaselineRule.InitialOffsetMonths)
		for d := first; d.OnOrBefore(until); d = d.AddMonths(policy.GrantCycleMonths) {
			add(d)
		}
	}
	return anchors
}

// NextGrantDate returns the first grant date strictly after asOf. ok is
// false only when the policy defines no cycle: every schedule kind has a
// next occurrence no matter how far apart asOf and the join date lie, the
// first one included (an employee record created ahead of its join date
// still reports its first grant).
func NextGrantDate(joinDate Date, policy *PolicyConfig, asOf Date) (Date, bool) {
	if policy.GrantCycleMonths <= 0 {
		return Date{}, false
	}
	switch policy.BaselineRule.Kind {
	case Anniversary:
		for year := joinDate.Year(); ; year++ {
			d := NewDate(year, joinDate.Month(), joinDate.Day()).AddMonths(policy.BaselineRule.OffsetMonths)
			if d.Before(joinDate) || !d.After(asOf) {
				continue
			}
			return d, true
		}
	case FixedMonthDay:
		for year := joinDate.Year(); ; year++ {
			d := NewDate(year, timeMonth(policy.BaselineRule.Month), policy.BaselineRule.Day)
			if d.Before(joinDate) || !d.After(asOf) {
				continue
			}
			return d, true
		}
	default: // RelativeFromJoin
		d := joinDate.AddMonths(policy.BaselineRule.InitialOffsetMonths)
		for !d.After(asOf) {
			d = d.AddMonths(policy.GrantCycleMonths)
		}
		return d, true
	}
}

// PreviousGrantDate returns the latest grant date on or before asOf, or
// ok=false when the schedule has not started yet.
func PreviousGrantDate(joinDate Date, policy *PolicyConfig, asOf Date) (Date, bool) {
	var prev Date
	found := false
	for _, a := range GrantAnchors(joinDate, policy, asOf) {
		prev = a.GrantDate
		found = true
	}
	return prev, found
}

func timeMonth(m int) time.Month { return time.Month(m) }

// GrantDays resolves the days granted to an employee with the given pattern
// at the given tenure bucket. Unknown part-time patterns grant zero days
// rather than failing: the table owner decides coverage, not the generator.
func GrantDays(policy *PolicyConfig, pattern Pattern, tenure float64) Days {
	return LookupGrantDays(policy.TableFor(pattern), tenure)
}
