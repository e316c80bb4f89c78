/*
policy.go - Versioned accrual policy documents

PURPOSE:
  A PolicyConfig is an immutable, named snapshot of the rules that drive
  lot generation: when grants happen (baseline rule + cycle), how many days
  each grant carries (tenure-keyed tables per employment pattern), and when
  a grant expires. Exactly one version is active at a time; activation only
  affects future generation, never lots already written.

VALIDATION:
  Policies are strongly typed and validated on save. A malformed document
  is rejected at the boundary, not discovered at lookup time.
*/
package leave

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// BASELINE RULE - When does the grant schedule anchor?
// =============================================================================

type BaselineKind string

const (
	// RelativeFromJoin: first grant at join + InitialOffsetMonths, then
	// every GrantCycleMonths. The standard statutory schedule.
	RelativeFromJoin BaselineKind = "relative_from_join"

	// Anniversary: a grant every join anniversary, shifted by OffsetMonths.
	Anniversary BaselineKind = "anniversary"

	// FixedMonthDay: a grant on the same month/day every year for everyone,
	// starting with the first occurrence on or after the join date.
	FixedMonthDay BaselineKind = "fixed_month_day"
)

type BaselineRule struct {
	Kind BaselineKind `json:"kind"`

	// RelativeFromJoin
	InitialOffsetMonths int `json:"initialOffsetMonths,omitempty"`

	// Anniversary
	OffsetMonths int `json:"offsetMonths,omitempty"`

	// FixedMonthDay
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// =============================================================================
// EXPIRY RULE - How long a grant stays usable
// =============================================================================

type ExpiryKind string

const (
	ExpiryYears  ExpiryKind = "years"
	ExpiryMonths ExpiryKind = "months"

	// ExpiryEndOfFiscalYear: the grant stays usable through December 31 of
	// the year it reaches floor(Months/12) full years of validity. Months
	// below 12 expire at the end of the grant year itself.
	ExpiryEndOfFiscalYear ExpiryKind = "end_of_fiscal_year"
)

type ExpiryRule struct {
	Kind   ExpiryKind `json:"kind"`
	Years  int        `json:"years,omitempty"`
	Months int        `json:"months,omitempty"`
}

// ExpiryFor computes a lot's expiry date. A grant is valid through the day
// before its n-year (or n-month) mark: granted 2023-08-02 with a two-year
// rule, it is usable up to and including 2025-08-01. Fiscal-year expiry
// instead runs through December 31, so every lot of a vintage expires
// together.
func (r ExpiryRule) ExpiryFor(grantDate Date) Date {
	switch r.Kind {
	case ExpiryMonths:
		return grantDate.AddMonths(r.Months).AddDays(-1)
	case ExpiryEndOfFiscalYear:
		end := grantDate.AddYears(r.Months / 12)
		return NewDate(end.Year(), time.December, 31)
	default:
		return grantDate.AddYears(r.Years).AddDays(-1)
	}
}

// =============================================================================
// GRANT TABLES - Tenure bucket -> days granted
// =============================================================================

// GrantRow maps a tenure threshold (in half-year steps) to the days granted
// once an employee's tenure reaches it. Tables are sorted ascending; lookup
// is floor, not nearest.
type GrantRow struct {
	TenureYears float64 `json:"tenureYears"`
	DaysGranted Days    `json:"daysGranted"`
}

// LookupGrantDays returns the DaysGranted of the row with the largest
// threshold <= tenure, or zero days when no row qualifies yet.
func LookupGrantDays(table []GrantRow, tenure float64) Days {
	days := ZeroDays()
	for _, row := range table {
		if row.TenureYears > tenure {
			break
		}
		days = row.DaysGranted
	}
	return days
}

// =============================================================================
// POLICY CONFIG - The versioned document
// =============================================================================

type PolicyConfig struct {
	Version string `json:"version"`
	Active  bool   `json:"active"`

	BaselineRule     BaselineRule `json:"baselineRule"`
	GrantCycleMonths int          `json:"grantCycleMonths"`
	ExpiryRule       ExpiryRule   `json:"expiryRule"`

	// FullTimeTable applies to full-time employees; PartTimeTables is keyed
	// by contracted weekly working days (1..4).
	FullTimeTable  []GrantRow         `json:"fullTimeTable"`
	PartTimeTables map[int][]GrantRow `json:"partTimeTables"`

	// Statutory usage tracking: employees granted at least
	// MinGrantDaysForAlert days in a cycle must consume MinLegalUseDays of
	// them before the next grant.
	MinLegalUseDays      Days `json:"minLegalUseDays"`
	MinGrantDaysForAlert Days `json:"minGrantDaysForAlert"`
}

// TableFor selects the grant table for an employment pattern.
func (p *PolicyConfig) TableFor(pattern Pattern) []GrantRow {
	if pattern.Kind == PartTime {
		return p.PartTimeTables[pattern.WeeklyDays]
	}
	return p.FullTimeTable
}

// Validate rejects malformed policy documents at the save boundary.
func (p *PolicyConfig) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("%w: empty version", ErrInvalidPolicy)
	}
	if p.GrantCycleMonths <= 0 {
		return fmt.Errorf("%w: grant cycle must be positive, got %d", ErrInvalidPolicy, p.GrantCycleMonths)
	}
	switch p.BaselineRule.Kind {
	case RelativeFromJoin:
		if p.BaselineRule.InitialOffsetMonths < 0 {
			return fmt.Errorf("%w: negative initial offset", ErrInvalidPolicy)
		}
	case Anniversary:
		if p.BaselineRule.OffsetMonths < 0 {
			return fmt.Errorf("%w: negative anniversary offset", ErrInvalidPolicy)
		}
	case FixedMonthDay:
		if p.BaselineRule.Month < 1 || p.BaselineRule.Month > 12 || p.BaselineRule.Day < 1 || p.BaselineRule.Day > 31 {
			return fmt.Errorf("%w: fixed grant day %d/%d out of range", ErrInvalidPolicy, p.BaselineRule.Month, p.BaselineRule.Day)
		}
		// The date must exist in every year or NewDate would normalize it
		// into the next month. Feb 29 is out for the same reason; checked
		// against a common year.
		if d := NewDate(2023, time.Month(p.BaselineRule.Month), p.BaselineRule.Day); int(d.Month()) != p.BaselineRule.Month || d.Day() != p.BaselineRule.Day {
			return fmt.Errorf("%w: fixed grant day %d/%d does not exist in every year", ErrInvalidPolicy, p.BaselineRule.Month, p.BaselineRule.Day)
		}
	default:
		return fmt.Errorf("%w: unknown baseline rule %q", ErrInvalidPolicy, p.BaselineRule.Kind)
	}
	switch p.ExpiryRule.Kind {
	case ExpiryYears:
		if p.ExpiryRule.Years <= 0 {
			return fmt.Errorf("%w: expiry years must be positive", ErrInvalidPolicy)
		}
	case ExpiryMonths, ExpiryEndOfFiscalYear:
		if p.ExpiryRule.Months <= 0 {
			return fmt.Errorf("%w: expiry months must be positive", ErrInvalidPolicy)
		}
	default:
		return fmt.Errorf("%w: unknown expiry rule %q", ErrInvalidPolicy, p.ExpiryRule.Kind)
	}
	if err := validateTable("fullTime", p.FullTimeTable); err != nil {
		return err
	}
	for weekly, table := range p.PartTimeTables {
		if weekly < 1 || weekly > 4 {
			return fmt.Errorf("%w: part-time weekly pattern %d out of range 1..4", ErrInvalidPolicy, weekly)
		}
		if err := validateTable(fmt.Sprintf("partTime/%d", weekly), table); err != nil {
			return err
		}
	}
	return nil
}

func validateTable(name string, table []GrantRow) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: %s table is empty", ErrInvalidPolicy, name)
	}
	if !sort.SliceIsSorted(table, func(i, j int) bool {
		return table[i].TenureYears < table[j].TenureYears
	}) {
		return fmt.Errorf("%w: %s table not sorted by tenure", ErrInvalidPolicy, name)
	}
	for _, row := range table {
		if row.DaysGranted.IsNegative() {
			return fmt.Errorf("%w: %s table grants negative days at %.1f years", ErrInvalidPolicy, name, row.TenureYears)
		}
	}
	return nil
}

// =============================================================================
// DEFAULT POLICY - Applies when no version has ever been activated
// =============================================================================

// DefaultPolicy returns the built-in statutory schedule: first grant six
// months after joining, yearly after that, two-year validity.
func DefaultPolicy() *PolicyConfig {
	partTimeTable := []GrantRow{
		{TenureYears: 0.5, DaysGranted: DaysOfInt(7)},
		{TenureYears: 1.5, DaysGranted: DaysOfInt(8)},
		{TenureYears: 2.5, DaysGranted: DaysOfInt(9)},
	}
	return &PolicyConfig{
		Version: "default",
		BaselineRule: BaselineRule{
			Kind:                RelativeFromJoin,
			InitialOffsetMonths: 6,
		},
		GrantCycleMonths: 12,
		ExpiryRule:       ExpiryRule{Kind: ExpiryYears, Years: 2},
		FullTimeTable: []GrantRow{
			{TenureYears: 0.5, DaysGranted: DaysOfInt(10)},
			{TenureYears: 1.5, DaysGranted: DaysOfInt(11)},
			{TenureYears: 2.5, DaysGranted: DaysOfInt(12)},
			{TenureYears: 3.5, DaysGranted: DaysOfInt(14)},
			{TenureYears: 4.5, DaysGranted: DaysOfInt(16)},
			{TenureYears: 5.5, DaysGranted: DaysOfInt(18)},
			{TenureYears: 6.5, DaysGranted: DaysOfInt(20)},
		},
		PartTimeTables: map[int][]GrantRow{
			1: partTimeTable,
			2: partTimeTable,
			3: partTimeTable,
			4: partTimeTable,
		},
		MinLegalUseDays:      DaysOfInt(5),
		MinGrantDaysForAlert: DaysOfInt(10),
	}
}
