/*
Package leave contains the core data model for the paid-leave accrual ledger.

PURPOSE:
  Employees are granted batches of leave days ("grant lots") on a schedule
  derived from their join date and a versioned policy. Approved requests
  consume lots oldest-first; lots forfeit their unused balance at expiry.
  This package holds the shared vocabulary: dates, day amounts, employment
  patterns, lots, consumptions, requests, policies, and the Store interface
  everything persists through.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: an exact decimal day amount (half-days are first-class)
  - Pattern: tagged employment pattern (full-time, or part-time 1-4 days/week)
  - Employee: the directory fields the ledger reads
  - GrantLot: a dated batch of granted days with its own expiry and balance
  - Consumption: a debit against one lot on behalf of one request
  - LeaveRequest: the approval-workflow record the allocator settles

LEDGER INVARIANTS:
  1. 0 <= DaysRemaining <= DaysGranted for every lot
  2. DaysGranted - sum(Consumption.DaysUsed) == DaysRemaining (balance law)
  3. At most one lot per (EmployeeID, GrantDate)
  4. Consumption rows are deleted, not flagged, when a request is reversed

SEE ALSO:
  - policy.go: versioned policy documents and grant tables
  - schedule.go: tenure buckets and grant-date arithmetic
  - store.go: persistence interface
*/
package leave

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Exact day amounts
// =============================================================================

// Days is an exact quantity of leave days. Grants and consumptions move in
// half-day steps, so float64 is not acceptable here.
type Days = decimal.Decimal

func DaysOf(v float64) Days { return decimal.NewFromFloat(v) }
func DaysOfInt(v int) Days  { return decimal.NewFromInt(int64(v)) }
func ZeroDays() Days        { return decimal.Zero }

func MinDays(a, b Days) Days {
	if a.LessThan(b) {
		return a
	}
	return b
}
func ClampDays(v, lo, hi Days) Days {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// =============================================================================
// EMPLOYMENT PATTERN - FullTime | PartTime(weeklyDays 1..4)
// =============================================================================

type PatternKind string

const (
	FullTime PatternKind = "full_time"
	PartTime PatternKind = "part_time"
)

// Pattern selects which grant table applies to an employee.
// Part-time patterns carry the contracted number of working days per week.
type Pattern struct {
	Kind       PatternKind
	WeeklyDays int // 1..4, part-time only
}

func FullTimePattern() Pattern { return Pattern{Kind: FullTime} }

// PartTimePattern validates the weekly-day count at construction so a bad
// pattern can never reach table lookup.
func PartTimePattern(weeklyDays int) (Pattern, error) {
	if weeklyDays < 1 || weeklyDays > 4 {
		return Pattern{}, fmt.Errorf("%w: weekly days %d out of range 1..4", ErrInvalidPattern, weeklyDays)
	}
	return Pattern{Kind: PartTime, WeeklyDays: weeklyDays}, nil
}

func (p Pattern) String() string {
	if p.Kind == PartTime {
		return fmt.Sprintf("part_time/%d", p.WeeklyDays)
	}
	return string(FullTime)
}

// ParsePattern parses the wire form produced by String: "full_time" or
// "part_time/<n>".
func ParsePattern(s string) (Pattern, error) {
	if s == string(FullTime) {
		return FullTimePattern(), nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "part_time/%d", &n); err != nil {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}
	return PartTimePattern(n)
}

// =============================================================================
// EMPLOYEE - Directory fields the ledger reads
// =============================================================================

type Employee struct {
	ID       string
	Name     string
	JoinDate Date
	Pattern  Pattern

	// PolicyVersion optionally pins this employee to a policy version.
	// Empty means "follow the active version".
	PolicyVersion string
}

// =============================================================================
// GRANT LOT - A dated batch of granted leave days
// =============================================================================

type GrantLot struct {
	ID            string
	EmployeeID    string
	GrantDate     Date
	ExpiryDate    Date
	DaysGranted   Days
	DaysRemaining Days
	PolicyVersion string
}

// Expired reports whether the lot's balance is forfeit as of the given date.
func (l GrantLot) Expired(asOf Date) bool { return l.ExpiryDate.Before(asOf) }

// =============================================================================
// CONSUMPTION - A debit against one lot for one request
// =============================================================================

type Consumption struct {
	ID         string
	LotID      string
	EmployeeID string
	RequestID  string
	Date       Date
	DaysUsed   Days
}

// =============================================================================
// LEAVE REQUEST - Approval workflow boundary
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusRejected  RequestStatus = "REJECTED"
	StatusCancelled RequestStatus = "CANCELLED"
)

type LeaveRequest struct {
	ID         string
	EmployeeID string
	StartDate  Date
	EndDate    Date
	TotalDays  Days
	Status     RequestStatus
	Reason     string
}
