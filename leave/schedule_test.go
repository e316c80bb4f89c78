package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrforge/leave-engine/leave"
)

// =============================================================================
// TENURE BUCKETS
// =============================================================================

func TestTenureYears_HalfYearBuckets(t *testing.T) {
	join := leave.NewDate(2023, time.February, 2)

	cases := []struct {
		asOf   leave.Date
		tenure float64
	}{
		{leave.NewDate(2023, time.February, 2), 0},   // day one
		{leave.NewDate(2023, time.August, 1), 0},     // one day short of 6 months
		{leave.NewDate(2023, time.August, 2), 0.5},   // exactly 6 months
		{leave.NewDate(2024, time.February, 2), 1},   // 12 months
		{leave.NewDate(2024, time.August, 2), 1.5},   // 18 months
		{leave.NewDate(2026, time.August, 2), 3.5},   // 42 months
		{leave.NewDate(2026, time.November, 30), 3.5}, // 45 months floors to 3.5
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tenure, leave.TenureYears(join, tc.asOf), "asOf %s", tc.asOf)
	}
}

func TestTenureYears_BeforeJoin_IsZero(t *testing.T) {
	join := leave.NewDate(2023, time.February, 2)
	assert.Equal(t, 0.0, leave.TenureYears(join, leave.NewDate(2022, time.December, 31)))
}

func TestTenureYears_MonthEndShortfall(t *testing.T) {
	// GIVEN: Joined Jan 31. Feb has no 31st, so the first complete month
	// lands on Mar 31, not Feb 28.
	join := leave.NewDate(2023, time.January, 31)

	// WHEN/THEN: 6 "calendar" months later but only at the 28th
	assert.Equal(t, 0.0, leave.TenureYears(join, leave.NewDate(2023, time.July, 30)))
	assert.Equal(t, 0.5, leave.TenureYears(join, leave.NewDate(2023, time.July, 31)))
}

// =============================================================================
// GRANT SCHEDULE
// =============================================================================

func TestGrantAnchors_RelativeFromJoin(t *testing.T) {
	// GIVEN: The built-in schedule (join + 6 months, then yearly)
	policy := leave.DefaultPolicy()
	join := leave.NewDate(2023, time.February, 2)

	// WHEN: Enumerating through mid-2026
	anchors := leave.GrantAnchors(join, policy, leave.NewDate(2026, time.August, 28))

	// THEN: Grants at 2023-08-02, 2024-08-02, 2025-08-02, 2026-08-02 with
	// half-year tenure buckets 0.5, 1.5, 2.5, 3.5
	require.Len(t, anchors, 4)
	assert.Equal(t, "2023-08-02", anchors[0].GrantDate.String())
	assert.Equal(t, 0.5, anchors[0].TenureYears)
	assert.Equal(t, "2024-08-02", anchors[1].GrantDate.String())
	assert.Equal(t, 1.5, anchors[1].TenureYears)
	assert.Equal(t, "2026-08-02", anchors[3].GrantDate.String())
	assert.Equal(t, 3.5, anchors[3].TenureYears)
}

func TestGrantAnchors_Anniversary(t *testing.T) {
	policy := leave.DefaultPolicy()
	policy.BaselineRule = leave.BaselineRule{Kind: leave.Anniversary}
	join := leave.NewDate(2023, time.April, 15)

	anchors := leave.GrantAnchors(join, policy, leave.NewDate(2025, time.December, 31))

	// Join day itself is an anchor, then every anniversary.
	require.Len(t, anchors, 3)
	assert.Equal(t, "2023-04-15", anchors[0].GrantDate.String())
	assert.Equal(t, "2024-04-15", anchors[1].GrantDate.String())
	assert.Equal(t, "2025-04-15", anchors[2].GrantDate.String())
}

func TestGrantAnchors_FixedMonthDay(t *testing.T) {
	// GIVEN: Everyone is granted on April 1
	policy := leave.DefaultPolicy()
	policy.BaselineRule = leave.BaselineRule{Kind: leave.FixedMonthDay, Month: 4, Day: 1}
	join := leave.NewDate(2023, time.June, 10)

	anchors := leave.GrantAnchors(join, policy, leave.NewDate(2025, time.December, 31))

	// THEN: The April 1 before joining is skipped
	require.Len(t, anchors, 2)
	assert.Equal(t, "2024-04-01", anchors[0].GrantDate.String())
	assert.Equal(t, "2025-04-01", anchors[1].GrantDate.String())
}

func TestNextGrantDate(t *testing.T) {
	policy := leave.DefaultPolicy()
	join := leave.NewDate(2023, time.February, 2)

	// Strictly after: on the grant date itself the next one is a year out.
	next, ok := leave.NextGrantDate(join, policy, leave.NewDate(2023, time.August, 2))
	require.True(t, ok)
	assert.Equal(t, "2024-08-02", next.String())

	next, ok = leave.NextGrantDate(join, policy, leave.NewDate(2023, time.March, 1))
	require.True(t, ok)
	assert.Equal(t, "2023-08-02", next.String())
}

func TestNextGrantDate_FutureJoinDate(t *testing.T) {
	// GIVEN: An employee record created well ahead of its join date
	policy := leave.DefaultPolicy()
	join := leave.NewDate(2028, time.June, 1)

	// WHEN: Asking for the next grant date today
	next, ok := leave.NextGrantDate(join, policy, leave.NewDate(2026, time.August, 28))

	// THEN: The first scheduled grant, join + 6 months, however far out
	require.True(t, ok)
	assert.Equal(t, "2028-12-01", next.String())
}

func TestNextGrantDate_FutureJoin_OtherBaselineKinds(t *testing.T) {
	asOf := leave.NewDate(2026, time.August, 28)
	join := leave.NewDate(2030, time.June, 10)

	policy := leave.DefaultPolicy()
	policy.BaselineRule = leave.BaselineRule{Kind: leave.Anniversary}
	next, ok := leave.NextGrantDate(join, policy, asOf)
	require.True(t, ok)
	assert.Equal(t, "2030-06-10", next.String(), "join day itself is the first anchor")

	policy.BaselineRule = leave.BaselineRule{Kind: leave.FixedMonthDay, Month: 4, Day: 1}
	next, ok = leave.NextGrantDate(join, policy, asOf)
	require.True(t, ok)
	assert.Equal(t, "2031-04-01", next.String(), "first April 1 on or after joining")
}

func TestPreviousGrantDate(t *testing.T) {
	policy := leave.DefaultPolicy()
	join := leave.NewDate(2023, time.February, 2)

	_, ok := leave.PreviousGrantDate(join, policy, leave.NewDate(2023, time.July, 1))
	assert.False(t, ok, "no grant before the first scheduled date")

	prev, ok := leave.PreviousGrantDate(join, policy, leave.NewDate(2024, time.January, 15))
	require.True(t, ok)
	assert.Equal(t, "2023-08-02", prev.String())
}

// =============================================================================
// GRANT TABLE LOOKUP
// =============================================================================

func TestGrantDays_FloorLookup(t *testing.T) {
	policy := leave.DefaultPolicy()
	ft := leave.FullTimePattern()

	// Below the first threshold: nothing yet.
	assert.True(t, leave.GrantDays(policy, ft, 0).IsZero())
	// Exact thresholds.
	assert.Equal(t, "10", leave.GrantDays(policy, ft, 0.5).String())
	assert.Equal(t, "11", leave.GrantDays(policy, ft, 1.5).String())
	// Between thresholds floors down.
	assert.Equal(t, "11", leave.GrantDays(policy, ft, 2).String())
	// Past the last threshold stays at the cap.
	assert.Equal(t, "20", leave.GrantDays(policy, ft, 12).String())
}

func TestGrantDays_PartTime(t *testing.T) {
	policy := leave.DefaultPolicy()
	pt, err := leave.PartTimePattern(3)
	require.NoError(t, err)

	assert.Equal(t, "7", leave.GrantDays(policy, pt, 0.5).String())
	assert.Equal(t, "9", leave.GrantDays(policy, pt, 4).String())
}
