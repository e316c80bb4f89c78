package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrforge/leave-engine/engine"
	"github.com/hrforge/leave-engine/leave"
	"github.com/hrforge/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*engine.Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	eng := engine.New(store, engine.WithAudit(store))
	return eng, store
}

// seedEmployee stores a full-time employee joined 2023-02-02 under the
// built-in policy and returns them.
func seedEmployee(t *testing.T, store *memory.Store, id string) *leave.Employee {
	t.Helper()
	emp := &leave.Employee{
		ID:       id,
		Name:     "Test Employee",
		JoinDate: leave.NewDate(2023, time.February, 2),
		Pattern:  leave.FullTimePattern(),
	}
	require.NoError(t, store.SaveEmployee(context.Background(), emp))
	return emp
}

func date(y int, m time.Month, d int) leave.Date { return leave.NewDate(y, m, d) }

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_FirstRun_CreatesScheduledLots(t *testing.T) {
	// GIVEN: Full-time employee joined 2023-02-02, built-in policy
	// WHEN: Generating through 2024-12-31
	// THEN: Lots at 2023-08-02 (10 days) and 2024-08-02 (11 days), each
	//       expiring two years on minus a day

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	res, err := eng.Generate(ctx, "emp-1", date(2024, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, engine.GenerateResult{Generated: 2}, res)

	lots, err := store.LotsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, lots, 2)

	assert.Equal(t, "2023-08-02", lots[0].GrantDate.String())
	assert.Equal(t, "2025-08-01", lots[0].ExpiryDate.String())
	assert.True(t, lots[0].DaysGranted.Equal(leave.DaysOfInt(10)))
	assert.True(t, lots[0].DaysRemaining.Equal(leave.DaysOfInt(10)))

	assert.Equal(t, "2024-08-02", lots[1].GrantDate.String())
	assert.True(t, lots[1].DaysGranted.Equal(leave.DaysOfInt(11)))
}

func TestGenerate_SecondRun_IsIdempotent(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	_, err := eng.Generate(ctx, "emp-1", date(2024, time.December, 31))
	require.NoError(t, err)

	res, err := eng.Generate(ctx, "emp-1", date(2024, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, engine.GenerateResult{}, res, "identical re-run must touch nothing")
}

func TestGenerate_BeforeFirstGrantDate_NoLots(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	res, err := eng.Generate(ctx, "emp-1", date(2023, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, engine.GenerateResult{}, res)
}

func TestGenerate_PartTime_UsesWeeklyDaysTable(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	pattern, err := leave.PartTimePattern(2)
	require.NoError(t, err)
	require.NoError(t, store.SaveEmployee(ctx, &leave.Employee{
		ID:       "pt-1",
		Name:     "Part Timer",
		JoinDate: date(2023, time.February, 2),
		Pattern:  pattern,
	}))

	_, err = eng.Generate(ctx, "pt-1", date(2023, time.December, 31))
	require.NoError(t, err)

	lots, err := store.LotsByEmployee(ctx, "pt-1")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].DaysGranted.Equal(leave.DaysOfInt(7)))
}

func TestGenerate_PolicyChange_RecomputesPreservingConsumption(t *testing.T) {
	// GIVEN: A lot granted 10 days under the default policy, 4 of them used
	// WHEN: A more generous active policy (12 days at 0.5y) is introduced
	//       and generation re-runs over the same date
	// THEN: The lot becomes granted=12, remaining=12-4=8; the consumption
	//       rows are untouched

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	_, err := eng.Generate(ctx, "emp-1", date(2023, time.December, 31))
	require.NoError(t, err)

	lots, err := store.LotsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	lot := lots[0]

	// Consume 4 days directly against the lot.
	lot.DaysRemaining = lot.DaysRemaining.Sub(leave.DaysOfInt(4))
	require.NoError(t, store.UpdateLot(ctx, lot))
	require.NoError(t, store.InsertConsumption(ctx, &leave.Consumption{
		ID:         "c-1",
		LotID:      lot.ID,
		EmployeeID: "emp-1",
		RequestID:  "req-1",
		Date:       date(2023, time.September, 1),
		DaysUsed:   leave.DaysOfInt(4),
	}))

	generous := leave.DefaultPolicy()
	generous.Version = "v2-generous"
	generous.FullTimeTable = []leave.GrantRow{
		{TenureYears: 0.5, DaysGranted: leave.DaysOfInt(12)},
		{TenureYears: 1.5, DaysGranted: leave.DaysOfInt(13)},
	}
	require.NoError(t, store.SavePolicy(ctx, generous))
	require.NoError(t, store.ActivatePolicy(ctx, "v2-generous"))

	res, err := eng.Generate(ctx, "emp-1", date(2023, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, engine.GenerateResult{Updated: 1}, res)

	lots, err = store.LotsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, lots[0].DaysGranted.Equal(leave.DaysOfInt(12)))
	assert.True(t, lots[0].DaysRemaining.Equal(leave.DaysOfInt(8)))
	assert.Equal(t, "v2-generous", lots[0].PolicyVersion)

	cs, err := store.ConsumptionsByLot(ctx, lots[0].ID)
	require.NoError(t, err)
	require.Len(t, cs, 1, "consumption rows must survive the recompute")
}

func TestGenerate_ShrinkingPolicy_ClampsRemainingAtZero(t *testing.T) {
	// GIVEN: 10 granted, 9 used
	// WHEN: The active policy shrinks the grant to 8
	// THEN: remaining clamps to 0, never negative

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	_, err := eng.Generate(ctx, "emp-1", date(2023, time.December, 31))
	require.NoError(t, err)
	lots, _ := store.LotsByEmployee(ctx, "emp-1")
	lot := lots[0]

	lot.DaysRemaining = leave.DaysOfInt(1)
	require.NoError(t, store.UpdateLot(ctx, lot))
	require.NoError(t, store.InsertConsumption(ctx, &leave.Consumption{
		ID: "c-1", LotID: lot.ID, EmployeeID: "emp-1", RequestID: "req-1",
		Date: date(2023, time.September, 1), DaysUsed: leave.DaysOfInt(9),
	}))

	stingy := leave.DefaultPolicy()
	stingy.Version = "v2-stingy"
	stingy.FullTimeTable = []leave.GrantRow{{TenureYears: 0.5, DaysGranted: leave.DaysOfInt(8)}}
	require.NoError(t, store.SavePolicy(ctx, stingy))
	require.NoError(t, store.ActivatePolicy(ctx, "v2-stingy"))

	_, err = eng.Generate(ctx, "emp-1", date(2023, time.December, 31))
	require.NoError(t, err)

	lots, _ = store.LotsByEmployee(ctx, "emp-1")
	assert.True(t, lots[0].DaysGranted.Equal(leave.DaysOfInt(8)))
	assert.True(t, lots[0].DaysRemaining.IsZero())
}

func TestGenerate_PinnedPolicyVersion_Missing_Fails(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, &leave.Employee{
		ID:            "emp-pinned",
		Name:          "Pinned",
		JoinDate:      date(2023, time.February, 2),
		Pattern:       leave.FullTimePattern(),
		PolicyVersion: "does-not-exist",
	}))

	_, err := eng.Generate(ctx, "emp-pinned", date(2024, time.December, 31))
	assert.ErrorIs(t, err, leave.ErrPolicyNotFound)
}

// =============================================================================
// BATCH RUNS
// =============================================================================

func TestRunGenerate_FaultIsolation(t *testing.T) {
	// GIVEN: Two healthy employees and one pinned to a missing policy
	// WHEN: Running population generation
	// THEN: The broken employee is counted as failed; the others get lots

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")
	seedEmployee(t, store, "emp-2")
	require.NoError(t, store.SaveEmployee(ctx, &leave.Employee{
		ID:            "emp-broken",
		Name:          "Broken",
		JoinDate:      date(2023, time.February, 2),
		Pattern:       leave.FullTimePattern(),
		PolicyVersion: "does-not-exist",
	}))

	res, err := eng.RunGenerate(ctx, date(2023, time.December, 31))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Employees)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Failed)

	lots, _ := store.LotsByEmployee(ctx, "emp-2")
	assert.Len(t, lots, 1)
}

// =============================================================================
// DUPLICATE RECONCILIATION
// =============================================================================

func TestReconcileDuplicates_FoldsIntoNewestVersion(t *testing.T) {
	// GIVEN: Two lots on the same grant date from different policy versions
	//        (imported data predating the unique index), each with usage
	// WHEN: Reconciling
	// THEN: One lot remains, carrying both consumption rows, remaining
	//       recomputed from its own granted amount

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")

	grantDate := date(2023, time.August, 2)
	store.SeedLot(&leave.GrantLot{
		ID: "lot-old", EmployeeID: "emp-1", GrantDate: grantDate,
		ExpiryDate: date(2025, time.August, 1),
		DaysGranted: leave.DaysOfInt(10), DaysRemaining: leave.DaysOfInt(7),
		PolicyVersion: "v1",
	})
	store.SeedLot(&leave.GrantLot{
		ID: "lot-new", EmployeeID: "emp-1", GrantDate: grantDate,
		ExpiryDate: date(2025, time.August, 1),
		DaysGranted: leave.DaysOfInt(12), DaysRemaining: leave.DaysOfInt(11),
		PolicyVersion: "v2",
	})
	require.NoError(t, store.InsertConsumption(ctx, &leave.Consumption{
		ID: "c-old", LotID: "lot-old", EmployeeID: "emp-1", RequestID: "r1",
		Date: date(2023, time.September, 1), DaysUsed: leave.DaysOfInt(3),
	}))
	require.NoError(t, store.InsertConsumption(ctx, &leave.Consumption{
		ID: "c-new", LotID: "lot-new", EmployeeID: "emp-1", RequestID: "r2",
		Date: date(2023, time.October, 1), DaysUsed: leave.DaysOfInt(1),
	}))

	removed, err := eng.ReconcileDuplicates(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	lots, err := store.LotsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "lot-new", lots[0].ID)
	// 12 granted, 3+1 consumed across both original lots.
	assert.True(t, lots[0].DaysRemaining.Equal(leave.DaysOfInt(8)))

	cs, err := store.ConsumptionsByLot(ctx, "lot-new")
	require.NoError(t, err)
	assert.Len(t, cs, 2, "superseded lot's consumption folded in, not discarded")
}
