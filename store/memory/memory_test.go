package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrforge/leave-engine/leave"
	"github.com/hrforge/leave-engine/store/memory"
)

func lot(id, employeeID string, grantDate leave.Date) *leave.GrantLot {
	return &leave.GrantLot{
		ID:            id,
		EmployeeID:    employeeID,
		GrantDate:     grantDate,
		ExpiryDate:    grantDate.AddYears(2).AddDays(-1),
		DaysGranted:   leave.DaysOfInt(10),
		DaysRemaining: leave.DaysOfInt(10),
		PolicyVersion: "default",
	}
}

func TestInsertLot_DuplicateGrantDate_Rejected(t *testing.T) {
	// GIVEN: A lot at (emp-1, 2023-08-02)
	// WHEN: Inserting another lot for the same employee and date
	// THEN: DuplicateGrantError naming the existing lot

	store := memory.New()
	ctx := context.Background()
	grantDate := leave.NewDate(2023, time.August, 2)

	require.NoError(t, store.InsertLot(ctx, lot("lot-1", "emp-1", grantDate)))

	err := store.InsertLot(ctx, lot("lot-2", "emp-1", grantDate))
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrDuplicateGrant)
	var dup *leave.DuplicateGrantError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "emp-1", dup.EmployeeID)

	// Same date for another employee is fine.
	assert.NoError(t, store.InsertLot(ctx, lot("lot-3", "emp-2", grantDate)))
}

func TestActivatePolicy_SingleActive(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	v1 := leave.DefaultPolicy()
	v1.Version = "v1"
	v2 := leave.DefaultPolicy()
	v2.Version = "v2"
	require.NoError(t, store.SavePolicy(ctx, v1))
	require.NoError(t, store.SavePolicy(ctx, v2))

	require.NoError(t, store.ActivatePolicy(ctx, "v1"))
	require.NoError(t, store.ActivatePolicy(ctx, "v2"))

	active, err := store.ActivePolicy(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "v2", active.Version)

	got, err := store.GetPolicy(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, got.Active, "previous active version was demoted")

	err = store.ActivatePolicy(ctx, "ghost")
	assert.ErrorIs(t, err, leave.ErrPolicyNotFound)
}

func TestActivePolicy_NoneConfigured_NilNil(t *testing.T) {
	store := memory.New()
	active, err := store.ActivePolicy(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestLotByGrantDate_Absent_NilNil(t *testing.T) {
	store := memory.New()
	got, err := store.LotByGrantDate(context.Background(), "emp-1", leave.NewDate(2023, time.August, 2))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConsumableLots_OrderAndFilter(t *testing.T) {
	// GIVEN: Three lots; one expired before the cutoff, one drained
	// WHEN: Asking for consumable lots
	// THEN: Only live, non-empty lots, oldest grant first

	store := memory.New()
	ctx := context.Background()

	newest := lot("lot-c", "emp-1", leave.NewDate(2025, time.August, 2))
	oldest := lot("lot-a", "emp-1", leave.NewDate(2023, time.August, 2)) // expires 2025-08-01
	drained := lot("lot-b", "emp-1", leave.NewDate(2024, time.August, 2))
	drained.DaysRemaining = leave.ZeroDays()

	require.NoError(t, store.InsertLot(ctx, newest))
	require.NoError(t, store.InsertLot(ctx, oldest))
	require.NoError(t, store.InsertLot(ctx, drained))

	got, err := store.ConsumableLots(ctx, "emp-1", leave.NewDate(2025, time.August, 2))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lot-c", got[0].ID)

	got, err = store.ConsumableLots(ctx, "emp-1", leave.NewDate(2024, time.September, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "lot-a", got[0].ID, "oldest grant first")
	assert.Equal(t, "lot-c", got[1].ID)
}

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	// GIVEN: A transaction that inserts a lot and a consumption, then fails
	// WHEN: WithTx returns the error
	// THEN: Neither write is visible

	store := memory.New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s leave.Store) error {
		if err := s.InsertLot(ctx, lot("lot-1", "emp-1", leave.NewDate(2023, time.August, 2))); err != nil {
			return err
		}
		if err := s.InsertConsumption(ctx, &leave.Consumption{
			ID: "c-1", LotID: "lot-1", EmployeeID: "emp-1", RequestID: "r-1",
			Date: leave.NewDate(2023, time.September, 1), DaysUsed: leave.DaysOfInt(1),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	lots, err := store.LotsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, lots)

	cs, err := store.ConsumptionsByRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestWithTx_CommitKeepsWrites(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	err := store.WithTx(ctx, func(s leave.Store) error {
		return s.InsertLot(ctx, lot("lot-1", "emp-1", leave.NewDate(2023, time.August, 2)))
	})
	require.NoError(t, err)

	lots, err := store.LotsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, lots, 1)
}

func TestUpdateLot_Unknown_Fails(t *testing.T) {
	store := memory.New()
	err := store.UpdateLot(context.Background(), lot("ghost", "emp-1", leave.NewDate(2023, time.August, 2)))
	assert.ErrorIs(t, err, leave.ErrLotNotFound)
}
