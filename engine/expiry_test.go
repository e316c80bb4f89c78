package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrforge/leave-engine/leave"
)

func TestExpireEmployee_ZeroesExpiredLots(t *testing.T) {
	// GIVEN: Lots granted 2023-08-02 (expires 2025-08-01) and 2024-08-02
	// WHEN: Expiring as of 2025-08-02
	// THEN: The 2023 lot is forfeited, the 2024 lot untouched

	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")
	_, err := eng.Generate(ctx, "emp-1", date(2024, time.December, 31))
	require.NoError(t, err)

	n, err := eng.ExpireEmployee(ctx, "emp-1", date(2025, time.August, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lots, _ := store.LotsByEmployee(ctx, "emp-1")
	assert.True(t, lots[0].DaysRemaining.IsZero())
	assert.True(t, lots[0].DaysGranted.Equal(leave.DaysOfInt(10)), "granted amount stays for the record")
	assert.True(t, lots[1].DaysRemaining.Equal(leave.DaysOfInt(11)))
}

func TestExpireEmployee_OnExpiryDate_NotYet(t *testing.T) {
	// A lot is usable through its expiry date, inclusive.
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")
	_, err := eng.Generate(ctx, "emp-1", date(2023, time.December, 31))
	require.NoError(t, err)

	n, err := eng.ExpireEmployee(ctx, "emp-1", date(2025, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExpireEmployee_SecondRun_IsIdempotent(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")
	_, err := eng.Generate(ctx, "emp-1", date(2024, time.December, 31))
	require.NoError(t, err)

	n, err := eng.ExpireEmployee(ctx, "emp-1", date(2025, time.August, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = eng.ExpireEmployee(ctx, "emp-1", date(2025, time.August, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already-zeroed lots are not expired again")
}

func TestRunExpire_Population(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1")
	seedEmployee(t, store, "emp-2")
	_, err := eng.RunGenerate(ctx, date(2023, time.December, 31))
	require.NoError(t, err)

	res, err := eng.RunExpire(ctx, date(2025, time.August, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Employees)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 0, res.Failed)
}
