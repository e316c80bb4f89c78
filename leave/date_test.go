package leave_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrforge/leave-engine/leave"
)

func TestMonthsBetween(t *testing.T) {
	feb2 := leave.NewDate(2023, time.February, 2)

	assert.Equal(t, 0, leave.MonthsBetween(feb2, leave.NewDate(2023, time.March, 1)))
	assert.Equal(t, 1, leave.MonthsBetween(feb2, leave.NewDate(2023, time.March, 2)))
	assert.Equal(t, 6, leave.MonthsBetween(feb2, leave.NewDate(2023, time.August, 2)))
	assert.Equal(t, 42, leave.MonthsBetween(feb2, leave.NewDate(2026, time.August, 2)))

	// Day-of-month shortfall: the month is not complete yet.
	jan31 := leave.NewDate(2023, time.January, 31)
	assert.Equal(t, 0, leave.MonthsBetween(jan31, leave.NewDate(2023, time.February, 28)))
}

func TestParseDate(t *testing.T) {
	d, err := leave.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = leave.ParseDate("02/29/2024")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	d := leave.NewDate(2025, time.August, 1)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-08-01"`, string(raw))

	var back leave.Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(d))
}

func TestDate_Comparisons(t *testing.T) {
	a := leave.NewDate(2025, time.January, 1)
	b := leave.NewDate(2025, time.January, 2)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.OnOrBefore(a))
	assert.True(t, a.OnOrAfter(a))
	assert.False(t, a.OnOrAfter(b))
}
