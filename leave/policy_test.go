package leave_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrforge/leave-engine/leave"
)

// =============================================================================
// EXPIRY RULE
// =============================================================================

func TestExpiryFor_YearsMinusOneDay(t *testing.T) {
	// GIVEN: Two-year validity
	rule := leave.ExpiryRule{Kind: leave.ExpiryYears, Years: 2}

	// WHEN/THEN: Granted 2023-08-02, usable through 2025-08-01
	expiry := rule.ExpiryFor(leave.NewDate(2023, time.August, 2))
	assert.Equal(t, "2025-08-01", expiry.String())
}

func TestExpiryFor_Months(t *testing.T) {
	rule := leave.ExpiryRule{Kind: leave.ExpiryMonths, Months: 18}
	expiry := rule.ExpiryFor(leave.NewDate(2024, time.January, 1))
	assert.Equal(t, "2025-06-30", expiry.String())
}

func TestExpiryFor_EndOfFiscalYear(t *testing.T) {
	// GIVEN: Two fiscal years of validity
	rule := leave.ExpiryRule{Kind: leave.ExpiryEndOfFiscalYear, Months: 24}

	// WHEN/THEN: Granted 2023-08-02, usable through 2025-12-31
	expiry := rule.ExpiryFor(leave.NewDate(2023, time.August, 2))
	assert.Equal(t, "2025-12-31", expiry.String())

	// Under a year of validity expires with the grant year itself.
	short := leave.ExpiryRule{Kind: leave.ExpiryEndOfFiscalYear, Months: 6}
	assert.Equal(t, "2023-12-31", short.ExpiryFor(leave.NewDate(2023, time.August, 2)).String())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestPolicyValidate_Default_IsValid(t *testing.T) {
	assert.NoError(t, leave.DefaultPolicy().Validate())
}

func TestPolicyValidate_Rejections(t *testing.T) {
	base := func() *leave.PolicyConfig { return leave.DefaultPolicy() }

	t.Run("empty version", func(t *testing.T) {
		p := base()
		p.Version = ""
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("zero cycle", func(t *testing.T) {
		p := base()
		p.GrantCycleMonths = 0
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("unknown baseline kind", func(t *testing.T) {
		p := base()
		p.BaselineRule.Kind = "lunar"
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("fixed day out of range", func(t *testing.T) {
		p := base()
		p.BaselineRule = leave.BaselineRule{Kind: leave.FixedMonthDay, Month: 13, Day: 1}
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("fixed day absent from its month", func(t *testing.T) {
		p := base()
		p.BaselineRule = leave.BaselineRule{Kind: leave.FixedMonthDay, Month: 2, Day: 30}
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("fixed day on leap day", func(t *testing.T) {
		// Feb 29 does not exist in every year.
		p := base()
		p.BaselineRule = leave.BaselineRule{Kind: leave.FixedMonthDay, Month: 2, Day: 29}
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("non-positive expiry", func(t *testing.T) {
		p := base()
		p.ExpiryRule = leave.ExpiryRule{Kind: leave.ExpiryYears, Years: 0}
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("empty table", func(t *testing.T) {
		p := base()
		p.FullTimeTable = nil
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("unsorted table", func(t *testing.T) {
		p := base()
		p.FullTimeTable = []leave.GrantRow{
			{TenureYears: 1.5, DaysGranted: leave.DaysOfInt(11)},
			{TenureYears: 0.5, DaysGranted: leave.DaysOfInt(10)},
		}
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})

	t.Run("part-time key out of range", func(t *testing.T) {
		p := base()
		p.PartTimeTables[5] = p.PartTimeTables[1]
		assert.ErrorIs(t, p.Validate(), leave.ErrInvalidPolicy)
	})
}

// =============================================================================
// SERIALIZATION
// =============================================================================

func TestPolicyConfig_JSONRoundTrip(t *testing.T) {
	// The policy document is stored and served as JSON; the grant amounts
	// must survive exactly.
	original := leave.DefaultPolicy()
	original.MinLegalUseDays = leave.DaysOf(4.5)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded leave.PolicyConfig
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, decoded.Validate())

	assert.Equal(t, original.Version, decoded.Version)
	assert.True(t, decoded.MinLegalUseDays.Equal(leave.DaysOf(4.5)))
	assert.Equal(t, len(original.FullTimeTable), len(decoded.FullTimeTable))
	assert.True(t, decoded.FullTimeTable[6].DaysGranted.Equal(leave.DaysOfInt(20)))
}
