/*
generator.go - Idempotent grant lot generation

ALGORITHM (per employee, one transaction):
  1. Resolve the policy: pinned version -> active version -> default.
  2. Enumerate every grant date from the first scheduled grant through the
     target date.
  3. For each date, bucket the tenure, look up the table for the employee's
     pattern (floor lookup), and compute the expiry.
  4. Missing lot  -> insert with DaysRemaining = DaysGranted.
     Existing lot with a different DaysGranted (policy changed since it was
     written) -> recompute DaysGranted and DaysRemaining = granted - consumed,
     clamped, preserving every consumption row.

Re-running with the same target date and an unchanged policy touches
nothing: {generated:0, updated:0}. The (employee, grant date) unique index
in the store makes concurrent generation collapse into one lot rather than
two.
*/
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hrforge/leave-engine/leave"
)

// GenerateResult counts what a generation run changed.
type GenerateResult struct {
	Generated int `json:"generated"`
	Updated   int `json:"updated"`
}

// Generate brings one employee's lots up to date through until, inclusive.
func (e *Engine) Generate(ctx context.Context, employeeID string, until leave.Date) (GenerateResult, error) {
	var res GenerateResult
	var touched []string

	err := e.store.WithTx(ctx, func(s leave.Store) error {
		emp, err := s.GetEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		policy, err := e.resolvePolicy(ctx, s, emp)
		if err != nil {
			return err
		}

		for _, anchor := range leave.GrantAnchors(emp.JoinDate, policy, until) {
			days := leave.GrantDays(policy, emp.Pattern, anchor.TenureYears)
			expiry := policy.ExpiryRule.ExpiryFor(anchor.GrantDate)

			existing, err := s.LotByGrantDate(ctx, employeeID, anchor.GrantDate)
			if err != nil {
				return err
			}

			if existing == nil {
				lot := &leave.GrantLot{
					ID:            uuid.NewString(),
					EmployeeID:    employeeID,
					GrantDate:     anchor.GrantDate,
					ExpiryDate:    expiry,
					DaysGranted:   days,
					DaysRemaining: days,
					PolicyVersion: policy.Version,
				}
				if err := s.InsertLot(ctx, lot); err != nil {
					return err
				}
				res.Generated++
				touched = append(touched, lot.ID)
				continue
			}

			if existing.DaysGranted.Equal(days) {
				continue
			}

			// The table changed under this lot. Keep what was consumed and
			// re-derive the rest under the new figures.
			consumed, err := s.ConsumedByLot(ctx, existing.ID)
			if err != nil {
				return err
			}
			existing.DaysGranted = days
			existing.DaysRemaining = leave.ClampDays(days.Sub(consumed), leave.ZeroDays(), days)
			existing.ExpiryDate = expiry
			existing.PolicyVersion = policy.Version
			if err := s.UpdateLot(ctx, existing); err != nil {
				return err
			}
			res.Updated++
			touched = append(touched, existing.ID)
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	lotsGenerated.Add(float64(res.Generated))
	lotsUpdated.Add(float64(res.Updated))

	if res.Generated > 0 || res.Updated > 0 {
		e.log.Info().
			Str("employee", employeeID).
			Int("generated", res.Generated).
			Int("updated", res.Updated).
			Msg("grant lots generated")
		e.emitAudit(ctx, leave.AuditEntry{
			ID:         uuid.NewString(),
			At:         until,
			Action:     leave.AuditLotGenerated,
			EmployeeID: employeeID,
			LotIDs:     touched,
			Detail:     fmt.Sprintf("generated=%d updated=%d until=%s", res.Generated, res.Updated, until),
		})
	}
	return res, nil
}

// ReconcileDuplicates repairs lots that were created for the same grant
// date under different policy versions before the unique-index guarantee
// existed (imported data, historical bugs). The lot under the newest policy
// version survives; consumption rows from superseded lots are folded into
// it, never discarded, and the emptied lots are removed.
func (e *Engine) ReconcileDuplicates(ctx context.Context, employeeID string) (int, error) {
	removed := 0
	err := e.store.WithTx(ctx, func(s leave.Store) error {
		lots, err := s.LotsByEmployee(ctx, employeeID)
		if err != nil {
			return err
		}

		byDate := map[string][]*leave.GrantLot{}
		for _, lot := range lots {
			key := lot.GrantDate.String()
			byDate[key] = append(byDate[key], lot)
		}

		for _, group := range byDate {
			if len(group) < 2 {
				continue
			}
			// Newest policy version wins. Versions are opaque strings, so
			// "newest" means the last one in version-string order; ties
			// cannot happen because of the unique index.
			sort.Slice(group, func(i, j int) bool {
				return group[i].PolicyVersion < group[j].PolicyVersion
			})
			survivor := group[len(group)-1]

			for _, superseded := range group[:len(group)-1] {
				cs, err := s.ConsumptionsByLot(ctx, superseded.ID)
				if err != nil {
					return err
				}
				for _, c := range cs {
					if err := s.DeleteConsumption(ctx, c.ID); err != nil {
						return err
					}
					c.LotID = survivor.ID
					if err := s.InsertConsumption(ctx, c); err != nil {
						return err
					}
				}
				if err := s.DeleteLot(ctx, superseded.ID); err != nil {
					return err
				}
				removed++
			}

			consumed, err := s.ConsumedByLot(ctx, survivor.ID)
			if err != nil {
				return err
			}
			survivor.DaysRemaining = leave.ClampDays(
				survivor.DaysGranted.Sub(consumed), leave.ZeroDays(), survivor.DaysGranted)
			if err := s.UpdateLot(ctx, survivor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.log.Warn().Str("employee", employeeID).Int("removed", removed).Msg("duplicate grant lots reconciled")
	}
	return removed, nil
}
