/*
summary.go - Balance reporting and drift-correcting recalculation

The summary is a read model: total remaining over non-expired lots, a
per-lot breakdown, the next scheduled grant date, and the statutory-usage
position for the current grant period.

Recalc rebuilds every lot's DaysRemaining from first principles
(granted - consumed, clamped), repairing drift from manual edits or
historical bugs. It is idempotent and never touches consumption rows. A
recalculated lot past its expiry date regains its arithmetic balance; the
next expiry run forfeits it again.
*/
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hrforge/leave-engine/leave"
)

// LotBalance is one lot's line in the summary.
type LotBalance struct {
	LotID         string     `json:"lotId"`
	GrantDate     leave.Date `json:"grantDate"`
	ExpiryDate    leave.Date `json:"expiryDate"`
	DaysGranted   leave.Days `json:"daysGranted"`
	DaysRemaining leave.Days `json:"daysRemaining"`
	PolicyVersion string     `json:"policyVersion"`
	Expired       bool       `json:"expired"`
}

// LegalUsage reports consumption against the statutory minimum for the
// current grant period.
type LegalUsage struct {
	PeriodStart  leave.Date `json:"periodStart"`
	PeriodEnd    leave.Date `json:"periodEnd"`
	Consumed     leave.Days `json:"consumed"`
	MinRequired  leave.Days `json:"minRequired"`
	PeriodGrant  leave.Days `json:"periodGrant"`
	AlertActive  bool       `json:"alertActive"`
}

// BalanceSummary is the employee-facing balance view.
type BalanceSummary struct {
	EmployeeID     string       `json:"employeeId"`
	AsOf           leave.Date   `json:"asOf"`
	TotalRemaining leave.Days   `json:"totalRemaining"`
	Lots           []LotBalance `json:"lots"`
	NextGrantDate  *leave.Date  `json:"nextGrantDate,omitempty"`
	LegalUsage     *LegalUsage  `json:"legalUsage,omitempty"`
}

// Summary aggregates the employee's balance as of a date. Expired lots are
// listed but excluded from the total.
func (e *Engine) Summary(ctx context.Context, employeeID string, asOf leave.Date) (*BalanceSummary, error) {
	emp, err := e.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	policy, err := e.resolvePolicy(ctx, e.store, emp)
	if err != nil {
		return nil, err
	}
	lots, err := e.store.LotsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	summary := &BalanceSummary{
		EmployeeID:     employeeID,
		AsOf:           asOf,
		TotalRemaining: leave.ZeroDays(),
	}
	for _, lot := range lots {
		expired := lot.Expired(asOf)
		if !expired {
			summary.TotalRemaining = summary.TotalRemaining.Add(lot.DaysRemaining)
		}
		summary.Lots = append(summary.Lots, LotBalance{
			LotID:         lot.ID,
			GrantDate:     lot.GrantDate,
			ExpiryDate:    lot.ExpiryDate,
			DaysGranted:   lot.DaysGranted,
			DaysRemaining: lot.DaysRemaining,
			PolicyVersion: lot.PolicyVersion,
			Expired:       expired,
		})
	}

	if next, ok := leave.NextGrantDate(emp.JoinDate, policy, asOf); ok {
		summary.NextGrantDate = &next
	}

	usage, err := e.legalUsage(ctx, emp, policy, lots, asOf)
	if err != nil {
		return nil, err
	}
	summary.LegalUsage = usage

	return summary, nil
}

// legalUsage computes consumption within the current grant period against
// the policy's statutory minimum. Nil when the schedule has not started.
func (e *Engine) legalUsage(ctx context.Context, emp *leave.Employee, policy *leave.PolicyConfig, lots []*leave.GrantLot, asOf leave.Date) (*LegalUsage, error) {
	periodStart, ok := leave.PreviousGrantDate(emp.JoinDate, policy, asOf)
	if !ok {
		return nil, nil
	}
	periodEnd, ok := leave.NextGrantDate(emp.JoinDate, policy, asOf)
	if !ok {
		periodEnd = periodStart.AddMonths(policy.GrantCycleMonths)
	}

	consumed := leave.ZeroDays()
	cs, err := e.store.ConsumptionsByEmployee(ctx, emp.ID, periodStart, periodEnd.AddDays(-1))
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		consumed = consumed.Add(c.DaysUsed)
	}

	periodGrant := leave.ZeroDays()
	for _, lot := range lots {
		if lot.GrantDate.Equal(periodStart) {
			periodGrant = lot.DaysGranted
			break
		}
	}

	return &LegalUsage{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Consumed:    consumed,
		MinRequired: policy.MinLegalUseDays,
		PeriodGrant: periodGrant,
		AlertActive: periodGrant.GreaterThanOrEqual(policy.MinGrantDaysForAlert) &&
			consumed.LessThan(policy.MinLegalUseDays),
	}, nil
}

// Recalc rebuilds DaysRemaining for every one of the employee's lots from
// its consumption rows. Safe to run repeatedly.
func (e *Engine) Recalc(ctx context.Context, employeeID string) error {
	repaired := 0
	err := e.store.WithTx(ctx, func(s leave.Store) error {
		lots, err := s.LotsByEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			consumed, err := s.ConsumedByLot(ctx, lot.ID)
			if err != nil {
				return err
			}
			want := leave.ClampDays(lot.DaysGranted.Sub(consumed), leave.ZeroDays(), lot.DaysGranted)
			if lot.DaysRemaining.Equal(want) {
				continue
			}
			lot.DaysRemaining = want
			if err := s.UpdateLot(ctx, lot); err != nil {
				return err
			}
			repaired++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if repaired > 0 {
		e.log.Warn().Str("employee", employeeID).Int("repaired", repaired).Msg("lot balances recalculated")
		e.emitAudit(ctx, leave.AuditEntry{
			ID:         uuid.NewString(),
			At:         leave.Today(),
			Action:     leave.AuditRecalculated,
			EmployeeID: employeeID,
			Detail:     fmt.Sprintf("repaired=%d", repaired),
		})
	}
	return nil
}
