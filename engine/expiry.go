/*
expiry.go - Forfeiture of balances past their expiry date

A lot whose expiry date has passed keeps its DaysGranted and its
consumption history; only the unused remainder is zeroed. Nothing is
transferred to a newer lot. Running twice on the same date is a no-op the
second time.
*/
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hrforge/leave-engine/leave"
)

// ExpireEmployee zeroes the remaining balance of every lot belonging to
// one employee with ExpiryDate < asOf, inside the employee's transaction.
// Returns the number of lots forfeited.
func (e *Engine) ExpireEmployee(ctx context.Context, employeeID string, asOf leave.Date) (int, error) {
	expired := 0
	var touched []string

	err := e.store.WithTx(ctx, func(s leave.Store) error {
		lots, err := s.LotsByEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			if !lot.Expired(asOf) || !lot.DaysRemaining.IsPositive() {
				continue
			}
			forfeited := lot.DaysRemaining
			lot.DaysRemaining = leave.ZeroDays()
			if err := s.UpdateLot(ctx, lot); err != nil {
				return err
			}
			expired++
			touched = append(touched, lot.ID)

			e.log.Debug().
				Str("employee", employeeID).
				Str("lot", lot.ID).
				Str("forfeited", forfeited.String()).
				Str("expiry", lot.ExpiryDate.String()).
				Msg("lot expired")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	lotsExpired.Add(float64(expired))
	if expired > 0 {
		e.emitAudit(ctx, leave.AuditEntry{
			ID:         uuid.NewString(),
			At:         asOf,
			Action:     leave.AuditLotExpired,
			EmployeeID: employeeID,
			LotIDs:     touched,
			Detail:     fmt.Sprintf("expired=%d asOf=%s", expired, asOf),
		})
	}
	return expired, nil
}
