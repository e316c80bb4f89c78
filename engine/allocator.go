/*
allocator.go - FIFO consumption on approval, exact reversal on rejection

APPROVAL:
  Lots funding a request are the employee's lots with DaysRemaining > 0 and
  ExpiryDate >= the request's start date, walked oldest grant first ("use it
  before it expires"). The full allocation is planned before anything is
  written: a request that cannot be fully funded fails with
  InsufficientBalance and leaves every lot untouched. The whole debit is one
  transaction per request.

REVERSAL:
  Rejection or cancellation of an approved request restores the exact
  DaysUsed of each consumption row onto its originating lot and deletes the
  row. A lot that has since expired gets its balance back anyway - the
  consumption never should have happened - and the next expiry run forfeits
  it again.
*/
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hrforge/leave-engine/leave"
)

type lotDebit struct {
	lot  *leave.GrantLot
	days leave.Days
}

// Approve settles an approved request against the employee's lots and
// marks the request APPROVED. Fails with InsufficientBalance (and no
// mutation) when the non-expired lots cannot fund TotalDays.
func (e *Engine) Approve(ctx context.Context, req *leave.LeaveRequest) error {
	if req.TotalDays.IsZero() || req.TotalDays.IsNegative() {
		return fmt.Errorf("%w: total days must be positive, got %s", leave.ErrInvalidRequest, req.TotalDays)
	}
	if req.EndDate.Before(req.StartDate) {
		return fmt.Errorf("%w: end date %s before start date %s", leave.ErrInvalidRequest, req.EndDate, req.StartDate)
	}

	var debits []lotDebit
	err := e.store.WithTx(ctx, func(s leave.Store) error {
		lots, err := s.ConsumableLots(ctx, req.EmployeeID, req.StartDate)
		if err != nil {
			return err
		}

		// Plan the whole allocation first. Nothing below writes until the
		// request is known to be fully fundable.
		need := req.TotalDays
		available := leave.ZeroDays()
		for _, lot := range lots {
			available = available.Add(lot.DaysRemaining)
			if !need.IsPositive() {
				continue
			}
			take := leave.MinDays(need, lot.DaysRemaining)
			debits = append(debits, lotDebit{lot: lot, days: take})
			need = need.Sub(take)
		}
		if need.IsPositive() {
			debits = nil
			insufficientBalance.Inc()
			return &leave.InsufficientBalanceError{
				EmployeeID: req.EmployeeID,
				RequestID:  req.ID,
				Requested:  req.TotalDays,
				Available:  available,
			}
		}

		for _, d := range debits {
			d.lot.DaysRemaining = d.lot.DaysRemaining.Sub(d.days)
			if err := s.UpdateLot(ctx, d.lot); err != nil {
				return err
			}
			if err := s.InsertConsumption(ctx, &leave.Consumption{
				ID:         uuid.NewString(),
				LotID:      d.lot.ID,
				EmployeeID: req.EmployeeID,
				RequestID:  req.ID,
				Date:       req.StartDate,
				DaysUsed:   d.days,
			}); err != nil {
				return err
			}
		}

		req.Status = leave.StatusApproved
		return s.SaveRequest(ctx, req)
	})
	if err != nil {
		return err
	}

	approvals.Inc()
	lotIDs := make([]string, len(debits))
	for i, d := range debits {
		lotIDs[i] = d.lot.ID
	}
	e.log.Info().
		Str("employee", req.EmployeeID).
		Str("request", req.ID).
		Str("days", req.TotalDays.String()).
		Int("lots", len(debits)).
		Msg("request approved")
	e.emitAudit(ctx, leave.AuditEntry{
		ID:         uuid.NewString(),
		At:         req.StartDate,
		Action:     leave.AuditRequestApproved,
		EmployeeID: req.EmployeeID,
		RequestID:  req.ID,
		LotIDs:     lotIDs,
		Amount:     req.TotalDays,
	})
	return nil
}

// Reverse undoes the consumption of a previously approved request and sets
// it to the given terminal status (REJECTED or CANCELLED). Reversing a
// request with no consumption rows is a no-op on the lots.
func (e *Engine) Reverse(ctx context.Context, requestID string, status leave.RequestStatus) error {
	var restored leave.Days
	var lotIDs []string
	var employeeID string

	err := e.store.WithTx(ctx, func(s leave.Store) error {
		req, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		employeeID = req.EmployeeID

		cs, err := s.ConsumptionsByRequest(ctx, requestID)
		if err != nil {
			return err
		}
		for _, c := range cs {
			lot, err := lotByID(ctx, s, c.EmployeeID, c.LotID)
			if err != nil {
				return err
			}
			lot.DaysRemaining = lot.DaysRemaining.Add(c.DaysUsed)
			if err := s.UpdateLot(ctx, lot); err != nil {
				return err
			}
			if err := s.DeleteConsumption(ctx, c.ID); err != nil {
				return err
			}
			restored = restored.Add(c.DaysUsed)
			lotIDs = append(lotIDs, lot.ID)
		}

		req.Status = status
		return s.SaveRequest(ctx, req)
	})
	if err != nil {
		return err
	}

	reversals.Inc()
	e.log.Info().
		Str("employee", employeeID).
		Str("request", requestID).
		Str("restored", restored.String()).
		Str("status", string(status)).
		Msg("request reversed")
	e.emitAudit(ctx, leave.AuditEntry{
		ID:         uuid.NewString(),
		At:         leave.Today(),
		Action:     leave.AuditRequestReversed,
		EmployeeID: employeeID,
		RequestID:  requestID,
		LotIDs:     lotIDs,
		Amount:     restored,
	})
	return nil
}

func lotByID(ctx context.Context, s leave.Store, employeeID, lotID string) (*leave.GrantLot, error) {
	lots, err := s.LotsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	for _, lot := range lots {
		if lot.ID == lotID {
			return lot, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", leave.ErrLotNotFound, lotID)
}
