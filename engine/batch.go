/*
batch.go - Population-wide daily runs

The two scheduled entry points: "generate up to today" and "expire as of
today". Per-employee work is independent; one employee's failure is logged
with their id, counted, and skipped - it never aborts the rest of the run.
*/
package engine

import (
	"context"

	"github.com/hrforge/leave-engine/leave"
)

// BatchResult reports what a population run did, for observability.
type BatchResult struct {
	Employees int `json:"employees"`
	Generated int `json:"generated"`
	Updated   int `json:"updated"`
	Expired   int `json:"expired"`
	Failed    int `json:"failed"`
}

// RunGenerate generates lots for every employee through until. Idempotent:
// a second identical run reports zero generated and updated.
func (e *Engine) RunGenerate(ctx context.Context, until leave.Date) (BatchResult, error) {
	employees, err := e.store.ListEmployees(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	res.Employees = len(employees)
	for _, emp := range employees {
		gr, err := e.Generate(ctx, emp.ID, until)
		if err != nil {
			res.Failed++
			batchFailures.Inc()
			e.log.Error().Err(err).Str("employee", emp.ID).Msg("generation failed, skipping employee")
			continue
		}
		res.Generated += gr.Generated
		res.Updated += gr.Updated
	}

	e.log.Info().
		Int("employees", res.Employees).
		Int("generated", res.Generated).
		Int("updated", res.Updated).
		Int("failed", res.Failed).
		Str("until", until.String()).
		Msg("generation run complete")
	return res, nil
}

// RunExpire forfeits expired balances for every employee as of asOf.
// Idempotent: a second run on the same date expires zero lots.
func (e *Engine) RunExpire(ctx context.Context, asOf leave.Date) (BatchResult, error) {
	employees, err := e.store.ListEmployees(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	res.Employees = len(employees)
	for _, emp := range employees {
		n, err := e.ExpireEmployee(ctx, emp.ID, asOf)
		if err != nil {
			res.Failed++
			batchFailures.Inc()
			e.log.Error().Err(err).Str("employee", emp.ID).Msg("expiry failed, skipping employee")
			continue
		}
		res.Expired += n
	}

	e.log.Info().
		Int("employees", res.Employees).
		Int("expired", res.Expired).
		Int("failed", res.Failed).
		Str("asOf", asOf.String()).
		Msg("expiry run complete")
	return res, nil
}
