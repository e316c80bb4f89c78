/*
Package engine implements the operational half of the leave ledger: grant
lot generation, expiry, consumption allocation, balance summary, and
drift-correcting recalculation.

Every mutating operation for one employee runs inside a single store
transaction, so a scheduled expiry run and a concurrent approval can never
interleave writes for the same set of lots. Batch entry points iterate the
population and isolate failures per employee.

SEE ALSO:
  - generator.go: idempotent lot generation against a policy version
  - expiry.go:    forfeiture of balances past their expiry date
  - allocator.go: FIFO consumption on approval, exact reversal on rejection
  - summary.go:   balance reporting and recalculation
  - batch.go:     population-wide daily runs
*/
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hrforge/leave-engine/leave"
)

// Engine wires the ledger components to a Store. Audit is optional; when
// set, every mutation emits an entry for external history keeping.
type Engine struct {
	store leave.Store
	audit leave.AuditLog
	log   zerolog.Logger
}

func New(store leave.Store, opts ...Option) *Engine {
	e := &Engine{store: store, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Option func(*Engine)

func WithAudit(audit leave.AuditLog) Option {
	return func(e *Engine) { e.audit = audit }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// resolvePolicy applies the version resolution order: the employee's pinned
// version, else the active version, else the built-in default.
func (e *Engine) resolvePolicy(ctx context.Context, store leave.Store, emp *leave.Employee) (*leave.PolicyConfig, error) {
	if emp.PolicyVersion != "" {
		return store.GetPolicy(ctx, emp.PolicyVersion)
	}
	active, err := store.ActivePolicy(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}
	return leave.DefaultPolicy(), nil
}

func (e *Engine) emitAudit(ctx context.Context, entry leave.AuditEntry) {
	if e.audit == nil {
		return
	}
	if err := e.audit.AppendAudit(ctx, entry); err != nil {
		// Audit is an external collaborator; its failure must not poison a
		// committed ledger mutation.
		e.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("audit append failed")
	}
}
