/*
store.go - Persistence interface for the leave ledger

PURPOSE:
  One interface between the engine and the database. Implementations:
  store/sqlite (production) and store/memory (tests).

TRANSACTION CONTRACT:
  All mutation for a single employee's lots happens inside WithTx. The
  implementation guarantees that concurrent WithTx calls do not interleave
  writes for the same employee, which is what keeps a daily expiry run and
  a simultaneous approval from racing each other.

UPSERT GUARANTEE:
  InsertLot must enforce at most one lot per (EmployeeID, GrantDate) and
  return ErrDuplicateGrant on collision. The generator relies on this; it
  must never be possible to patch duplicates away after the fact.
*/
package leave

import "context"

// Store is the persistence boundary for every ledger record.
type Store interface {
	// Policies. GetPolicy fails with ErrPolicyNotFound for an unknown
	// version; ActivePolicy returns (nil, nil) when no version is active.
	SavePolicy(ctx context.Context, policy *PolicyConfig) error
	GetPolicy(ctx context.Context, version string) (*PolicyConfig, error)
	ActivePolicy(ctx context.Context) (*PolicyConfig, error)
	ListPolicies(ctx context.Context) ([]*PolicyConfig, error)

	// ActivatePolicy atomically deactivates every version and activates the
	// named one. A reader never observes zero or multiple active versions.
	ActivatePolicy(ctx context.Context, version string) error

	// Employees
	SaveEmployee(ctx context.Context, emp *Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)

	// Grant lots
	InsertLot(ctx context.Context, lot *GrantLot) error
	UpdateLot(ctx context.Context, lot *GrantLot) error
	DeleteLot(ctx context.Context, id string) error
	// LotByGrantDate returns (nil, nil) when no lot exists for the date.
	LotByGrantDate(ctx context.Context, employeeID string, grantDate Date) (*GrantLot, error)

	// LotsByEmployee returns all lots ordered ascending by grant date.
	LotsByEmployee(ctx context.Context, employeeID string) ([]*GrantLot, error)

	// ConsumableLots returns lots with DaysRemaining > 0 and ExpiryDate >=
	// onOrAfter, ordered ascending by grant date (oldest grant first).
	ConsumableLots(ctx context.Context, employeeID string, onOrAfter Date) ([]*GrantLot, error)

	// Consumptions
	InsertConsumption(ctx context.Context, c *Consumption) error
	DeleteConsumption(ctx context.Context, id string) error
	ConsumptionsByRequest(ctx context.Context, requestID string) ([]*Consumption, error)
	ConsumptionsByLot(ctx context.Context, lotID string) ([]*Consumption, error)
	ConsumptionsByEmployee(ctx context.Context, employeeID string, from, to Date) ([]*Consumption, error)

	// ConsumedByLot returns the sum of DaysUsed over the lot's consumptions.
	ConsumedByLot(ctx context.Context, lotID string) (Days, error)

	// Requests
	SaveRequest(ctx context.Context, req *LeaveRequest) error
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	ListRequestsByStatus(ctx context.Context, status RequestStatus) ([]*LeaveRequest, error)

	// WithTx runs fn atomically. A returned error rolls everything back and
	// leaves no partial mutation.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT - What the ledger emits for external history keeping
// =============================================================================

type AuditAction string

const (
	AuditLotGenerated    AuditAction = "lot_generated"
	AuditLotUpdated      AuditAction = "lot_updated"
	AuditLotExpired      AuditAction = "lot_expired"
	AuditRequestApproved AuditAction = "request_approved"
	AuditRequestReversed AuditAction = "request_reversed"
	AuditPolicyActivated AuditAction = "policy_activated"
	AuditRecalculated    AuditAction = "recalculated"
)

// AuditEntry carries enough detail (request id, amount, lots touched) for
// an external audit log or point-in-time snapshot to be reconstructed.
type AuditEntry struct {
	ID         string
	At         Date
	Action     AuditAction
	EmployeeID string
	RequestID  string
	LotIDs     []string
	Amount     Days
	Detail     string
}

// AuditLog is append-only. The ledger emits entries; it does not own the
// history storage semantics beyond persisting what happened.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	AuditByEmployee(ctx context.Context, employeeID string) ([]AuditEntry, error)
}
