// Package memory provides an in-memory leave.Store for tests and local
// development. WithTx simulates a transaction with snapshot + restore; the
// store-wide lock also gives the per-employee serialization the engine
// requires.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hrforge/leave-engine/leave"
)

type Store struct {
	mu           sync.RWMutex
	policies     map[string]leave.PolicyConfig
	employees    map[string]leave.Employee
	lots         map[string]leave.GrantLot
	consumptions map[string]leave.Consumption
	requests     map[string]leave.LeaveRequest
	audits       []leave.AuditEntry
}

func New() *Store {
	return &Store{
		policies:     make(map[string]leave.PolicyConfig),
		employees:    make(map[string]leave.Employee),
		lots:         make(map[string]leave.GrantLot),
		consumptions: make(map[string]leave.Consumption),
		requests:     make(map[string]leave.LeaveRequest),
	}
}

var _ leave.Store = (*Store)(nil)
var _ leave.AuditLog = (*Store)(nil)

// =============================================================================
// POLICIES
// =============================================================================

func (m *Store) SavePolicy(_ context.Context, policy *leave.PolicyConfig) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePolicyLocked(policy)
}

func (m *Store) savePolicyLocked(policy *leave.PolicyConfig) error {
	m.policies[policy.Version] = *policy
	return nil
}

func (m *Store) GetPolicy(_ context.Context, version string) (*leave.PolicyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPolicyLocked(version)
}

func (m *Store) getPolicyLocked(version string) (*leave.PolicyConfig, error) {
	p, ok := m.policies[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", leave.ErrPolicyNotFound, version)
	}
	return &p, nil
}

func (m *Store) ActivePolicy(_ context.Context) (*leave.PolicyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activePolicyLocked()
}

func (m *Store) activePolicyLocked() (*leave.PolicyConfig, error) {
	for _, p := range m.policies {
		if p.Active {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Store) ListPolicies(_ context.Context) ([]*leave.PolicyConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPoliciesLocked()
}

func (m *Store) listPoliciesLocked() ([]*leave.PolicyConfig, error) {
	out := make([]*leave.PolicyConfig, 0, len(m.policies))
	for _, p := range m.policies {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Store) ActivatePolicy(_ context.Context, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activatePolicyLocked(version)
}

func (m *Store) activatePolicyLocked(version string) error {
	target, ok := m.policies[version]
	if !ok {
		return fmt.Errorf("%w: %s", leave.ErrPolicyNotFound, version)
	}
	for v, p := range m.policies {
		if p.Active {
			p.Active = false
			m.policies[v] = p
		}
	}
	target.Active = true
	m.policies[version] = target
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Store) SaveEmployee(_ context.Context, emp *leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEmployeeLocked(emp)
}

func (m *Store) saveEmployeeLocked(emp *leave.Employee) error {
	m.employees[emp.ID] = *emp
	return nil
}

func (m *Store) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id)
}

func (m *Store) getEmployeeLocked(id string) (*leave.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", leave.ErrEmployeeNotFound, id)
	}
	return &emp, nil
}

func (m *Store) ListEmployees(_ context.Context) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployeesLocked()
}

func (m *Store) listEmployeesLocked() ([]*leave.Employee, error) {
	out := make([]*leave.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		emp := emp
		out = append(out, &emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// GRANT LOTS
// =============================================================================

func (m *Store) InsertLot(_ context.Context, lot *leave.GrantLot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLotLocked(lot)
}

func (m *Store) insertLotLocked(lot *leave.GrantLot) error {
	for _, existing := range m.lots {
		if existing.EmployeeID == lot.EmployeeID && existing.GrantDate.Equal(lot.GrantDate) {
			return &leave.DuplicateGrantError{
				EmployeeID: lot.EmployeeID,
				GrantDate:  lot.GrantDate,
				ExistingID: existing.ID,
			}
		}
	}
	m.lots[lot.ID] = *lot
	return nil
}

// SeedLot inserts a lot without the (employee, grant date) uniqueness check.
// Test-only: lets reconciliation tests construct the duplicates that
// imported data can contain.
func (m *Store) SeedLot(lot *leave.GrantLot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lots[lot.ID] = *lot
}

func (m *Store) UpdateLot(_ context.Context, lot *leave.GrantLot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLotLocked(lot)
}

func (m *Store) updateLotLocked(lot *leave.GrantLot) error {
	if _, ok := m.lots[lot.ID]; !ok {
		return fmt.Errorf("%w: %s", leave.ErrLotNotFound, lot.ID)
	}
	m.lots[lot.ID] = *lot
	return nil
}

func (m *Store) DeleteLot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLotLocked(id)
}

func (m *Store) deleteLotLocked(id string) error {
	if _, ok := m.lots[id]; !ok {
		return fmt.Errorf("%w: %s", leave.ErrLotNotFound, id)
	}
	delete(m.lots, id)
	return nil
}

func (m *Store) LotByGrantDate(_ context.Context, employeeID string, grantDate leave.Date) (*leave.GrantLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lotByGrantDateLocked(employeeID, grantDate)
}

func (m *Store) lotByGrantDateLocked(employeeID string, grantDate leave.Date) (*leave.GrantLot, error) {
	for _, lot := range m.lots {
		if lot.EmployeeID == employeeID && lot.GrantDate.Equal(grantDate) {
			lot := lot
			return &lot, nil
		}
	}
	return nil, nil
}

func (m *Store) LotsByEmployee(_ context.Context, employeeID string) ([]*leave.GrantLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lotsByEmployeeLocked(employeeID)
}

func (m *Store) lotsByEmployeeLocked(employeeID string) ([]*leave.GrantLot, error) {
	var out []*leave.GrantLot
	for _, lot := range m.lots {
		if lot.EmployeeID == employeeID {
			lot := lot
			out = append(out, &lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantDate.Before(out[j].GrantDate) })
	return out, nil
}

func (m *Store) ConsumableLots(_ context.Context, employeeID string, onOrAfter leave.Date) ([]*leave.GrantLot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consumableLotsLocked(employeeID, onOrAfter)
}

func (m *Store) consumableLotsLocked(employeeID string, onOrAfter leave.Date) ([]*leave.GrantLot, error) {
	var out []*leave.GrantLot
	for _, lot := range m.lots {
		if lot.EmployeeID == employeeID && lot.DaysRemaining.IsPositive() && lot.ExpiryDate.OnOrAfter(onOrAfter) {
			lot := lot
			out = append(out, &lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantDate.Before(out[j].GrantDate) })
	return out, nil
}

// =============================================================================
// CONSUMPTIONS
// =============================================================================

func (m *Store) InsertConsumption(_ context.Context, c *leave.Consumption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertConsumptionLocked(c)
}

func (m *Store) insertConsumptionLocked(c *leave.Consumption) error {
	m.consumptions[c.ID] = *c
	return nil
}

func (m *Store) DeleteConsumption(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteConsumptionLocked(id)
}

func (m *Store) deleteConsumptionLocked(id string) error {
	delete(m.consumptions, id)
	return nil
}

func (m *Store) ConsumptionsByRequest(_ context.Context, requestID string) ([]*leave.Consumption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consumptionsByRequestLocked(requestID)
}

func (m *Store) consumptionsByRequestLocked(requestID string) ([]*leave.Consumption, error) {
	return m.filterConsumptions(func(c leave.Consumption) bool { return c.RequestID == requestID }), nil
}

func (m *Store) ConsumptionsByLot(_ context.Context, lotID string) ([]*leave.Consumption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consumptionsByLotLocked(lotID)
}

func (m *Store) consumptionsByLotLocked(lotID string) ([]*leave.Consumption, error) {
	return m.filterConsumptions(func(c leave.Consumption) bool { return c.LotID == lotID }), nil
}

func (m *Store) ConsumptionsByEmployee(_ context.Context, employeeID string, from, to leave.Date) ([]*leave.Consumption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consumptionsByEmployeeLocked(employeeID, from, to)
}

func (m *Store) consumptionsByEmployeeLocked(employeeID string, from, to leave.Date) ([]*leave.Consumption, error) {
	return m.filterConsumptions(func(c leave.Consumption) bool {
		return c.EmployeeID == employeeID && c.Date.OnOrAfter(from) && c.Date.OnOrBefore(to)
	}), nil
}

func (m *Store) filterConsumptions(keep func(leave.Consumption) bool) []*leave.Consumption {
	var out []*leave.Consumption
	for _, c := range m.consumptions {
		if keep(c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Store) ConsumedByLot(_ context.Context, lotID string) (leave.Days, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consumedByLotLocked(lotID)
}

func (m *Store) consumedByLotLocked(lotID string) (leave.Days, error) {
	total := leave.ZeroDays()
	for _, c := range m.consumptions {
		if c.LotID == lotID {
			total = total.Add(c.DaysUsed)
		}
	}
	return total, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Store) SaveRequest(_ context.Context, req *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRequestLocked(req)
}

func (m *Store) saveRequestLocked(req *leave.LeaveRequest) error {
	m.requests[req.ID] = *req
	return nil
}

func (m *Store) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Store) getRequestLocked(id string) (*leave.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", leave.ErrRequestNotFound, id)
	}
	return &req, nil
}

func (m *Store) ListRequestsByStatus(_ context.Context, status leave.RequestStatus) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsByStatusLocked(status)
}

func (m *Store) listRequestsByStatusLocked(status leave.RequestStatus) ([]*leave.LeaveRequest, error) {
	var out []*leave.LeaveRequest
	for _, req := range m.requests {
		if req.Status == status {
			req := req
			out = append(out, &req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Store) AppendAudit(_ context.Context, entry leave.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *Store) AuditByEmployee(_ context.Context, employeeID string) ([]leave.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []leave.AuditEntry
	for _, entry := range m.audits {
		if entry.EmployeeID == employeeID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS - snapshot + restore
// =============================================================================

// WithTx executes fn under the store lock against an unlocked view. On
// error the pre-transaction snapshot is restored, so a failed fn leaves no
// partial mutation.
func (m *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	policies     map[string]leave.PolicyConfig
	employees    map[string]leave.Employee
	lots         map[string]leave.GrantLot
	consumptions map[string]leave.Consumption
	requests     map[string]leave.LeaveRequest
}

func (m *Store) snapshot() snapshot {
	return snapshot{
		policies:     copyMap(m.policies),
		employees:    copyMap(m.employees),
		lots:         copyMap(m.lots),
		consumptions: copyMap(m.consumptions),
		requests:     copyMap(m.requests),
	}
}

func (m *Store) restore(s snapshot) {
	m.policies = s.policies
	m.employees = s.employees
	m.lots = s.lots
	m.consumptions = s.consumptions
	m.requests = s.requests
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// txView exposes the parent's unlocked internals while the parent holds
// its own lock for the duration of WithTx.
type txView struct {
	parent *Store
}

var _ leave.Store = (*txView)(nil)

func (v *txView) SavePolicy(_ context.Context, p *leave.PolicyConfig) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return v.parent.savePolicyLocked(p)
}
func (v *txView) GetPolicy(_ context.Context, version string) (*leave.PolicyConfig, error) {
	return v.parent.getPolicyLocked(version)
}
func (v *txView) ActivePolicy(_ context.Context) (*leave.PolicyConfig, error) {
	return v.parent.activePolicyLocked()
}
func (v *txView) ListPolicies(_ context.Context) ([]*leave.PolicyConfig, error) {
	return v.parent.listPoliciesLocked()
}
func (v *txView) ActivatePolicy(_ context.Context, version string) error {
	return v.parent.activatePolicyLocked(version)
}
func (v *txView) SaveEmployee(_ context.Context, emp *leave.Employee) error {
	return v.parent.saveEmployeeLocked(emp)
}
func (v *txView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return v.parent.getEmployeeLocked(id)
}
func (v *txView) ListEmployees(_ context.Context) ([]*leave.Employee, error) {
	return v.parent.listEmployeesLocked()
}
func (v *txView) InsertLot(_ context.Context, lot *leave.GrantLot) error {
	return v.parent.insertLotLocked(lot)
}
func (v *txView) UpdateLot(_ context.Context, lot *leave.GrantLot) error {
	return v.parent.updateLotLocked(lot)
}
func (v *txView) DeleteLot(_ context.Context, id string) error {
	return v.parent.deleteLotLocked(id)
}
func (v *txView) LotByGrantDate(_ context.Context, employeeID string, grantDate leave.Date) (*leave.GrantLot, error) {
	return v.parent.lotByGrantDateLocked(employeeID, grantDate)
}
func (v *txView) LotsByEmployee(_ context.Context, employeeID string) ([]*leave.GrantLot, error) {
	return v.parent.lotsByEmployeeLocked(employeeID)
}
func (v *txView) ConsumableLots(_ context.Context, employeeID string, onOrAfter leave.Date) ([]*leave.GrantLot, error) {
	return v.parent.consumableLotsLocked(employeeID, onOrAfter)
}
func (v *txView) InsertConsumption(_ context.Context, c *leave.Consumption) error {
	return v.parent.insertConsumptionLocked(c)
}
func (v *txView) DeleteConsumption(_ context.Context, id string) error {
	return v.parent.deleteConsumptionLocked(id)
}
func (v *txView) ConsumptionsByRequest(_ context.Context, requestID string) ([]*leave.Consumption, error) {
	return v.parent.consumptionsByRequestLocked(requestID)
}
func (v *txView) ConsumptionsByLot(_ context.Context, lotID string) ([]*leave.Consumption, error) {
	return v.parent.consumptionsByLotLocked(lotID)
}
func (v *txView) ConsumptionsByEmployee(_ context.Context, employeeID string, from, to leave.Date) ([]*leave.Consumption, error) {
	return v.parent.consumptionsByEmployeeLocked(employeeID, from, to)
}
func (v *txView) ConsumedByLot(_ context.Context, lotID string) (leave.Days, error) {
	return v.parent.consumedByLotLocked(lotID)
}
func (v *txView) SaveRequest(_ context.Context, req *leave.LeaveRequest) error {
	return v.parent.saveRequestLocked(req)
}
func (v *txView) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return v.parent.getRequestLocked(id)
}
func (v *txView) ListRequestsByStatus(_ context.Context, status leave.RequestStatus) ([]*leave.LeaveRequest, error) {
	return v.parent.listRequestsByStatusLocked(status)
}
func (v *txView) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	// Already inside the parent's transaction.
	return fn(v)
}
