/*
Package sqlite provides the SQLite-backed implementation of leave.Store
and leave.AuditLog.

KEY TABLES:
  policies:     versioned policy documents; active flag, at most one set
  employees:    directory fields the ledger reads
  grant_lots:   the ledger rows; UNIQUE(employee_id, grant_date) enforces
                the upsert guarantee the generator depends on
  consumptions: debits against lots, deleted on reversal
  requests:     leave request records for the approval workflow
  audit_log:    append-only history the engine emits

AMOUNTS:
  Day quantities are stored as decimal strings, never floats. Half-day
  grants must round-trip exactly.

CONCURRENCY:
  A store-wide mutex serializes writers on top of SQLite's own locking;
  WithTx wraps a real BEGIN..COMMIT so a failed operation leaves no
  partial mutation. WAL mode keeps readers unblocked.

USAGE:
  store, err := sqlite.New("./data/leave.db")   // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hrforge/leave-engine/leave"
)

// Store implements leave.Store and leave.AuditLog on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Store = (*Store)(nil)
var _ leave.AuditLog = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policies (
		version TEXT PRIMARY KEY,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_policies_active
		ON policies(active) WHERE active;

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		join_date TEXT NOT NULL,
		pattern TEXT NOT NULL,
		policy_version TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grant_lots (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		grant_date TEXT NOT NULL,
		expiry_date TEXT NOT NULL,
		days_granted TEXT NOT NULL,
		days_remaining TEXT NOT NULL,
		policy_version TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- The upsert guarantee: one lot per employee per grant date. The
	-- generator must never be able to race itself into duplicates.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_lots_employee_grant_date
		ON grant_lots(employee_id, grant_date);

	CREATE INDEX IF NOT EXISTS idx_lots_employee
		ON grant_lots(employee_id, grant_date ASC);
	CREATE INDEX IF NOT EXISTS idx_lots_expiry
		ON grant_lots(expiry_date);

	CREATE TABLE IF NOT EXISTS consumptions (
		id TEXT PRIMARY KEY,
		lot_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		request_id TEXT NOT NULL,
		date TEXT NOT NULL,
		days_used TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_consumptions_lot
		ON consumptions(lot_id);
	CREATE INDEX IF NOT EXISTS idx_consumptions_request
		ON consumptions(request_id);
	CREATE INDEX IF NOT EXISTS idx_consumptions_employee_date
		ON consumptions(employee_id, date);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		action TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		request_id TEXT,
		lot_ids_json TEXT,
		amount TEXT,
		detail TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_log(employee_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so every query runs unchanged
// inside and outside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// =============================================================================
// POLICIES
// =============================================================================

func (s *Store) SavePolicy(ctx context.Context, policy *leave.PolicyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePolicy(ctx, s.db, policy)
}

func savePolicy(ctx context.Context, q querier, policy *leave.PolicyConfig) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	configJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO policies (version, active, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, policy.Version, policy.Active, string(configJSON), now(), now())
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, version string) (*leave.PolicyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPolicy(ctx, s.db, version)
}

func getPolicy(ctx context.Context, q querier, version string) (*leave.PolicyConfig, error) {
	row := q.QueryRowContext(ctx,
		`SELECT config_json, active FROM policies WHERE version = ?`, version)

	var configJSON string
	var active bool
	if err := row.Scan(&configJSON, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", leave.ErrPolicyNotFound, version)
		}
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	var policy leave.PolicyConfig
	if err := json.Unmarshal([]byte(configJSON), &policy); err != nil {
		return nil, fmt.Errorf("%w: corrupt document for %s: %v", leave.ErrInvalidPolicy, version, err)
	}
	policy.Active = active
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *Store) ActivePolicy(ctx context.Context) (*leave.PolicyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activePolicy(ctx, s.db)
}

func activePolicy(ctx context.Context, q querier) (*leave.PolicyConfig, error) {
	var version string
	err := q.QueryRowContext(ctx, `SELECT version FROM policies WHERE active`).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active policy: %w", err)
	}
	return getPolicy(ctx, q, version)
}

func (s *Store) ListPolicies(ctx context.Context) ([]*leave.PolicyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPolicies(ctx, s.db)
}

func listPolicies(ctx context.Context, q querier) ([]*leave.PolicyConfig, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT config_json, active FROM policies ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var out []*leave.PolicyConfig
	for rows.Next() {
		var configJSON string
		var active bool
		if err := rows.Scan(&configJSON, &active); err != nil {
			return nil, err
		}
		var policy leave.PolicyConfig
		if err := json.Unmarshal([]byte(configJSON), &policy); err != nil {
			return nil, fmt.Errorf("%w: %v", leave.ErrInvalidPolicy, err)
		}
		policy.Active = active
		out = append(out, &policy)
	}
	return out, rows.Err()
}

// ActivatePolicy deactivates every version and activates the named one in
// one transaction, so readers never observe zero or multiple active
// versions.
func (s *Store) ActivatePolicy(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := activatePolicy(ctx, tx, version); err != nil {
		return err
	}
	return tx.Commit()
}

func activatePolicy(ctx context.Context, q querier, version string) error {
	var exists int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM policies WHERE version = ?`, version).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check policy: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", leave.ErrPolicyNotFound, version)
	}
	if _, err := q.ExecContext(ctx, `UPDATE policies SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("failed to deactivate policies: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE policies SET active = TRUE, updated_at = ? WHERE version = ?`, now(), version); err != nil {
		return fmt.Errorf("failed to activate policy: %w", err)
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp *leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp)
}

func saveEmployee(ctx context.Context, q querier, emp *leave.Employee) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (id, name, join_date, pattern, policy_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			join_date = excluded.join_date,
			pattern = excluded.pattern,
			policy_version = excluded.policy_version
	`, emp.ID, emp.Name, emp.JoinDate.String(), emp.Pattern.String(), emp.PolicyVersion, now())
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q querier, id string) (*leave.Employee, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, join_date, pattern, policy_version FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", leave.ErrEmployeeNotFound, id)
	}
	return emp, err
}

func scanEmployee(scan func(...any) error) (*leave.Employee, error) {
	var emp leave.Employee
	var joinDate, pattern string
	if err := scan(&emp.ID, &emp.Name, &joinDate, &pattern, &emp.PolicyVersion); err != nil {
		return nil, err
	}
	var err error
	if emp.JoinDate, err = leave.ParseDate(joinDate); err != nil {
		return nil, err
	}
	if emp.Pattern, err = leave.ParsePattern(pattern); err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func listEmployees(ctx context.Context, q querier) ([]*leave.Employee, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, join_date, pattern, policy_version FROM employees ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []*leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// =============================================================================
// GRANT LOTS
// =============================================================================

const lotColumns = `id, employee_id, grant_date, expiry_date, days_granted, days_remaining, policy_version`

func (s *Store) InsertLot(ctx context.Context, lot *leave.GrantLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLot(ctx, s.db, lot)
}

func insertLot(ctx context.Context, q querier, lot *leave.GrantLot) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO grant_lots
		(id, employee_id, grant_date, expiry_date, days_granted, days_remaining, policy_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, lot.ID, lot.EmployeeID, lot.GrantDate.String(), lot.ExpiryDate.String(),
		lot.DaysGranted.String(), lot.DaysRemaining.String(), lot.PolicyVersion, now(), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return &leave.DuplicateGrantError{EmployeeID: lot.EmployeeID, GrantDate: lot.GrantDate}
		}
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	return nil
}

func (s *Store) UpdateLot(ctx context.Context, lot *leave.GrantLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLot(ctx, s.db, lot)
}

func updateLot(ctx context.Context, q querier, lot *leave.GrantLot) error {
	res, err := q.ExecContext(ctx, `
		UPDATE grant_lots SET
			expiry_date = ?, days_granted = ?, days_remaining = ?, policy_version = ?, updated_at = ?
		WHERE id = ?
	`, lot.ExpiryDate.String(), lot.DaysGranted.String(), lot.DaysRemaining.String(),
		lot.PolicyVersion, now(), lot.ID)
	if err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", leave.ErrLotNotFound, lot.ID)
	}
	return nil
}

func (s *Store) DeleteLot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLot(ctx, s.db, id)
}

func deleteLot(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM grant_lots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", leave.ErrLotNotFound, id)
	}
	return nil
}

func (s *Store) LotByGrantDate(ctx context.Context, employeeID string, grantDate leave.Date) (*leave.GrantLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lotByGrantDate(ctx, s.db, employeeID, grantDate)
}

func lotByGrantDate(ctx context.Context, q querier, employeeID string, grantDate leave.Date) (*leave.GrantLot, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM grant_lots WHERE employee_id = ? AND grant_date = ?`,
		employeeID, grantDate.String())
	lot, err := scanLot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return lot, err
}

func scanLot(scan func(...any) error) (*leave.GrantLot, error) {
	var lot leave.GrantLot
	var grantDate, expiryDate, granted, remaining string
	if err := scan(&lot.ID, &lot.EmployeeID, &grantDate, &expiryDate, &granted, &remaining, &lot.PolicyVersion); err != nil {
		return nil, err
	}
	var err error
	if lot.GrantDate, err = leave.ParseDate(grantDate); err != nil {
		return nil, err
	}
	if lot.ExpiryDate, err = leave.ParseDate(expiryDate); err != nil {
		return nil, err
	}
	if lot.DaysGranted, err = decimal.NewFromString(granted); err != nil {
		return nil, fmt.Errorf("corrupt days_granted %q: %w", granted, err)
	}
	if lot.DaysRemaining, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("corrupt days_remaining %q: %w", remaining, err)
	}
	return &lot, nil
}

func (s *Store) LotsByEmployee(ctx context.Context, employeeID string) ([]*leave.GrantLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lotsByEmployee(ctx, s.db, employeeID)
}

func lotsByEmployee(ctx context.Context, q querier, employeeID string) ([]*leave.GrantLot, error) {
	return queryLots(ctx, q,
		`SELECT `+lotColumns+` FROM grant_lots WHERE employee_id = ? ORDER BY grant_date ASC`,
		employeeID)
}

func (s *Store) ConsumableLots(ctx context.Context, employeeID string, onOrAfter leave.Date) ([]*leave.GrantLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return consumableLots(ctx, s.db, employeeID, onOrAfter)
}

func consumableLots(ctx context.Context, q querier, employeeID string, onOrAfter leave.Date) ([]*leave.GrantLot, error) {
	// Oldest grant first: "use it before it expires". The days_remaining
	// filter is a coarse cut; callers re-check against the decimal value.
	return queryLots(ctx, q, `
		SELECT `+lotColumns+` FROM grant_lots
		WHERE employee_id = ? AND expiry_date >= ? AND CAST(days_remaining AS REAL) > 0
		ORDER BY grant_date ASC
	`, employeeID, onOrAfter.String())
}

func queryLots(ctx context.Context, q querier, query string, args ...any) ([]*leave.GrantLot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var out []*leave.GrantLot
	for rows.Next() {
		lot, err := scanLot(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, lot)
	}
	return out, rows.Err()
}

// =============================================================================
// CONSUMPTIONS
// =============================================================================

const consumptionColumns = `id, lot_id, employee_id, request_id, date, days_used`

func (s *Store) InsertConsumption(ctx context.Context, c *leave.Consumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertConsumption(ctx, s.db, c)
}

func insertConsumption(ctx context.Context, q querier, c *leave.Consumption) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO consumptions (id, lot_id, employee_id, request_id, date, days_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.LotID, c.EmployeeID, c.RequestID, c.Date.String(), c.DaysUsed.String(), now())
	if err != nil {
		return fmt.Errorf("failed to insert consumption: %w", err)
	}
	return nil
}

func (s *Store) DeleteConsumption(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteConsumption(ctx, s.db, id)
}

func deleteConsumption(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM consumptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete consumption: %w", err)
	}
	return nil
}

func (s *Store) ConsumptionsByRequest(ctx context.Context, requestID string) ([]*leave.Consumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return consumptionsByRequest(ctx, s.db, requestID)
}

func consumptionsByRequest(ctx context.Context, q querier, requestID string) ([]*leave.Consumption, error) {
	return queryConsumptions(ctx, q,
		`SELECT `+consumptionColumns+` FROM consumptions WHERE request_id = ? ORDER BY created_at ASC`,
		requestID)
}

func (s *Store) ConsumptionsByLot(ctx context.Context, lotID string) ([]*leave.Consumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return consumptionsByLot(ctx, s.db, lotID)
}

func consumptionsByLot(ctx context.Context, q querier, lotID string) ([]*leave.Consumption, error) {
	return queryConsumptions(ctx, q,
		`SELECT `+consumptionColumns+` FROM consumptions WHERE lot_id = ? ORDER BY created_at ASC`,
		lotID)
}

func (s *Store) ConsumptionsByEmployee(ctx context.Context, employeeID string, from, to leave.Date) ([]*leave.Consumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return consumptionsByEmployee(ctx, s.db, employeeID, from, to)
}

func consumptionsByEmployee(ctx context.Context, q querier, employeeID string, from, to leave.Date) ([]*leave.Consumption, error) {
	return queryConsumptions(ctx, q, `
		SELECT `+consumptionColumns+` FROM consumptions
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, employeeID, from.String(), to.String())
}

func queryConsumptions(ctx context.Context, q querier, query string, args ...any) ([]*leave.Consumption, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumptions: %w", err)
	}
	defer rows.Close()

	var out []*leave.Consumption
	for rows.Next() {
		var c leave.Consumption
		var date, used string
		if err := rows.Scan(&c.ID, &c.LotID, &c.EmployeeID, &c.RequestID, &date, &used); err != nil {
			return nil, err
		}
		if c.Date, err = leave.ParseDate(date); err != nil {
			return nil, err
		}
		if c.DaysUsed, err = decimal.NewFromString(used); err != nil {
			return nil, fmt.Errorf("corrupt days_used %q: %w", used, err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) ConsumedByLot(ctx context.Context, lotID string) (leave.Days, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return consumedByLot(ctx, s.db, lotID)
}

func consumedByLot(ctx context.Context, q querier, lotID string) (leave.Days, error) {
	// Sum in Go, not SQL: the amounts are decimal strings and must not
	// pass through REAL.
	cs, err := consumptionsByLot(ctx, q, lotID)
	if err != nil {
		return leave.ZeroDays(), err
	}
	total := leave.ZeroDays()
	for _, c := range cs {
		total = total.Add(c.DaysUsed)
	}
	return total, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, req *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRequest(ctx, s.db, req)
}

func saveRequest(ctx context.Context, q querier, req *leave.LeaveRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO requests (id, employee_id, start_date, end_date, total_days, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			total_days = excluded.total_days,
			status = excluded.status,
			reason = excluded.reason,
			updated_at = excluded.updated_at
	`, req.ID, req.EmployeeID, req.StartDate.String(), req.EndDate.String(),
		req.TotalDays.String(), string(req.Status), req.Reason, now(), now())
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, q querier, id string) (*leave.LeaveRequest, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, employee_id, start_date, end_date, total_days, status, reason
		FROM requests WHERE id = ?
	`, id)
	req, err := scanRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", leave.ErrRequestNotFound, id)
	}
	return req, err
}

func scanRequest(scan func(...any) error) (*leave.LeaveRequest, error) {
	var req leave.LeaveRequest
	var start, end, total, status string
	var reason sql.NullString
	if err := scan(&req.ID, &req.EmployeeID, &start, &end, &total, &status, &reason); err != nil {
		return nil, err
	}
	var err error
	if req.StartDate, err = leave.ParseDate(start); err != nil {
		return nil, err
	}
	if req.EndDate, err = leave.ParseDate(end); err != nil {
		return nil, err
	}
	if req.TotalDays, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("corrupt total_days %q: %w", total, err)
	}
	req.Status = leave.RequestStatus(status)
	req.Reason = reason.String
	return &req, nil
}

func (s *Store) ListRequestsByStatus(ctx context.Context, status leave.RequestStatus) ([]*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequestsByStatus(ctx, s.db, status)
}

func listRequestsByStatus(ctx context.Context, q querier, status leave.RequestStatus) ([]*leave.LeaveRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, employee_id, start_date, end_date, total_days, status, reason
		FROM requests WHERE status = ? ORDER BY created_at ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []*leave.LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lotIDs, _ := json.Marshal(entry.LotIDs)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, action, employee_id, request_id, lot_ids_json, amount, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.At.String(), string(entry.Action), entry.EmployeeID,
		entry.RequestID, string(lotIDs), entry.Amount.String(), entry.Detail, now())
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) AuditByEmployee(ctx context.Context, employeeID string) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, action, employee_id, request_id, lot_ids_json, amount, detail
		FROM audit_log WHERE employee_id = ? ORDER BY created_at ASC
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []leave.AuditEntry
	for rows.Next() {
		var entry leave.AuditEntry
		var at, action, lotIDs, amount string
		var requestID, detail sql.NullString
		if err := rows.Scan(&entry.ID, &at, &action, &entry.EmployeeID, &requestID, &lotIDs, &amount, &detail); err != nil {
			return nil, err
		}
		if entry.At, err = leave.ParseDate(at); err != nil {
			return nil, err
		}
		entry.Action = leave.AuditAction(action)
		entry.RequestID = requestID.String
		entry.Detail = detail.String
		json.Unmarshal([]byte(lotIDs), &entry.LotIDs)
		if entry.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("corrupt audit amount %q: %w", amount, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction under the writer lock.
// Any error from fn rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore runs every Store operation against one *sql.Tx. The parent's
// writer lock is held for the duration, so no extra locking here.
type txStore struct {
	tx *sql.Tx
}

var _ leave.Store = (*txStore)(nil)

func (t *txStore) SavePolicy(ctx context.Context, p *leave.PolicyConfig) error {
	return savePolicy(ctx, t.tx, p)
}
func (t *txStore) GetPolicy(ctx context.Context, version string) (*leave.PolicyConfig, error) {
	return getPolicy(ctx, t.tx, version)
}
func (t *txStore) ActivePolicy(ctx context.Context) (*leave.PolicyConfig, error) {
	return activePolicy(ctx, t.tx)
}
func (t *txStore) ListPolicies(ctx context.Context) ([]*leave.PolicyConfig, error) {
	return listPolicies(ctx, t.tx)
}
func (t *txStore) ActivatePolicy(ctx context.Context, version string) error {
	return activatePolicy(ctx, t.tx, version)
}
func (t *txStore) SaveEmployee(ctx context.Context, emp *leave.Employee) error {
	return saveEmployee(ctx, t.tx, emp)
}
func (t *txStore) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return getEmployee(ctx, t.tx, id)
}
func (t *txStore) ListEmployees(ctx context.Context) ([]*leave.Employee, error) {
	return listEmployees(ctx, t.tx)
}
func (t *txStore) InsertLot(ctx context.Context, lot *leave.GrantLot) error {
	return insertLot(ctx, t.tx, lot)
}
func (t *txStore) UpdateLot(ctx context.Context, lot *leave.GrantLot) error {
	return updateLot(ctx, t.tx, lot)
}
func (t *txStore) DeleteLot(ctx context.Context, id string) error {
	return deleteLot(ctx, t.tx, id)
}
func (t *txStore) LotByGrantDate(ctx context.Context, employeeID string, grantDate leave.Date) (*leave.GrantLot, error) {
	return lotByGrantDate(ctx, t.tx, employeeID, grantDate)
}
func (t *txStore) LotsByEmployee(ctx context.Context, employeeID string) ([]*leave.GrantLot, error) {
	return lotsByEmployee(ctx, t.tx, employeeID)
}
func (t *txStore) ConsumableLots(ctx context.Context, employeeID string, onOrAfter leave.Date) ([]*leave.GrantLot, error) {
	return consumableLots(ctx, t.tx, employeeID, onOrAfter)
}
func (t *txStore) InsertConsumption(ctx context.Context, c *leave.Consumption) error {
	return insertConsumption(ctx, t.tx, c)
}
func (t *txStore) DeleteConsumption(ctx context.Context, id string) error {
	return deleteConsumption(ctx, t.tx, id)
}
func (t *txStore) ConsumptionsByRequest(ctx context.Context, requestID string) ([]*leave.Consumption, error) {
	return consumptionsByRequest(ctx, t.tx, requestID)
}
func (t *txStore) ConsumptionsByLot(ctx context.Context, lotID string) ([]*leave.Consumption, error) {
	return consumptionsByLot(ctx, t.tx, lotID)
}
func (t *txStore) ConsumptionsByEmployee(ctx context.Context, employeeID string, from, to leave.Date) ([]*leave.Consumption, error) {
	return consumptionsByEmployee(ctx, t.tx, employeeID, from, to)
}
func (t *txStore) ConsumedByLot(ctx context.Context, lotID string) (leave.Days, error) {
	return consumedByLot(ctx, t.tx, lotID)
}
func (t *txStore) SaveRequest(ctx context.Context, req *leave.LeaveRequest) error {
	return saveRequest(ctx, t.tx, req)
}
func (t *txStore) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	return getRequest(ctx, t.tx, id)
}
func (t *txStore) ListRequestsByStatus(ctx context.Context, status leave.RequestStatus) ([]*leave.LeaveRequest, error) {
	return listRequestsByStatus(ctx, t.tx, status)
}
func (t *txStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	// Already inside a transaction.
	return fn(t)
}
