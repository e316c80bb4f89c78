/*
errors.go - Centralized error types for the leave ledger

All sentinel errors live here so callers can branch with errors.Is across
package boundaries. Structured errors carry enough context for the API layer
to render a useful rejection without re-querying.
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyNotFound is returned when an explicitly requested policy
	// version does not exist. Absence of an *active* version is not an
	// error; the built-in default applies instead.
	ErrPolicyNotFound = errors.New("policy version not found")

	// ErrInsufficientBalance is returned when an approval cannot be fully
	// funded from non-expired lots. No mutation occurs.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrDuplicateGrant is returned when a second lot for the same
	// (employee, grant date) would be created.
	ErrDuplicateGrant = errors.New("duplicate grant lot")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRequestNotFound is returned when a referenced request doesn't exist.
	ErrRequestNotFound = errors.New("request not found")

	// ErrLotNotFound is returned when a referenced grant lot doesn't exist.
	ErrLotNotFound = errors.New("grant lot not found")

	// ErrInvalidPattern is returned for a malformed employment pattern.
	ErrInvalidPattern = errors.New("invalid employment pattern")

	// ErrInvalidPolicy is returned when a policy document fails validation
	// at the save boundary.
	ErrInvalidPolicy = errors.New("invalid policy document")

	// ErrInvalidRequest is returned for a malformed leave request.
	ErrInvalidRequest = errors.New("invalid leave request")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports how far short the employee's balance fell.
type InsufficientBalanceError struct {
	EmployeeID string
	RequestID  string
	Requested  Days
	Available  Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s: requested %s, available %s",
		e.EmployeeID, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// DuplicateGrantError identifies the colliding lot.
type DuplicateGrantError struct {
	EmployeeID string
	GrantDate  Date
	ExistingID string
}

func (e *DuplicateGrantError) Error() string {
	return fmt.Sprintf("grant lot already exists for %s on %s (lot %s)",
		e.EmployeeID, e.GrantDate, e.ExistingID)
}

func (e *DuplicateGrantError) Unwrap() error { return ErrDuplicateGrant }

// IsClientError reports whether the error is caused by the caller's input
// rather than a storage fault. The API layer maps these to 4xx.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidPattern) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrLotNotFound)
}
