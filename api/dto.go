/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/policy.go: PolicyConfig, accepted verbatim as a request body
*/
package api

import (
	"github.com/hrforge/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	JoinDate      string `json:"joinDate"`
	Pattern       string `json:"pattern"`
	PolicyVersion string `json:"policyVersion,omitempty"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	JoinDate      string `json:"joinDate"`
	Pattern       string `json:"pattern"`
	PolicyVersion string `json:"policyVersion,omitempty"`
}

// SubmitRequestRequest is the request body for a new leave request.
type SubmitRequestRequest struct {
	ID        string `json:"id,omitempty"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	TotalDays string `json:"totalDays"`
	Reason    string `json:"reason,omitempty"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employeeId"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	TotalDays  string `json:"totalDays"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// GenerateRequest parameterizes a manual generation run.
type GenerateRequest struct {
	Until string `json:"until,omitempty"` // defaults to today
}

// ExpireRequest parameterizes a manual expiry run.
type ExpireRequest struct {
	AsOf string `json:"asOf,omitempty"` // defaults to today
}

// GenerateResultDTO reports what a single-employee generation did.
type GenerateResultDTO struct {
	Generated int `json:"generated"`
	Updated   int `json:"updated"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toEmployeeDTO(emp *leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            emp.ID,
		Name:          emp.Name,
		JoinDate:      emp.JoinDate.String(),
		Pattern:       emp.Pattern.String(),
		PolicyVersion: emp.PolicyVersion,
	}
}

func toRequestDTO(req *leave.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:         req.ID,
		EmployeeID: req.EmployeeID,
		StartDate:  req.StartDate.String(),
		EndDate:    req.EndDate.String(),
		TotalDays:  req.TotalDays.String(),
		Status:     string(req.Status),
		Reason:     req.Reason,
	}
}
