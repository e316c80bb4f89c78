/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List all employees
    POST   /api/employees                 Create or update employee
    GET    /api/employees/{id}            Get employee details
    GET    /api/employees/{id}/balance    Balance summary (lots, next grant, usage alert)
    GET    /api/employees/{id}/lots       Raw grant lots
    GET    /api/employees/{id}/audit      Audit trail
    POST   /api/employees/{id}/generate   Generate lots through a date
    POST   /api/employees/{id}/recalc     Rebuild lot balances from consumptions
    POST   /api/employees/{id}/requests   Submit a leave request

  Requests:
    GET    /api/requests/pending          Pending requests queue
    POST   /api/requests/{id}/approve     Approve (debits lots FIFO)
    POST   /api/requests/{id}/reject      Reject (restores lots if approved)
    POST   /api/requests/{id}/cancel      Cancel (restores lots if approved)

  Policies:
    GET    /api/policies                  List versions
    POST   /api/policies                  Create or update a version
    GET    /api/policies/{version}        Get one version
    POST   /api/policies/{version}/activate  Make it the active version

  Admin:
    POST   /api/admin/run/generate        Population generation run
    POST   /api/admin/run/expire          Population expiry run

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate grant, insufficient balance)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Deploy behind a gateway that does it.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hrforge/leave-engine/engine"
	"github.com/hrforge/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Store  leave.Store
	Audit  leave.AuditLog
	Log    zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(eng *engine.Engine, store leave.Store, audit leave.AuditLog, log zerolog.Logger) *Handler {
	return &Handler{Engine: eng, Store: store, Audit: audit, Log: log}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	joinDate, err := leave.ParseDate(req.JoinDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid joinDate (use YYYY-MM-DD)", err)
		return
	}
	pattern, err := leave.ParsePattern(req.Pattern)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pattern", err)
		return
	}
	if req.PolicyVersion != "" {
		if _, err := h.Store.GetPolicy(r.Context(), req.PolicyVersion); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	emp := &leave.Employee{
		ID:            req.ID,
		Name:          req.Name,
		JoinDate:      joinDate,
		Pattern:       pattern,
		PolicyVersion: req.PolicyVersion,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance returns the balance summary for an employee.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	asOf := leave.Today()
	if q := r.URL.Query().Get("asOf"); q != "" {
		var err error
		if asOf, err = leave.ParseDate(q); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid asOf (use YYYY-MM-DD)", err)
			return
		}
	}

	summary, err := h.Engine.Summary(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetLots returns the raw grant lots for an employee, oldest first.
func (h *Handler) GetLots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	lots, err := h.Store.LotsByEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list lots", err)
		return
	}
	writeJSON(w, http.StatusOK, lots)
}

// GetAudit returns the audit trail for an employee.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Audit.AuditByEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GenerateEmployee generates grant lots for one employee through a date.
func (h *Handler) GenerateEmployee(w http.ResponseWriter, r *http.Request) {
	until, ok := parseDateBody(w, r, "until")
	if !ok {
		return
	}
	res, err := h.Engine.Generate(r.Context(), chi.URLParam(r, "id"), until)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResultDTO{Generated: res.Generated, Updated: res.Updated})
}

// RecalcEmployee rebuilds the employee's lot balances from consumptions.
func (h *Handler) RecalcEmployee(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Recalc(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest records a new PENDING leave request. No balance is
// consumed until approval.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	if _, err := h.Store.GetEmployee(r.Context(), employeeID); err != nil {
		writeDomainError(w, err)
		return
	}

	var body SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate (use YYYY-MM-DD)", err)
		return
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate (use YYYY-MM-DD)", err)
		return
	}
	total, err := decimal.NewFromString(body.TotalDays)
	if err != nil || !total.IsPositive() {
		writeError(w, http.StatusBadRequest, "totalDays must be a positive decimal string", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "endDate before startDate", nil)
		return
	}

	req := &leave.LeaveRequest{
		ID:         body.ID,
		EmployeeID: employeeID,
		StartDate:  start,
		EndDate:    end,
		TotalDays:  total,
		Status:     leave.StatusPending,
		Reason:     body.Reason,
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := h.Store.SaveRequest(r.Context(), req); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// ListPendingRequests returns the approval queue.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListRequestsByStatus(r.Context(), leave.StatusPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest settles a pending request against the ledger.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Store.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Status != leave.StatusPending {
		writeError(w, http.StatusConflict, "Request is not pending", nil)
		return
	}
	if err := h.Engine.Approve(r.Context(), req); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// RejectRequest rejects a request, reversing its consumption if approved.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.terminateRequest(w, r, leave.StatusRejected)
}

// CancelRequest cancels a request, reversing its consumption if approved.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.terminateRequest(w, r, leave.StatusCancelled)
}

func (h *Handler) terminateRequest(w http.ResponseWriter, r *http.Request, status leave.RequestStatus) {
	id := chi.URLParam(r, "id")
	req, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	switch req.Status {
	case leave.StatusApproved:
		// Reverse deletes the consumption rows and restores the lots.
		if err := h.Engine.Reverse(r.Context(), id, status); err != nil {
			writeDomainError(w, err)
			return
		}
	case leave.StatusPending:
		req.Status = status
		if err := h.Store.SaveRequest(r.Context(), req); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save request", err)
			return
		}
	default:
		writeError(w, http.StatusConflict, "Request already terminal", nil)
		return
	}

	req, err = h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policy versions.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.ListPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

// GetPolicy returns one policy version.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Store.GetPolicy(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// CreatePolicy creates or updates a policy version. The body is a full
// PolicyConfig document and must validate.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var policy leave.PolicyConfig
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := policy.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}
	// Activation only through the dedicated endpoint.
	policy.Active = false
	if err := h.Store.SavePolicy(r.Context(), &policy); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

// ActivatePolicy makes the named version the single active one.
func (h *Handler) ActivatePolicy(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	if err := h.Store.ActivatePolicy(r.Context(), version); err != nil {
		writeDomainError(w, err)
		return
	}
	h.Log.Info().Str("version", version).Msg("policy activated")
	writeJSON(w, http.StatusOK, map[string]string{"active": version})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunGenerate runs generation for the whole population.
func (h *Handler) RunGenerate(w http.ResponseWriter, r *http.Request) {
	until, ok := parseDateBody(w, r, "until")
	if !ok {
		return
	}
	res, err := h.Engine.RunGenerate(r.Context(), until)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Generation run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RunExpire runs expiry for the whole population.
func (h *Handler) RunExpire(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseDateBody(w, r, "asOf")
	if !ok {
		return
	}
	res, err := h.Engine.RunExpire(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Expiry run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// HELPERS
// =============================================================================

// parseDateBody reads an optional single-date JSON body ({"until": ...} or
// {"asOf": ...}); an absent body or field means today.
func parseDateBody(w http.ResponseWriter, r *http.Request, field string) (leave.Date, bool) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return leave.Date{}, false
	}
	raw := body[field]
	if raw == "" {
		return leave.Today(), true
	}
	d, err := leave.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" (use YYYY-MM-DD)", err)
		return leave.Date{}, false
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, leave.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "Insufficient balance", err)
	case errors.Is(err, leave.ErrDuplicateGrant):
		writeError(w, http.StatusConflict, "Duplicate grant", err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
