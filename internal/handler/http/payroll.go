package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payrun-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PayrollHandler interface {
	// Runs
	ComputeRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	ListPending(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	TransitionRun(w http.ResponseWriter, r *http.Request)

	// Payslips
	GetPayslip(w http.ResponseWriter, r *http.Request)
	ListEmployeePayslips(w http.ResponseWriter, r *http.Request)

	// SSE
	Events(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.Service
	keepalive      time.Duration
}

func NewPayrollHandler(payrollService payroll.Service) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, keepalive: 30 * time.Second}
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) ComputeRun(w http.ResponseWriter, r *http.Request) {
	var req payroll.ComputeRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ComputeRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run computed", result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := payroll.ListRunsRequest{
		From:   query.Get("from"),
		To:     query.Get("to"),
		Status: query.Get("status"),
	}
	if page := query.Get("page"); page != "" {
		p, err := strconv.Atoi(page)
		if err != nil || p < 1 {
			response.BadRequest(w, "Invalid page", nil)
			return
		}
		req.Page = p
	}
	if limit := query.Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			response.BadRequest(w, "Invalid limit", nil)
			return
		}
		req.Limit = l
	}

	runs, total, err := h.payrollService.ListRuns(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, runs, response.NewMeta(req.Page, req.Limit, 20, total))
}

func (h *payrollHandlerImpl) ListPending(w http.ResponseWriter, r *http.Request) {
	stage := payroll.Stage(chi.URLParam(r, "stage"))

	result, err := h.payrollService.ListPending(r.Context(), stage)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Run ID is required", nil)
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) TransitionRun(w http.ResponseWriter, r *http.Request) {
	var req payroll.TransitionRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = chi.URLParam(r, "id")

	result, err := h.payrollService.TransitionRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, fmt.Sprintf("Payroll run %s", result.Status), result)
}

// ========== PAYSLIPS ==========

func (h *payrollHandlerImpl) GetPayslip(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	employeeID := chi.URLParam(r, "employeeID")
	if !h.canViewPayslips(w, r, employeeID) {
		return
	}

	result, err := h.payrollService.GetPayslip(r.Context(), runID, employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListEmployeePayslips(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	if !h.canViewPayslips(w, r, employeeID) {
		return
	}

	result, err := h.payrollService.ListEmployeePayslips(r.Context(), employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// canViewPayslips allows payroll staff any employee and everyone else only themselves
func (h *payrollHandlerImpl) canViewPayslips(w http.ResponseWriter, r *http.Request, employeeID string) bool {
	if !validator.IsValidUUID(employeeID) {
		response.ValidationError(w, map[string]string{"employee_id": "must be a valid UUID"})
		return false
	}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.HandleError(w, user.ErrIdentityMissing)
		return false
	}
	if user.HasPermission(identity.Role, user.PermissionPayslipViewAll) {
		return true
	}
	if identity.EmployeeID != nil && *identity.EmployeeID == employeeID {
		return true
	}

	response.Forbidden(w, "You may only view your own payslips")
	return false
}

// ========== SSE ==========

// Events streams run state changes as server-sent events
func (h *payrollHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	subscriberID := uuid.NewString()
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		subscriberID = identity.UserID + ":" + subscriberID
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.payrollService.Subscribe(r.Context(), subscriberID)
	defer cleanup()

	// Send initial connection event
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: payroll.run.%s\ndata: %s\n\n", event.Action, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
