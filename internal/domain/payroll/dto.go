package payroll

import (
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== COMPUTE DTOs ==========

type ComputeRunRequest struct {
	Periodicity     string                     `json:"periodicity"` // "monthly" or "fortnightly"
	Index           int                        `json:"index"`
	Year            int                        `json:"year"`
	Bonuses         map[string]decimal.Decimal `json:"bonuses,omitempty"`          // by employee ID
	OtherDeductions map[string]decimal.Decimal `json:"other_deductions,omitempty"` // by employee ID
	Remarks         string                     `json:"remarks,omitempty"`

	Actor Actor `json:"-"`
}

func (r *ComputeRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsInSlice(r.Periodicity, []string{string(PeriodicityMonthly), string(PeriodicityFortnightly)}) {
		errs = append(errs, validator.ValidationError{Field: "periodicity", Message: "must be 'monthly' or 'fortnightly'"})
	}
	if r.Index < 1 {
		errs = append(errs, validator.ValidationError{Field: "index", Message: "must be at least 1"})
	} else if r.Periodicity == string(PeriodicityMonthly) && r.Index > 12 {
		errs = append(errs, validator.ValidationError{Field: "index", Message: "must be between 1 and 12 for monthly periods"})
	}
	if !validator.IsInRange(r.Year, 2000, 2100) {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "must be between 2000 and 2100"})
	}
	for id, amount := range r.Bonuses {
		if !validator.IsNonNegative(amount) {
			errs = append(errs, validator.ValidationError{Field: "bonuses." + id, Message: "must be non-negative"})
		}
	}
	for id, amount := range r.OtherDeductions {
		if !validator.IsNonNegative(amount) {
			errs = append(errs, validator.ValidationError{Field: "other_deductions." + id, Message: "must be non-negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== TRANSITION DTOs ==========

type TransitionRunRequest struct {
	RunID           string `json:"-"`
	Action          string `json:"action"`
	Reason          string `json:"reason,omitempty"`
	ExpectedVersion *int64 `json:"version,omitempty"`

	Actor Actor `json:"-"`
}

func (r *TransitionRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "is required"})
	} else if !validator.IsValidUUID(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "must be a valid UUID"})
	}

	valid := make([]string, 0, len(TransitionActions))
	for _, a := range TransitionActions {
		valid = append(valid, string(a))
	}
	if !validator.IsInSlice(r.Action, valid) {
		errs = append(errs, validator.ValidationError{Field: "action", Message: "is not a valid payroll action"})
	}
	if r.ExpectedVersion != nil && *r.ExpectedVersion < 1 {
		errs = append(errs, validator.ValidationError{Field: "version", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== QUERY DTOs ==========

// RunFilter - filter for listing runs
type RunFilter struct {
	From     *time.Time
	To       *time.Time
	Statuses []RunStatus
	Page     int
	Limit    int
}

// ListRunsRequest carries raw query parameters
type ListRunsRequest struct {
	From   string
	To     string
	Status string
	Page   int
	Limit  int
}

func (r *ListRunsRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.From != "" {
		if _, ok := validator.IsValidDate(r.From); !ok {
			errs = append(errs, validator.ValidationError{Field: "from", Message: "must be YYYY-MM-DD"})
		}
	}
	if r.To != "" {
		if _, ok := validator.IsValidDate(r.To); !ok {
			errs = append(errs, validator.ValidationError{Field: "to", Message: "must be YYYY-MM-DD"})
		}
	}
	if from, okFrom := validator.IsValidDate(r.From); okFrom {
		if to, okTo := validator.IsValidDate(r.To); okTo && to.Before(from) {
			errs = append(errs, validator.ValidationError{Field: "to", Message: "must not be before from"})
		}
	}
	if r.Status != "" && !RunStatus(r.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "is not a valid run status"})
	}
	if r.Limit < 0 || r.Limit > 100 {
		errs = append(errs, validator.ValidationError{Field: "limit", Message: "must be between 1 and 100 when set"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToFilter converts a validated request into a repository filter
func (r *ListRunsRequest) ToFilter() RunFilter {
	filter := RunFilter{Page: r.Page, Limit: r.Limit}
	if from, ok := validator.IsValidDate(r.From); ok {
		filter.From = &from
	}
	if to, ok := validator.IsValidDate(r.To); ok {
		filter.To = &to
	}
	if r.Status != "" {
		filter.Statuses = []RunStatus{RunStatus(r.Status)}
	}
	return filter
}

// Stage names a pending-work queue
type Stage string

const (
	StageCheck     Stage = "check"
	StageAuthorize Stage = "authorize"
	StageProcess   Stage = "process"
)

// ========== RESPONSE DTOs ==========

type PeriodResponse struct {
	Periodicity string `json:"periodicity"`
	Index       int    `json:"index"`
	Year        int    `json:"year"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	WorkingDays int    `json:"working_days"`
}

type StageResponse struct {
	Action    string  `json:"action"`
	ActorID   string  `json:"actor_id"`
	ActorName string  `json:"actor_name,omitempty"`
	ActorRole string  `json:"actor_role"`
	Remarks   *string `json:"remarks,omitempty"`
	At        string  `json:"at"`
}

type RunSummary struct {
	ID                        string          `json:"id"`
	Period                    PeriodResponse  `json:"period"`
	Status                    string          `json:"status"`
	TotalEmployees            int             `json:"total_employees"`
	TotalGross                decimal.Decimal `json:"total_gross"`
	TotalDeductions           decimal.Decimal `json:"total_deductions"`
	TotalNet                  decimal.Decimal `json:"total_net"`
	TotalEmployerContribution decimal.Decimal `json:"total_employer_contribution"`
	CurrencyCode              string          `json:"currency_code"`
	Locked                    bool            `json:"locked"`
	Version                   int64           `json:"version"`
	Computed                  *StageResponse  `json:"computed,omitempty"`
	Checked                   *StageResponse  `json:"checked,omitempty"`
	Authorized                *StageResponse  `json:"authorized,omitempty"`
	Processed                 *StageResponse  `json:"processed,omitempty"`
	Rejected                  *StageResponse  `json:"rejected,omitempty"`
	CreatedAt                 string          `json:"created_at"`
	UpdatedAt                 string          `json:"updated_at"`
}

type AttendanceResponse struct {
	WorkingDays     int             `json:"working_days"`
	PresentDays     int             `json:"present_days"`
	LeaveDays       int             `json:"leave_days"`
	UnpaidLeaveDays int             `json:"unpaid_leave_days"`
	LateOccurrences int             `json:"late_occurrences"`
	LateMinutes     int             `json:"late_minutes"`
	OvertimeHours   decimal.Decimal `json:"overtime_hours"`
}

type LineItemResponse struct {
	ID                   string               `json:"id"`
	EmployeeID           string               `json:"employee_id"`
	EmployeeCode         string               `json:"employee_code"`
	EmployeeName         string               `json:"employee_name"`
	Department           string               `json:"department"`
	Resident             bool                 `json:"resident"`
	BasicSalary          decimal.Decimal      `json:"basic_salary"`
	Allowances           []employee.Allowance `json:"allowances"`
	Bonus                decimal.Decimal      `json:"bonus"`
	Attendance           AttendanceResponse   `json:"attendance"`
	OvertimePay          decimal.Decimal      `json:"overtime_pay"`
	GrossEarnings        decimal.Decimal      `json:"gross_earnings"`
	TaxableIncome        decimal.Decimal      `json:"taxable_income"`
	Tax                  decimal.Decimal      `json:"tax"`
	EmployeeContribution decimal.Decimal      `json:"employee_contribution"`
	UnpaidLeaveDeduction decimal.Decimal      `json:"unpaid_leave_deduction"`
	LateDeduction        decimal.Decimal      `json:"late_deduction"`
	OtherDeductions      decimal.Decimal      `json:"other_deductions"`
	TotalDeductions      decimal.Decimal      `json:"total_deductions"`
	NetPay               decimal.Decimal      `json:"net_pay"`
	EmployerContribution decimal.Decimal      `json:"employer_contribution"`
}

type AuditEntryResponse struct {
	Action     string  `json:"action"`
	FromStatus string  `json:"from_status,omitempty"`
	ToStatus   string  `json:"to_status"`
	ActorID    string  `json:"actor_id"`
	ActorName  string  `json:"actor_name,omitempty"`
	ActorRole  string  `json:"actor_role"`
	Remarks    *string `json:"remarks,omitempty"`
	At         string  `json:"at"`
}

type RunDetail struct {
	RunSummary
	LineItems []LineItemResponse   `json:"line_items"`
	Audit     []AuditEntryResponse `json:"audit"`
}

type PayslipResponse struct {
	RunID        string           `json:"run_id"`
	Period       PeriodResponse   `json:"period"`
	CurrencyCode string           `json:"currency_code"`
	ProcessedAt  *string          `json:"processed_at,omitempty"`
	LineItem     LineItemResponse `json:"line_item"`
}

// RunEvent is published whenever a run changes state
type RunEvent struct {
	RunID     string `json:"run_id"`
	PeriodKey string `json:"period_key"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
	ActorID   string `json:"actor_id"`
	At        string `json:"at"`
}
