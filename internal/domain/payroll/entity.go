package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/shopspring/decimal"
)

// Periodicity enum
type Periodicity string

const (
	PeriodicityMonthly     Periodicity = "monthly"
	PeriodicityFortnightly Periodicity = "fortnightly"
)

// PayPeriod - a dated interval a run is computed for
type PayPeriod struct {
	Periodicity    Periodicity
	Index          int
	Year           int
	StartDate      time.Time
	EndDate        time.Time
	WorkingDays    int
	PeriodsPerYear int
}

// Key identifies the period for the one-active-run-per-period rule
func (p PayPeriod) Key() string {
	return fmt.Sprintf("%s-%d-%02d", p.Periodicity, p.Year, p.Index)
}

// RunStatus enum
type RunStatus string

const (
	RunStatusNone       RunStatus = ""
	RunStatusComputed   RunStatus = "COMPUTED"
	RunStatusChecked    RunStatus = "CHECKED"
	RunStatusAuthorized RunStatus = "AUTHORIZED"
	RunStatusProcessed  RunStatus = "PROCESSED"
	RunStatusRejected   RunStatus = "REJECTED"
)

// AllRunStatuses lists every persisted status
var AllRunStatuses = []RunStatus{
	RunStatusComputed,
	RunStatusChecked,
	RunStatusAuthorized,
	RunStatusProcessed,
	RunStatusRejected,
}

// IsTerminal reports whether no transition may leave the status
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusProcessed || s == RunStatusRejected
}

// IsValid reports whether s is a persisted status
func (s RunStatus) IsValid() bool {
	for _, v := range AllRunStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Action enum
type Action string

const (
	ActionCompute             Action = "compute"
	ActionCheckApprove        Action = "check-approve"
	ActionCheckReject         Action = "check-reject"
	ActionAuthorizeApprove    Action = "authorize-approve"
	ActionAuthorizeReject     Action = "authorize-reject"
	ActionProcess             Action = "process"
	ActionAuthorizeAndProcess Action = "authorize-and-process"

	// ActionProcessAttempt is only ever written to the audit trail, for a
	// process call whose disbursement did not fully succeed.
	ActionProcessAttempt Action = "process-attempt"
)

// TransitionActions lists the actions a caller may request on an existing run
var TransitionActions = []Action{
	ActionCheckApprove,
	ActionCheckReject,
	ActionAuthorizeApprove,
	ActionAuthorizeReject,
	ActionProcess,
	ActionAuthorizeAndProcess,
}

// IsReject reports whether the action moves a run to REJECTED
func (a Action) IsReject() bool {
	return a == ActionCheckReject || a == ActionAuthorizeReject
}

// Actor is the identity performing an action
type Actor struct {
	ID   string
	Name string
	Role user.Role
}

// AuditEntry - one append-only record of a stage reached by a run
type AuditEntry struct {
	ID         int64
	RunID      string
	Action     Action
	FromStatus RunStatus
	ToStatus   RunStatus
	ActorID    string
	ActorName  string
	ActorRole  user.Role
	Remarks    *string
	At         time.Time
}

// Totals - run-level sums over line items
type Totals struct {
	EmployeeCount        int
	Gross                decimal.Decimal
	Deductions           decimal.Decimal
	Net                  decimal.Decimal
	EmployerContribution decimal.Decimal
}

// Equal compares totals by value
func (t Totals) Equal(o Totals) bool {
	return t.EmployeeCount == o.EmployeeCount &&
		t.Gross.Equal(o.Gross) &&
		t.Deductions.Equal(o.Deductions) &&
		t.Net.Equal(o.Net) &&
		t.EmployerContribution.Equal(o.EmployerContribution)
}

// Run - aggregate root of one computation attempt for a period
type Run struct {
	ID                 string
	Period             PayPeriod
	Status             RunStatus
	Totals             Totals
	TaxConfigurationID string
	CurrencyCode       string
	Locked             bool
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Loaded on detail reads
	LineItems []LineItem
	Audit     []AuditEntry
}

// LastAudit returns the most recent audit entry, if any
func (r Run) LastAudit() (AuditEntry, bool) {
	if len(r.Audit) == 0 {
		return AuditEntry{}, false
	}
	return r.Audit[len(r.Audit)-1], true
}

// AuditFor returns the latest entry that moved the run into status
func (r Run) AuditFor(status RunStatus) (AuditEntry, bool) {
	for i := len(r.Audit) - 1; i >= 0; i-- {
		if r.Audit[i].ToStatus == status && r.Audit[i].FromStatus != status {
			return r.Audit[i], true
		}
	}
	return AuditEntry{}, false
}

// AttendanceCounts - attendance-derived inputs captured on the line item
type AttendanceCounts struct {
	WorkingDays     int
	PresentDays     int
	LeaveDays       int
	UnpaidLeaveDays int
	LateOccurrences int
	LateMinutes     int
	OvertimeHours   decimal.Decimal
}

// LineItem - one employee's computed pay within a run.
// Employee fields are a snapshot taken at computation time.
type LineItem struct {
	ID                    string
	RunID                 string
	EmployeeID            string
	EmployeeCode          string
	EmployeeName          string
	Department            string
	Resident              bool
	BankCode              string
	BankAccountHolderName string
	BankAccountNumber     string

	// Inputs
	BasicSalary decimal.Decimal
	Allowances  []employee.Allowance
	Bonus       decimal.Decimal
	Attendance  AttendanceCounts

	// Earnings
	OvertimePay   decimal.Decimal
	GrossEarnings decimal.Decimal

	// Deductions
	TaxableIncome        decimal.Decimal
	Tax                  decimal.Decimal
	EmployeeContribution decimal.Decimal
	UnpaidLeaveDeduction decimal.Decimal
	LateDeduction        decimal.Decimal
	OtherDeductions      decimal.Decimal
	TotalDeductions      decimal.Decimal
	NetPay               decimal.Decimal

	// Informational, does not reduce net pay
	EmployerContribution decimal.Decimal
}

// TotalAllowances sums the allowance amounts on the line item
func (li LineItem) TotalAllowances() decimal.Decimal {
	total := decimal.Zero
	for _, a := range li.Allowances {
		total = total.Add(a.Amount)
	}
	return total
}

// DeductionSum adds up the individual deduction components
func (li LineItem) DeductionSum() decimal.Decimal {
	return li.EmployeeContribution.
		Add(li.Tax).
		Add(li.UnpaidLeaveDeduction).
		Add(li.LateDeduction).
		Add(li.OtherDeductions)
}

// Balanced reports whether gross - deductions == net and the deduction total matches its parts
func (li LineItem) Balanced() bool {
	return li.TotalDeductions.Equal(li.DeductionSum()) &&
		li.GrossEarnings.Sub(li.TotalDeductions).Equal(li.NetPay)
}

// Payslip - a line item together with the run it belongs to
type Payslip struct {
	RunID        string
	Period       PayPeriod
	Status       RunStatus
	CurrencyCode string
	ProcessedAt  *time.Time
	LineItem     LineItem
}
