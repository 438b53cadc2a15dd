package disbursement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Instruction asks the gateway to pay one employee's net pay for one run.
type Instruction struct {
	IdempotencyKey        string
	RunID                 string
	EmployeeID            string
	EmployeeCode          string
	BankCode              string
	BankAccountNumber     string
	BankAccountHolderName string
	Amount                decimal.Decimal
	CurrencyCode          string
	Description           string
}

// Record is the ledger row for one (run, employee) pair.
type Record struct {
	RunID      string
	EmployeeID string
	Amount     decimal.Decimal
	Status     Status
	Reference  *string
	LastError  *string
	Attempts   int
	UpdatedAt  time.Time
}

// Result is the per-employee outcome reported back to the caller.
type Result struct {
	EmployeeID   string          `json:"employee_id"`
	EmployeeCode string          `json:"employee_code"`
	Amount       decimal.Decimal `json:"amount"`
	Status       Status          `json:"status"`
	Reference    string          `json:"reference,omitempty"`
	Error        string          `json:"error,omitempty"`
	Skipped      bool            `json:"skipped"` // no payout issued by this attempt
}

// Key builds the idempotency key for one employee's payout within a run
func Key(runID, employeeID string) string {
	return runID + ":" + employeeID
}
