package employee

import (
	"github.com/shopspring/decimal"
)

// Employee is a read-only roster entry as seen by payroll.
// Salary and allowance amounts are annual figures.
type Employee struct {
	ID                    string
	EmployeeCode          string
	FullName              string
	Department            string
	EmploymentStatus      EmploymentStatus
	Resident              *bool // nil falls back to the tax configuration default
	BankCode              string
	BankAccountHolderName string
	BankAccountNumber     string
	BaseSalary            decimal.Decimal
	Allowances            []Allowance
}

// Allowance is a fixed, recurring allowance attached to an employee
type Allowance struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusResigned   EmploymentStatus = "resigned"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// IsActive reports whether the employee is included in payroll runs
func (e Employee) IsActive() bool {
	return e.EmploymentStatus == EmploymentStatusActive
}

// TotalAllowances sums the fixed allowance amounts
func (e Employee) TotalAllowances() decimal.Decimal {
	total := decimal.Zero
	for _, a := range e.Allowances {
		total = total.Add(a.Amount)
	}
	return total
}
