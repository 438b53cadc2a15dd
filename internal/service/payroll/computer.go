package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	taxService "github.com/cmlabs-hris/payrun-backend-go/internal/service/tax"
	"github.com/shopspring/decimal"
)

// LatePenaltyMode selects what the late penalty is multiplied by
type LatePenaltyMode string

const (
	LatePenaltyPerOccurrence LatePenaltyMode = "per_occurrence"
	LatePenaltyPerMinute     LatePenaltyMode = "per_minute"
)

// Policy holds the deployment-configured computation rules
type Policy struct {
	OvertimeMultiplier  decimal.Decimal
	LatePenaltyMode     LatePenaltyMode
	LatePenalty         decimal.Decimal
	StandardHoursPerDay decimal.Decimal
	Annualise           bool  // apply annual slabs to period income x periods per year
	Scale               int32 // currency minor unit
}

// DefaultPolicy returns the rules used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		OvertimeMultiplier:  decimal.RequireFromString("1.5"),
		LatePenaltyMode:     LatePenaltyPerOccurrence,
		LatePenalty:         decimal.NewFromInt(50),
		StandardHoursPerDay: decimal.NewFromInt(8),
		Annualise:           true,
		Scale:               2,
	}
}

// LineItemInput is everything the computer needs for one employee
type LineItemInput struct {
	Employee        employee.Employee
	Attendance      *attendance.Summary // nil when the attendance source has no row
	Bonus           decimal.Decimal
	OtherDeductions decimal.Decimal
}

// Computer turns one employee's inputs into a fully populated line item.
// It has no side effects and is safe for concurrent use.
type Computer struct {
	policy     Policy
	calculator *taxService.Calculator
}

func NewComputer(policy Policy) *Computer {
	if policy.StandardHoursPerDay.IsZero() {
		policy.StandardHoursPerDay = decimal.NewFromInt(8)
	}
	return &Computer{
		policy:     policy,
		calculator: taxService.NewCalculator(policy.Scale),
	}
}

// Compute builds the line item for in over period under cfg.
// Every money component is rounded before it is summed, so the item balances exactly.
func (c *Computer) Compute(in LineItemInput, period payroll.PayPeriod, cfg tax.Configuration) (payroll.LineItem, error) {
	emp := in.Employee
	att := in.Attendance
	if att == nil || !att.IsComplete() {
		return payroll.LineItem{}, fmt.Errorf("%w: employee %s", payroll.ErrIncompleteAttendanceData, emp.EmployeeCode)
	}
	if period.PeriodsPerYear <= 0 {
		return payroll.LineItem{}, fmt.Errorf("%w: periods per year not set", payroll.ErrInvalidPeriod)
	}

	scale := c.policy.Scale
	periods := decimal.NewFromInt(int64(period.PeriodsPerYear))
	workingDays := decimal.NewFromInt(int64(att.WorkingDays))

	// Roster figures are annual
	basic := emp.BaseSalary.Div(periods).Round(scale)
	allowances := make([]employee.Allowance, 0, len(emp.Allowances))
	allowanceTotal := decimal.Zero
	for _, a := range emp.Allowances {
		amount := a.Amount.Div(periods).Round(scale)
		allowances = append(allowances, employee.Allowance{Name: a.Name, Amount: amount})
		allowanceTotal = allowanceTotal.Add(amount)
	}

	dailyRate := basic.Div(workingDays)
	hourlyRate := dailyRate.Div(c.policy.StandardHoursPerDay)

	overtimePay := att.OvertimeHours.Mul(hourlyRate).Mul(c.policy.OvertimeMultiplier).Round(scale)
	bonus := in.Bonus.Round(scale)
	gross := basic.Add(allowanceTotal).Add(overtimePay).Add(bonus)

	unpaidLeave := dailyRate.Mul(decimal.NewFromInt(int64(att.UnpaidLeaveDays))).Round(scale)
	if unpaidLeave.GreaterThan(basic) {
		unpaidLeave = basic
	}
	late := c.lateDeduction(att).Round(scale)

	taxable := gross.Sub(unpaidLeave).Sub(late)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	residency := cfg.DefaultResidency
	if emp.Resident != nil {
		residency = tax.ResidencyOf(*emp.Resident)
	}

	taxInput := taxService.Input{
		TaxableIncome: taxable,
		BasicSalary:   basic,
		Residency:     residency,
	}
	if c.policy.Annualise {
		taxInput.PeriodsPerYear = period.PeriodsPerYear
	}
	taxResult := c.calculator.Calculate(cfg, taxInput)

	item := payroll.LineItem{
		EmployeeID:            emp.ID,
		EmployeeCode:          emp.EmployeeCode,
		EmployeeName:          emp.FullName,
		Department:            emp.Department,
		Resident:              residency == tax.ResidencyResident,
		BankCode:              emp.BankCode,
		BankAccountHolderName: emp.BankAccountHolderName,
		BankAccountNumber:     emp.BankAccountNumber,
		BasicSalary:           basic,
		Allowances:            allowances,
		Bonus:                 bonus,
		Attendance: payroll.AttendanceCounts{
			WorkingDays:     att.WorkingDays,
			PresentDays:     att.PresentDays,
			LeaveDays:       att.LeaveDays,
			UnpaidLeaveDays: att.UnpaidLeaveDays,
			LateOccurrences: att.LateOccurrences,
			LateMinutes:     att.LateMinutes,
			OvertimeHours:   att.OvertimeHours,
		},
		OvertimePay:          overtimePay,
		GrossEarnings:        gross,
		TaxableIncome:        taxable,
		Tax:                  taxResult.Tax,
		EmployeeContribution: taxResult.EmployeeContribution,
		UnpaidLeaveDeduction: unpaidLeave,
		LateDeduction:        late,
		OtherDeductions:      in.OtherDeductions.Round(scale),
		EmployerContribution: taxResult.EmployerContribution,
	}
	item.TotalDeductions = item.DeductionSum()
	item.NetPay = item.GrossEarnings.Sub(item.TotalDeductions)

	return item, nil
}

func (c *Computer) lateDeduction(att *attendance.Summary) decimal.Decimal {
	if c.policy.LatePenaltyMode == LatePenaltyPerMinute {
		return c.policy.LatePenalty.Mul(decimal.NewFromInt(int64(att.LateMinutes)))
	}
	return c.policy.LatePenalty.Mul(decimal.NewFromInt(int64(att.LateOccurrences)))
}
