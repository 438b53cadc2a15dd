package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// Aggregate folds line items into run totals
func Aggregate(items []payroll.LineItem) payroll.Totals {
	totals := payroll.Totals{
		EmployeeCount:        len(items),
		Gross:                decimal.Zero,
		Deductions:           decimal.Zero,
		Net:                  decimal.Zero,
		EmployerContribution: decimal.Zero,
	}
	for _, item := range items {
		totals.Gross = totals.Gross.Add(item.GrossEarnings)
		totals.Deductions = totals.Deductions.Add(item.TotalDeductions)
		totals.Net = totals.Net.Add(item.NetPay)
		totals.EmployerContribution = totals.EmployerContribution.Add(item.EmployerContribution)
	}
	return totals
}

// VerifyTotals checks that every line item balances and the run totals equal
// a fresh fold over the line items
func VerifyTotals(run payroll.Run) error {
	for _, item := range run.LineItems {
		if !item.Balanced() {
			return fmt.Errorf("%w: employee %s", payroll.ErrUnbalancedLineItem, item.EmployeeCode)
		}
	}

	expected := Aggregate(run.LineItems)
	if !run.Totals.Equal(expected) {
		return fmt.Errorf("%w: stored gross %s net %s count %d, line items gross %s net %s count %d",
			payroll.ErrTotalsMismatch,
			run.Totals.Gross, run.Totals.Net, run.Totals.EmployeeCount,
			expected.Gross, expected.Net, expected.EmployeeCount)
	}
	return nil
}
