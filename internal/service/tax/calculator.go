package tax

import (
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Input is one employee's figures for one pay period
type Input struct {
	TaxableIncome decimal.Decimal
	BasicSalary   decimal.Decimal
	Residency     tax.Residency

	// PeriodsPerYear annualises the period income before applying the
	// annual threshold and slabs. Values below 2 tax the income as given.
	PeriodsPerYear int
}

// Result holds the period amounts, rounded to the calculator scale
type Result struct {
	Tax                  decimal.Decimal
	EmployeeContribution decimal.Decimal
	EmployerContribution decimal.Decimal
}

// Calculator applies a tax configuration to one period's income. It keeps no state.
type Calculator struct {
	scale int32
}

func NewCalculator(scale int32) *Calculator {
	return &Calculator{scale: scale}
}

// Calculate returns tax and contributions for in under cfg.
// cfg is expected to have passed Validate.
func (c *Calculator) Calculate(cfg tax.Configuration, in Input) Result {
	income := in.TaxableIncome
	if income.IsNegative() {
		income = decimal.Zero
	}

	periods := decimal.NewFromInt(1)
	if in.PeriodsPerYear > 1 {
		periods = decimal.NewFromInt(int64(in.PeriodsPerYear))
	}

	annualTax := MarginalTax(cfg.SlabsFor(in.Residency), income.Mul(periods).Sub(cfg.TaxFreeThreshold))

	result := Result{
		Tax:                  annualTax.Div(periods).Round(c.scale),
		EmployeeContribution: decimal.Zero,
		EmployerContribution: decimal.Zero,
	}

	// The floor is a per-period amount, so it is not scaled by PeriodsPerYear
	if in.BasicSalary.GreaterThanOrEqual(cfg.ContributionMinimumSalary) && in.BasicSalary.IsPositive() {
		result.EmployeeContribution = percentOf(in.BasicSalary, cfg.EmployeeContributionRate).Round(c.scale)
		result.EmployerContribution = percentOf(in.BasicSalary, cfg.EmployerContributionRate).Round(c.scale)
	}

	return result
}

// MarginalTax walks slabs in order and taxes the part of income that falls in
// each half-open band [From, To). Income at exactly To stays in the lower band.
// slabs must be one residency ladder sorted by Order.
func MarginalTax(slabs []tax.Slab, income decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	if !income.IsPositive() {
		return total
	}

	for _, slab := range slabs {
		if !income.GreaterThan(slab.From) {
			break
		}

		upper := income
		if !slab.IsOpen() && slab.To.LessThan(income) {
			upper = *slab.To
		}

		total = total.Add(percentOf(upper.Sub(slab.From), slab.Rate))

		if slab.IsOpen() || !income.GreaterThan(*slab.To) {
			break
		}
	}

	return total
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}
