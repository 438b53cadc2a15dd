package fixtures

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// ==========================================
// DEFAULT TAX CONFIGURATION (PNG)
// ==========================================

// GetDefaultTaxConfiguration returns the Papua New Guinea salary and wages tax
// setup for one calendar financial year: 26 fortnights, K12,500 tax-free
// threshold, 6% / 8.4% superannuation.
//
// Slab bounds are measured on income above the threshold, so the resident
// ladder below is the statutory table shifted down by K12,500.
func GetDefaultTaxConfiguration(year int) tax.Configuration {
	return tax.Configuration{
		FinancialYear:             fmt.Sprintf("%d", year),
		ValidFrom:                 time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:                   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		CurrencyCode:              "PGK",
		PeriodsPerYear:            26,
		TaxFreeThreshold:          dec("12500"),
		DefaultResidency:          tax.ResidencyResident,
		EmployeeContributionRate:  dec("6"),
		EmployerContributionRate:  dec("8.4"),
		ContributionMinimumSalary: dec("0"),
		Active:                    true,
		Slabs:                     append(GetDefaultResidentSlabs(), GetDefaultNonResidentSlabs()...),
	}
}

// GetDefaultResidentSlabs returns the progressive resident ladder
func GetDefaultResidentSlabs() []tax.Slab {
	return []tax.Slab{
		{Order: 1, Residency: tax.ResidencyResident, From: dec("0"), To: decPtr("7500"), Rate: dec("22"), Description: "K12,501 - K20,000"},
		{Order: 2, Residency: tax.ResidencyResident, From: dec("7500"), To: decPtr("20500"), Rate: dec("30"), Description: "K20,001 - K33,000"},
		{Order: 3, Residency: tax.ResidencyResident, From: dec("20500"), To: decPtr("57500"), Rate: dec("35"), Description: "K33,001 - K70,000"},
		{Order: 4, Residency: tax.ResidencyResident, From: dec("57500"), To: decPtr("237500"), Rate: dec("40"), Description: "K70,001 - K250,000"},
		{Order: 5, Residency: tax.ResidencyResident, From: dec("237500"), To: nil, Rate: dec("42"), Description: "Over K250,000"},
	}
}

// GetDefaultNonResidentSlabs returns the flat non-resident band
func GetDefaultNonResidentSlabs() []tax.Slab {
	return []tax.Slab{
		{Order: 1, Residency: tax.ResidencyNonResident, From: dec("0"), To: nil, Rate: dec("22"), Description: "Flat rate"},
	}
}
