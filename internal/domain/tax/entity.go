package tax

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Residency tags a slab as applying to resident or non-resident employees
type Residency string

const (
	ResidencyResident    Residency = "resident"
	ResidencyNonResident Residency = "non_resident"
)

// ResidencyOf maps a resident flag to its tag
func ResidencyOf(resident bool) Residency {
	if resident {
		return ResidencyResident
	}
	return ResidencyNonResident
}

// Configuration is a financial-year scoped tax and contribution setup.
// Thresholds and slab bounds are annual amounts. The contribution floor is the
// exception: it is compared with one period's basic salary.
type Configuration struct {
	ID                        string
	FinancialYear             string
	ValidFrom                 time.Time
	ValidTo                   time.Time
	CurrencyCode              string
	PeriodsPerYear            int
	TaxFreeThreshold          decimal.Decimal
	DefaultResidency          Residency
	EmployeeContributionRate  decimal.Decimal // percent of basic salary
	EmployerContributionRate  decimal.Decimal // percent of basic salary
	ContributionMinimumSalary decimal.Decimal // per pay period, never annualised
	Active                    bool
	Slabs                     []Slab
}

// Slab is a marginal band [From, To). A nil To marks the open top band.
type Slab struct {
	ID          string
	From        decimal.Decimal
	To          *decimal.Decimal
	Rate        decimal.Decimal // percent
	Order       int
	Residency   Residency
	Description string
}

// IsOpen reports whether the slab has no upper bound
func (s Slab) IsOpen() bool {
	return s.To == nil
}

// Covers reports whether date falls inside the validity window, both ends inclusive
func (c Configuration) Covers(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(c.ValidFrom)) && !d.After(truncateDay(c.ValidTo))
}

// SlabsFor returns the slabs tagged with residency, sorted by Order
func (c Configuration) SlabsFor(residency Residency) []Slab {
	var out []Slab
	for _, s := range c.Slabs {
		if s.Residency == residency {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Validate checks the configuration and its slab table.
// Every residency tag must form a contiguous, non-overlapping ladder starting
// at zero and ending in exactly one open band.
func (c Configuration) Validate() error {
	if c.ValidTo.Before(c.ValidFrom) {
		return fmt.Errorf("%w: valid_to before valid_from", ErrInvalidConfiguration)
	}
	if c.PeriodsPerYear <= 0 {
		return fmt.Errorf("%w: periods_per_year must be positive", ErrInvalidConfiguration)
	}
	if c.TaxFreeThreshold.IsNegative() {
		return fmt.Errorf("%w: tax_free_threshold must be non-negative", ErrInvalidConfiguration)
	}
	if !validPercent(c.EmployeeContributionRate) || !validPercent(c.EmployerContributionRate) {
		return fmt.Errorf("%w: contribution rates must be between 0 and 100", ErrInvalidConfiguration)
	}
	if c.DefaultResidency != ResidencyResident && c.DefaultResidency != ResidencyNonResident {
		return fmt.Errorf("%w: unknown default residency %q", ErrInvalidConfiguration, c.DefaultResidency)
	}

	for _, residency := range []Residency{ResidencyResident, ResidencyNonResident} {
		if err := validateLadder(c.SlabsFor(residency)); err != nil {
			return fmt.Errorf("%s slabs: %w", residency, err)
		}
	}
	for _, s := range c.Slabs {
		if s.Residency != ResidencyResident && s.Residency != ResidencyNonResident {
			return fmt.Errorf("%w: slab %d has unknown residency %q", ErrMalformedSlabTable, s.Order, s.Residency)
		}
	}
	return nil
}

func validateLadder(slabs []Slab) error {
	if len(slabs) == 0 {
		return fmt.Errorf("%w: no slabs", ErrMalformedSlabTable)
	}
	if !slabs[0].From.IsZero() {
		return fmt.Errorf("%w: first slab must start at 0", ErrMalformedSlabTable)
	}

	for i, s := range slabs {
		if !validPercent(s.Rate) {
			return fmt.Errorf("%w: slab %d rate out of range", ErrMalformedSlabTable, s.Order)
		}
		if i > 0 && slabs[i-1].Order == s.Order {
			return fmt.Errorf("%w: duplicate slab order %d", ErrMalformedSlabTable, s.Order)
		}

		last := i == len(slabs)-1
		if s.IsOpen() {
			if !last {
				return fmt.Errorf("%w: open slab %d is not the top band", ErrMalformedSlabTable, s.Order)
			}
			continue
		}
		if last {
			return fmt.Errorf("%w: top slab %d must be open", ErrMalformedSlabTable, s.Order)
		}
		if !s.To.GreaterThan(s.From) {
			return fmt.Errorf("%w: slab %d is empty or inverted", ErrMalformedSlabTable, s.Order)
		}
		if next := slabs[i+1]; !next.From.Equal(*s.To) {
			return fmt.Errorf("%w: slab %d ends at %s but slab %d starts at %s",
				ErrMalformedSlabTable, s.Order, s.To.String(), next.Order, next.From.String())
		}
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
