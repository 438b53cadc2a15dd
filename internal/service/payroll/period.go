package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
)

const daysPerFortnight = 14

// PeriodStart returns the first day of a period without bounding the fortnight
// index by a yearly count. It is used to pick the tax configuration that then
// decides how many fortnights the year has.
func PeriodStart(periodicity payroll.Periodicity, index, year int) (time.Time, error) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	switch periodicity {
	case payroll.PeriodicityMonthly:
		if index < 1 || index > 12 {
			return time.Time{}, fmt.Errorf("%w: month %d out of range", payroll.ErrInvalidPeriod, index)
		}
		return time.Date(year, time.Month(index), 1, 0, 0, 0, 0, time.UTC), nil
	case payroll.PeriodicityFortnightly:
		if index < 1 {
			return time.Time{}, fmt.Errorf("%w: fortnight %d out of range", payroll.ErrInvalidPeriod, index)
		}
		start := yearStart.AddDate(0, 0, (index-1)*daysPerFortnight)
		if start.Year() != year {
			return time.Time{}, fmt.Errorf("%w: fortnight %d starts after year end", payroll.ErrInvalidPeriod, index)
		}
		return start, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown periodicity %q", payroll.ErrInvalidPeriod, periodicity)
	}
}

// NewPayPeriod resolves a periodicity, index and year into concrete dates.
// Fortnight i starts on Jan 1 + (i-1)*14 days and ends 13 days later, capped at Dec 31.
func NewPayPeriod(periodicity payroll.Periodicity, index, year, fortnightsPerYear int) (payroll.PayPeriod, error) {
	period := payroll.PayPeriod{
		Periodicity: periodicity,
		Index:       index,
		Year:        year,
	}

	switch periodicity {
	case payroll.PeriodicityMonthly:
		if index < 1 || index > 12 {
			return payroll.PayPeriod{}, fmt.Errorf("%w: month %d out of range", payroll.ErrInvalidPeriod, index)
		}
		period.StartDate = time.Date(year, time.Month(index), 1, 0, 0, 0, 0, time.UTC)
		period.EndDate = period.StartDate.AddDate(0, 1, -1)
		period.PeriodsPerYear = 12

	case payroll.PeriodicityFortnightly:
		if fortnightsPerYear <= 0 {
			fortnightsPerYear = 26
		}
		if index < 1 || index > fortnightsPerYear {
			return payroll.PayPeriod{}, fmt.Errorf("%w: fortnight %d out of range 1-%d", payroll.ErrInvalidPeriod, index, fortnightsPerYear)
		}
		yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

		period.StartDate = yearStart.AddDate(0, 0, (index-1)*daysPerFortnight)
		if period.StartDate.After(yearEnd) {
			return payroll.PayPeriod{}, fmt.Errorf("%w: fortnight %d starts after year end", payroll.ErrInvalidPeriod, index)
		}
		period.EndDate = period.StartDate.AddDate(0, 0, daysPerFortnight-1)
		if period.EndDate.After(yearEnd) {
			period.EndDate = yearEnd
		}
		period.PeriodsPerYear = fortnightsPerYear

	default:
		return payroll.PayPeriod{}, fmt.Errorf("%w: unknown periodicity %q", payroll.ErrInvalidPeriod, periodicity)
	}

	period.WorkingDays = CountWorkingDays(period.StartDate, period.EndDate)
	return period, nil
}

// CountWorkingDays counts Monday to Friday between start and end inclusive
func CountWorkingDays(start, end time.Time) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}
