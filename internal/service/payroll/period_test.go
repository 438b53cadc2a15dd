package payroll

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPayPeriod_Fortnightly(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		wantStart time.Time
		wantEnd   time.Time
		wantDays  int
	}{
		{"first fortnight", 1, date(2025, 1, 1), date(2025, 1, 14), 10},
		{"seventh fortnight", 7, date(2025, 3, 26), date(2025, 4, 8), 10},
		{"last fortnight", 26, date(2025, 12, 17), date(2025, 12, 30), 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, err := NewPayPeriod(payroll.PeriodicityFortnightly, tt.index, 2025, 26)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, period.StartDate)
			assert.Equal(t, tt.wantEnd, period.EndDate)
			assert.Equal(t, tt.wantDays, period.WorkingDays)
			assert.Equal(t, 26, period.PeriodsPerYear)
		})
	}
}

func TestNewPayPeriod_FortnightCappedAtYearEnd(t *testing.T) {
	// 27 fortnights push the last one past Dec 31
	period, err := NewPayPeriod(payroll.PeriodicityFortnightly, 27, 2025, 27)

	require.NoError(t, err)
	assert.Equal(t, date(2025, 12, 31), period.StartDate)
	assert.Equal(t, date(2025, 12, 31), period.EndDate)
	assert.Equal(t, 1, period.WorkingDays)
}

func TestNewPayPeriod_Monthly(t *testing.T) {
	period, err := NewPayPeriod(payroll.PeriodicityMonthly, 2, 2024, 26)

	require.NoError(t, err)
	assert.Equal(t, date(2024, 2, 1), period.StartDate)
	assert.Equal(t, date(2024, 2, 29), period.EndDate)
	assert.Equal(t, 21, period.WorkingDays)
	assert.Equal(t, 12, period.PeriodsPerYear)
	assert.Equal(t, "monthly-2024-02", period.Key())
}

func TestNewPayPeriod_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		periodicity payroll.Periodicity
		index       int
	}{
		{"month zero", payroll.PeriodicityMonthly, 0},
		{"month thirteen", payroll.PeriodicityMonthly, 13},
		{"fortnight past count", payroll.PeriodicityFortnightly, 27},
		{"unknown periodicity", payroll.Periodicity("weekly"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayPeriod(tt.periodicity, tt.index, 2025, 26)
			assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
		})
	}
}

func TestPeriodStart(t *testing.T) {
	start, err := PeriodStart(payroll.PeriodicityFortnightly, 27, 2025)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 12, 31), start)

	start, err = PeriodStart(payroll.PeriodicityMonthly, 4, 2025)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 4, 1), start)

	_, err = PeriodStart(payroll.PeriodicityFortnightly, 28, 2025)
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
	_, err = PeriodStart(payroll.PeriodicityFortnightly, 0, 2025)
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
	_, err = PeriodStart(payroll.PeriodicityMonthly, 13, 2025)
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
}

func TestCountWorkingDays(t *testing.T) {
	// Mon 6 Jan 2025 to Sun 12 Jan 2025
	assert.Equal(t, 5, CountWorkingDays(date(2025, 1, 6), date(2025, 1, 12)))
	assert.Equal(t, 0, CountWorkingDays(date(2025, 1, 11), date(2025, 1, 12)))
	assert.Equal(t, 0, CountWorkingDays(date(2025, 1, 12), date(2025, 1, 6)))
}
