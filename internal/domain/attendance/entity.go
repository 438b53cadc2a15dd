package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds one employee's attendance-derived counts for a pay period.
type Summary struct {
	EmployeeID      string
	WorkingDays     int
	PresentDays     int
	LeaveDays       int
	UnpaidLeaveDays int
	LateOccurrences int
	LateMinutes     int
	OvertimeHours   decimal.Decimal // approved overtime only
}

// Window is the date range a summary is aggregated over.
type Window struct {
	Start       time.Time
	End         time.Time
	WorkingDays int
}

// IsComplete reports whether the summary carries enough data to compute pay
func (s Summary) IsComplete() bool {
	return s.WorkingDays > 0
}
