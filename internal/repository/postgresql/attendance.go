package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.SummaryRepository {
	return &attendanceRepository{db: db}
}

var minutesPerHour = decimal.NewFromInt(60)

// GetSummaries implements attendance.SummaryRepository.
func (a *attendanceRepository) GetSummaries(ctx context.Context, employeeIDs []string, window attendance.Window) (map[string]attendance.Summary, error) {
	if window.End.Before(window.Start) {
		return nil, attendance.ErrInvalidWindow
	}
	summaries := make(map[string]attendance.Summary, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return summaries, nil
	}

	q := GetQuerier(ctx, a.db)

	query := `
		SELECT
			employee_id::text,
			COUNT(*) FILTER (WHERE status IN ('present', 'late')) AS present_days,
			COUNT(*) FILTER (WHERE status = 'leave') AS leave_days,
			COUNT(*) FILTER (WHERE status IN ('unpaid_leave', 'absent')) AS unpaid_leave_days,
			COUNT(*) FILTER (WHERE status = 'late') AS late_occurrences,
			COALESCE(SUM(late_minutes), 0) AS late_minutes,
			COALESCE(SUM(overtime_minutes) FILTER (WHERE overtime_approved), 0) AS overtime_minutes
		FROM attendances
		WHERE employee_id = ANY($1::uuid[])
		  AND date >= $2
		  AND date <= $3
		GROUP BY employee_id
	`

	rows, err := q.Query(ctx, query, employeeIDs, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s attendance.Summary
		var overtimeMinutes int64
		if err := rows.Scan(
			&s.EmployeeID, &s.PresentDays, &s.LeaveDays, &s.UnpaidLeaveDays,
			&s.LateOccurrences, &s.LateMinutes, &overtimeMinutes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance summary: %w", err)
		}
		s.WorkingDays = window.WorkingDays
		s.OvertimeHours = decimal.NewFromInt(overtimeMinutes).Div(minutesPerHour).Round(2)
		summaries[s.EmployeeID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get attendance summaries: %w", err)
	}

	return summaries, nil
}
