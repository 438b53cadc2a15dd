package payroll

import (
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339
)

func toPeriodResponse(p payroll.PayPeriod) payroll.PeriodResponse {
	return payroll.PeriodResponse{
		Periodicity: string(p.Periodicity),
		Index:       p.Index,
		Year:        p.Year,
		StartDate:   p.StartDate.Format(dateLayout),
		EndDate:     p.EndDate.Format(dateLayout),
		WorkingDays: p.WorkingDays,
	}
}

func toStageResponse(run payroll.Run, status payroll.RunStatus) *payroll.StageResponse {
	entry, ok := run.AuditFor(status)
	if !ok {
		return nil
	}
	return &payroll.StageResponse{
		Action:    string(entry.Action),
		ActorID:   entry.ActorID,
		ActorName: entry.ActorName,
		ActorRole: string(entry.ActorRole),
		Remarks:   entry.Remarks,
		At:        entry.At.Format(timestampLayout),
	}
}

func toRunSummary(run payroll.Run) payroll.RunSummary {
	return payroll.RunSummary{
		ID:                        run.ID,
		Period:                    toPeriodResponse(run.Period),
		Status:                    string(run.Status),
		TotalEmployees:            run.Totals.EmployeeCount,
		TotalGross:                run.Totals.Gross,
		TotalDeductions:           run.Totals.Deductions,
		TotalNet:                  run.Totals.Net,
		TotalEmployerContribution: run.Totals.EmployerContribution,
		CurrencyCode:              run.CurrencyCode,
		Locked:                    run.Locked,
		Version:                   run.Version,
		Computed:                  toStageResponse(run, payroll.RunStatusComputed),
		Checked:                   toStageResponse(run, payroll.RunStatusChecked),
		Authorized:                toStageResponse(run, payroll.RunStatusAuthorized),
		Processed:                 toStageResponse(run, payroll.RunStatusProcessed),
		Rejected:                  toStageResponse(run, payroll.RunStatusRejected),
		CreatedAt:                 run.CreatedAt.Format(timestampLayout),
		UpdatedAt:                 run.UpdatedAt.Format(timestampLayout),
	}
}

func toLineItemResponse(item payroll.LineItem) payroll.LineItemResponse {
	return payroll.LineItemResponse{
		ID:           item.ID,
		EmployeeID:   item.EmployeeID,
		EmployeeCode: item.EmployeeCode,
		EmployeeName: item.EmployeeName,
		Department:   item.Department,
		Resident:     item.Resident,
		BasicSalary:  item.BasicSalary,
		Allowances:   item.Allowances,
		Bonus:        item.Bonus,
		Attendance: payroll.AttendanceResponse{
			WorkingDays:     item.Attendance.WorkingDays,
			PresentDays:     item.Attendance.PresentDays,
			LeaveDays:       item.Attendance.LeaveDays,
			UnpaidLeaveDays: item.Attendance.UnpaidLeaveDays,
			LateOccurrences: item.Attendance.LateOccurrences,
			LateMinutes:     item.Attendance.LateMinutes,
			OvertimeHours:   item.Attendance.OvertimeHours,
		},
		OvertimePay:          item.OvertimePay,
		GrossEarnings:        item.GrossEarnings,
		TaxableIncome:        item.TaxableIncome,
		Tax:                  item.Tax,
		EmployeeContribution: item.EmployeeContribution,
		UnpaidLeaveDeduction: item.UnpaidLeaveDeduction,
		LateDeduction:        item.LateDeduction,
		OtherDeductions:      item.OtherDeductions,
		TotalDeductions:      item.TotalDeductions,
		NetPay:               item.NetPay,
		EmployerContribution: item.EmployerContribution,
	}
}

func toRunDetail(run payroll.Run) payroll.RunDetail {
	detail := payroll.RunDetail{
		RunSummary: toRunSummary(run),
		LineItems:  make([]payroll.LineItemResponse, 0, len(run.LineItems)),
		Audit:      make([]payroll.AuditEntryResponse, 0, len(run.Audit)),
	}
	for _, item := range run.LineItems {
		detail.LineItems = append(detail.LineItems, toLineItemResponse(item))
	}
	for _, entry := range run.Audit {
		detail.Audit = append(detail.Audit, payroll.AuditEntryResponse{
			Action:     string(entry.Action),
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			ActorID:    entry.ActorID,
			ActorName:  entry.ActorName,
			ActorRole:  string(entry.ActorRole),
			Remarks:    entry.Remarks,
			At:         entry.At.Format(timestampLayout),
		})
	}
	return detail
}

func toPayslipResponse(p payroll.Payslip) payroll.PayslipResponse {
	resp := payroll.PayslipResponse{
		RunID:        p.RunID,
		Period:       toPeriodResponse(p.Period),
		CurrencyCode: p.CurrencyCode,
		LineItem:     toLineItemResponse(p.LineItem),
	}
	if p.ProcessedAt != nil {
		processedAt := p.ProcessedAt.Format(timestampLayout)
		resp.ProcessedAt = &processedAt
	}
	return resp
}

func toRunEvent(run payroll.Run, action payroll.Action, actor payroll.Actor) payroll.RunEvent {
	return payroll.RunEvent{
		RunID:     run.ID,
		PeriodKey: run.Period.Key(),
		Action:    string(action),
		Status:    string(run.Status),
		Version:   run.Version,
		ActorID:   actor.ID,
		At:        run.UpdatedAt.Format(timestampLayout),
	}
}
