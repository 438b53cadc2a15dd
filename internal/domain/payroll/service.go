package payroll

import "context"

type Service interface {
	ComputeRun(ctx context.Context, req ComputeRunRequest) (RunSummary, error)
	TransitionRun(ctx context.Context, req TransitionRunRequest) (RunSummary, error)
	GetRun(ctx context.Context, id string) (RunDetail, error)
	ListRuns(ctx context.Context, req ListRunsRequest) ([]RunSummary, int64, error)

	// Work queues
	ListPending(ctx context.Context, stage Stage) ([]RunSummary, error)

	// Payslips
	GetPayslip(ctx context.Context, runID, employeeID string) (PayslipResponse, error)
	ListEmployeePayslips(ctx context.Context, employeeID string) ([]PayslipResponse, error)

	// Subscribe streams run events until the returned cleanup is called
	Subscribe(ctx context.Context, subscriberID string) (<-chan RunEvent, func())
}
