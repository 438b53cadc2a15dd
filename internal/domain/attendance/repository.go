package attendance

import "context"

type SummaryRepository interface {
	// GetSummaries returns per-employee counts keyed by employee ID.
	// Employees without any attendance in the window are absent from the map.
	GetSummaries(ctx context.Context, employeeIDs []string, window Window) (map[string]Summary, error)
}
