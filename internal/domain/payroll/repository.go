package payroll

import (
	"context"
	"time"
)

// RunRepository defines data access methods for payroll runs.
// Status changes are compare-and-swap on Run.Version.
type RunRepository interface {
	// Create persists the run, its line items and its first audit entry atomically.
	// Returns ErrRunAlreadyExists when a non-rejected run already holds the period.
	Create(ctx context.Context, run Run) (Run, error)

	// Reads
	GetByID(ctx context.Context, id string) (Run, error)
	GetDetail(ctx context.Context, id string) (Run, error)
	FindActiveByPeriod(ctx context.Context, periodKey string) (Run, error)
	List(ctx context.Context, filter RunFilter) ([]Run, int64, error)

	// UpdateStatus writes run.Status and run.Locked only if the stored version still
	// equals expectedVersion, and appends entry to the audit trail in the same transaction.
	// Returns the run with its new version, ErrRunLocked when the run is processed,
	// or ErrConcurrentModification.
	// It also releases any disbursement claim on the run.
	UpdateStatus(ctx context.Context, run Run, expectedVersion int64, entry AuditEntry) (Run, error)

	// ClaimForProcessing bumps the version and holds the run for disbursement until
	// the given time. While the claim is live no other caller can claim the run, and
	// every caller still holding an older version fails with ErrConcurrentModification.
	ClaimForProcessing(ctx context.Context, runID string, expectedVersion int64, now, until time.Time) (Run, error)

	// Payslips
	GetPayslip(ctx context.Context, runID, employeeID string) (Payslip, error)
	ListPayslipsByEmployee(ctx context.Context, employeeID string) ([]Payslip, error)
}
