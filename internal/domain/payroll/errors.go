package payroll

import (
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
)

var (
	ErrRunNotFound              = errors.New("payroll run not found")
	ErrRunAlreadyExists         = errors.New("an active payroll run already exists for this period")
	ErrIncompleteAttendanceData = errors.New("incomplete attendance data")
	ErrInvalidTransition        = errors.New("invalid transition for current run status")
	ErrConcurrentModification   = errors.New("payroll run was modified concurrently")
	ErrUnauthorized             = errors.New("actor is not permitted to perform this action")
	ErrMissingReason            = errors.New("reason is required to reject a payroll run")
	ErrRunLocked                = errors.New("payroll run is locked")
	ErrTotalsMismatch           = errors.New("run totals do not match line items")
	ErrUnbalancedLineItem       = errors.New("line item does not balance")
	ErrNoActiveEmployees        = errors.New("no active employees to compute")
	ErrInvalidPeriod            = errors.New("invalid payroll period")
	ErrInvalidAction            = errors.New("invalid payroll action")
	ErrPayslipNotFound          = errors.New("payslip not found")
	ErrPayslipNotAvailable      = errors.New("payslip is only available once the run is processed")
	ErrDisbursementIncomplete   = errors.New("disbursement incomplete")
)

// DisbursementError reports a process attempt where at least one payout failed.
// The run stays AUTHORIZED and the call can be retried.
type DisbursementError struct {
	RunID   string
	Results []disbursement.Result
}

func (e *DisbursementError) Error() string {
	return fmt.Sprintf("%s: %d of %d payouts failed for run %s",
		ErrDisbursementIncomplete.Error(), len(e.Failed()), len(e.Results), e.RunID)
}

func (e *DisbursementError) Unwrap() error {
	return ErrDisbursementIncomplete
}

// Failed returns only the results that did not succeed
func (e *DisbursementError) Failed() []disbursement.Result {
	var failed []disbursement.Result
	for _, r := range e.Results {
		if r.Status != disbursement.StatusSucceeded {
			failed = append(failed, r)
		}
	}
	return failed
}
