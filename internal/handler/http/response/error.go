package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Partial payouts carry per-employee results
	var disbursementErr *payroll.DisbursementError
	if errors.As(err, &disbursementErr) {
		BadGateway(w, disbursementErr.Error(), disbursementErr.Results)
		return
	}

	switch {
	// Identity errors
	case errors.Is(err, user.ErrInvalidToken),
		errors.Is(err, user.ErrIdentityMissing),
		errors.Is(err, user.ErrInvalidRole):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())

	// Payroll domain errors
	case errors.Is(err, payroll.ErrUnauthorized):
		Forbidden(w, err.Error())
	case errors.Is(err, payroll.ErrMissingReason):
		ValidationError(w, map[string]string{"reason": err.Error()})
	case errors.Is(err, payroll.ErrInvalidAction),
		errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrPayslipNotFound):
		NotFound(w, "Payslip not found")
	case errors.Is(err, payroll.ErrPayslipNotAvailable):
		Conflict(w, "", err.Error())
	case errors.Is(err, payroll.ErrConcurrentModification):
		Conflict(w, CodeConcurrentModification, err.Error())
	case errors.Is(err, payroll.ErrInvalidTransition),
		errors.Is(err, payroll.ErrRunLocked):
		Conflict(w, CodeInvalidTransition, err.Error())
	case errors.Is(err, payroll.ErrRunAlreadyExists):
		Conflict(w, CodeRunAlreadyExists, err.Error())
	case errors.Is(err, payroll.ErrIncompleteAttendanceData),
		errors.Is(err, payroll.ErrNoActiveEmployees),
		errors.Is(err, tax.ErrNoActiveTaxConfiguration),
		errors.Is(err, tax.ErrMalformedSlabTable),
		errors.Is(err, tax.ErrInvalidConfiguration):
		PreconditionFailed(w, err.Error())

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
