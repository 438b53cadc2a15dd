package employee

import "errors"

var (
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrInvalidAllowanceSet = errors.New("invalid allowance data")
)
