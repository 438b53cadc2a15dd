package disbursement

import "errors"

var (
	ErrRecordNotFound     = errors.New("disbursement record not found")
	ErrMissingBankAccount = errors.New("employee has no bank account on file")
	ErrGatewayRejected    = errors.New("payout rejected by gateway")
)
