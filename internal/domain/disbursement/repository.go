package disbursement

import "context"

// Repository is the idempotency ledger for payouts, unique on (run, employee).
type Repository interface {
	ListByRun(ctx context.Context, runID string) ([]Record, error)
	// Save upserts the record. A succeeded record is never downgraded.
	Save(ctx context.Context, record Record) (Record, error)
}

// Gateway issues a single payout and returns the provider reference.
type Gateway interface {
	Disburse(ctx context.Context, instruction Instruction) (reference string, err error)
}
