package employee

import "context"

// RosterRepository is the read side of the employee master data store.
type RosterRepository interface {
	// ListActive returns every active employee ordered by employee code.
	ListActive(ctx context.Context) ([]Employee, error)
}
