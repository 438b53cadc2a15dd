package tax

import "context"

// Repository reads tax configurations together with their slabs.
type Repository interface {
	ListActive(ctx context.Context) ([]Configuration, error)
}
