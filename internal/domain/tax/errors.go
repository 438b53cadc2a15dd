package tax

import "errors"

var (
	ErrNoActiveTaxConfiguration = errors.New("no active tax configuration for period")
	ErrMalformedSlabTable       = errors.New("malformed tax slab table")
	ErrInvalidConfiguration     = errors.New("invalid tax configuration")
)
