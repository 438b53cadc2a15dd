package user

import "errors"

var (
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrIdentityMissing         = errors.New("caller identity missing from token")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)
