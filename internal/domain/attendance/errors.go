package attendance

import "errors"

var (
	ErrInvalidWindow = errors.New("attendance window end is before start")
)
