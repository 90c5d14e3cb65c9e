package classifications

import "errors"

var (
	ErrNotFound          = errors.New("classification not found")
	ErrResultNotFound    = errors.New("classification result not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotOwner          = errors.New("classification belongs to another user")
)
