package store

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrOrderTerminal     = errors.New("order can no longer be edited")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTableLockFailed   = errors.New("table lock state could not be established")
)
