package models

import "errors"

// Error kinds surfaced by the engine and the services around it.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrDivision     = errors.New("division error")
	ErrNotFound     = errors.New("not found")
)
