package ntm

import (
	"errors"
)

var (
	// ErrShapeMismatch is returned when a vector or matrix does not have
	// the length fixed by the bank's rows, cols or the shift kernel.
	ErrShapeMismatch = errors.New("ntm: shape mismatch")

	// ErrUninitialized is returned when a bank is used before Reset.
	ErrUninitialized = errors.New("ntm: memory used before Reset")

	// ErrInvalidParams is returned for head parameters outside their domain,
	// such as a negative shift weight.
	ErrInvalidParams = errors.New("ntm: invalid head parameters")
)
