package services

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden means the caller does not own the target resource.
	ErrForbidden = errors.New("caller does not own the target resource")

	// ErrNotFound means the requested row does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("not found")
)

// BelowMinimumError rejects redemptions under the configured floor.
type BelowMinimumError struct {
	Minimum   int
	Requested int
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum redemption is %d pineapples, got %d", e.Minimum, e.Requested)
}

// InsufficientBalanceError carries both sides of a failed redemption check
// so the boundary can render them.
type InsufficientBalanceError struct {
	Requested int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("you need %d pineapples but have %d", e.Requested, e.Available)
}
