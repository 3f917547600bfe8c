package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPriceMismatch     = errors.New("unit price does not match catalog price")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidState      = errors.New("invalid state")
	ErrOrderInactive     = errors.New("order is already inactive")
	// ErrConflict is returned when a version-guarded state transition loses a
	// race against another writer.
	ErrConflict = errors.New("order was modified concurrently")
)

// CartError points at the cart line that failed validation.
type CartError struct {
	Line   int
	Reason string
	Err    error
}

func (e *CartError) Error() string {
	return fmt.Sprintf("cart item %d: %s", e.Line, e.Reason)
}

func (e *CartError) Unwrap() error {
	return e.Err
}
