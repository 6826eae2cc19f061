package delivery

import "errors"

// Domain errors for the order lifecycle.
var (
	// ErrNotFound indicates the order is not loaded or not within the courier's scope.
	ErrNotFound = errors.New("delivery order not found")
	// ErrItemNotFound indicates an order item could not be addressed.
	ErrItemNotFound = errors.New("delivery order item not found")

	// Lifecycle errors.
	ErrNoCourier          = errors.New("delivery person identity not resolved")
	ErrTerminal           = errors.New("delivery order already in a terminal status")
	ErrInconsistentTotals = errors.New("delivered and returned quantities do not add up to ordered quantity")
	ErrEmptyReason        = errors.New("failure reason is required")
	ErrUnknownItem        = errors.New("completion references an item not on the order")

	// Completion form errors.
	ErrMissingReturnReason = errors.New("return reason is required for returned items")
	ErrInvalidAmount       = errors.New("collected amount must be a non-negative number")
	ErrInvalidPayment      = errors.New("unknown payment method")
)
