package bridge

import "errors"

var (
	// ErrAdapterNotFound is returned when no chain setting exists for the
	// requested chain and ramp direction
	ErrAdapterNotFound = errors.New("no adapter configured for chain")

	// ErrAdapterNotEnabled is returned when a chain setting exists but the
	// route is administratively disabled
	ErrAdapterNotEnabled = errors.New("adapter disabled for chain")

	// ErrInsufficientFee is returned when the supplied fee does not cover the
	// quoted delivery fee
	ErrInsufficientFee = errors.New("insufficient fee amount")

	// ErrNotTokenOwner is returned when the caller does not own the token it
	// is trying to bridge
	ErrNotTokenOwner = errors.New("caller is not the token owner")
)
