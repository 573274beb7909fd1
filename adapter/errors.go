package adapter

import "errors"

var (
	// ErrOperationNotSupported is returned when the fee entry point does not
	// match the configured fee mode
	ErrOperationNotSupported = errors.New("operation not supported by fee mode")

	// ErrInsufficientFee is returned when the native fee supplied with a send
	// does not cover the quoted delivery fee
	ErrInsufficientFee = errors.New("insufficient fee amount")

	// ErrInsufficientFeeTokenAmount is returned when the payer's fee token
	// balance does not cover the quoted delivery fee
	ErrInsufficientFeeTokenAmount = errors.New("insufficient fee token amount")

	// ErrNoMessagesAvailable is returned by an execution request when the
	// pending queue is empty
	ErrNoMessagesAvailable = errors.New("no messages available")

	// ErrInvalidExecutionLimit rejects a zero message execution limit
	ErrInvalidExecutionLimit = errors.New("execution limit must be positive")

	// ErrReceiverNotBound signals a send or execute before wiring completed
	ErrReceiverNotBound = errors.New("message receiver not bound")
)
