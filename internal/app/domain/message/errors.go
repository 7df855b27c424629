package message

import "errors"

// Relay error taxonomy. Every public relay operation either fully commits or
// returns one of these with zero state mutation.
var (
	// ErrNotAuthorized indicates the caller lacks the required role.
	ErrNotAuthorized = errors.New("caller not authorized")

	// ErrInvalidChain indicates the target or source chain is unknown or
	// inactive. Terminal for the message.
	ErrInvalidChain = errors.New("chain unknown or inactive")

	// ErrAlreadyProcessed indicates a replay of a consumed (chain, nonce)
	// pair. Never retryable.
	ErrAlreadyProcessed = errors.New("message already processed")

	// ErrMessageExpired indicates delivery was attempted at or past the
	// expiration height. Terminal for the message.
	ErrMessageExpired = errors.New("message expired")

	// ErrPaymentFailed indicates the relay fee could not be collected.
	// Retryable after funding.
	ErrPaymentFailed = errors.New("relay fee payment failed")

	// ErrNotFound indicates a query miss.
	ErrNotFound = errors.New("not found")
)
