package errors

import "errors"

var (
	// ErrAuthenticationFailed indicates that a webhook payload failed its
	// signature or certificate check and must be rejected
	ErrAuthenticationFailed = errors.New("webhook authentication failed")

	// ErrValidationFailed indicates a malformed cart or request shape
	ErrValidationFailed = errors.New("validation failed")

	// ErrCheckoutFailed indicates that the gateway rejected session creation
	// or finalization
	ErrCheckoutFailed = errors.New("checkout session creation failed")

	// ErrGatewayUnavailable indicates a transient gateway failure that the
	// caller may retry with backoff
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrDuplicateDelivery marks a webhook delivery whose event id was
	// already processed. Callers treat it as a successful no-op.
	ErrDuplicateDelivery = errors.New("duplicate webhook delivery")

	// ErrRecordNotFound indicates that no ledger record matches the given id
	ErrRecordNotFound = errors.New("purchase record not found")
)
