package errors

import "errors"

var (
	// ErrNoCustomerMapping indicates that the owner has no associated
	// gateway customer
	ErrNoCustomerMapping = errors.New("no customer mapping found for owner")

	// ErrNoActiveSubscription indicates that the owner has no active subscription
	ErrNoActiveSubscription = errors.New("no active subscription found")

	// ErrSubscriptionNotFound indicates that the specified subscription was not found
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNotSubscriptionOwner indicates that the caller does not own the
	// subscription it is trying to change
	ErrNotSubscriptionOwner = errors.New("caller is not the subscription owner")
)
