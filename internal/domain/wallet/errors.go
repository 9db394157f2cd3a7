package wallet

import "errors"

var (
	// ErrInvalidAmount is returned when an amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInvalidReference is returned when an external reference is missing
	ErrInvalidReference = errors.New("invalid external reference")

	// ErrInsufficientBalance is returned when the balance can't cover a debit
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrTransactionNotFound is returned when no pending deposit matches a session id
	ErrTransactionNotFound = errors.New("pending transaction not found")

	// ErrProviderNotConfigured is returned when no payment provider is available
	ErrProviderNotConfigured = errors.New("payment provider is not configured")

	ErrInternal = errors.New("internal error")
)
