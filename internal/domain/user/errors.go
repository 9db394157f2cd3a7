package user

import "errors"

var (
	// ErrNotFound is returned when the user doesn't exist
	ErrNotFound = errors.New("user not found")

	// ErrInvalidAmount is returned when a points amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInsufficientPoints is returned when a deduction would make the balance negative
	ErrInsufficientPoints = errors.New("insufficient points")

	ErrInternal = errors.New("internal error")
)
