package catalog

import "errors"

var (
	// ErrNotFound is returned when the product doesn't exist
	ErrNotFound = errors.New("product not found")

	// ErrInvalidPricing is returned when points_cost and price_amount don't match price_type
	ErrInvalidPricing = errors.New("invalid pricing: exactly one of points_cost and price_amount must be set")

	ErrInternal = errors.New("internal error")
)
