package reward

import "errors"

var (
	// ErrProductUnavailable is returned when the product is missing, inactive
	// or out of stock
	ErrProductUnavailable = errors.New("product is not available for redemption")

	// ErrInsufficientPoints is returned when the user's points balance can't
	// cover a points-priced product
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrInsufficientFunds is returned when the wallet balance can't cover a
	// money-priced product
	ErrInsufficientFunds = errors.New("insufficient wallet funds")

	ErrInternal = errors.New("internal error")
)
