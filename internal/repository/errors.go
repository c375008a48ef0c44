package repository

import "errors"

var (
	// ErrProductNotFound indicates no product has the requested id
	ErrProductNotFound = errors.New("product not found")

	// ErrAlertNotFound indicates no alert has the requested id
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidAlertType indicates an alert type outside the known set
	ErrInvalidAlertType = errors.New("invalid alert type")

	// ErrDuplicateProductCode indicates another product already uses the code
	ErrDuplicateProductCode = errors.New("product code already exists")

	// ErrInvalidProduct indicates a product failing basic field checks
	ErrInvalidProduct = errors.New("invalid product")

	// ErrNegativeStock indicates a stock level below zero
	ErrNegativeStock = errors.New("stock cannot be negative")
)
