// models/errors.go
package models

import "errors"

var (
	// ErrCountryNotFound is returned when a requested country is not a dataset column.
	ErrCountryNotFound = errors.New("country not found")
	// ErrInvalidDays is returned for a non-positive day window.
	ErrInvalidDays = errors.New("days must be a positive integer")
	// ErrMalformedCSV marks upstream CSVs that do not match the expected schema.
	ErrMalformedCSV = errors.New("malformed time series CSV")
	// ErrNoDataset is returned when no dataset has been loaded yet.
	ErrNoDataset = errors.New("no dataset loaded")
)
