package domain

import "errors"

var (
	// ErrInvalidStrategy is returned for an unrecognised strategy tag.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrDataUnavailable is returned when the price source has no
	// observations for the requested symbol and range.
	ErrDataUnavailable = errors.New("no price data available")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)
