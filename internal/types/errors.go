package types

import "errors"

// Sentinel errors for the signal pipeline.
var (
	// Market data errors
	ErrFetchFailed       = errors.New("market data fetch failed")
	ErrInsufficientData  = errors.New("insufficient market data")
	ErrInvalidData       = errors.New("invalid market data")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Indicator errors
	ErrIndicatorUndefined = errors.New("indicator undefined for latest bar")

	// Store errors
	ErrPersistence    = errors.New("persistence failed")
	ErrSignalNotFound = errors.New("signal not found")

	// Notification errors
	ErrDelivery       = errors.New("notification delivery failed")
	ErrUnknownCommand = errors.New("unknown command")

	// Validation errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidInterval = errors.New("invalid interval")
)
