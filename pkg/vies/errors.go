package vies

import "errors"

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid VIES client configuration")

	// ErrUnsupportedCountry is returned for countries outside the VIES system
	ErrUnsupportedCountry = errors.New("country not supported by VIES")

	// ErrInvalidRequest is returned when VIES rejects the number format
	ErrInvalidRequest = errors.New("invalid VAT number request")

	// ErrServiceUnavailable is returned when VIES or the member state service is down
	ErrServiceUnavailable = errors.New("VIES service unavailable")

	// ErrNetworkError is returned when there's a network communication error
	ErrNetworkError = errors.New("network error")
)
