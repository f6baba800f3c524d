package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrUnknownRetailer is returned when a retailer id is not in the registry
	ErrUnknownRetailer = errors.New("unknown retailer")

	// ErrBlocked is returned when a retailer answers HTML where JSON was expected
	ErrBlocked = errors.New("retailer returned HTML instead of JSON")

	// ErrBodyTooLarge is returned when a response body exceeds the configured cap
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrUpstreamStatus is returned when a retailer answers with a non-2xx status
	ErrUpstreamStatus = errors.New("retailer request failed")
)
