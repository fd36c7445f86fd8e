package domain

import "fmt"

// APIError is returned when the wrapped API answers with a 4xx or 5xx status.
// Detail is the "detail" field of a JSON error body, or the raw body otherwise.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("API request failed: %d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Detail)
}

// NetworkError wraps a transport failure that produced no HTTP response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// LightningAddressError reports a failure while resolving or paying a Lightning address.
type LightningAddressError struct {
	Message string
}

func (e *LightningAddressError) Error() string {
	return e.Message
}
