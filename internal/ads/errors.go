package ads

import (
	"errors"
	"fmt"
)

// ErrTokenRejected is returned when the platform refuses the access token.
var ErrTokenRejected = errors.New("ads access token rejected")

// Graph API error code for an invalid or expired OAuth token.
const codeInvalidToken = 190

// APIError is a non-2xx response from the insights endpoint.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ads api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("ads api: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap lets errors.Is(err, ErrTokenRejected) match token failures.
func (e *APIError) Unwrap() error {
	if e.Code == codeInvalidToken {
		return ErrTokenRejected
	}
	return nil
}

// Temporary reports whether the request may succeed on retry.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
