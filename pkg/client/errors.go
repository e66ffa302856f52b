package client

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrDecode is returned when a 200 response body is not valid JSON for the target.
	ErrDecode = errors.New("decode response body")

	// ErrRateLimited is returned when the upstream hourly quota is critically low.
	ErrRateLimited = errors.New("request blocked: api quota critical")
)

// APIError represents a failed NeoWs request with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("NeoWs %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("NeoWs %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error class is retried.
// Only transport failures are retried. A clean HTTP error status is final:
// NeoWs answers a bad key or a missing page the same way on every attempt.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassNetwork:
		return true
	case ErrorClassClient, ErrorClassServer, ErrorClassRateLimit:
		return false
	default:
		return false
	}
}

// isRetryable reports whether err returned by a request attempt may be retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrRateLimited) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shouldRetry(apiErr.ErrorClass)
	}
	return false
}
