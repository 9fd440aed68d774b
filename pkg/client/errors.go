package client

import (
	"errors"
	"fmt"
)

// FailedMarker is the fixed marker reported for failed endpoints and for
// aborted aggregations.
const FailedMarker = "failed"

// Common errors returned by the client.
var (
	// ErrAggregationFailed is returned under PolicyFailFast when an endpoint
	// fails. Its message is the fixed failure marker.
	ErrAggregationFailed = errors.New(FailedMarker)

	// ErrInvalidPolicy is returned for unknown failure policy tokens.
	ErrInvalidPolicy = errors.New("invalid failure policy")
)

// EndpointError describes why a single endpoint produced no tree.
type EndpointError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *EndpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("endpoint %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("endpoint %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EndpointError) Unwrap() error {
	return e.Err
}
