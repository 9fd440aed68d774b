package client

import (
	"errors"
	"testing"
)

func TestEndpointError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *EndpointError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &EndpointError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "endpoint network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &EndpointError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "404 Not Found",
			},
			expected: "endpoint client error (status 404): 404 Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEndpointError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &EndpointError{ErrorClass: ErrorClassNetwork, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestErrAggregationFailed_Message(t *testing.T) {
	if ErrAggregationFailed.Error() != "failed" {
		t.Errorf("ErrAggregationFailed = %q, want %q", ErrAggregationFailed.Error(), "failed")
	}
}
