package apierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "status code only",
			err:      &APIError{StatusCode: 500},
			expected: "API error 500",
		},
		{
			name:     "with message",
			err:      &APIError{StatusCode: 400, Message: "bad request"},
			expected: "API error 400: bad request",
		},
		{
			name:     "with request ID",
			err:      &APIError{StatusCode: 500, RequestID: "req-123"},
			expected: "API error 500 (request_id: req-123)",
		},
		{
			name:     "with message and request ID",
			err:      &APIError{StatusCode: 503, Message: "service unavailable", RequestID: "req-456"},
			expected: "API error 503: service unavailable (request_id: req-456)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		target   error
		expected bool
	}{
		{
			name:     "401 matches ErrUnauthorized",
			err:      &APIError{StatusCode: 401},
			target:   ErrUnauthorized,
			expected: true,
		},
		{
			name:     "403 matches ErrUnauthorized",
			err:      &APIError{StatusCode: 403},
			target:   ErrUnauthorized,
			expected: true,
		},
		{
			name:     "401 does not match ErrInboxNotFound",
			err:      &APIError{StatusCode: 401},
			target:   ErrInboxNotFound,
			expected: false,
		},
		{
			name:     "404 with inbox resource matches ErrInboxNotFound",
			err:      &APIError{StatusCode: 404, ResourceType: ResourceInbox},
			target:   ErrInboxNotFound,
			expected: true,
		},
		{
			name:     "404 with inbox resource does not match ErrMessageNotFound",
			err:      &APIError{StatusCode: 404, ResourceType: ResourceInbox},
			target:   ErrMessageNotFound,
			expected: false,
		},
		{
			name:     "404 with message resource matches ErrMessageNotFound",
			err:      &APIError{StatusCode: 404, ResourceType: ResourceMessage},
			target:   ErrMessageNotFound,
			expected: true,
		},
		{
			name:     "404 with message resource does not match ErrInboxNotFound",
			err:      &APIError{StatusCode: 404, ResourceType: ResourceMessage},
			target:   ErrInboxNotFound,
			expected: false,
		},
		{
			name:     "404 without resource type matches ErrInboxNotFound",
			err:      &APIError{StatusCode: 404},
			target:   ErrInboxNotFound,
			expected: true,
		},
		{
			name:     "404 without resource type matches ErrMessageNotFound",
			err:      &APIError{StatusCode: 404},
			target:   ErrMessageNotFound,
			expected: true,
		},
		{
			name:     "409 matches ErrInboxAlreadyExists",
			err:      &APIError{StatusCode: 409},
			target:   ErrInboxAlreadyExists,
			expected: true,
		},
		{
			name:     "429 matches ErrRateLimited",
			err:      &APIError{StatusCode: 429},
			target:   ErrRateLimited,
			expected: true,
		},
		{
			name:     "500 does not match any sentinel",
			err:      &APIError{StatusCode: 500},
			target:   ErrUnauthorized,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Is(tt.target)
			if got != tt.expected {
				t.Errorf("Is(%v) = %v, want %v", tt.target, got, tt.expected)
			}
		})
	}
}

func TestAPIError_ErrorsIs(t *testing.T) {
	// Test that errors.Is works correctly with APIError
	err := &APIError{StatusCode: 401}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("errors.Is should match ErrUnauthorized for 401")
	}

	err = &APIError{StatusCode: 404, ResourceType: ResourceInbox}
	if !errors.Is(err, ErrInboxNotFound) {
		t.Error("errors.Is should match ErrInboxNotFound for 404 inbox")
	}
}

func TestWithResourceType(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		resourceType ResourceType
		checkResult  func(t *testing.T, result error)
	}{
		{
			name:         "nil error returns nil",
			err:          nil,
			resourceType: ResourceInbox,
			checkResult: func(t *testing.T, result error) {
				if result != nil {
					t.Errorf("expected nil, got %v", result)
				}
			},
		},
		{
			name:         "APIError gets resource type",
			err:          &APIError{StatusCode: 404, Message: "not found"},
			resourceType: ResourceInbox,
			checkResult: func(t *testing.T, result error) {
				apiErr, ok := result.(*APIError)
				if !ok {
					t.Fatal("expected *APIError")
				}
				if apiErr.ResourceType != ResourceInbox {
					t.Errorf("ResourceType = %v, want %v", apiErr.ResourceType, ResourceInbox)
				}
				if apiErr.StatusCode != 404 {
					t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
				}
				if apiErr.Message != "not found" {
					t.Errorf("Message = %q, want %q", apiErr.Message, "not found")
				}
			},
		},
		{
			name:         "non-APIError returned unchanged",
			err:          fmt.Errorf("some other error"),
			resourceType: ResourceMessage,
			checkResult: func(t *testing.T, result error) {
				if result.Error() != "some other error" {
					t.Errorf("expected original error, got %v", result)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WithResourceType(tt.err, tt.resourceType)
			tt.checkResult(t, result)
		})
	}
}

func TestNetworkError_Error(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := &NetworkError{Err: underlying}

	expected := "network error: connection refused"
	if got := err.Error(); got != expected {
		t.Errorf("Error() = %q, want %q", got, expected)
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := &NetworkError{Err: underlying}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}

	// Test with errors.Unwrap
	if errors.Unwrap(err) != underlying {
		t.Error("errors.Unwrap should return underlying error")
	}
}

func TestPayloadError(t *testing.T) {
	underlying := fmt.Errorf("unexpected end of JSON input")
	err := &PayloadError{Err: underlying}

	expected := "malformed response payload: unexpected end of JSON input"
	if got := err.Error(); got != expected {
		t.Errorf("Error() = %q, want %q", got, expected)
	}

	if errors.Unwrap(err) != underlying {
		t.Error("errors.Unwrap should return underlying error")
	}
}

func TestSentinelErrors(t *testing.T) {
	// Verify all sentinel errors are properly defined
	sentinels := []error{
		ErrMissingAPIKey,
		ErrClientClosed,
		ErrUnauthorized,
		ErrInboxNotFound,
		ErrMessageNotFound,
		ErrInboxAlreadyExists,
		ErrInvalidImportData,
		ErrRateLimited,
		ErrExtractionFailed,
	}

	for _, err := range sentinels {
		if err == nil {
			t.Error("sentinel error should not be nil")
		}
		if err.Error() == "" {
			t.Error("sentinel error message should not be empty")
		}
	}
}

func TestResourceTypeConstants(t *testing.T) {
	if ResourceUnknown != "" {
		t.Errorf("ResourceUnknown = %q, want empty string", ResourceUnknown)
	}
	if ResourceInbox != "inbox" {
		t.Errorf("ResourceInbox = %q, want 'inbox'", ResourceInbox)
	}
	if ResourceMessage != "message" {
		t.Errorf("ResourceMessage = %q, want 'message'", ResourceMessage)
	}
}
