package snailtrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snailtrap/client-go/internal/apierrors"
	"github.com/snailtrap/client-go/retry"
)

// Sentinel errors for errors.Is() checks. They are shared with the
// transport layer, so a sentinel matches no matter how deep in the
// stack the error originated.
var (
	// ErrMissingAPIKey is returned when no API key is provided.
	ErrMissingAPIKey = apierrors.ErrMissingAPIKey

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = apierrors.ErrClientClosed

	// ErrUnauthorized is returned when the API key is invalid or expired.
	ErrUnauthorized = apierrors.ErrUnauthorized

	// ErrInboxNotFound is returned when an inbox is not found.
	ErrInboxNotFound = apierrors.ErrInboxNotFound

	// ErrMessageNotFound is returned when a message is not found.
	ErrMessageNotFound = apierrors.ErrMessageNotFound

	// ErrInboxAlreadyExists is returned when trying to import an inbox that already exists.
	ErrInboxAlreadyExists = apierrors.ErrInboxAlreadyExists

	// ErrInvalidImportData is returned when imported inbox data is invalid.
	ErrInvalidImportData = apierrors.ErrInvalidImportData

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = apierrors.ErrRateLimited

	// ErrExtractionFailed is returned when a message yields no ranked
	// action link.
	ErrExtractionFailed = apierrors.ErrExtractionFailed

	// ErrBreakerOpen is returned when the circuit breaker rejects a
	// call without attempting it.
	ErrBreakerOpen = retry.ErrOpen
)

// APIError is an HTTP error response from the Snailtrap API.
type APIError = apierrors.APIError

// NetworkError is a transport-level failure that prevented an HTTP
// status from being received.
type NetworkError = apierrors.NetworkError

// PayloadError is a structurally invalid response body from the API.
type PayloadError = apierrors.PayloadError

// TimeoutError reports an operation that exceeded its time budget.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Timeout)
}

// ErrorKind buckets an error by how callers should react to it.
type ErrorKind string

const (
	// KindUnauthorized means the API key is invalid or lacks access.
	// Retrying cannot help; verification waits abort.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindRateLimited means the provider asked us to slow down. The
	// operation may succeed after backing off.
	KindRateLimited ErrorKind = "rate_limited"

	// KindTransient covers network failures and 5xx responses that are
	// expected to heal on retry.
	KindTransient ErrorKind = "transient"

	// KindFatal covers everything retrying cannot fix: client-side
	// mistakes, malformed payloads, cancelled contexts.
	KindFatal ErrorKind = "fatal"
)

// KindOf classifies an error produced by this SDK. Errors it does not
// recognize classify as transient, which keeps them retryable within
// whatever time budget the caller holds. A nil error classifies as the
// zero ErrorKind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindFatal
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrClientClosed),
		errors.Is(err, ErrMissingAPIKey),
		errors.Is(err, ErrInvalidImportData),
		errors.Is(err, ErrExtractionFailed):
		return KindFatal
	}

	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return KindFatal
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindTransient
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 408 || apiErr.StatusCode >= 500 {
			return KindTransient
		}
		return KindFatal
	}

	return KindTransient
}

// RetryClassifier maps the SDK error taxonomy onto retry classes.
// Unauthorized and fatal errors abort a retry loop immediately;
// transient and rate-limited errors are worth another attempt.
func RetryClassifier(err error) retry.Class {
	switch KindOf(err) {
	case KindUnauthorized, KindFatal:
		return retry.ClassFatal
	default:
		return retry.ClassRetryable
	}
}
