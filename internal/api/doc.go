// Package api provides HTTP client functionality for communicating with the
// Snailtrap API. It handles authentication, request/response serialization,
// and classification of failures into typed errors.
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration for explicit, type-safe setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// Both methods require an API key and base URL. The API key is sent as a
// bearer token in the Authorization header on every request.
//
// # Failure Semantics
//
// The client makes exactly one HTTP attempt per call and never retries.
// Callers own the retry policy and compose it around these methods. Instead
// of retrying, failures are classified at this boundary:
//
//   - Transport failures wrap into [apierrors.NetworkError].
//   - Non-2xx statuses become [apierrors.APIError] carrying the status code,
//     server message, and request ID.
//   - Success responses with undecodable bodies become
//     [apierrors.PayloadError].
//
// Use errors.Is to check for specific conditions:
//
//	if errors.Is(err, apierrors.ErrInboxNotFound) {
//	    // Handle missing inbox
//	}
//
// # Rate Limiting
//
// When [Config.RateLimit] is set, an in-process golang.org/x/time/rate
// limiter paces requests before they reach the wire. The limiter is shared
// by all goroutines using the client, so concurrent pollers collectively
// stay under the configured rate.
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use. Multiple goroutines may call
// methods on a single Client simultaneously.
package api
