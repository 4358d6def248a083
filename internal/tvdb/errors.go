// Package tvdb provides error types for catalog operations.
package tvdb

import "errors"

// Sentinel errors for catalog operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the requested series does not exist in the catalog.
	ErrNotFound = errors.New("series not found")

	// ErrUnauthorized indicates the API rejected the credentials.
	// Returned only after a token refresh has been attempted.
	ErrUnauthorized = errors.New("catalog authentication failed")
)
