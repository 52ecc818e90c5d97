package domain

import "errors"

var (
	// ErrProductNotFound is returned when a SKU cannot be resolved in the catalog
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrNetwork is returned when the catalog feed request fails
	ErrNetwork = errors.New("catalog feed request failed")

	// ErrAuth is returned when the speech API credential is missing or rejected
	ErrAuth = errors.New("speech API credential missing or rejected")

	// ErrPermissionDenied is returned when microphone access is refused
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrToolValidation is returned when tool-call parameters are malformed
	ErrToolValidation = errors.New("invalid tool call parameters")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrSessionNotFound is returned when a voice session id is unknown
	ErrSessionNotFound = errors.New("voice session not found")
)
