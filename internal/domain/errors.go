package domain

import "errors"

var (
	// ErrInsufficientEvidence is returned when fewer market samples exist than
	// the configured minimum. It is a fallback trigger, not a failure.
	ErrInsufficientEvidence = errors.New("insufficient market evidence")

	// ErrLowConfidence is returned when extraction confidence is below the threshold
	ErrLowConfidence = errors.New("extraction confidence below threshold")

	// ErrInvalidListing is returned when listing parameters are invalid
	ErrInvalidListing = errors.New("invalid listing parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrExtractorFailure is returned when the extraction API request fails
	ErrExtractorFailure = errors.New("extraction API request failed")

	// ErrNotFound is returned when a persisted listing cannot be found
	ErrNotFound = errors.New("listing not found")
)
