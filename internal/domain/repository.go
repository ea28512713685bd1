package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Extractor is the black-box AI extraction collaborator. It must never
// return specs for attributes not stated in the input text; the engine
// trusts the confidence field and does not re-validate.
type Extractor interface {
	Extract(ctx context.Context, title, description string) (*ExtractionResult, error)
}

// DetailScraper fetches the full description page for a listing.
// A (nil, nil) return means the escalation is unavailable.
type DetailScraper interface {
	ScrapeDetail(ctx context.Context, url string) (*ListingDetail, error)
}

// ImageAnalyzer runs the vision escalation on a listing image.
// A (nil, nil) return means the escalation is unavailable.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, title, description, imageURL string) (*ImageAnalysis, error)
}

// ListingRepository defines the interface for listing evidence persistence.
// The engine only reads from it during pricing; writes happen after a
// listing reaches a terminal decision.
type ListingRepository interface {
	// GetBySearchIdentity returns prior listings sharing the canonical
	// identity key, excluding rows written by excludeRunID (the current run,
	// whose listings are already in the live batch).
	GetBySearchIdentity(ctx context.Context, canonicalKey, excludeRunID string) ([]ListingSnapshot, error)

	Persist(ctx context.Context, listing *PricedListing) error
}
