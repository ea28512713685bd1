package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource ranks where a resale estimate came from, strongest first.
type PriceSource string

const (
	SourceMarketAuction    PriceSource = "market_auction"    // median of real bid samples
	SourceWebCache         PriceSource = "web_cache"         // cached web price lookup
	SourceWeightFormula    PriceSource = "weight_formula"    // kg x material rate
	SourceCategoryEstimate PriceSource = "category_estimate" // keyword price table
	SourceAIEstimate       PriceSource = "ai_estimate"       // extraction-side guess
	SourceBundleAggregate  PriceSource = "bundle_aggregate"  // sum of component prices
)

// SoftCappable reports whether estimates from this source may be bounded by
// the soft-market ceiling. Direct market evidence is never capped.
func (s PriceSource) SoftCappable() bool {
	switch s {
	case SourceAIEstimate, SourceWebCache, SourceCategoryEstimate:
		return true
	}
	return false
}

// MarketPriceSample is one evidenced price observation. Ephemeral: computed
// per aggregation call, only the resulting aggregate is persisted.
type MarketPriceSample struct {
	Value    decimal.Decimal `json:"value"`
	HasBids  bool            `json:"hasBids"`  // active auction vs. un-bid starting price
	SourceID string          `json:"sourceId"` // external listing identifier, dedup key
}

// ListingSnapshot is the evidence record for one marketplace listing, as seen
// in the current batch or read back from persisted prior runs.
type ListingSnapshot struct {
	SourceID    string          `json:"sourceId"` // marketplace-native ID, unique
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Bid         decimal.Decimal `json:"bid"`
	BidsCount   int             `json:"bidsCount"`
	EndsAt      time.Time       `json:"endsAt,omitempty"`
	RunID       string          `json:"runId,omitempty"`
}

// PriceEstimate is the engine's final resale verdict for one identity.
type PriceEstimate struct {
	Value       decimal.Decimal  `json:"value"`
	Source      PriceSource      `json:"source"`
	SampleCount int              `json:"sampleCount,omitempty"`
	SoftCapped  bool             `json:"softCapped,omitempty"`
	Uncapped    *decimal.Decimal `json:"uncappedValue,omitempty"` // original, kept for audit
}

// EvaluationResult is the engine's terminal record for one listing: either
// a priced estimate or an explicit skip reason, never a silent drop.
type EvaluationResult struct {
	Listing    ListingSnapshot   `json:"listing"`
	Product    *ExtractedProduct `json:"product,omitempty"`
	Identity   ProductIdentity   `json:"identity"`
	Bundle     *BundleResult     `json:"bundle,omitempty"`
	Estimate   *PriceEstimate    `json:"estimate,omitempty"`
	Skipped    bool              `json:"skipped"`
	SkipReason string            `json:"skipReason,omitempty"`
}

// PricedListing is what the engine hands to the persistence collaborator
// once a listing reaches a terminal pricing decision.
type PricedListing struct {
	SourceID     string          `json:"sourceId"`
	Title        string          `json:"title"`
	ProductKey   string          `json:"productKey"`
	CanonicalKey string          `json:"canonicalIdentityKey"`
	BundleType   BundleType      `json:"bundleType"`
	Estimate     PriceEstimate   `json:"estimate"`
	Bid          decimal.Decimal `json:"bid"`
	BidsCount    int             `json:"bidsCount"`
	RunID        string          `json:"runId"`
	PricedAt     time.Time       `json:"pricedAt"`
}
