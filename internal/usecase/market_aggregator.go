package usecase

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

// MarketAggregatorConfig holds the evidence floors for sample acceptance.
type MarketAggregatorConfig struct {
	// MinSamples is the minimum number of accepted samples before an
	// aggregate is returned. Defaults to 2.
	MinSamples int

	// ActiveBidFloor is the minimum accepted bid on an auction that already
	// has bids. Active bidding is itself evidence of realism, so this floor
	// is low. Defaults to 5.
	ActiveBidFloor decimal.Decimal

	// StartingBidFloor is the minimum accepted starting price on an un-bid
	// listing. Unverified asks need a much higher bar. Defaults to 20.
	StartingBidFloor decimal.Decimal
}

// MarketAggregator pools bid evidence sharing a canonical identity key across
// the current batch and persisted prior runs into one resale estimate.
type MarketAggregator struct {
	repo             domain.ListingRepository
	minSamples       int
	activeBidFloor   decimal.Decimal
	startingBidFloor decimal.Decimal
	log              *logger.Log
}

// NewMarketAggregator creates a new market aggregator with the given floors.
func NewMarketAggregator(repo domain.ListingRepository, config MarketAggregatorConfig, log *logger.Log) *MarketAggregator {
	minSamples := config.MinSamples
	if minSamples <= 0 {
		minSamples = 2
	}
	activeFloor := config.ActiveBidFloor
	if activeFloor.IsZero() {
		activeFloor = decimal.NewFromInt(5)
	}
	startingFloor := config.StartingBidFloor
	if startingFloor.IsZero() {
		startingFloor = decimal.NewFromInt(20)
	}

	return &MarketAggregator{
		repo:             repo,
		minSamples:       minSamples,
		activeBidFloor:   activeFloor,
		startingBidFloor: startingFloor,
		log:              log,
	}
}

// Aggregate returns the median of accepted same-identity samples, or
// ErrInsufficientEvidence when fewer than MinSamples survive the floors.
// batch is the current run's listings sharing the canonical key; prior-run
// evidence is read from the repository and deduplicated against the batch
// by external listing ID.
func (a *MarketAggregator) Aggregate(ctx context.Context, canonicalKey string, batch []domain.ListingSnapshot, runID string) (*domain.PriceEstimate, error) {
	pool := a.collectPool(ctx, canonicalKey, batch, runID)

	samples := a.acceptSamples(pool, false)
	if len(samples) < a.minSamples {
		return nil, domain.ErrInsufficientEvidence
	}

	median := medianPrice(sampleValues(samples))
	return &domain.PriceEstimate{
		Value:       median.Round(2),
		Source:      domain.SourceMarketAuction,
		SampleCount: len(samples),
	}, nil
}

// ActiveAuctionMedian is the stricter lookup used for bundle components:
// only listings with live bids count, and at least MinSamples of them.
func (a *MarketAggregator) ActiveAuctionMedian(ctx context.Context, canonicalKey string, batch []domain.ListingSnapshot, runID string) (decimal.Decimal, int, error) {
	pool := a.collectPool(ctx, canonicalKey, batch, runID)

	samples := a.acceptSamples(pool, true)
	if len(samples) < a.minSamples {
		return decimal.Zero, 0, domain.ErrInsufficientEvidence
	}
	return medianPrice(sampleValues(samples)).Round(2), len(samples), nil
}

// collectPool merges the live batch with persisted cross-run evidence,
// deduplicated by external listing ID. The same physical listing may appear
// once from the batch and once from history; the batch copy wins. A
// repository failure degrades to batch-only evidence rather than aborting.
func (a *MarketAggregator) collectPool(ctx context.Context, canonicalKey string, batch []domain.ListingSnapshot, runID string) []domain.ListingSnapshot {
	if a.repo == nil {
		return mergeBySourceID(batch, nil)
	}
	prior, err := a.repo.GetBySearchIdentity(ctx, canonicalKey, runID)
	if err != nil {
		a.log.WithFields(logger.Fields{"canonical_key": canonicalKey, "error": err}).
			Warn("cross-run evidence lookup failed, using batch only")
		return mergeBySourceID(batch, nil)
	}
	return mergeBySourceID(batch, prior)
}

// acceptSamples applies the two-floor acceptance rule. With activeOnly set,
// un-bid starting prices are rejected outright.
func (a *MarketAggregator) acceptSamples(pool []domain.ListingSnapshot, activeOnly bool) []domain.MarketPriceSample {
	var samples []domain.MarketPriceSample
	for _, l := range pool {
		if l.Bid.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if l.BidsCount > 0 {
			if l.Bid.GreaterThanOrEqual(a.activeBidFloor) {
				samples = append(samples, domain.MarketPriceSample{Value: l.Bid, HasBids: true, SourceID: l.SourceID})
			}
			continue
		}
		if activeOnly {
			continue
		}
		if l.Bid.GreaterThanOrEqual(a.startingBidFloor) {
			samples = append(samples, domain.MarketPriceSample{Value: l.Bid, HasBids: false, SourceID: l.SourceID})
		}
	}
	return samples
}

func sampleValues(samples []domain.MarketPriceSample) []decimal.Decimal {
	values := make([]decimal.Decimal, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}

// medianPrice returns the median of the values; for an even count, the mean
// of the two middle values. Caller guarantees len > 0.
func medianPrice(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
