package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

// Time-decay multipliers for active-bid samples. An auction close to ending
// has nearly settled on its price; one with days left will still climb, so
// its current bid gets more upward headroom.
var softCapDecayTiers = []struct {
	within     time.Duration
	multiplier decimal.Decimal
}{
	{time.Hour, decimal.NewFromFloat(1.05)},
	{24 * time.Hour, decimal.NewFromFloat(1.10)},
	{72 * time.Hour, decimal.NewFromFloat(1.15)},
}

var softCapFarMultiplier = decimal.NewFromFloat(1.20) // >= 72h out

// SoftCapperConfig holds soft-market capping configuration.
type SoftCapperConfig struct {
	// SafetyFactor is the margin above the soft market price an estimate may
	// keep before it gets capped. Defaults to 1.10.
	SafetyFactor decimal.Decimal

	// MinSamples is the minimum number of active-bid samples needed before
	// a soft price exists at all. Defaults to 2.
	MinSamples int
}

// SoftCapper applies a ceiling-only correction to estimates from weaker
// sources (AI estimate, web cache) using concurrently active same-identity
// listings. It never raises an estimate.
type SoftCapper struct {
	repo         domain.ListingRepository
	safetyFactor decimal.Decimal
	minSamples   int
	log          *logger.Log
	now          func() time.Time
}

// NewSoftCapper creates a new soft-market capper.
func NewSoftCapper(repo domain.ListingRepository, config SoftCapperConfig, log *logger.Log) *SoftCapper {
	factor := config.SafetyFactor
	if factor.IsZero() {
		factor = decimal.NewFromFloat(1.10)
	}
	minSamples := config.MinSamples
	if minSamples <= 0 {
		minSamples = 2
	}
	return &SoftCapper{
		repo:         repo,
		safetyFactor: factor,
		minSamples:   minSamples,
		log:          log,
		now:          time.Now,
	}
}

// Apply bounds the estimate by the soft market price when one exists.
// Estimates from direct market evidence pass through untouched, as does
// anything already at or under soft x safety factor.
func (c *SoftCapper) Apply(ctx context.Context, estimate *domain.PriceEstimate, canonicalKey string, batch []domain.ListingSnapshot, runID string) *domain.PriceEstimate {
	if estimate == nil || !estimate.Source.SoftCappable() {
		return estimate
	}

	softPrice, sampleCount, ok := c.softMarketPrice(ctx, canonicalKey, batch, runID)
	if !ok {
		return estimate
	}

	ceiling := softPrice.Mul(c.safetyFactor).Round(2)
	if estimate.Value.LessThanOrEqual(ceiling) {
		return estimate
	}

	original := estimate.Value
	capped := *estimate
	capped.Value = ceiling
	capped.SoftCapped = true
	capped.Uncapped = &original

	c.log.WithFields(logger.Fields{
		"canonical_key": canonicalKey,
		"original":      original.String(),
		"capped":        ceiling.String(),
		"soft_price":    softPrice.String(),
		"samples":       sampleCount,
	}).Debug("estimate soft-capped")

	return &capped
}

// softMarketPrice derives the ceiling signal: the median of time-weighted
// active bids across same-identity listings. Requires MinSamples live bids.
func (c *SoftCapper) softMarketPrice(ctx context.Context, canonicalKey string, batch []domain.ListingSnapshot, runID string) (decimal.Decimal, int, bool) {
	pool := batch
	if c.repo != nil {
		prior, err := c.repo.GetBySearchIdentity(ctx, canonicalKey, runID)
		if err == nil {
			pool = mergeBySourceID(batch, prior)
		}
	}

	now := c.now()
	var weighted []decimal.Decimal
	for _, l := range pool {
		if l.BidsCount <= 0 || l.Bid.LessThanOrEqual(decimal.Zero) {
			continue
		}
		weighted = append(weighted, l.Bid.Mul(timeDecayMultiplier(l.EndsAt, now)))
	}

	if len(weighted) < c.minSamples {
		return decimal.Zero, 0, false
	}
	return medianPrice(weighted), len(weighted), true
}

// timeDecayMultiplier picks the decay tier for the auction's remaining time.
// Listings without an end time are treated as far from closing.
func timeDecayMultiplier(endsAt, now time.Time) decimal.Decimal {
	if endsAt.IsZero() {
		return softCapFarMultiplier
	}
	remaining := endsAt.Sub(now)
	for _, tier := range softCapDecayTiers {
		if remaining < tier.within {
			return tier.multiplier
		}
	}
	return softCapFarMultiplier
}

// mergeBySourceID merges two snapshot lists, batch entries first, dropping
// duplicate external IDs.
func mergeBySourceID(batch, prior []domain.ListingSnapshot) []domain.ListingSnapshot {
	seen := make(map[string]bool, len(batch))
	merged := make([]domain.ListingSnapshot, 0, len(batch)+len(prior))
	for _, l := range batch {
		if l.SourceID != "" && seen[l.SourceID] {
			continue
		}
		seen[l.SourceID] = true
		merged = append(merged, l)
	}
	for _, l := range prior {
		if l.SourceID != "" && seen[l.SourceID] {
			continue
		}
		seen[l.SourceID] = true
		merged = append(merged, l)
	}
	return merged
}
