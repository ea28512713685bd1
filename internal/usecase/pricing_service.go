package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

// PricingServiceConfig holds configuration for the pricing orchestrator.
type PricingServiceConfig struct {
	CacheTTL  time.Duration // web-price cache TTL; default 7 days
	Workers   int           // batch worker pool size; default 4
	BudgetEUR float64       // run-level extraction budget; 0 means unlimited
}

// PricingService drives a listing through extraction, classification,
// escalation and pricing, and hands terminal records to persistence.
// Flow: extract -> classify -> gate loop (detail/vision) -> price -> persist.
type PricingService struct {
	identity   *IdentityBuilder
	classifier *BundleClassifier
	gate       *DecisionGate
	aggregator *MarketAggregator
	capper     *SoftCapper
	pricer     *ComponentPricer

	extractor domain.Extractor
	scraper   domain.DetailScraper
	vision    domain.ImageAnalyzer
	repo      domain.ListingRepository
	cache     domain.CacheRepository

	cacheTTL  time.Duration
	workers   int
	budgetEUR float64
	log       *logger.Log
}

// NewPricingService wires the engine components with their collaborators.
func NewPricingService(
	identity *IdentityBuilder,
	classifier *BundleClassifier,
	gate *DecisionGate,
	aggregator *MarketAggregator,
	capper *SoftCapper,
	pricer *ComponentPricer,
	extractor domain.Extractor,
	scraper domain.DetailScraper,
	vision domain.ImageAnalyzer,
	repo domain.ListingRepository,
	cache domain.CacheRepository,
	config PricingServiceConfig,
	log *logger.Log,
) *PricingService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}
	return &PricingService{
		identity:   identity,
		classifier: classifier,
		gate:       gate,
		aggregator: aggregator,
		capper:     capper,
		pricer:     pricer,
		extractor:  extractor,
		scraper:    scraper,
		vision:     vision,
		repo:       repo,
		cache:      cache,
		cacheTTL:   cacheTTL,
		workers:    workers,
		budgetEUR:  config.BudgetEUR,
		log:        log,
	}
}

// EvaluateListing runs the full pipeline for one listing. batchIndex maps
// canonical identity keys to the current run's snapshots and may be nil when
// evaluating outside a batch.
func (s *PricingService) EvaluateListing(ctx context.Context, listing domain.ListingSnapshot, batchIndex map[string][]domain.ListingSnapshot, trace *logger.RunTrace) *domain.EvaluationResult {
	if trace == nil {
		trace = logger.NewRunTrace(s.log, s.budgetEUR)
	}
	return s.evaluate(ctx, listing, nil, batchIndex, trace)
}

// EvaluateBatch evaluates a batch over a bounded worker pool. Listings are
// independent of each other; market evidence is read from a snapshot index
// frozen after the first extraction pass, so workers share nothing mutable.
func (s *PricingService) EvaluateBatch(ctx context.Context, listings []domain.ListingSnapshot) ([]domain.EvaluationResult, string) {
	trace := logger.NewRunTrace(s.log, s.budgetEUR)
	s.log.WithFields(logger.Fields{"run_id": trace.RunID, "listings": len(listings)}).
		Info("batch evaluation started")

	// Pass 1: extract and key every listing so the market-evidence index
	// covers the whole batch before any pricing decision reads it.
	extractions := make([]*domain.ExtractionResult, len(listings))
	keys := make([]string, len(listings))
	s.runWorkers(len(listings), func(i int) {
		if trace.BudgetExceeded() {
			return
		}
		extraction := s.extract(ctx, listings[i], trace)
		extractions[i] = extraction
		if extraction != nil && len(extraction.Candidates) > 0 {
			spec := bestCandidate(extraction.Candidates)
			keys[i] = s.identity.CanonicalKey(spec)
		}
	})

	batchIndex := make(map[string][]domain.ListingSnapshot)
	for i, key := range keys {
		if key != "" {
			batchIndex[key] = append(batchIndex[key], listings[i])
		}
	}

	// Pass 2: gate and price against the frozen index.
	results := make([]domain.EvaluationResult, len(listings))
	s.runWorkers(len(listings), func(i int) {
		if trace.BudgetExceeded() {
			results[i] = skipResult(listings[i], domain.SkipBudgetExhausted)
			return
		}
		results[i] = *s.evaluate(ctx, listings[i], extractions[i], batchIndex, trace)
	})

	s.log.WithFields(logger.Fields{
		"run_id":   trace.RunID,
		"listings": len(listings),
		"cost_eur": trace.TotalCost(),
	}).Info("batch evaluation finished")
	return results, trace.RunID
}

// runWorkers fans fn(i) over a bounded worker pool.
func (s *PricingService) runWorkers(n int, fn func(i int)) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// evaluate is the per-listing pipeline. extraction may be pre-computed from
// the batch keying pass.
func (s *PricingService) evaluate(ctx context.Context, listing domain.ListingSnapshot, extraction *domain.ExtractionResult, batchIndex map[string][]domain.ListingSnapshot, trace *logger.RunTrace) *domain.EvaluationResult {
	if extraction == nil {
		extraction = s.extract(ctx, listing, trace)
	}

	product := &domain.ExtractedProduct{
		ListingID: listing.SourceID,
		Phase:     domain.PhaseInitial,
	}
	if extraction != nil {
		product.Candidates = extraction.Candidates
		product.Components = extraction.Components
	}
	product.RecomputeConfidence()

	classification := s.classifier.Classify(listing.Title, listing.Description, product.Candidates)
	product.BundleType = classification.Type
	trace.Step(listing.SourceID, "classified:"+string(classification.Type))

	// Escalation loop. Three phases at most; every branch either advances
	// the phase or terminates.
	for {
		decision := s.gate.Decide(product, listing.Title, listing.ImageURL != "")

		switch decision.Action {
		case domain.ActionPrice:
			product.CanPrice = true
			return s.price(ctx, listing, product, batchIndex, trace)

		case domain.ActionSkip:
			product.SkipReason = decision.SkipReason
			trace.Step(listing.SourceID, "skip:"+decision.SkipReason)
			result := skipResult(listing, decision.SkipReason)
			result.Product = product
			return &result

		case domain.ActionDetail:
			if trace.BudgetExceeded() {
				product.SkipReason = domain.SkipBudgetExhausted
				result := skipResult(listing, domain.SkipBudgetExhausted)
				result.Product = product
				return &result
			}
			s.escalateDetail(ctx, listing, product, trace)
			product.Phase = domain.PhaseAfterDetail

		case domain.ActionVision:
			if trace.BudgetExceeded() {
				product.SkipReason = domain.SkipBudgetExhausted
				result := skipResult(listing, domain.SkipBudgetExhausted)
				result.Product = product
				return &result
			}
			s.escalateVision(ctx, listing, product, trace)
			product.Phase = domain.PhaseAfterVision
		}
	}
}

// extract calls the extraction collaborator. A failed or malformed
// extraction degrades to zero candidates (the gate will skip with an
// explicit reason) instead of propagating an error.
func (s *PricingService) extract(ctx context.Context, listing domain.ListingSnapshot, trace *logger.RunTrace) *domain.ExtractionResult {
	trace.Step(listing.SourceID, "extract")
	result, err := s.extractor.Extract(ctx, listing.Title, listing.Description)
	if err != nil {
		s.log.WithFields(logger.Fields{"listing_id": listing.SourceID, "error": err}).
			Warn("extraction failed")
		return nil
	}
	trace.AddCost(listing.SourceID, result.Usage.CostEUR)
	return result
}

// escalateDetail scrapes the full description and re-extracts against it.
// A nil scrape means the escalation is unavailable; the phase still
// advances and the gate falls through on the unchanged confidence.
func (s *PricingService) escalateDetail(ctx context.Context, listing domain.ListingSnapshot, product *domain.ExtractedProduct, trace *logger.RunTrace) {
	trace.Step(listing.SourceID, "escalate:detail")

	if s.scraper == nil {
		return
	}
	detail, err := s.scraper.ScrapeDetail(ctx, listing.URL)
	if err != nil || detail == nil || detail.FullDescription == "" {
		return
	}

	result, err := s.extractor.Extract(ctx, listing.Title, detail.FullDescription)
	if err != nil {
		return
	}
	trace.AddCost(listing.SourceID, result.Usage.CostEUR)

	if len(result.Candidates) > 0 {
		product.Candidates = result.Candidates
	}
	if len(result.Components) > 0 {
		product.Components = result.Components
	}
	product.RecomputeConfidence()

	// The fuller text may revise the bundle type; after pricing it is
	// final, but we have not priced yet.
	classification := s.classifier.Classify(listing.Title, detail.FullDescription, product.Candidates)
	product.BundleType = classification.Type
}

// escalateVision runs image analysis. A nil analysis leaves confidence as
// is; the gate then skips with its own reason.
func (s *PricingService) escalateVision(ctx context.Context, listing domain.ListingSnapshot, product *domain.ExtractedProduct, trace *logger.RunTrace) {
	trace.Step(listing.SourceID, "escalate:vision")

	if s.vision == nil {
		return
	}
	analysis, err := s.vision.AnalyzeImage(ctx, listing.Title, listing.Description, listing.ImageURL)
	if err != nil || analysis == nil {
		return
	}
	trace.AddCost(listing.SourceID, analysis.Usage.CostEUR)

	if len(analysis.Candidates) > 0 {
		product.Candidates = analysis.Candidates
		product.RecomputeConfidence()
	} else if analysis.Confidence > product.OverallConfidence {
		product.OverallConfidence = analysis.Confidence
	}
}

// price resolves the resale estimate for a gated listing and persists it.
func (s *PricingService) price(ctx context.Context, listing domain.ListingSnapshot, product *domain.ExtractedProduct, batchIndex map[string][]domain.ListingSnapshot, trace *logger.RunTrace) *domain.EvaluationResult {
	spec := bestCandidate(product.Candidates)
	identity := s.identity.Build(spec)

	result := &domain.EvaluationResult{
		Listing:  listing,
		Product:  product,
		Identity: identity,
	}

	if product.BundleType.Decomposable() {
		bundle, err := s.pricer.PriceBundle(ctx, product.Components, batchIndex, trace.RunID)
		if err != nil {
			product.SkipReason = domain.SkipNoBundleComponents
			result.Skipped = true
			result.SkipReason = domain.SkipNoBundleComponents
			trace.Step(listing.SourceID, "skip:"+domain.SkipNoBundleComponents)
			return result
		}
		result.Bundle = bundle
		result.Estimate = &domain.PriceEstimate{
			Value:  bundle.ResalePrice,
			Source: domain.SourceBundleAggregate,
		}
	} else {
		estimate := s.priceSingle(ctx, spec, identity, batchIndex, trace.RunID)
		if estimate == nil {
			product.SkipReason = domain.SkipNoPriceEvidence
			result.Skipped = true
			result.SkipReason = domain.SkipNoPriceEvidence
			trace.Step(listing.SourceID, "skip:"+domain.SkipNoPriceEvidence)
			return result
		}
		result.Estimate = estimate
	}

	trace.Step(listing.SourceID, fmt.Sprintf("priced:%s=%s", result.Estimate.Source, result.Estimate.Value))
	s.persist(ctx, listing, product, result, trace.RunID)
	return result
}

// priceSingle walks the single-product priority chain: market aggregate,
// cached web price, AI estimate. The weaker sources get the soft-market cap.
func (s *PricingService) priceSingle(ctx context.Context, spec *domain.ProductSpec, identity domain.ProductIdentity, batchIndex map[string][]domain.ListingSnapshot, runID string) *domain.PriceEstimate {
	batch := batchIndex[identity.CanonicalKey]

	estimate, err := s.aggregator.Aggregate(ctx, identity.CanonicalKey, batch, runID)
	if err == nil {
		// Fresh market evidence doubles as the web-price cache entry for
		// later thin-evidence runs.
		s.cacheEstimate(ctx, identity.CanonicalKey, estimate)
		return estimate
	}
	if !errors.Is(err, domain.ErrInsufficientEvidence) {
		s.log.WithFields(logger.Fields{"canonical_key": identity.CanonicalKey, "error": err}).
			Warn("market aggregation failed")
	}

	if cached := s.cachedEstimate(ctx, identity.CanonicalKey); cached != nil {
		return s.capper.Apply(ctx, cached, identity.CanonicalKey, batch, runID)
	}

	if spec.EstimatedResalePrice != nil && spec.EstimatedResalePrice.IsPositive() {
		estimate := &domain.PriceEstimate{
			Value:  spec.EstimatedResalePrice.Round(2),
			Source: domain.SourceAIEstimate,
		}
		return s.capper.Apply(ctx, estimate, identity.CanonicalKey, batch, runID)
	}

	return nil
}

// cacheEstimate stores a market estimate under the canonical key.
func (s *PricingService) cacheEstimate(ctx context.Context, canonicalKey string, estimate *domain.PriceEstimate) {
	if s.cache == nil {
		return
	}
	key := priceCacheKey(canonicalKey)
	if err := s.cache.Set(ctx, key, estimate.Value.String(), s.cacheTTL); err != nil {
		s.log.WithFields(logger.Fields{"key": key, "error": err}).Debug("price cache write failed")
	}
}

// cachedEstimate reads a previously cached price for the canonical key.
func (s *PricingService) cachedEstimate(ctx context.Context, canonicalKey string) *domain.PriceEstimate {
	if s.cache == nil {
		return nil
	}
	value, err := s.cache.Get(ctx, priceCacheKey(canonicalKey))
	if err != nil {
		return nil
	}
	raw, ok := value.(string)
	if !ok {
		return nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil || !price.IsPositive() {
		return nil
	}
	return &domain.PriceEstimate{Value: price, Source: domain.SourceWebCache}
}

// persist hands the priced listing to the persistence collaborator. Write
// failures are logged, not fatal: the estimate is still returned.
func (s *PricingService) persist(ctx context.Context, listing domain.ListingSnapshot, product *domain.ExtractedProduct, result *domain.EvaluationResult, runID string) {
	if s.repo == nil {
		return
	}
	priced := &domain.PricedListing{
		SourceID:     listing.SourceID,
		Title:        listing.Title,
		ProductKey:   result.Identity.ProductKey,
		CanonicalKey: result.Identity.CanonicalKey,
		BundleType:   product.BundleType,
		Estimate:     *result.Estimate,
		Bid:          listing.Bid,
		BidsCount:    listing.BidsCount,
		RunID:        runID,
		PricedAt:     time.Now(),
	}
	if err := s.repo.Persist(ctx, priced); err != nil {
		s.log.WithFields(logger.Fields{"listing_id": listing.SourceID, "error": err}).
			Warn("persist failed")
	}
}

// priceCacheKey builds the cache key for a canonical identity.
func priceCacheKey(canonicalKey string) string {
	return "price:" + strings.ToLower(canonicalKey)
}

// bestCandidate picks the highest-confidence candidate as the listing's
// primary spec.
func bestCandidate(candidates []domain.ProductSpec) *domain.ProductSpec {
	if len(candidates) == 0 {
		return &domain.ProductSpec{}
	}
	sorted := make([]domain.ProductSpec, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	return &sorted[0]
}

func skipResult(listing domain.ListingSnapshot, reason string) domain.EvaluationResult {
	return domain.EvaluationResult{
		Listing:    listing,
		Skipped:    true,
		SkipReason: reason,
	}
}
