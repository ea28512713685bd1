package usecase

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

// materialRate is the per-kg pricing entry for weight-plate materials.
type materialRate struct {
	newPerKg   decimal.Decimal // new price per kg
	resaleRate decimal.Decimal // fraction of new retained at resale
}

// materialRates covers the plate materials that actually trade differently.
// Lookup is by the component's stated material; unstated or unrecognized
// materials fall back to the explicit "standard" entry, never to a crash.
var materialRates = map[string]materialRate{
	"bumper":     {newPerKg: decimal.NewFromFloat(6.0), resaleRate: decimal.NewFromFloat(0.55)},
	"gusseisen":  {newPerKg: decimal.NewFromFloat(3.5), resaleRate: decimal.NewFromFloat(0.50)},
	"calibrated": {newPerKg: decimal.NewFromFloat(8.0), resaleRate: decimal.NewFromFloat(0.60)},
	"urethane":   {newPerKg: decimal.NewFromFloat(10.0), resaleRate: decimal.NewFromFloat(0.60)},
	"chrome":     {newPerKg: decimal.NewFromFloat(7.0), resaleRate: decimal.NewFromFloat(0.55)},
	"vinyl":      {newPerKg: decimal.NewFromFloat(2.5), resaleRate: decimal.NewFromFloat(0.40)},
	"standard":   {newPerKg: decimal.NewFromFloat(4.0), resaleRate: decimal.NewFromFloat(0.50)},
}

// calibratedNewPriceFactor scales calibrated plates' new price; competition
// plates sell far above their steel weight.
var calibratedNewPriceFactor = decimal.NewFromFloat(1.5)

// categoryEstimate is a keyword-matched heuristic price entry.
type categoryEstimate struct {
	keywords   []string
	newPrice   decimal.Decimal
	resaleRate decimal.Decimal
}

// categoryEstimates is evaluated in order; first keyword hit wins.
// Accessories depreciate hardest, core fitness and tool equipment retains
// the most.
var categoryEstimates = []categoryEstimate{
	{
		keywords:   []string{"adapter", "kabel", "cable", "hülle", "huelle", "case", "tasche", "halterung", "mount", "armband", "strap", "ladegerät", "ladegeraet", "charger"},
		newPrice:   decimal.NewFromInt(15),
		resaleRate: decimal.NewFromFloat(0.30),
	},
	{
		keywords:   []string{"hantelbank", "bench", "power rack", "rack"},
		newPrice:   decimal.NewFromInt(220),
		resaleRate: decimal.NewFromFloat(0.60),
	},
	{
		keywords:   []string{"langhantel", "barbell"},
		newPrice:   decimal.NewFromInt(120),
		resaleRate: decimal.NewFromFloat(0.60),
	},
	{
		keywords:   []string{"kurzhantel", "dumbbell", "kettlebell"},
		newPrice:   decimal.NewFromInt(60),
		resaleRate: decimal.NewFromFloat(0.55),
	},
	{
		keywords:   []string{"multistation", "kraftstation", "home gym"},
		newPrice:   decimal.NewFromInt(450),
		resaleRate: decimal.NewFromFloat(0.50),
	},
	{
		keywords:   []string{"akkuschrauber", "bohrmaschine", "drill", "säge", "saege", "saw", "schleifer", "grinder", "werkzeug"},
		newPrice:   decimal.NewFromInt(180),
		resaleRate: decimal.NewFromFloat(0.60),
	},
	{
		keywords:   []string{"pro", "max", "ultra"},
		newPrice:   decimal.NewFromInt(800),
		resaleRate: decimal.NewFromFloat(0.55),
	},
	{
		keywords:   []string{"plus", "air"},
		newPrice:   decimal.NewFromInt(500),
		resaleRate: decimal.NewFromFloat(0.50),
	},
	{
		keywords:   []string{"mini", "lite", " se"},
		newPrice:   decimal.NewFromInt(300),
		resaleRate: decimal.NewFromFloat(0.45),
	},
	{
		keywords:   []string{"handy", "smartphone", "phone", "laptop", "notebook", "tablet", "kopfhörer", "kopfhoerer", "headphones", "konsole", "console", "monitor"},
		newPrice:   decimal.NewFromInt(250),
		resaleRate: decimal.NewFromFloat(0.45),
	},
	{
		keywords:   []string{"jacke", "jacket", "mantel", "coat"},
		newPrice:   decimal.NewFromInt(80),
		resaleRate: decimal.NewFromFloat(0.35),
	},
	{
		keywords:   []string{"schuhe", "shoes", "sneaker", "stiefel", "boots"},
		newPrice:   decimal.NewFromInt(90),
		resaleRate: decimal.NewFromFloat(0.35),
	},
	{
		keywords:   []string{"anzug", "suit"},
		newPrice:   decimal.NewFromInt(150),
		resaleRate: decimal.NewFromFloat(0.40),
	},
	{
		keywords:   []string{"hose", "pants", "jeans", "hemd", "shirt", "pullover", "kleid", "dress"},
		newPrice:   decimal.NewFromInt(40),
		resaleRate: decimal.NewFromFloat(0.30),
	},
}

// weightPlateTypes identify components priced by the weight formula.
var weightPlateTypes = []string{
	"hantelscheibe", "gewichtsscheibe", "weight plate", "bumper plate",
}

// weightValuePattern parses weights stated as "40kg", "2.5 kg", "500g".
var weightValuePattern = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(kg|g)$`)

// ComponentPricerConfig holds bundle pricing configuration.
type ComponentPricerConfig struct {
	// BundleDiscount is the fraction knocked off the summed component
	// resale (buyers expect lots below piecewise prices). Defaults to 0.10.
	BundleDiscount decimal.Decimal

	// MaxResaleFraction caps bundle resale at this fraction of its
	// assembled-new value. Defaults to 0.85.
	MaxResaleFraction decimal.Decimal

	// MaxComponentUnitValue drops components whose resale x quantity exceeds
	// it, guarding against runaway totals on misread bulk quantities.
	// Defaults to 1000.
	MaxComponentUnitValue decimal.Decimal
}

// ComponentPricer prices decomposed bundle components independently and
// aggregates them with a discount and a sanity cap.
type ComponentPricer struct {
	aggregator            *MarketAggregator
	bundleDiscount        decimal.Decimal
	maxResaleFraction     decimal.Decimal
	maxComponentUnitValue decimal.Decimal
	log                   *logger.Log
}

// NewComponentPricer creates a new component pricer.
func NewComponentPricer(aggregator *MarketAggregator, config ComponentPricerConfig, log *logger.Log) *ComponentPricer {
	discount := config.BundleDiscount
	if discount.IsZero() {
		discount = decimal.NewFromFloat(0.10)
	}
	maxFraction := config.MaxResaleFraction
	if maxFraction.IsZero() {
		maxFraction = decimal.NewFromFloat(0.85)
	}
	maxUnit := config.MaxComponentUnitValue
	if maxUnit.IsZero() {
		maxUnit = decimal.NewFromInt(1000)
	}
	return &ComponentPricer{
		aggregator:            aggregator,
		bundleDiscount:        discount,
		maxResaleFraction:     maxFraction,
		maxComponentUnitValue: maxUnit,
		log:                   log,
	}
}

// PriceBundle prices each component through the priority chain and
// aggregates the survivors. Components that cannot be priced are dropped,
// never a crash. batchIndex maps canonical identity keys to the current
// run's listings for the market lookup.
func (p *ComponentPricer) PriceBundle(ctx context.Context, components []domain.BundleComponent, batchIndex map[string][]domain.ListingSnapshot, runID string) (*domain.BundleResult, error) {
	result := &domain.BundleResult{}

	for _, component := range components {
		priced, ok := p.priceComponent(ctx, component, batchIndex, runID)
		if !ok {
			p.log.WithFields(logger.Fields{
				"product_type": component.ProductType,
				"quantity":     component.Quantity,
			}).Debug("bundle component dropped")
			continue
		}
		result.Components = append(result.Components, priced)
	}

	if len(result.Components) == 0 {
		return result, domain.ErrInsufficientEvidence
	}

	var newTotal, resaleTotal decimal.Decimal
	for _, component := range result.Components {
		qty := decimal.NewFromInt(int64(component.Quantity))
		if component.NewPrice != nil {
			newTotal = newTotal.Add(component.NewPrice.Mul(qty))
		}
		resaleTotal = resaleTotal.Add(component.ResalePrice.Mul(qty))
	}

	resaleTotal = resaleTotal.Mul(decimal.NewFromInt(1).Sub(p.bundleDiscount))

	// A bundle never resells above the configured fraction of its
	// assembled-new value.
	if newTotal.IsPositive() {
		ceiling := newTotal.Mul(p.maxResaleFraction)
		if resaleTotal.GreaterThan(ceiling) {
			resaleTotal = ceiling
		}
	}

	result.NewPrice = newTotal.Round(2)
	result.ResalePrice = resaleTotal.Round(2)
	return result, nil
}

// priceComponent runs the per-component priority chain:
// market auction -> weight formula -> category estimate.
func (p *ComponentPricer) priceComponent(ctx context.Context, component domain.BundleComponent, batchIndex map[string][]domain.ListingSnapshot, runID string) (domain.BundleComponent, bool) {
	if strings.TrimSpace(component.ProductType) == "" || component.Quantity <= 0 {
		return component, false
	}

	if component.IdentityKey != "" && p.aggregator != nil {
		median, _, err := p.aggregator.ActiveAuctionMedian(ctx, component.IdentityKey, batchIndex[component.IdentityKey], runID)
		if err == nil {
			component.ResalePrice = &median
			component.PriceSource = domain.SourceMarketAuction
			return p.checkUnitValue(component)
		}
	}

	if isWeightPlateType(component.ProductType) {
		return p.priceByWeight(component)
	}

	return p.priceByCategory(component)
}

// priceByWeight applies the material rate table. A weight plate without a
// stated weight is dropped outright rather than guessed.
func (p *ComponentPricer) priceByWeight(component domain.BundleComponent) (domain.BundleComponent, bool) {
	weightKg, ok := componentWeightKg(&component)
	if !ok {
		return component, false
	}

	material := strings.ToLower(strings.TrimSpace(component.SpecValue("material")))
	rate, found := materialRates[material]
	if !found {
		rate = materialRates["standard"]
	}

	newPrice := decimal.NewFromFloat(weightKg).Mul(rate.newPerKg)
	if material == "calibrated" {
		newPrice = newPrice.Mul(calibratedNewPriceFactor)
	}
	resale := newPrice.Mul(rate.resaleRate).Round(2)
	newPrice = newPrice.Round(2)

	component.NewPrice = &newPrice
	component.ResalePrice = &resale
	component.PriceSource = domain.SourceWeightFormula
	return p.checkUnitValue(component)
}

// priceByCategory applies the keyword price tables. An extraction-provided
// new price takes precedence over the table value; the category resale rate
// applies either way.
func (p *ComponentPricer) priceByCategory(component domain.BundleComponent) (domain.BundleComponent, bool) {
	haystack := strings.ToLower(component.ProductType + " " + component.DisplayName)

	for _, entry := range categoryEstimates {
		for _, keyword := range entry.keywords {
			if !strings.Contains(haystack, keyword) {
				continue
			}
			newPrice := entry.newPrice
			if component.NewPrice != nil && component.NewPrice.IsPositive() {
				newPrice = *component.NewPrice
			}
			resale := newPrice.Mul(entry.resaleRate).Round(2)
			component.NewPrice = &newPrice
			component.ResalePrice = &resale
			component.PriceSource = domain.SourceCategoryEstimate
			return p.checkUnitValue(component)
		}
	}

	// No market data, no formula, no table entry: the required new price is
	// unavailable, so the component is dropped.
	return component, false
}

// checkUnitValue enforces the per-component ceiling.
func (p *ComponentPricer) checkUnitValue(component domain.BundleComponent) (domain.BundleComponent, bool) {
	if component.UnitValue().GreaterThan(p.maxComponentUnitValue) {
		return component, false
	}
	return component, true
}

// isWeightPlateType reports whether the product type is priced by weight.
func isWeightPlateType(productType string) bool {
	lower := strings.ToLower(productType)
	for _, t := range weightPlateTypes {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// componentWeightKg reads the component's stated weight in kg from either a
// numeric weight_kg spec or a unit-suffixed weight spec.
func componentWeightKg(component *domain.BundleComponent) (float64, bool) {
	if raw := component.SpecValue("weight_kg"); raw != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err == nil && v > 0 {
			return v, true
		}
	}
	raw := component.SpecValue("weight")
	if raw == "" {
		return 0, false
	}
	m := weightValuePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.EqualFold(m[2], "g") {
		v /= 1000
	}
	return v, true
}
