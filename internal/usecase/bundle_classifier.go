package usecase

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/flipscout/backend/internal/domain"
)

// Classifier confidence levels per rule. Ambiguity resolves to UNKNOWN with
// low confidence rather than a guessed type.
const (
	confidenceQuantity      = 0.95
	confidenceBulkLot       = 0.60
	confidenceWeightBased   = 0.70
	confidenceMultiProduct  = 0.80
	confidenceUnknown       = 0.25
	confidenceSingleHigh    = 0.85
	confidenceSingleDefault = 0.80

	// Counted-item quantities above this are bulk lots, not unit bundles
	bulkCountThreshold = 50

	// Bare weight/volume totals at or below this are too small to matter
	weightMagnitudeThreshold = 10.0

	// Candidates below this confidence with unresolved composition are UNKNOWN
	uncertainCandidateThreshold = 0.5
)

// Machine-readable rule tags returned with each classification.
const (
	ReasonExplicitQuantity   = "explicit_quantity_pattern"
	ReasonBulkVocabulary     = "bulk_vocabulary"
	ReasonBulkCount          = "counted_quantity_exceeds_bulk_threshold"
	ReasonWeightTotal        = "weight_total_without_breakdown"
	ReasonMultipleTypes      = "multiple_product_types"
	ReasonNoCandidates       = "no_candidates_extracted"
	ReasonUncertainComposite = "low_confidence_uncertain_composition"
	ReasonSingleCandidate    = "single_candidate_default"
)

// Quantity and weight patterns. The unit list is split on purpose: kg/g/lbs/
// oz/liter/ml are weight or volume units, x/Stück/pieces are counting units.
// "30kg" must never be read as 30 discrete items.
var (
	// "2x", "2 x 15kg", "2x15kg", "x3". The middle alternative handles the
	// fully glued form where no word boundary exists after the x. The
	// reversed form is only matched without a space so "iPhone X 64GB" is
	// not read as a 64-unit lot.
	multiplierPattern = regexp.MustCompile(`(?i)\b(\d+)\s*x\b|\b(\d+)x\d|\bx(\d+)\b`)

	// "Lot de 3", "3 Stk.", "12 Stück", "4 pieces"
	countedItemsPattern = regexp.MustCompile(`(?i)\blot\s+de\s+(\d+)\b|\b(\d+)\s*(?:stk\.?|stück|stueck|pieces?|pcs\.?)\b`)

	// "30kg", "500 g", "1,5 liter", "750ml"
	weightTotalPattern = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(kg|g|lbs?|oz|liter|l|ml)\b`)
)

// bulkVocabulary marks unstructured lot listings.
var bulkVocabulary = []string{
	"konvolut", "sammlung", "posten", "restposten", "großhandel",
	"grosshandel", "bulk", "wholesale", "collection", "job lot",
}

// BundleClassifier decides what a listing physically represents before any
// pricing happens. Purely rule-based, first match wins.
type BundleClassifier struct {
	enableDebugLogging bool
}

// NewBundleClassifier creates a new bundle classifier
func NewBundleClassifier(enableDebugLogging bool) *BundleClassifier {
	return &BundleClassifier{enableDebugLogging: enableDebugLogging}
}

// Classify runs the ordered rule chain over title, description and the
// extracted candidates.
func (c *BundleClassifier) Classify(title, description string, candidates []domain.ProductSpec) domain.Classification {
	result := c.classify(title, description, candidates)
	if c.enableDebugLogging {
		log.Printf("[CLASSIFIER] %q -> type=%s confidence=%.2f reasons=%v",
			title, result.Type, result.Confidence, result.Reasons)
	}
	return result
}

func (c *BundleClassifier) classify(title, description string, candidates []domain.ProductSpec) domain.Classification {
	text := title
	if description != "" {
		text = title + " " + description
	}

	// Rule 1+2a: explicit multiplier/counted-item patterns. A matched count
	// above the bulk threshold routes to BULK_LOT instead of QUANTITY.
	if count, ok := extractExplicitQuantity(text); ok {
		if count > bulkCountThreshold {
			return domain.Classification{
				Type:       domain.BundleBulkLot,
				Confidence: confidenceBulkLot,
				Reasons:    []string{ReasonBulkCount},
			}
		}
		return domain.Classification{
			Type:       domain.BundleQuantity,
			Confidence: confidenceQuantity,
			Reasons:    []string{ReasonExplicitQuantity},
		}
	}

	// Rule 2b: bulk vocabulary
	lowerText := strings.ToLower(text)
	for _, word := range bulkVocabulary {
		if strings.Contains(lowerText, word) {
			return domain.Classification{
				Type:       domain.BundleBulkLot,
				Confidence: confidenceBulkLot,
				Reasons:    []string{ReasonBulkVocabulary},
			}
		}
	}

	// Rule 3: bare weight/volume total without a per-item breakdown. The
	// breakdown case ("2x 15kg") never reaches this point, the multiplier
	// rule above already claimed it.
	if magnitude, ok := extractWeightTotal(text); ok && magnitude > weightMagnitudeThreshold {
		return domain.Classification{
			Type:       domain.BundleWeightBased,
			Confidence: confidenceWeightBased,
			Reasons:    []string{ReasonWeightTotal},
		}
	}

	// Rule 4: upstream extraction found multiple distinct product types
	if countDistinctTypes(candidates) >= 2 {
		return domain.Classification{
			Type:       domain.BundleMultiProduct,
			Confidence: confidenceMultiProduct,
			Reasons:    []string{ReasonMultipleTypes},
		}
	}

	// Rule 5: nothing extracted, or one shaky candidate with unresolved
	// bundle composition
	if len(candidates) == 0 {
		return domain.Classification{
			Type:       domain.BundleUnknown,
			Confidence: confidenceUnknown,
			Reasons:    []string{ReasonNoCandidates},
		}
	}
	if len(candidates) == 1 &&
		candidates[0].Confidence < uncertainCandidateThreshold &&
		candidates[0].HasUncertainty("bundle_composition") {
		return domain.Classification{
			Type:       domain.BundleUnknown,
			Confidence: confidenceUnknown,
			Reasons:    []string{ReasonUncertainComposite},
		}
	}

	// Rule 6: default. Marketing words like "Set" in the title do not force
	// UNKNOWN on their own.
	confidence := confidenceSingleDefault
	if candidates[0].Confidence >= 0.8 {
		confidence = confidenceSingleHigh
	}
	return domain.Classification{
		Type:       domain.BundleSingleProduct,
		Confidence: confidence,
		Reasons:    []string{ReasonSingleCandidate},
	}
}

// extractExplicitQuantity returns the unit count from a multiplier or
// counted-item pattern, if one is present.
func extractExplicitQuantity(text string) (int, bool) {
	if m := multiplierPattern.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				n, err := strconv.Atoi(g)
				return n, err == nil && n > 0
			}
		}
	}
	if m := countedItemsPattern.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				n, err := strconv.Atoi(g)
				return n, err == nil && n > 0
			}
		}
	}
	return 0, false
}

// extractWeightTotal returns the largest bare weight/volume magnitude in the
// text, if any.
func extractWeightTotal(text string) (float64, bool) {
	matches := weightTotalPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var largest float64
	found := false
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", ".")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if !found || v > largest {
			largest = v
			found = true
		}
	}
	return largest, found
}

// countDistinctTypes counts distinct non-empty product_type values.
func countDistinctTypes(candidates []domain.ProductSpec) int {
	seen := make(map[string]bool)
	for _, c := range candidates {
		t := strings.ToLower(strings.TrimSpace(c.ProductType))
		if t != "" {
			seen[t] = true
		}
	}
	return len(seen)
}
