package usecase

import (
	"regexp"

	"github.com/flipscout/backend/internal/domain"
)

// bundleTitlePattern is the cheap heuristic that forces a detail escalation
// before the first pricing attempt: quantity markers or bundle vocabulary in
// the title mean a component breakdown is likely needed.
var bundleTitlePattern = regexp.MustCompile(`(?i)\b\d+\s*x\b|\b(?:set|paket|bundle|konvolut|sammlung|posten|lot)\b|\b\d+\s*(?:stk\.?|stück|stueck|teile?|pieces?)\b`)

// DecisionGateConfig holds the per-phase confidence thresholds.
type DecisionGateConfig struct {
	InitialThreshold     float64 // price straight from title text; default 0.70
	AfterDetailThreshold float64 // price after the detail scrape; default 0.60
	AfterVisionThreshold float64 // price after image analysis; default 0.50
	HardFloor            float64 // below this, never price; default 0.50
}

// Decision is the gate's verdict. SkipReason is set iff Action is ActionSkip.
type Decision struct {
	Action     domain.GateAction
	SkipReason string
}

// DecisionGate is the escalation state machine: given a listing's phase,
// confidence and bundle type, it decides whether to price now, spend on a
// more expensive evidence source, or skip. Escalation is a confidence
// decision, never error recovery.
type DecisionGate struct {
	initialThreshold     float64
	afterDetailThreshold float64
	afterVisionThreshold float64
	hardFloor            float64
}

// NewDecisionGate creates a new decision gate with the given thresholds.
func NewDecisionGate(config DecisionGateConfig) *DecisionGate {
	return &DecisionGate{
		initialThreshold:     thresholdOrDefault(config.InitialThreshold, 0.70),
		afterDetailThreshold: thresholdOrDefault(config.AfterDetailThreshold, 0.60),
		afterVisionThreshold: thresholdOrDefault(config.AfterVisionThreshold, 0.50),
		hardFloor:            thresholdOrDefault(config.HardFloor, 0.50),
	}
}

func thresholdOrDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

// Decide evaluates the state machine for the listing's current phase.
// hasImage reports whether a vision escalation is even possible.
func (g *DecisionGate) Decide(product *domain.ExtractedProduct, title string, hasImage bool) Decision {
	if len(product.Candidates) == 0 {
		return Decision{Action: domain.ActionSkip, SkipReason: domain.SkipNoCandidates}
	}

	switch product.Phase {
	case domain.PhaseInitial:
		return g.decideInitial(product, title)
	case domain.PhaseAfterDetail:
		return g.decideAfterDetail(product, hasImage)
	case domain.PhaseAfterVision:
		return g.decideAfterVision(product)
	}
	// Unknown phase behaves like initial rather than silently pricing.
	return g.decideInitial(product, title)
}

func (g *DecisionGate) decideInitial(product *domain.ExtractedProduct, title string) Decision {
	// UNKNOWN and WEIGHT_BASED need a component breakdown before any pricing,
	// and a bundle-looking title is not trusted even at high confidence.
	if product.BundleType == domain.BundleUnknown ||
		product.BundleType == domain.BundleWeightBased ||
		bundleTitlePattern.MatchString(title) {
		return Decision{Action: domain.ActionDetail}
	}
	// Any other decomposable type without components yet also needs the
	// detail pass first; component breakdown is mandatory for bundles.
	if product.BundleType.Decomposable() && len(product.Components) == 0 {
		return Decision{Action: domain.ActionDetail}
	}
	if product.OverallConfidence >= g.initialThreshold {
		return g.priceIfDecomposed(product)
	}
	return Decision{Action: domain.ActionDetail}
}

func (g *DecisionGate) decideAfterDetail(product *domain.ExtractedProduct, hasImage bool) Decision {
	// A bundle that still has no components after the detail scrape cannot
	// be priced by any later escalation; vision does not decompose bundles.
	if product.BundleType != domain.BundleSingleProduct && len(product.Components) == 0 {
		return Decision{Action: domain.ActionSkip, SkipReason: domain.SkipNoBundleComponents}
	}
	if product.OverallConfidence >= g.afterDetailThreshold {
		return g.priceIfDecomposed(product)
	}
	if hasImage {
		return Decision{Action: domain.ActionVision}
	}
	return Decision{Action: domain.ActionSkip, SkipReason: domain.SkipEscalationUnavailable}
}

func (g *DecisionGate) decideAfterVision(product *domain.ExtractedProduct) Decision {
	if product.OverallConfidence >= g.afterVisionThreshold {
		return g.priceIfDecomposed(product)
	}
	return Decision{Action: domain.ActionSkip, SkipReason: domain.SkipLowConfidence}
}

// priceIfDecomposed applies the terminal checks shared by every phase: the
// hard confidence floor and the no-components skip for decomposable bundles.
func (g *DecisionGate) priceIfDecomposed(product *domain.ExtractedProduct) Decision {
	if product.OverallConfidence < g.hardFloor {
		return Decision{Action: domain.ActionSkip, SkipReason: domain.SkipBelowHardFloor}
	}
	if product.BundleType.Decomposable() && len(product.Components) == 0 {
		return Decision{Action: domain.ActionSkip, SkipReason: domain.SkipNoBundleComponents}
	}
	return Decision{Action: domain.ActionPrice}
}
