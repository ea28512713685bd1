package domain

import "github.com/shopspring/decimal"

// EscalationPhase tracks how much evidence has been spent on a listing.
type EscalationPhase string

const (
	PhaseInitial     EscalationPhase = "initial"
	PhaseAfterDetail EscalationPhase = "after_detail"
	PhaseAfterVision EscalationPhase = "after_vision"
)

// GateAction is the decision gate's verdict for the current phase.
// ActionPrice and ActionSkip are terminal.
type GateAction string

const (
	ActionPrice  GateAction = "pricing"
	ActionDetail GateAction = "detail"
	ActionVision GateAction = "vision"
	ActionSkip   GateAction = "skip"
)

// Skip reasons recorded on listings that cannot be priced. A skipped listing
// always carries one of these; it is never silently dropped.
const (
	SkipNoCandidates          = "no_product_candidates"
	SkipBelowHardFloor        = "confidence_below_hard_floor"
	SkipLowConfidence         = "low_confidence_after_escalation"
	SkipNoBundleComponents    = "bundle_without_components"
	SkipEscalationUnavailable = "escalation_unavailable"
	SkipBudgetExhausted       = "run_budget_exhausted"
	SkipNoPriceEvidence       = "no_price_evidence"
)

// ExtractedProduct is the mutable per-listing state threaded through the
// escalation phases. Terminal once CanPrice is set or a skip reason recorded.
type ExtractedProduct struct {
	ListingID         string          `json:"listingId"`
	Candidates        []ProductSpec   `json:"candidates"`
	OverallConfidence float64         `json:"overallConfidence"`
	BundleType        BundleType      `json:"bundleType"`
	Phase             EscalationPhase `json:"phase"`
	CanPrice          bool            `json:"canPrice"`
	SkipReason        string          `json:"skipReason,omitempty"`
	Components        []BundleComponent `json:"components,omitempty"`
}

// RecomputeConfidence sets OverallConfidence to the minimum candidate
// confidence, the conservative representative across candidates.
func (e *ExtractedProduct) RecomputeConfidence() {
	if len(e.Candidates) == 0 {
		e.OverallConfidence = 0
		return
	}
	min := e.Candidates[0].Confidence
	for _, c := range e.Candidates[1:] {
		if c.Confidence < min {
			min = c.Confidence
		}
	}
	e.OverallConfidence = min
}

// ExtractionUsage accounts the cost of one collaborator call.
type ExtractionUsage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostEUR      float64 `json:"costEur"`
}

// ExtractionResult is what the extraction collaborator returns for a listing.
type ExtractionResult struct {
	Candidates []ProductSpec   `json:"candidates"`
	Components []BundleComponent `json:"components,omitempty"`
	Usage      ExtractionUsage `json:"usage"`
}

// ListingDetail is the detail-page escalation payload. May be nil when the
// scrape collaborator has nothing.
type ListingDetail struct {
	FullDescription string           `json:"fullDescription"`
	SellerRating    float64          `json:"sellerRating,omitempty"`
	ShippingCost    *decimal.Decimal `json:"shippingCost,omitempty"`
}

// ImageAnalysis is the vision escalation payload.
type ImageAnalysis struct {
	Confidence float64         `json:"confidence"`
	Candidates []ProductSpec   `json:"candidates,omitempty"`
	Usage      ExtractionUsage `json:"usage"`
}
