package extractor

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
)

// errUnavailable marks a 404 from the API: the listing detail or image is
// gone, which is not a failure of the API itself.
var errUnavailable = errors.New("resource unavailable")

// Wire payloads. Kept separate from the domain records so API drift stays in
// this package.

type specPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type candidatePayload struct {
	Brand                string           `json:"brand"`
	Model                string           `json:"model"`
	ProductType          string           `json:"productType"`
	Specs                []specPayload    `json:"specs"`
	PriceRelevantAttrs   []string         `json:"priceRelevantAttrs"`
	Confidence           float64          `json:"confidence"`
	UncertaintyFields    []string         `json:"uncertaintyFields"`
	EstimatedNewPrice    *decimal.Decimal `json:"estimatedNewPrice"`
	EstimatedResalePrice *decimal.Decimal `json:"estimatedResalePrice"`
}

type componentPayload struct {
	ProductType string           `json:"productType"`
	DisplayName string           `json:"displayName"`
	IdentityKey string           `json:"identityKey"`
	Quantity    int              `json:"quantity"`
	Specs       []specPayload    `json:"specs"`
	NewPrice    *decimal.Decimal `json:"newPrice"`
}

type usagePayload struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostEUR      float64 `json:"costEur"`
}

type extractionPayload struct {
	Candidates []candidatePayload `json:"candidates"`
	Components []componentPayload `json:"components"`
	Usage      usagePayload       `json:"usage"`
}

type detailPayload struct {
	FullDescription string           `json:"fullDescription"`
	SellerRating    float64          `json:"sellerRating"`
	ShippingCost    *decimal.Decimal `json:"shippingCost"`
}

type visionPayload struct {
	Confidence float64            `json:"confidence"`
	Candidates []candidatePayload `json:"candidates"`
	Usage      usagePayload       `json:"usage"`
}

// mapExtraction converts the wire payload into domain records. Defensive:
// malformed candidates degrade (empty names dropped, confidence clamped)
// rather than fail.
func mapExtraction(wire *extractionPayload) *domain.ExtractionResult {
	result := &domain.ExtractionResult{
		Usage: domain.ExtractionUsage(wire.Usage),
	}
	for _, c := range wire.Candidates {
		result.Candidates = append(result.Candidates, mapCandidate(&c))
	}
	for _, comp := range wire.Components {
		if strings.TrimSpace(comp.ProductType) == "" || comp.Quantity <= 0 {
			continue
		}
		result.Components = append(result.Components, domain.BundleComponent{
			ProductType: comp.ProductType,
			DisplayName: comp.DisplayName,
			IdentityKey: comp.IdentityKey,
			Quantity:    comp.Quantity,
			Specs:       mapSpecs(comp.Specs),
			NewPrice:    comp.NewPrice,
		})
	}
	return result
}

func mapCandidate(c *candidatePayload) domain.ProductSpec {
	return domain.ProductSpec{
		Brand:                strings.TrimSpace(c.Brand),
		Model:                strings.TrimSpace(c.Model),
		ProductType:          strings.TrimSpace(c.ProductType),
		Specs:                mapSpecs(c.Specs),
		PriceRelevantAttrs:   c.PriceRelevantAttrs,
		Confidence:           clampConfidence(c.Confidence),
		UncertaintyFields:    c.UncertaintyFields,
		EstimatedNewPrice:    c.EstimatedNewPrice,
		EstimatedResalePrice: c.EstimatedResalePrice,
	}
}

func mapSpecs(specs []specPayload) []domain.SpecAttr {
	var out []domain.SpecAttr
	for _, s := range specs {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		out = append(out, domain.SpecAttr{Name: s.Name, Value: s.Value})
	}
	return out
}

func mapDetail(wire *detailPayload) *domain.ListingDetail {
	if wire.FullDescription == "" && wire.SellerRating == 0 && wire.ShippingCost == nil {
		return nil
	}
	return &domain.ListingDetail{
		FullDescription: wire.FullDescription,
		SellerRating:    wire.SellerRating,
		ShippingCost:    wire.ShippingCost,
	}
}

func mapVision(wire *visionPayload) *domain.ImageAnalysis {
	analysis := &domain.ImageAnalysis{
		Confidence: clampConfidence(wire.Confidence),
		Usage:      domain.ExtractionUsage(wire.Usage),
	}
	for _, c := range wire.Candidates {
		analysis.Candidates = append(analysis.Candidates, mapCandidate(&c))
	}
	return analysis
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
