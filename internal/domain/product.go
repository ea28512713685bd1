package domain

import "github.com/shopspring/decimal"

// SpecAttr is a single explicitly-evidenced product attribute.
// Specs keep encounter order because identity keys are order-sensitive,
// so a map would not do here.
type SpecAttr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductSpec represents one extracted product candidate. Every entry in Specs
// must have been explicitly stated in the source text; the extraction
// collaborator guarantees that, the engine never derives attributes itself.
type ProductSpec struct {
	Brand              string     `json:"brand,omitempty"`
	Model              string     `json:"model,omitempty"`
	ProductType        string     `json:"productType"`
	Specs              []SpecAttr `json:"specs,omitempty"`
	PriceRelevantAttrs []string   `json:"priceRelevantAttrs,omitempty"`
	Confidence         float64    `json:"confidence"` // 0-1
	UncertaintyFields  []string   `json:"uncertaintyFields,omitempty"`

	// AI-side price guesses. Weaker evidence than market samples; only used
	// at the bottom of the pricing priority chain.
	EstimatedNewPrice    *decimal.Decimal `json:"estimatedNewPrice,omitempty"`
	EstimatedResalePrice *decimal.Decimal `json:"estimatedResalePrice,omitempty"`
}

// SpecValue returns the value of the named attribute, or "" if absent.
func (p *ProductSpec) SpecValue(name string) string {
	for _, attr := range p.Specs {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// HasUncertainty reports whether the named field was flagged unresolved
// by extraction.
func (p *ProductSpec) HasUncertainty(field string) bool {
	for _, f := range p.UncertaintyFields {
		if f == field {
			return true
		}
	}
	return false
}

// ProductIdentity holds the two stable keys derived from a ProductSpec.
// It is derived data and never persisted independently of its source spec.
type ProductIdentity struct {
	// ProductKey is the exact-SKU identity: brand + model (or type) + every
	// explicitly-mentioned price-relevant spec.
	ProductKey string `json:"productKey"`

	// CanonicalKey is the market-level identity: same construction but with
	// variant-only specs omitted and generation/color/condition noise
	// normalized away. Listings sharing it are price-comparable.
	CanonicalKey string `json:"canonicalIdentityKey"`
}
