package domain

import "github.com/shopspring/decimal"

// BundleType classifies what a listing physically represents.
// Assigned once by the classifier, may be revised after a detail escalation,
// never revised after pricing.
type BundleType string

const (
	BundleSingleProduct BundleType = "single_product"
	BundleQuantity      BundleType = "quantity"      // N identical units
	BundleWeightBased   BundleType = "weight_based"  // total kg/g/liter, no per-item breakdown
	BundleBulkLot       BundleType = "bulk_lot"      // large unstructured lot
	BundleMultiProduct  BundleType = "multi_product" // distinct product types
	BundleUnknown       BundleType = "unknown"
)

// Decomposable reports whether pricing this bundle type requires a
// component breakdown first.
func (b BundleType) Decomposable() bool {
	switch b {
	case BundleQuantity, BundleWeightBased, BundleBulkLot, BundleMultiProduct:
		return true
	}
	return false
}

// Classification is the classifier's verdict with its audit trail.
type Classification struct {
	Type       BundleType `json:"bundleType"`
	Confidence float64    `json:"confidence"`
	Reasons    []string   `json:"reasons,omitempty"` // machine-readable rule tags
}

// BundleComponent is one priced line of a decomposed bundle.
// Owned by a single BundleResult and destroyed with it.
type BundleComponent struct {
	ProductType string           `json:"productType"`
	DisplayName string           `json:"displayName"`
	IdentityKey string           `json:"identityKey"`
	Quantity    int              `json:"quantity"` // > 0
	Specs       []SpecAttr       `json:"specs,omitempty"`
	NewPrice    *decimal.Decimal `json:"newPrice,omitempty"`
	ResalePrice *decimal.Decimal `json:"resalePrice,omitempty"`
	PriceSource PriceSource      `json:"priceSource,omitempty"`
}

// UnitValue returns resale price times quantity, or zero when unpriced.
func (c *BundleComponent) UnitValue() decimal.Decimal {
	if c.ResalePrice == nil {
		return decimal.Zero
	}
	return c.ResalePrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// SpecValue returns the value of the named component spec, or "" if absent.
func (c *BundleComponent) SpecValue(name string) string {
	for _, attr := range c.Specs {
		if attr.Name == name {
			return attr.Value
		}
	}
	return ""
}

// BundleResult aggregates the priced components of one bundle listing.
type BundleResult struct {
	Components  []BundleComponent `json:"components"`
	NewPrice    decimal.Decimal   `json:"newPrice"`
	ResalePrice decimal.Decimal   `json:"resalePrice"`
}
