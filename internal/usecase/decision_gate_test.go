package usecase

import (
	"testing"

	"github.com/flipscout/backend/internal/domain"
)

func gateProduct(phase domain.EscalationPhase, bundleType domain.BundleType, confidence float64, components int) *domain.ExtractedProduct {
	p := &domain.ExtractedProduct{
		Phase:             phase,
		BundleType:        bundleType,
		OverallConfidence: confidence,
		Candidates:        []domain.ProductSpec{{ProductType: "Hantelscheibe", Confidence: confidence}},
	}
	for i := 0; i < components; i++ {
		p.Components = append(p.Components, domain.BundleComponent{ProductType: "Hantelscheibe", Quantity: 1})
	}
	return p
}

func TestDecideInitial(t *testing.T) {
	g := NewDecisionGate(DecisionGateConfig{})

	testCases := []struct {
		name       string
		product    *domain.ExtractedProduct
		title      string
		wantAction domain.GateAction
		wantReason string
	}{
		{
			name:       "confident single product prices immediately",
			product:    gateProduct(domain.PhaseInitial, domain.BundleSingleProduct, 0.85, 0),
			title:      "iPhone 12 128GB",
			wantAction: domain.ActionPrice,
		},
		{
			name:       "low confidence escalates to detail",
			product:    gateProduct(domain.PhaseInitial, domain.BundleSingleProduct, 0.55, 0),
			title:      "Altes Handy",
			wantAction: domain.ActionDetail,
		},
		{
			name:       "unknown bundle always escalates",
			product:    gateProduct(domain.PhaseInitial, domain.BundleUnknown, 0.95, 0),
			title:      "Dachbodenfund",
			wantAction: domain.ActionDetail,
		},
		{
			name:       "weight based always escalates",
			product:    gateProduct(domain.PhaseInitial, domain.BundleWeightBased, 0.95, 2),
			title:      "Hantelscheiben 30kg",
			wantAction: domain.ActionDetail,
		},
		{
			name:       "bundle looking title forces detail at high confidence",
			product:    gateProduct(domain.PhaseInitial, domain.BundleSingleProduct, 0.95, 0),
			title:      "Werkzeug Set 24 Teile",
			wantAction: domain.ActionDetail,
		},
		{
			name:       "quantity bundle without components escalates",
			product:    gateProduct(domain.PhaseInitial, domain.BundleQuantity, 0.9, 0),
			title:      "Zwei Hantelscheiben",
			wantAction: domain.ActionDetail,
		},
		{
			name:       "decomposed quantity bundle prices",
			product:    gateProduct(domain.PhaseInitial, domain.BundleQuantity, 0.9, 1),
			title:      "Zwei Hantelscheiben",
			wantAction: domain.ActionPrice,
		},
		{
			name:       "no candidates skips outright",
			product:    &domain.ExtractedProduct{Phase: domain.PhaseInitial},
			title:      "???",
			wantAction: domain.ActionSkip,
			wantReason: domain.SkipNoCandidates,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := g.Decide(tc.product, tc.title, true)
			if got.Action != tc.wantAction {
				t.Errorf("action = %s, want %s", got.Action, tc.wantAction)
			}
			if got.SkipReason != tc.wantReason {
				t.Errorf("skip reason = %q, want %q", got.SkipReason, tc.wantReason)
			}
		})
	}
}

func TestDecideAfterDetail(t *testing.T) {
	g := NewDecisionGate(DecisionGateConfig{})

	testCases := []struct {
		name       string
		product    *domain.ExtractedProduct
		hasImage   bool
		wantAction domain.GateAction
		wantReason string
	}{
		{
			name:       "threshold drops after the detail spend",
			product:    gateProduct(domain.PhaseAfterDetail, domain.BundleSingleProduct, 0.65, 0),
			hasImage:   true,
			wantAction: domain.ActionPrice,
		},
		{
			name:       "still unsure with an image goes to vision",
			product:    gateProduct(domain.PhaseAfterDetail, domain.BundleSingleProduct, 0.55, 0),
			hasImage:   true,
			wantAction: domain.ActionVision,
		},
		{
			name:       "still unsure without an image skips",
			product:    gateProduct(domain.PhaseAfterDetail, domain.BundleSingleProduct, 0.55, 0),
			hasImage:   false,
			wantAction: domain.ActionSkip,
			wantReason: domain.SkipEscalationUnavailable,
		},
		{
			name:       "undecomposed bundle skips even at high confidence",
			product:    gateProduct(domain.PhaseAfterDetail, domain.BundleQuantity, 0.9, 0),
			hasImage:   true,
			wantAction: domain.ActionSkip,
			wantReason: domain.SkipNoBundleComponents,
		},
		{
			name:       "decomposed bundle prices",
			product:    gateProduct(domain.PhaseAfterDetail, domain.BundleQuantity, 0.9, 2),
			hasImage:   true,
			wantAction: domain.ActionPrice,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := g.Decide(tc.product, "Titel", tc.hasImage)
			if got.Action != tc.wantAction {
				t.Errorf("action = %s, want %s", got.Action, tc.wantAction)
			}
			if got.SkipReason != tc.wantReason {
				t.Errorf("skip reason = %q, want %q", got.SkipReason, tc.wantReason)
			}
		})
	}
}

func TestDecideAfterVision(t *testing.T) {
	g := NewDecisionGate(DecisionGateConfig{})

	t.Run("lowest threshold after the final escalation", func(t *testing.T) {
		p := gateProduct(domain.PhaseAfterVision, domain.BundleSingleProduct, 0.52, 0)
		got := g.Decide(p, "Titel", false)
		if got.Action != domain.ActionPrice {
			t.Errorf("action = %s, want %s", got.Action, domain.ActionPrice)
		}
	})

	t.Run("below threshold is a terminal skip", func(t *testing.T) {
		p := gateProduct(domain.PhaseAfterVision, domain.BundleSingleProduct, 0.45, 0)
		got := g.Decide(p, "Titel", false)
		if got.Action != domain.ActionSkip || got.SkipReason != domain.SkipLowConfidence {
			t.Errorf("got %+v, want skip with %s", got, domain.SkipLowConfidence)
		}
	})
}

func TestHardFloor(t *testing.T) {
	// Raise the after-detail threshold below the hard floor to prove the
	// floor binds the terminal decision independently of phase thresholds.
	g := NewDecisionGate(DecisionGateConfig{
		AfterDetailThreshold: 0.30,
		HardFloor:            0.50,
	})

	p := gateProduct(domain.PhaseAfterDetail, domain.BundleSingleProduct, 0.40, 0)
	got := g.Decide(p, "Titel", true)
	if got.Action != domain.ActionSkip || got.SkipReason != domain.SkipBelowHardFloor {
		t.Errorf("got %+v, want skip with %s", got, domain.SkipBelowHardFloor)
	}
}

func TestBundleTitlePattern(t *testing.T) {
	testCases := []struct {
		title string
		want  bool
	}{
		{"Werkzeug Set 24 Teile", true},
		{"2x Hantelscheiben", true},
		{"Konvolut Bücher", true},
		{"Lego Paket gemischt", true},
		{"iPhone 12 128GB", false},
		{"Makita Akkuschrauber", false},
	}

	for _, tc := range testCases {
		t.Run(tc.title, func(t *testing.T) {
			if got := bundleTitlePattern.MatchString(tc.title); got != tc.want {
				t.Errorf("bundleTitlePattern(%q) = %v, want %v", tc.title, got, tc.want)
			}
		})
	}
}
