package usecase

import (
	"log"
	"regexp"
	"strings"

	"github.com/flipscout/backend/internal/domain"
)

// IdentityBuilder derives the exact-SKU product key and the market-level
// canonical identity key from an extracted product spec. Fully deterministic:
// no randomness, no external calls.
type IdentityBuilder struct {
	enableDebugLogging bool
}

// Compiled unit patterns for spec value canonicalization
var (
	// Storage capacities like "128 gb", "1tb" -> uppercase unit, no space
	storageUnitPattern = regexp.MustCompile(`^(\d+)\s*(gb|tb|mb)$`)

	// Voltages like "18 v" -> uppercase unit
	voltageUnitPattern = regexp.MustCompile(`^(\d+)\s*v$`)

	// Weights like "40 kg", "2.5kg", "500 g" -> lowercase unit, no space
	weightUnitPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(kg|g)$`)

	// Screen sizes like "13.3 inch", `27"`, "15 zoll" -> N_inch
	screenUnitPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:inch|zoll|")$`)

	// Clothing letter sizes XS through XXXL, with optional slash combos like "S/M"
	letterSizePattern = regexp.MustCompile(`^(?:xs|s|m|l|xl|xxl|xxxl)(?:/(?:xs|s|m|l|xl|xxl|xxxl))?$`)

	// Numeric clothing sizes: EU sizes 32-48 and suit sizes 44-110
	numericSizePattern = regexp.MustCompile(`^\d{2,3}$`)

	underscoreRunPattern = regexp.MustCompile(`_{2,}`)
)

// Generation phrase patterns, all normalized to gen_<n>. The digit capture is
// anchored to the ordinal/generation suffix so model-number digits
// ("iPhone 12") can never be swallowed.
var (
	// "(2nd generation)", "3rd gen"
	ordinalGenPattern = regexp.MustCompile(`(?i)\(?\s*(\d+)\s*(?:st|nd|rd|th)[\s.-]*gen(?:eration)?\.?\s*\)?`)

	// German "(2. Generation)"
	germanGenPattern = regexp.MustCompile(`(?i)\(?\s*(\d+)\.\s*generation\s*\)?`)

	// Spelled-out "second generation", "zweite Generation"
	spelledGenPattern = regexp.MustCompile(`(?i)\(?\s*(first|second|third|fourth|fifth|erste[rn]?|zweite[rn]?|dritte[rn]?|vierte[rn]?|f(?:ü|ue)nfte[rn]?)\s+generation\s*\)?`)
)

var spelledGenerationNumbers = map[string]string{
	"first": "1", "second": "2", "third": "3", "fourth": "4", "fifth": "5",
	"erste": "1", "zweite": "2", "dritte": "3", "vierte": "4", "fünfte": "5", "fuenfte": "5",
}

// sizeAttrNames are spec attribute names that carry clothing sizes. Their
// values never enter identity keys or search text.
var sizeAttrNames = map[string]bool{
	"size":          true,
	"clothing_size": true,
	"shoe_size":     true,
	"größe":         true,
	"groesse":       true,
	"konfektion":    true,
}

// colorTerms across the German/English/French palettes seen in listings.
// Precious metals are deliberately absent: gold/silver define resale value
// for watches and jewelry.
var colorTerms = map[string]bool{
	// German
	"schwarz": true, "weiß": true, "weiss": true, "rot": true, "blau": true,
	"grün": true, "gruen": true, "gelb": true, "grau": true, "braun": true,
	"rosa": true, "lila": true, "violett": true, "türkis": true, "tuerkis": true,
	// English
	"black": true, "white": true, "red": true, "blue": true, "green": true,
	"yellow": true, "gray": true, "grey": true, "brown": true, "pink": true,
	"purple": true, "beige": true, "orange": true, "turquoise": true,
	// French
	"noir": true, "blanc": true, "rouge": true, "bleu": true, "vert": true,
	"jaune": true, "gris": true, "rose": true, "violet": true,
}

// conditionTerms describe wear state, not identity.
var conditionTerms = map[string]bool{
	"neu": true, "neuwertig": true, "gebraucht": true, "defekt": true,
	"ovp": true, "new": true, "used": true, "refurbished": true, "mint": true,
	"broken": true,
}

// marketingNoiseTerms add nothing to identity.
var marketingNoiseTerms = map[string]bool{
	"original": true, "premium": true, "deluxe": true, "limited": true,
	"edition": true, "selten": true, "rar": true, "rare": true, "top": true,
	"mega": true, "super": true, "toll": true, "luxus": true, "exklusiv": true,
}

// variantOnlyAttrs are SKU-level attributes deliberately dropped from the
// canonical key so price evidence pools across variants (same watch,
// different storage).
var variantOnlyAttrs = map[string]bool{
	"storage":     true,
	"storage_gb":  true,
	"speicher":    true,
	"screen_size": true,
	"display":     true,
	"zoll":        true,
}

// NewIdentityBuilder creates a new identity builder
func NewIdentityBuilder(enableDebugLogging bool) *IdentityBuilder {
	return &IdentityBuilder{enableDebugLogging: enableDebugLogging}
}

// Build derives both identity keys from the spec.
func (b *IdentityBuilder) Build(spec *domain.ProductSpec) domain.ProductIdentity {
	identity := domain.ProductIdentity{
		ProductKey:   b.ProductKey(spec),
		CanonicalKey: b.CanonicalKey(spec),
	}
	if b.enableDebugLogging {
		log.Printf("[IDENTITY] brand=%q model=%q -> product_key=%q canonical_key=%q",
			spec.Brand, spec.Model, identity.ProductKey, identity.CanonicalKey)
	}
	return identity
}

// ProductKey builds the exact-SKU identity key: normalized brand + model (or
// type) + every explicitly-mentioned price-relevant spec, in encounter order.
func (b *IdentityBuilder) ProductKey(spec *domain.ProductSpec) string {
	var parts []string

	if spec.Brand != "" {
		parts = append(parts, normalizeKeyComponent(spec.Brand))
	}
	if spec.Model != "" {
		parts = append(parts, normalizeKeyComponent(spec.Model))
	} else if spec.ProductType != "" {
		parts = append(parts, normalizeKeyComponent(spec.ProductType))
	}

	for _, attr := range spec.Specs {
		if attr.Value == "" {
			continue // null spec values are skipped silently
		}
		if isClothingSize(attr.Name, attr.Value) || isColorValue(attr.Value) {
			continue
		}
		parts = append(parts, canonicalizeSpecValue(attr.Value))
	}

	if len(parts) == 0 {
		return "unknown_product"
	}
	return collapseUnderscores(strings.Join(parts, "_"))
}

// CanonicalKey builds the market-level identity key. Same construction as
// ProductKey but omits variant-only specs, normalizes generation phrases to
// gen_<n>, and strips color/condition/marketing terms.
func (b *IdentityBuilder) CanonicalKey(spec *domain.ProductSpec) string {
	var parts []string

	if spec.Brand != "" {
		if p := canonicalizeNameComponent(spec.Brand); p != "" {
			parts = append(parts, p)
		}
	}
	name := spec.Model
	if name == "" {
		name = spec.ProductType
	}
	if name != "" {
		if p := canonicalizeNameComponent(name); p != "" {
			parts = append(parts, p)
		}
	}

	for _, attr := range spec.Specs {
		if attr.Value == "" {
			continue
		}
		if variantOnlyAttrs[strings.ToLower(attr.Name)] {
			continue
		}
		if isClothingSize(attr.Name, attr.Value) || isColorValue(attr.Value) {
			continue
		}
		value := canonicalizeSpecValue(attr.Value)
		if isVariantOnlyValue(value) {
			continue
		}
		parts = append(parts, value)
	}

	if len(parts) == 0 {
		return "unknown_product"
	}
	return collapseUnderscores(strings.Join(parts, "_"))
}

// SearchText builds the space-separated web/cache lookup text for a spec.
// Same exclusion rules as the keys: no sizes, no colors.
func (b *IdentityBuilder) SearchText(spec *domain.ProductSpec) string {
	var parts []string

	if spec.Brand != "" {
		parts = append(parts, strings.TrimSpace(spec.Brand))
	}
	if spec.Model != "" {
		parts = append(parts, strings.TrimSpace(spec.Model))
	} else if spec.ProductType != "" {
		parts = append(parts, strings.TrimSpace(spec.ProductType))
	}
	for _, attr := range spec.Specs {
		if attr.Value == "" {
			continue
		}
		if isClothingSize(attr.Name, attr.Value) || isColorValue(attr.Value) {
			continue
		}
		parts = append(parts, canonicalizeSpecValue(attr.Value))
	}
	return strings.Join(parts, " ")
}

// normalizeKeyComponent lowercases and underscores a brand/model/type string.
func normalizeKeyComponent(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

// canonicalizeNameComponent applies generation normalization and noise-term
// stripping before the lowercase/underscore pass. Generation phrases are
// rewritten first, while word boundaries still exist, so adjacent model
// digits stay intact.
func canonicalizeNameComponent(s string) string {
	s = normalizeGenerations(s)

	words := strings.Fields(strings.ToLower(s))
	var kept []string
	for _, word := range words {
		cleaned := strings.Trim(word, ",.!?;:()'\"")
		if cleaned == "" {
			continue
		}
		if colorTerms[cleaned] || conditionTerms[cleaned] || marketingNoiseTerms[cleaned] {
			continue
		}
		kept = append(kept, cleaned)
	}
	return strings.Join(kept, "_")
}

// normalizeGenerations rewrites all recognized generation phrases to gen_<n>.
func normalizeGenerations(s string) string {
	s = ordinalGenPattern.ReplaceAllString(s, " gen_$1 ")
	s = germanGenPattern.ReplaceAllString(s, " gen_$1 ")
	s = spelledGenPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := spelledGenPattern.FindStringSubmatch(match)
		word := strings.ToLower(sub[1])
		// Trim German adjective endings (erste/erster/ersten)
		for base := range spelledGenerationNumbers {
			if strings.HasPrefix(word, base) {
				return " gen_" + spelledGenerationNumbers[base] + " "
			}
		}
		return match
	})
	return s
}

// canonicalizeSpecValue applies unit-specific casing rules. Values without a
// recognized unit pass through lowercased with underscores; they are never
// dropped, silent information loss is worse than an ugly key component.
func canonicalizeSpecValue(v string) string {
	lower := strings.ToLower(strings.TrimSpace(v))

	if m := storageUnitPattern.FindStringSubmatch(lower); m != nil {
		return m[1] + strings.ToUpper(m[2])
	}
	if m := voltageUnitPattern.FindStringSubmatch(lower); m != nil {
		return m[1] + "V"
	}
	if m := weightUnitPattern.FindStringSubmatch(lower); m != nil {
		return m[1] + m[2]
	}
	if m := screenUnitPattern.FindStringSubmatch(lower); m != nil {
		return m[1] + "_inch"
	}
	return strings.ReplaceAll(lower, " ", "_")
}

// isClothingSize reports whether the attribute carries a clothing size.
// Letter sizes are rejected on value alone; bare numbers only count as sizes
// when the attribute name says so, otherwise "98" could be anything.
func isClothingSize(name, value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if letterSizePattern.MatchString(v) {
		return true
	}
	if sizeAttrNames[strings.ToLower(strings.TrimSpace(name))] && numericSizePattern.MatchString(v) {
		return true
	}
	return false
}

// isColorValue reports whether the whole value is a color term.
func isColorValue(value string) bool {
	return colorTerms[strings.ToLower(strings.TrimSpace(value))]
}

// isVariantOnlyValue catches variant specs by shape when the attribute name
// did not give them away: storage capacities and screen sizes.
func isVariantOnlyValue(canonical string) bool {
	lower := strings.ToLower(canonical)
	if storageUnitPattern.MatchString(lower) {
		return true
	}
	return strings.HasSuffix(canonical, "_inch")
}

func collapseUnderscores(s string) string {
	s = underscoreRunPattern.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
