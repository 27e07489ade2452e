package waterfall

import "fmt"

// ValidateTier checks a single tier against the ladder invariants. All
// violations are collected, not just the first.
func ValidateTier(t Tier) ValidationResult {
	var errs []string

	if t.TierNumber < 1 || t.TierNumber > NumTiers {
		errs = append(errs, fmt.Sprintf("tierNumber must be between 1 and %d, got %d", NumTiers, t.TierNumber))
	}
	if t.LPSharePercent < 0 || t.LPSharePercent > 100 {
		errs = append(errs, fmt.Sprintf("lpSharePercent must be between 0 and 100, got %.2f", t.LPSharePercent))
	}
	if t.GPSharePercent < 0 || t.GPSharePercent > 100 {
		errs = append(errs, fmt.Sprintf("gpSharePercent must be between 0 and 100, got %.2f", t.GPSharePercent))
	}
	if sum := t.LPSharePercent + t.GPSharePercent; !floatNear(sum, 100, 0.0001) {
		errs = append(errs, fmt.Sprintf("lpSharePercent + gpSharePercent must equal 100, got %.2f", sum))
	}
	if t.ThresholdIRR != nil && (*t.ThresholdIRR < 0 || *t.ThresholdIRR > 100) {
		errs = append(errs, fmt.Sprintf("thresholdIrr must be between 0 and 100, got %.2f", *t.ThresholdIRR))
	}
	if t.ThresholdAmount != nil && *t.ThresholdAmount < 0 {
		errs = append(errs, fmt.Sprintf("thresholdAmount must not be negative, got %.2f", *t.ThresholdAmount))
	}
	if t.ThresholdAmount != nil && t.ThresholdIRR != nil {
		errs = append(errs, "thresholdAmount and thresholdIrr are mutually exclusive")
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateLadder checks a full ladder: exactly one tier for each number 1..4,
// every tier individually valid.
func ValidateLadder(tiers []Tier) ValidationResult {
	var errs []string

	if len(tiers) != NumTiers {
		errs = append(errs, fmt.Sprintf("ladder must have exactly %d tiers, got %d", NumTiers, len(tiers)))
	}

	seen := make(map[int]bool)
	for _, t := range tiers {
		if seen[t.TierNumber] {
			errs = append(errs, fmt.Sprintf("duplicate tierNumber %d", t.TierNumber))
		}
		seen[t.TierNumber] = true

		if r := ValidateTier(t); !r.IsValid {
			for _, e := range r.Errors {
				errs = append(errs, fmt.Sprintf("tier %d: %s", t.TierNumber, e))
			}
		}
	}
	for n := 1; n <= NumTiers; n++ {
		if len(tiers) == NumTiers && !seen[n] {
			errs = append(errs, fmt.Sprintf("missing tierNumber %d", n))
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// DefaultLadder builds the standard 4-tier ladder for a structure:
// tier 1 returns capital 100% to LPs, tier 2 pays LPs the preferred return up
// to the hurdle IRR, tier 3 routes 100% to the GP until the catch-up target is
// met, tier 4 splits residual profit (100-carry)/carry.
func DefaultLadder(structureID string, hurdleRatePct, carriedInterestPct float64) []Tier {
	hurdle := hurdleRatePct
	return []Tier{
		{
			StructureID:    structureID,
			TierNumber:     1,
			TierName:       TierNameReturnOfCapital,
			LPSharePercent: 100,
			GPSharePercent: 0,
			IsActive:       true,
		},
		{
			StructureID:    structureID,
			TierNumber:     2,
			TierName:       TierNamePreferredReturn,
			LPSharePercent: 100,
			GPSharePercent: 0,
			ThresholdIRR:   &hurdle,
			IsActive:       true,
		},
		{
			StructureID:    structureID,
			TierNumber:     3,
			TierName:       TierNameGPCatchUp,
			LPSharePercent: 0,
			GPSharePercent: 100,
			IsActive:       true,
		},
		{
			StructureID:    structureID,
			TierNumber:     4,
			TierName:       TierNameCarriedInterest,
			LPSharePercent: 100 - carriedInterestPct,
			GPSharePercent: carriedInterestPct,
			IsActive:       true,
		},
	}
}

func floatNear(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
