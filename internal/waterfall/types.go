package waterfall

import "math"

// Tier type names used by the default ladder.
const (
	TierNameReturnOfCapital = "Return of Capital"
	TierNamePreferredReturn = "Preferred Return"
	TierNameGPCatchUp       = "GP Catch-up"
	TierNameCarriedInterest = "Carried Interest"
)

// NumTiers is the fixed ladder length. Every structure distributes through
// exactly four tiers: return of capital, preferred return, GP catch-up,
// carried interest.
const NumTiers = 4

// Tier is one rung of a structure's distribution ladder.
type Tier struct {
	StructureID     string   `json:"structure_id"`
	TierNumber      int      `json:"tier_number"`
	TierName        string   `json:"tier_name"`
	LPSharePercent  float64  `json:"lp_share_percent"`
	GPSharePercent  float64  `json:"gp_share_percent"`
	ThresholdAmount *float64 `json:"threshold_amount,omitempty"`
	ThresholdIRR    *float64 `json:"threshold_irr,omitempty"`
	IsActive        bool     `json:"is_active"`
}

// ValidationResult accumulates every violation found in a tier or ladder
// instead of stopping at the first one.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// Owner is an investor's ownership stake in a structure.
type Owner struct {
	InvestorID string  `json:"investor_id"`
	Percent    float64 `json:"ownership_percent"`
}

// InvestorShare is one investor's computed slice of a pooled amount.
type InvestorShare struct {
	InvestorID string  `json:"investor_id"`
	Percent    float64 `json:"ownership_percent"`
	Amount     float64 `json:"amount"`
}

// round2 rounds a dollar amount to whole cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
