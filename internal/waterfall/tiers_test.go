package waterfall

import (
	"strings"
	"testing"
)

// ============================================================================
// Single-tier validation
// ============================================================================

func TestValidateTier(t *testing.T) {
	tests := []struct {
		name       string
		tier       Tier
		wantValid  bool
		wantErrors int
	}{
		{
			name:      "valid roc tier",
			tier:      Tier{TierNumber: 1, LPSharePercent: 100, GPSharePercent: 0},
			wantValid: true,
		},
		{
			name:      "valid split tier",
			tier:      Tier{TierNumber: 4, LPSharePercent: 80, GPSharePercent: 20},
			wantValid: true,
		},
		{
			name:       "tier number too low",
			tier:       Tier{TierNumber: 0, LPSharePercent: 100, GPSharePercent: 0},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:       "tier number too high",
			tier:       Tier{TierNumber: 5, LPSharePercent: 100, GPSharePercent: 0},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:       "shares do not sum to 100",
			tier:       Tier{TierNumber: 2, LPSharePercent: 60, GPSharePercent: 20},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:       "negative lp share",
			tier:       Tier{TierNumber: 2, LPSharePercent: -10, GPSharePercent: 110},
			wantValid:  false,
			wantErrors: 2,
		},
		{
			name:       "irr out of range",
			tier:       Tier{TierNumber: 2, LPSharePercent: 100, GPSharePercent: 0, ThresholdIRR: ptr(150)},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:       "negative threshold amount",
			tier:       Tier{TierNumber: 1, LPSharePercent: 100, GPSharePercent: 0, ThresholdAmount: ptr(-5)},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:       "both thresholds set",
			tier:       Tier{TierNumber: 2, LPSharePercent: 100, GPSharePercent: 0, ThresholdAmount: ptr(1000), ThresholdIRR: ptr(8)},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:       "errors accumulate",
			tier:       Tier{TierNumber: 9, LPSharePercent: 200, GPSharePercent: -50},
			wantValid:  false,
			wantErrors: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateTier(tt.tier)
			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (errors: %v)", got.IsValid, tt.wantValid, got.Errors)
			}
			if !tt.wantValid && len(got.Errors) != tt.wantErrors {
				t.Errorf("got %d errors, want %d: %v", len(got.Errors), tt.wantErrors, got.Errors)
			}
		})
	}
}

// ============================================================================
// Ladder validation
// ============================================================================

func TestValidateLadder(t *testing.T) {
	if got := ValidateLadder(DefaultLadder("s", 8, 20)); !got.IsValid {
		t.Errorf("default ladder should validate, got %v", got.Errors)
	}

	short := DefaultLadder("s", 8, 20)[:3]
	if got := ValidateLadder(short); got.IsValid {
		t.Error("3-tier ladder should not validate")
	}

	dup := DefaultLadder("s", 8, 20)
	dup[3].TierNumber = 2
	got := ValidateLadder(dup)
	if got.IsValid {
		t.Error("ladder with duplicate tier numbers should not validate")
	}
	foundDup, foundMissing := false, false
	for _, e := range got.Errors {
		if strings.Contains(e, "duplicate") {
			foundDup = true
		}
		if strings.Contains(e, "missing") {
			foundMissing = true
		}
	}
	if !foundDup || !foundMissing {
		t.Errorf("expected duplicate and missing errors, got %v", got.Errors)
	}
}

// ============================================================================
// Default ladder construction
// ============================================================================

func TestDefaultLadder(t *testing.T) {
	tiers := DefaultLadder("struct-1", 8, 20)

	if len(tiers) != NumTiers {
		t.Fatalf("got %d tiers, want %d", len(tiers), NumTiers)
	}

	type shape struct {
		lp, gp float64
		name   string
	}
	want := []shape{
		{100, 0, TierNameReturnOfCapital},
		{100, 0, TierNamePreferredReturn},
		{0, 100, TierNameGPCatchUp},
		{80, 20, TierNameCarriedInterest},
	}

	for i, w := range want {
		tier := tiers[i]
		if tier.TierNumber != i+1 {
			t.Errorf("tier %d: tierNumber = %d", i, tier.TierNumber)
		}
		if tier.LPSharePercent != w.lp || tier.GPSharePercent != w.gp {
			t.Errorf("tier %d: split %.0f/%.0f, want %.0f/%.0f", i+1, tier.LPSharePercent, tier.GPSharePercent, w.lp, w.gp)
		}
		if tier.TierName != w.name {
			t.Errorf("tier %d: name %q, want %q", i+1, tier.TierName, w.name)
		}
		if tier.StructureID != "struct-1" {
			t.Errorf("tier %d: structureID %q", i+1, tier.StructureID)
		}
		if !tier.IsActive {
			t.Errorf("tier %d: not active", i+1)
		}
	}

	if tiers[1].ThresholdIRR == nil || *tiers[1].ThresholdIRR != 8 {
		t.Error("tier 2 should carry the hurdle IRR threshold")
	}
	if tiers[0].ThresholdIRR != nil || tiers[2].ThresholdIRR != nil || tiers[3].ThresholdIRR != nil {
		t.Error("only tier 2 should carry an IRR threshold")
	}
}
