package waterfall

import (
	"errors"
	"testing"
	"time"
)

// floatEquals compares monetary values with a half-cent tolerance.
func floatEquals(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.005
}

func ptr(v float64) *float64 { return &v }

// ============================================================================
// Hurdle accrual
// ============================================================================

func TestPreferredReturnTarget(t *testing.T) {
	tests := []struct {
		name        string
		contributed float64
		hurdlePct   float64
		years       float64
		want        float64
	}{
		{"one year at 8%", 1_000_000, 8, 1, 80_000},
		{"two years compound", 1_000_000, 8, 2, 166_400},
		{"zero years", 1_000_000, 8, 0, 0},
		{"zero contributed", 0, 8, 2, 0},
		{"zero hurdle", 1_000_000, 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreferredReturnTarget(tt.contributed, tt.hurdlePct, tt.years)
			if !floatEquals(got, tt.want) {
				t.Errorf("PreferredReturnTarget() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestCatchUpTarget(t *testing.T) {
	if got := CatchUpTarget(0.20, 166_400); !floatEquals(got, 41_600) {
		t.Errorf("CatchUpTarget(0.20, 166400) = %.2f, want 41600", got)
	}
	if got := CatchUpTarget(0, 166_400); got != 0 {
		t.Errorf("CatchUpTarget with zero carry = %.2f, want 0", got)
	}
	if got := CatchUpTarget(0.20, 0); got != 0 {
		t.Errorf("CatchUpTarget with zero preferred = %.2f, want 0", got)
	}
}

func TestElapsedYears(t *testing.T) {
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := ElapsedYears(time.Time{}, to); got != 0 {
		t.Errorf("ElapsedYears from zero date = %.4f, want 0", got)
	}
	from := to.Add(-time.Duration(2*365.25*24) * time.Hour)
	if got := ElapsedYears(from, to); !floatEquals(got, 2) {
		t.Errorf("ElapsedYears over two years = %.4f, want 2", got)
	}
	if got := ElapsedYears(to, from); got != 0 {
		t.Errorf("ElapsedYears with reversed dates = %.4f, want 0", got)
	}
}

// ============================================================================
// Waterfall runs
// ============================================================================

// twoYearInput builds the common test fixture: a $1M structure on the default
// ladder, first call two years before the distribution date.
func twoYearInput(amount float64) RunInput {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return RunInput{
		TotalAmount:        amount,
		Tiers:              DefaultLadder("struct-1", 8, 20),
		CapitalContributed: 1_000_000,
		FirstCallDate:      asOf.Add(-time.Duration(2*365.25*24) * time.Hour),
		AsOf:               asOf,
	}
}

func TestRunFullScenario(t *testing.T) {
	// $1.2M over a $1M structure after two years at an 8% hurdle:
	// tier 1 returns the $1M, tier 2 pays the $166,400 compounded preferred,
	// tier 3 catches the GP up with the remaining $33,600 (target $41,600),
	// tier 4 gets nothing.
	res, err := Run(twoYearInput(1_200_000))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := [NumTiers]float64{1_000_000, 166_400, 33_600, 0}
	for i, w := range want {
		if !floatEquals(res.TierAmounts[i], w) {
			t.Errorf("tier %d = %.2f, want %.2f", i+1, res.TierAmounts[i], w)
		}
	}
	if !floatEquals(res.LPTotal, 1_166_400) {
		t.Errorf("LPTotal = %.2f, want 1166400", res.LPTotal)
	}
	if !floatEquals(res.GPTotal, 33_600) {
		t.Errorf("GPTotal = %.2f, want 33600", res.GPTotal)
	}
	if res.ManagementFee != 0 {
		t.Errorf("ManagementFee = %.2f, want 0", res.ManagementFee)
	}
}

func TestRunZeroAmount(t *testing.T) {
	res, err := Run(twoYearInput(0))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for i, a := range res.TierAmounts {
		if a != 0 {
			t.Errorf("tier %d = %.2f, want 0", i+1, a)
		}
	}
	if res.LPTotal != 0 || res.GPTotal != 0 {
		t.Errorf("LP/GP = %.2f/%.2f, want 0/0", res.LPTotal, res.GPTotal)
	}
}

func TestRunNegativeAmount(t *testing.T) {
	_, err := Run(twoYearInput(-1))
	if !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("Run() error = %v, want ErrNegativeAmount", err)
	}
}

func TestRunInvalidLadder(t *testing.T) {
	in := twoYearInput(100_000)
	in.Tiers = in.Tiers[:2]
	if _, err := Run(in); err == nil {
		t.Error("Run() with a 2-tier ladder should fail")
	}
}

func TestRunStopsAtTierOne(t *testing.T) {
	res, err := Run(twoYearInput(400_000))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !floatEquals(res.TierAmounts[0], 400_000) {
		t.Errorf("tier 1 = %.2f, want 400000", res.TierAmounts[0])
	}
	for i := 1; i < NumTiers; i++ {
		if res.TierAmounts[i] != 0 {
			t.Errorf("tier %d = %.2f, want 0", i+1, res.TierAmounts[i])
		}
	}
}

func TestRunCapitalPartiallyReturned(t *testing.T) {
	in := twoYearInput(500_000)
	in.CapitalReturned = 800_000

	res, err := Run(in)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	// Only $200k of unreturned capital remains for tier 1.
	if !floatEquals(res.TierAmounts[0], 200_000) {
		t.Errorf("tier 1 = %.2f, want 200000", res.TierAmounts[0])
	}
	if !floatEquals(res.TierAmounts[1], 166_400) {
		t.Errorf("tier 2 = %.2f, want 166400", res.TierAmounts[1])
	}
}

func TestRunManagementFeeCarveOut(t *testing.T) {
	in := twoYearInput(1_000_000)
	in.ManagementFeePct = 2

	res, err := Run(in)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !floatEquals(res.ManagementFee, 20_000) {
		t.Errorf("ManagementFee = %.2f, want 20000", res.ManagementFee)
	}
	if !floatEquals(res.NetAmount, 980_000) {
		t.Errorf("NetAmount = %.2f, want 980000", res.NetAmount)
	}

	sum := 0.0
	for _, a := range res.TierAmounts {
		sum += a
	}
	if !floatEquals(sum+res.ManagementFee, in.TotalAmount) {
		t.Errorf("tiers + fee = %.2f, want %.2f", sum+res.ManagementFee, in.TotalAmount)
	}
}

func TestRunFeeRateOutOfRange(t *testing.T) {
	for _, pct := range []float64{-5, -0.01, 100.01, 150} {
		in := twoYearInput(100_000)
		in.ManagementFeePct = pct
		if _, err := Run(in); !errors.Is(err, ErrInvalidFeeRate) {
			t.Errorf("Run() with fee %.2f%%: error = %v, want ErrInvalidFeeRate", pct, err)
		}
	}

	// The boundaries themselves are legal.
	for _, pct := range []float64{0, 100} {
		in := twoYearInput(100_000)
		in.ManagementFeePct = pct
		if _, err := Run(in); err != nil {
			t.Errorf("Run() with fee %.2f%%: unexpected error: %v", pct, err)
		}
	}
}

func TestRunPriorPreferredCountsTowardCatchUp(t *testing.T) {
	in := twoYearInput(300_000)
	in.CapitalReturned = 1_000_000
	in.PreferredPaid = 166_400

	res, err := Run(in)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	// Capital and preferred are fully satisfied; the GP catch-up target is
	// 0.25 * 166400 = 41600 and the rest splits 80/20.
	if res.TierAmounts[0] != 0 || res.TierAmounts[1] != 0 {
		t.Errorf("tiers 1/2 = %.2f/%.2f, want 0/0", res.TierAmounts[0], res.TierAmounts[1])
	}
	if !floatEquals(res.TierAmounts[2], 41_600) {
		t.Errorf("tier 3 = %.2f, want 41600", res.TierAmounts[2])
	}
	if !floatEquals(res.TierAmounts[3], 258_400) {
		t.Errorf("tier 4 = %.2f, want 258400", res.TierAmounts[3])
	}
	wantGP := 41_600 + 0.20*258_400
	if !floatEquals(res.GPTotal, wantGP) {
		t.Errorf("GPTotal = %.2f, want %.2f", res.GPTotal, wantGP)
	}
}

// ============================================================================
// Invariants
// ============================================================================

func TestRunTierSumInvariant(t *testing.T) {
	amounts := []float64{0, 0.01, 1, 333_333.33, 1_000_000, 1_200_000, 7_777_777.77}

	for _, amount := range amounts {
		res, err := Run(twoYearInput(amount))
		if err != nil {
			t.Fatalf("Run(%.2f) error: %v", amount, err)
		}

		sum := 0.0
		for _, a := range res.TierAmounts {
			if a < 0 {
				t.Errorf("amount %.2f: negative tier fill %.2f", amount, a)
			}
			sum += a
		}
		if !floatEquals(sum, res.NetAmount) {
			t.Errorf("amount %.2f: tiers sum to %.2f, want %.2f", amount, sum, res.NetAmount)
		}
		if !floatEquals(res.LPTotal+res.GPTotal, sum) {
			t.Errorf("amount %.2f: LP+GP = %.2f, want %.2f", amount, res.LPTotal+res.GPTotal, sum)
		}
	}
}

func TestRunCatchUpRoutesToGP(t *testing.T) {
	in := twoYearInput(1_200_000)
	res, err := Run(in)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	// Tier 3 has lpSharePercent=0: every dollar it fills lands on the GP side.
	if !floatEquals(res.GPTotal, res.TierAmounts[2]+0.20*res.TierAmounts[3]) {
		t.Errorf("GPTotal = %.2f, want tier3 + 20%% of tier4", res.GPTotal)
	}
}
